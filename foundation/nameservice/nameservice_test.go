package nameservice_test

import (
	"path/filepath"
	"testing"

	"github.com/ardanlabs/frontier/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestLookup(t *testing.T) {
	t.Log("Given the need to name accounts from key files.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the folder holds a key file.", testID)
		{
			dir := t.TempDir()

			pk, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a key: %v", failed, testID, err)
			}
			if err := crypto.SaveECDSA(filepath.Join(dir, "miner1.ecdsa"), pk); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to save the key: %v", failed, testID, err)
			}

			ns, err := nameservice.New(dir)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the folder: %v", failed, testID, err)
			}

			addr := crypto.PubkeyToAddress(pk.PublicKey)
			if name := ns.Lookup(addr); name != "miner1" {
				t.Fatalf("\t%s\tTest %d:\tShould find the name, got %q.", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould find the name.", success, testID)

			unknown := common.HexToAddress("0x0000000000000000000000000000000000000a01")
			if name := ns.Lookup(unknown); name != unknown.Hex() {
				t.Fatalf("\t%s\tTest %d:\tShould fall back to the address, got %q.", failed, testID, name)
			}
			t.Logf("\t%s\tTest %d:\tShould fall back to the address.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the folder does not exist.", testID)
		{
			ns, err := nameservice.New(filepath.Join(t.TempDir(), "missing"))
			if err != nil || len(ns.Copy()) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould produce an empty name service: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould produce an empty name service.", success, testID)
		}
	}
}
