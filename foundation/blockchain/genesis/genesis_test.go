package genesis_test

import (
	"testing"

	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const content = `{
	"chain_id": 1,
	"difficulty": 131072,
	"gas_limit": 3141592,
	"nonce": "0x0000000000000042",
	"balances": {
		"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": "1000000000000000000000000",
		"0xF01813E4B85e178A83e29B8E7bF26BD830a25f32": "25"
	}
}`

func Test_Genesis(t *testing.T) {
	t.Log("Given the need to seed the chain from a genesis file.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen parsing a valid genesis.", testID)
		{
			g, err := genesis.Parse([]byte(content))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to parse the genesis: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to parse the genesis.", success, testID)

			view, err := g.State()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the state: %v", failed, testID, err)
			}

			bob := common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
			if got := view.Balance(bob).Uint64(); got != 25 {
				t.Fatalf("\t%s\tTest %d:\tShould seed the premine, got %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould seed the premine.", success, testID)

			blk, err := g.Block()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the block: %v", failed, testID, err)
			}

			if blk.Header.StateRoot != view.RootHash() || blk.Header.StateRoot == types.EmptyRootHash {
				t.Fatalf("\t%s\tTest %d:\tShould commit to the premine state.", failed, testID)
			}
			if !blk.Header.IsGenesis() || blk.Header.Nonce.Uint64() != 0x42 {
				t.Fatalf("\t%s\tTest %d:\tShould build the genesis header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould build the genesis block.", success, testID)

			again, _ := g.Block()
			if again.Hash() != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould build the same block every time.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould build the same block every time.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen parsing an invalid premine.", testID)
		{
			bad := `{"difficulty": 1, "balances": {"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": "-5"}}`
			if _, err := genesis.Parse([]byte(bad)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a negative balance.", failed, testID)
			}

			bad = `{"difficulty": 1, "balances": {"0xnothex": "5"}}`
			if _, err := genesis.Parse([]byte(bad)); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a bad address.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the premine.", success, testID)
		}
	}
}
