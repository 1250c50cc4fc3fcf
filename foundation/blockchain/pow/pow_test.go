package pow_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/pow"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// =============================================================================

func Test_CalcDifficulty(t *testing.T) {
	p := pow.Frontier()

	parent := database.BlockHeader{
		Difficulty: big.NewInt(2048 * 1000),
		Number:     10,
		TimeStamp:  1000,
	}

	type table struct {
		name      string
		number    uint64
		timestamp uint64
		parent    *big.Int
		exp       *big.Int
	}

	tt := []table{
		{"fast-block", 11, 1012, parent.Difficulty, big.NewInt(2048*1000 + 1000)},
		{"slow-block", 11, 1013, parent.Difficulty, big.NewInt(2048*1000 - 1000)},
		{"minimum", 11, 2000, big.NewInt(131072), big.NewInt(131072)},
		{"bomb-first-period", 100_000, 2000, big.NewInt(131072), big.NewInt(131072)},
		{"bomb-second-period", 200_000, 2000, big.NewInt(131072), big.NewInt(131072 + 1)},
		{"bomb-third-period", 300_000, 2000, big.NewInt(131072), big.NewInt(131072 + 2)},
	}

	t.Log("Given the need to adjust the difficulty between blocks.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen handling a %s.", testID, tst.name)
				{
					par := parent
					par.Difficulty = tst.parent

					header := database.BlockHeader{Number: tst.number, TimeStamp: tst.timestamp}

					got := pow.CalcDifficulty(p, par, header)
					if got.Cmp(tst.exp) != 0 {
						t.Logf("\t\tTest %d:\tgot: %v", testID, got)
						t.Logf("\t\tTest %d:\texp: %v", testID, tst.exp)
						t.Fatalf("\t%s\tTest %d:\tShould get the expected difficulty.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould get the expected difficulty.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Boundary(t *testing.T) {
	exp := new(big.Int).Lsh(big.NewInt(1), 256)
	if got := pow.Boundary(big.NewInt(1)); got.Cmp(exp) != 0 {
		t.Fatalf("Should get 2^256 for a difficulty of one, got %v", got)
	}

	if got := pow.Boundary(big.NewInt(0)); got != nil {
		t.Fatalf("Should get no boundary for a zero difficulty, got %v", got)
	}
}

func Test_IsValid(t *testing.T) {
	header := database.BlockHeader{
		ParentHash: common.HexToHash("0x01"),
		Number:     1,
		GasLimit:   3141592,
		TimeStamp:  1438269988,
		MixHash:    common.HexToHash("0x02"),
		Nonce:      database.EncodeNonce(0x0102030405060708),
	}

	t.Log("Given the need to validate the proof of work of a header.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the difficulty accepts any hash.", testID)
		{
			h := header
			h.Difficulty = big.NewInt(1)
			if !pow.IsValid(h) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the header.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the difficulty can't be met.", testID)
		{
			h := header
			h.Difficulty = new(big.Int).Lsh(big.NewInt(1), 255)
			if pow.IsValid(h) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the header.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the difficulty is missing.", testID)
		{
			h := header
			h.Difficulty = nil
			if pow.IsValid(h) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the header.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the header is sealed.", testID)
		{
			h := header
			h.Difficulty = big.NewInt(4096)

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			sealed, err := pow.Seal(ctx, h, 4, nil)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to seal the header: %v", failed, testID, err)
			}

			if !pow.IsValid(sealed) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the sealed header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the sealed header.", success, testID)

			hash, err := pow.Hash(sealed)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the header: %v", failed, testID, err)
			}
			if hash.Big().Cmp(pow.Boundary(sealed.Difficulty)) > 0 {
				t.Fatalf("\t%s\tTest %d:\tShould have a hash within the boundary.", failed, testID)
			}

			bad := sealed
			for n := sealed.Nonce.Uint64() + 1; ; n++ {
				bad.Nonce = database.EncodeNonce(n)
				if !pow.IsValid(bad) {
					break
				}
			}

			hash, _ = pow.Hash(bad)
			if hash.Big().Cmp(pow.Boundary(bad.Difficulty)) <= 0 {
				t.Fatalf("\t%s\tTest %d:\tShould have a hash outside the boundary for a bad nonce.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a header with a bad nonce.", success, testID)
		}
	}
}

func Test_MainnetBlock(t *testing.T) {
	header := database.BlockHeader{
		ParentHash:  common.HexToHash("0xd4e56740f876aef8c010b86a40d5f56745a118d0906a34e69aec8c0db1cb8fa3"),
		UnclesHash:  common.HexToHash("0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347"),
		Coinbase:    common.HexToAddress("0x05a56e2d52c817161883f50c441c3228cfe54d9f"),
		StateRoot:   common.HexToHash("0xd67e4d450343046425ae4271474353857ab860dbc0a1dde64b41b5cd3a532bf3"),
		TxRoot:      common.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"),
		ReceiptRoot: common.HexToHash("0x56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421"),
		LogsBloom:   types.Bloom{},
		Difficulty:  big.NewInt(17171480576),
		Number:      1,
		GasLimit:    5000,
		GasUsed:     0,
		TimeStamp:   1438269988,
		ExtraData:   hexutil.MustDecode("0x476574682f76312e302e302f6c696e75782f676f312e342e32"),
		MixHash:     common.HexToHash("0x969b900de27b6ac6a67742365dd65f55a0526c41fd18e1b16f1a1215c2e66f59"),
		Nonce:       database.EncodeNonce(0x539bd4979fef1ec4),
	}

	t.Log("Given the need to validate a header mined on the live network.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen checking block 1 with its mined nonce.", testID)
		{
			exp := common.HexToHash("0x88e96d4537bea4d9c05d12549907b32561d3bf31f45aae734cdc119f13406cb6")
			if got := header.Hash(); got != exp {
				t.Logf("\t\tTest %d:\tgot: %s", testID, got)
				t.Logf("\t\tTest %d:\texp: %s", testID, exp)
				t.Fatalf("\t%s\tTest %d:\tShould encode the header like the network.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould encode the header like the network.", success, testID)

			hash, err := pow.Hash(header)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to hash the header: %v", failed, testID, err)
			}
			if exp := common.HexToHash("0x000000002bc095dd4de049873e6302c3f14a7f2e5b5a1f60cdf1f1798164d610"); hash != exp {
				t.Logf("\t\tTest %d:\tgot: %s", testID, hash)
				t.Logf("\t\tTest %d:\texp: %s", testID, exp)
				t.Fatalf("\t%s\tTest %d:\tShould compute the known proof of work value.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould compute the known proof of work value.", success, testID)

			if !pow.IsValid(header) {
				t.Fatalf("\t%s\tTest %d:\tShould accept the header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould accept the header.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen checking block 1 with the next nonce.", testID)
		{
			bad := header
			bad.Nonce = database.EncodeNonce(0x539bd4979fef1ec5)

			if pow.IsValid(bad) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the header.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the header.", success, testID)
		}
	}
}

func Test_SealCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := database.BlockHeader{Difficulty: new(big.Int).Lsh(big.NewInt(1), 255)}
	if _, err := pow.Seal(ctx, h, 2, nil); err == nil {
		t.Fatalf("Should not be able to seal with a cancelled context.")
	}
}
