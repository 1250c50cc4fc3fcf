package world_test

import (
	"testing"

	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

var (
	alice = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	bob   = common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
	slot  = common.HexToHash("0x01")
)

// =============================================================================

func Test_Checkpoints(t *testing.T) {
	t.Log("Given the need to layer checkpoints over the world state.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a child checkpoint is committed.", testID)
		{
			root := world.New()
			root.AddBalance(alice, uint256.NewInt(1000))
			root.SetStorage(alice, slot, common.HexToHash("0xaa"))

			child := root.StartTracking()
			child.AddBalance(alice, uint256.NewInt(500))
			child.AddBalance(bob, uint256.NewInt(7))
			child.SetStorage(alice, slot, common.HexToHash("0xbb"))

			if got := root.Balance(alice).Uint64(); got != 1000 {
				t.Fatalf("\t%s\tTest %d:\tShould not see child writes before commit, got %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould not see child writes before commit.", success, testID)

			child.Commit()

			if got := root.Balance(alice).Uint64(); got != 1500 {
				t.Fatalf("\t%s\tTest %d:\tShould see the child balance, got %d", failed, testID, got)
			}
			if got := root.Balance(bob).Uint64(); got != 7 {
				t.Fatalf("\t%s\tTest %d:\tShould see the new account, got %d", failed, testID, got)
			}
			if got := root.Storage(alice, slot); got != common.HexToHash("0xbb") {
				t.Fatalf("\t%s\tTest %d:\tShould see the child storage win, got %s", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould see the union of writes with the child winning.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a child checkpoint is rolled back.", testID)
		{
			root := world.New()
			root.AddBalance(alice, uint256.NewInt(1000))
			before := root.RootHash()

			child := root.StartTracking()
			child.IncreaseNonce(alice)
			child.AddBalance(bob, uint256.NewInt(1))
			child.SetStorage(alice, slot, common.HexToHash("0x01"))
			if err := child.SaveCode(alice, []byte{0x60}); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to save code: %v", failed, testID, err)
			}
			child.Rollback()

			if root.RootHash() != before {
				t.Fatalf("\t%s\tTest %d:\tShould leave the parent unchanged.", failed, testID)
			}
			if child.Nonce(alice) != 0 || child.Exists(bob) {
				t.Fatalf("\t%s\tTest %d:\tShould discard the child writes.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the parent unchanged.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen checkpoints are nested.", testID)
		{
			root := world.New()
			outer := root.StartTracking()
			outer.AddBalance(alice, uint256.NewInt(10))

			inner := outer.StartTracking()
			inner.AddBalance(alice, uint256.NewInt(5))
			inner.Rollback()

			inner = outer.StartTracking()
			inner.AddBalance(alice, uint256.NewInt(1))
			inner.Commit()
			outer.Commit()

			if got := root.Balance(alice).Uint64(); got != 11 {
				t.Fatalf("\t%s\tTest %d:\tShould apply only the committed layers, got %d", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould apply only the committed layers.", success, testID)
		}
	}
}

func Test_Delete(t *testing.T) {
	root := world.New()
	root.AddBalance(alice, uint256.NewInt(10))
	root.SetStorage(alice, slot, common.HexToHash("0x01"))

	child := root.StartTracking()
	child.Delete(alice)

	if child.Exists(alice) {
		t.Fatalf("Should hide the deleted account.")
	}
	if !root.Exists(alice) {
		t.Fatalf("Should keep the account in the parent until commit.")
	}

	child.AddBalance(alice, uint256.NewInt(3))
	if got := child.Storage(alice, slot); got != (common.Hash{}) {
		t.Fatalf("Should not read old storage through a recreated account, got %s", got)
	}

	child.Commit()

	if got := root.Balance(alice).Uint64(); got != 3 {
		t.Fatalf("Should see the recreated balance, got %d", got)
	}
	if got := root.Storage(alice, slot); got != (common.Hash{}) {
		t.Fatalf("Should drop storage of the deleted account, got %s", got)
	}

	child = root.StartTracking()
	child.Delete(alice)
	child.Commit()

	if root.Exists(alice) {
		t.Fatalf("Should remove the account from the root.")
	}
}

func Test_Balances(t *testing.T) {
	root := world.New()
	root.AddBalance(alice, uint256.NewInt(10))

	if err := root.SubBalance(alice, uint256.NewInt(11)); err != world.ErrInsufficientBalance {
		t.Fatalf("Should not be able to go below zero, got %v", err)
	}

	if got := root.Balance(alice).Uint64(); got != 10 {
		t.Fatalf("Should leave the balance unchanged, got %d", got)
	}

	if err := root.SubBalance(alice, uint256.NewInt(10)); err != nil {
		t.Fatalf("Should be able to spend the whole balance: %v", err)
	}

	if !root.Balance(alice).IsZero() {
		t.Fatalf("Should have a zero balance.")
	}
}

func Test_CodeImmutable(t *testing.T) {
	root := world.New()
	if err := root.SaveCode(alice, []byte{0x60, 0x01}); err != nil {
		t.Fatalf("Should be able to save code: %v", err)
	}

	child := root.StartTracking()
	if err := child.SaveCode(alice, []byte{0x60, 0x02}); err != world.ErrCodeImmutable {
		t.Fatalf("Should not be able to replace code, got %v", err)
	}

	acc, exists := root.Account(alice)
	if !exists || !acc.HasCode() {
		t.Fatalf("Should report the account has code.")
	}
}

func Test_RootHash(t *testing.T) {
	if got := world.New().RootHash(); got != types.EmptyRootHash {
		t.Fatalf("Should get the empty root for an empty state, got %s", got)
	}

	flat := world.New()
	flat.AddBalance(alice, uint256.NewInt(100))
	flat.IncreaseNonce(alice)
	flat.AddBalance(bob, uint256.NewInt(5))
	flat.SetStorage(bob, slot, common.HexToHash("0x2a"))

	layered := world.New()
	layered.AddBalance(alice, uint256.NewInt(60))
	c1 := layered.StartTracking()
	c1.AddBalance(alice, uint256.NewInt(40))
	c1.IncreaseNonce(alice)
	c2 := c1.StartTracking()
	c2.AddBalance(bob, uint256.NewInt(5))
	c2.SetStorage(bob, slot, common.HexToHash("0x2a"))
	c2.SetStorage(bob, common.HexToHash("0x02"), common.Hash{})

	if c2.RootHash() != flat.RootHash() {
		t.Fatalf("Should get the same root through uncommitted layers.")
	}

	c2.Commit()
	c1.Commit()

	if layered.RootHash() != flat.RootHash() {
		t.Fatalf("Should get the same root for the same state.")
	}

	snap := layered.Snapshot()
	snap.AddBalance(alice, uint256.NewInt(1))
	if layered.RootHash() != flat.RootHash() {
		t.Fatalf("Should not change the source when the snapshot changes.")
	}
	if snap.RootHash() == flat.RootHash() {
		t.Fatalf("Should change the snapshot root.")
	}
}
