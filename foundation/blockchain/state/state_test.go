package state_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
	"github.com/ardanlabs/frontier/foundation/blockchain/state"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage/memory"
	"github.com/ardanlabs/frontier/foundation/blockchain/vm"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

const pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"

const genesisJSON = `{
	"chain_id": 1,
	"difficulty": 1,
	"gas_limit": 3141592,
	"balances": {
		"0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4": "1000000000"
	}
}`

var (
	alice  = common.HexToAddress("0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4")
	bob    = common.HexToAddress("0xF01813E4B85e178A83e29B8E7bF26BD830a25f32")
	miner1 = common.HexToAddress("0x0000000000000000000000000000000000000a01")
	miner2 = common.HexToAddress("0x0000000000000000000000000000000000000a02")
	miner3 = common.HexToAddress("0x0000000000000000000000000000000000000a03")
)

// =============================================================================

func Test_Import(t *testing.T) {
	t.Log("Given the need to import blocks onto the chain.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen starting from an empty store.", testID)
		{
			s, _ := newState(t, nil)

			if !s.Head().Header.IsGenesis() || s.Head().Hash() != s.Genesis().Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould start at genesis.", failed, testID)
			}
			if acc, _ := s.Account(alice); acc.Balance.Uint64() != 1_000_000_000 {
				t.Fatalf("\t%s\tTest %d:\tShould seed the premine.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould start at genesis with the premine.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen importing a block with a transfer.", testID)
		{
			s, _ := newState(t, nil)

			tx := sign(t, 0, bob, 100)
			blk := build(t, s, state.NewBlockArgs{Coinbase: miner1, Txs: []database.SignedTx{tx}})

			result, err := s.ImportBlock(blk)
			if err != nil || result != state.ImportedBest {
				t.Fatalf("\t%s\tTest %d:\tShould import the block as best, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould import the block as best.", success, testID)

			if s.Head().Hash() != blk.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould advance the head.", failed, testID)
			}

			if acc, _ := s.Account(bob); acc.Balance.Uint64() != 100 {
				t.Fatalf("\t%s\tTest %d:\tShould apply the transfer.", failed, testID)
			}
			if acc, _ := s.Account(miner1); acc.Balance.Cmp(reward(21000)) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould pay the reward and fee, got %s", failed, testID, acc.Balance.Dec())
			}
			t.Logf("\t%s\tTest %d:\tShould apply the transfer and rewards.", success, testID)

			rcpt, err := s.Receipt(tx.Hash())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the receipt: %v", failed, testID, err)
			}
			if rcpt.BlockHash != blk.Hash() || rcpt.GasUsed != 21000 {
				t.Fatalf("\t%s\tTest %d:\tShould store the receipt.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould store the receipt.", success, testID)

			result, err = s.ImportBlock(blk)
			if err != nil || result != state.AlreadyExists {
				t.Fatalf("\t%s\tTest %d:\tShould report the block already exists, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the block already exists.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the parent is unknown.", testID)
		{
			s, _ := newState(t, nil)

			blk := build(t, s, state.NewBlockArgs{Coinbase: miner1})
			blk.Header.ParentHash = common.HexToHash("0x01")

			result, err := s.ImportBlock(blk)
			if err != nil || result != state.NoParent {
				t.Fatalf("\t%s\tTest %d:\tShould report no parent, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report no parent.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a declined transaction is offered to the builder.", testID)
		{
			s, _ := newState(t, nil)

			blk := build(t, s, state.NewBlockArgs{Coinbase: miner1, Txs: []database.SignedTx{sign(t, 5, bob, 1)}})
			if len(blk.Transactions) != 0 || blk.Header.GasUsed != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the transaction out.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the transaction out.", success, testID)
		}
	}
}

func Test_ReceiptIndex(t *testing.T) {
	t.Log("Given the need to find receipts by transaction hash.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block carries a declined transaction ahead of an applied one.", testID)
		{
			s, _ := newState(t, nil)

			good := sign(t, 0, bob, 100)
			declined := sign(t, 7, bob, 1)

			blk := build(t, s, state.NewBlockArgs{Coinbase: miner1, Txs: []database.SignedTx{good}})
			blk = database.NewBlock(blk.Header, []database.SignedTx{declined, good}, nil)

			result, err := s.ImportBlock(blk)
			if err != nil || result != state.ImportedBest {
				t.Fatalf("\t%s\tTest %d:\tShould import the block as best, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould import the block as best.", success, testID)

			rcpt, err := s.Receipt(good.Hash())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to load the receipt of the applied transaction: %v", failed, testID, err)
			}
			if rcpt.TxHash != good.Hash() || rcpt.Index != 0 || rcpt.GasUsed != 21000 {
				t.Fatalf("\t%s\tTest %d:\tShould return the receipt of the applied transaction, got tx[%s] index[%d]", failed, testID, rcpt.TxHash, rcpt.Index)
			}
			t.Logf("\t%s\tTest %d:\tShould return the receipt of the applied transaction.", success, testID)

			if _, err := s.Receipt(declined.Hash()); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould have no receipt for the declined transaction, got %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould have no receipt for the declined transaction.", success, testID)
		}
	}
}

func Test_AtomicWrites(t *testing.T) {
	t.Log("Given the need to keep the stored chain intact when a write fails.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen the write of a new best block fails.", testID)
		{
			kv := &failingKV{KeyValue: memory.New()}
			s, store := newStateOn(t, kv)

			blk := build(t, s, state.NewBlockArgs{Coinbase: miner1, Txs: []database.SignedTx{sign(t, 0, bob, 100)}})

			kv.fail = true
			result, err := s.ImportBlock(blk)
			if err == nil || result != state.ConsensusBreak {
				t.Fatalf("\t%s\tTest %d:\tShould report the failure, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the failure.", success, testID)

			if store.HasBlock(blk.Hash()) {
				t.Fatalf("\t%s\tTest %d:\tShould not store the block.", failed, testID)
			}
			if _, err := store.CanonicalHash(1); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould not change the canonical index, got %v", failed, testID, err)
			}
			if head, err := store.Head(); err != nil || head != s.Genesis().Hash() || s.Head().Hash() != s.Genesis().Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould keep the head at genesis.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the stored chain unchanged.", success, testID)

			kv.fail = false
			result, err = s.ImportBlock(blk)
			if err != nil || result != state.ImportedBest {
				t.Fatalf("\t%s\tTest %d:\tShould import the block once writes succeed, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould import the block once writes succeed.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the write of a reorganization fails.", testID)
		{
			kv := &failingKV{KeyValue: memory.New()}
			s, store := newStateOn(t, kv)
			genesisHash := s.Genesis().Hash()

			a1 := importBest(t, s, state.NewBlockArgs{Coinbase: miner1})

			b1 := build(t, s, state.NewBlockArgs{Parent: genesisHash, Coinbase: miner2, ExtraData: []byte("b")})
			if result, err := s.ImportBlock(b1); err != nil || result != state.ImportedNotBest {
				t.Fatalf("\t%s\tTest %d:\tShould import the sibling as not best, got %s: %v", failed, testID, result, err)
			}

			b2 := build(t, s, state.NewBlockArgs{Parent: b1.Hash(), Coinbase: miner2})

			kv.fail = true
			if result, err := s.ImportBlock(b2); err == nil || result != state.ConsensusBreak {
				t.Fatalf("\t%s\tTest %d:\tShould report the failure, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould report the failure.", success, testID)

			if canon, err := store.CanonicalHash(1); err != nil || canon != a1.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould keep the canonical index on the old fork.", failed, testID)
			}
			if _, err := store.CanonicalHash(2); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould not index the new block, got %v", failed, testID, err)
			}
			if head, err := store.Head(); err != nil || head != a1.Hash() || s.Head().Hash() != a1.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould keep the old head.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the stored chain on the old fork.", success, testID)
		}
	}
}

func Test_ConsensusBreak(t *testing.T) {
	type table struct {
		name   string
		tamper func(h *database.BlockHeader)
		err    error
	}

	tt := []table{
		{"state root", func(h *database.BlockHeader) { h.StateRoot = common.HexToHash("0x01") }, state.ErrStateRootMismatch},
		{"receipt root", func(h *database.BlockHeader) { h.ReceiptRoot = common.HexToHash("0x01") }, state.ErrReceiptRootMismatch},
		{"gas used", func(h *database.BlockHeader) { h.GasUsed++ }, state.ErrGasUsedMismatch},
		{"timestamp", func(h *database.BlockHeader) { h.TimeStamp = 0 }, state.ErrInvalidHeader},
		{"number", func(h *database.BlockHeader) { h.Number = 5 }, state.ErrInvalidHeader},
		{"extra data", func(h *database.BlockHeader) { h.ExtraData = make([]byte, 33) }, state.ErrInvalidHeader},
		{"tx root", func(h *database.BlockHeader) { h.TxRoot = common.HexToHash("0x01") }, state.ErrTxRootMismatch},
		{"gas limit", func(h *database.BlockHeader) { h.GasLimit *= 2 }, state.ErrInvalidHeader},
	}

	t.Log("Given the need to reject blocks that break consensus.")
	{
		for testID, tst := range tt {
			f := func(t *testing.T) {
				t.Logf("\tTest %d:\tWhen the %s does not match.", testID, tst.name)
				{
					s, _ := newState(t, nil)

					blk := build(t, s, state.NewBlockArgs{Coinbase: miner1, Txs: []database.SignedTx{sign(t, 0, bob, 100)}})
					tst.tamper(&blk.Header)

					result, err := s.ImportBlock(blk)
					if result != state.ConsensusBreak || !errors.Is(err, tst.err) {
						t.Logf("\t\tTest %d:\tgot: %s %v", testID, result, err)
						t.Logf("\t\tTest %d:\texp: %s %v", testID, state.ConsensusBreak, tst.err)
						t.Fatalf("\t%s\tTest %d:\tShould reject the block.", failed, testID)
					}

					if _, err := s.BlockByHash(blk.Hash()); !errors.Is(err, storage.ErrNotFound) {
						t.Fatalf("\t%s\tTest %d:\tShould not persist the block.", failed, testID)
					}
					if !s.Head().Header.IsGenesis() {
						t.Fatalf("\t%s\tTest %d:\tShould not move the head.", failed, testID)
					}
					t.Logf("\t%s\tTest %d:\tShould reject the block without persisting it.", success, testID)
				}
			}

			t.Run(tst.name, f)
		}
	}
}

func Test_Reorg(t *testing.T) {
	t.Log("Given the need to follow the chain with the most work.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a longer fork arrives.", testID)
		{
			s, store := newState(t, nil)
			genesisHash := s.Genesis().Hash()

			tx := sign(t, 0, bob, 100)
			a1 := importBest(t, s, state.NewBlockArgs{Coinbase: miner1, Txs: []database.SignedTx{tx}})

			b1 := build(t, s, state.NewBlockArgs{Parent: genesisHash, Coinbase: miner2, ExtraData: []byte("b")})
			result, err := s.ImportBlock(b1)
			if err != nil || result != state.ImportedNotBest {
				t.Fatalf("\t%s\tTest %d:\tShould import the sibling as not best, got %s: %v", failed, testID, result, err)
			}
			t.Logf("\t%s\tTest %d:\tShould import the sibling as not best.", success, testID)

			b2 := importBest(t, s, state.NewBlockArgs{Parent: b1.Hash(), Coinbase: miner2})

			canon, err := s.BlockByNumber(1)
			if err != nil || canon.Hash() != b1.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould rewrite the canonical index.", failed, testID)
			}
			if _, err := s.Receipt(tx.Hash()); !errors.Is(err, storage.ErrNotFound) {
				t.Fatalf("\t%s\tTest %d:\tShould drop receipts of the abandoned block, got %v", failed, testID, err)
			}
			if acc, _ := s.Account(alice); acc.Balance.Uint64() != 1_000_000_000 || acc.Nonce != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould switch to the fork state.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould switch to the fork.", success, testID)

			abandoned, adopted, err := s.Fork(a1.Hash(), b2.Hash())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to walk the fork: %v", failed, testID, err)
			}
			if len(abandoned) != 1 || abandoned[0].Hash() != a1.Hash() || len(adopted) != 2 || adopted[0].Hash() != b1.Hash() {
				t.Fatalf("\t%s\tTest %d:\tShould find the common ancestor.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould find the common ancestor.", success, testID)

			restarted, err := state.New(state.Config{Storage: store, Genesis: loadGenesis(t), Params: params()})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to restart: %v", failed, testID, err)
			}
			if restarted.Head().Hash() != b2.Hash() || restarted.HeadTD().Int64() != 3 {
				t.Fatalf("\t%s\tTest %d:\tShould replay to the same head.", failed, testID)
			}
			_, v1 := s.HeadState()
			_, v2 := restarted.HeadState()
			if v1.RootHash() != v2.RootHash() {
				t.Fatalf("\t%s\tTest %d:\tShould replay to the same state.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould replay to the same head after a restart.", success, testID)
		}
	}
}

func Test_Uncles(t *testing.T) {
	t.Log("Given the need to reward uncles.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a block includes a sibling of its parent.", testID)
		{
			s, _ := newState(t, nil)
			genesisHash := s.Genesis().Hash()

			importBest(t, s, state.NewBlockArgs{Coinbase: miner3})

			b1 := build(t, s, state.NewBlockArgs{Parent: genesisHash, Coinbase: miner2, ExtraData: []byte("uncle")})
			if _, err := s.ImportBlock(b1); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to import the sibling: %v", failed, testID, err)
			}

			importBest(t, s, state.NewBlockArgs{Coinbase: miner1, Uncles: []database.BlockHeader{b1.Header}})

			r := state.Frontier().BlockReward

			exp := new(uint256.Int).Div(new(uint256.Int).Mul(r, uint256.NewInt(7)), uint256.NewInt(8))
			if acc, _ := s.Account(miner2); acc.Balance.Cmp(exp) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould pay the uncle reward, got %s", failed, testID, acc.Balance.Dec())
			}

			exp = new(uint256.Int).Add(r, new(uint256.Int).Div(r, uint256.NewInt(32)))
			if acc, _ := s.Account(miner1); acc.Balance.Cmp(exp) != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould pay the inclusion reward, got %s", failed, testID, acc.Balance.Dec())
			}
			t.Logf("\t%s\tTest %d:\tShould pay the uncle and inclusion rewards.", success, testID)

			_, err := s.NewBlock(state.NewBlockArgs{Coinbase: miner1, Uncles: []database.BlockHeader{b1.Header}})
			if !errors.Is(err, state.ErrInvalidUncle) {
				t.Fatalf("\t%s\tTest %d:\tShould reject an uncle included twice, got %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject an uncle included twice.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a block includes a sibling of itself.", testID)
		{
			s, _ := newState(t, nil)
			genesisHash := s.Genesis().Hash()

			b1 := build(t, s, state.NewBlockArgs{Parent: genesisHash, Coinbase: miner2, ExtraData: []byte("sibling")})

			_, err := s.NewBlock(state.NewBlockArgs{Coinbase: miner1, Uncles: []database.BlockHeader{b1.Header}})
			if !errors.Is(err, state.ErrInvalidUncle) {
				t.Fatalf("\t%s\tTest %d:\tShould reject the uncle, got %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject the uncle.", success, testID)
		}
	}
}

func Test_ApplyTransaction(t *testing.T) {
	t.Log("Given the need to apply a transaction without persisting it.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen applying a transfer on the head.", testID)
		{
			s, _ := newState(t, nil)
			_, view := s.HeadState()
			root := view.RootHash()

			rcpt, res, err := s.ApplyTransaction(sign(t, 0, bob, 100), s.NextBlockContext())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the transaction: %v", failed, testID, err)
			}
			if res.Outcome != vm.Ok || rcpt.GasUsed != 21000 || rcpt.PostState == root {
				t.Fatalf("\t%s\tTest %d:\tShould produce the receipt.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould produce the receipt.", success, testID)

			if view.RootHash() != root {
				t.Fatalf("\t%s\tTest %d:\tShould not change the head state.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not change the head state.", success, testID)
		}
	}
}

// =============================================================================

func params() state.Params {
	p := state.Frontier()
	p.Pow.MinimumDifficulty = big.NewInt(1)
	return p
}

func loadGenesis(t *testing.T) genesis.Genesis {
	g, err := genesis.Parse([]byte(genesisJSON))
	if err != nil {
		t.Fatalf("Should be able to parse the genesis: %v", err)
	}
	return g
}

func newState(t *testing.T, worker state.Worker) (*state.State, *storage.Store) {
	s, store := newStateOn(t, memory.New())
	s.Worker = worker

	return s, store
}

func newStateOn(t *testing.T, kv storage.KeyValue) (*state.State, *storage.Store) {
	store := storage.New(kv)

	s, err := state.New(state.Config{
		Storage: store,
		Genesis: loadGenesis(t),
		Params:  params(),
	})
	if err != nil {
		t.Fatalf("Should be able to construct the state: %v", err)
	}

	return s, store
}

// failingKV fails every batched write while fail is set.
type failingKV struct {
	storage.KeyValue
	fail bool
}

func (f *failingKV) NewBatch() storage.Batch {
	return &failingBatch{Batch: f.KeyValue.NewBatch(), kv: f}
}

type failingBatch struct {
	storage.Batch
	kv *failingKV
}

func (b *failingBatch) Write() error {
	if b.kv.fail {
		return errors.New("disk failure")
	}
	return b.Batch.Write()
}

func build(t *testing.T, s *state.State, args state.NewBlockArgs) database.Block {
	blk, err := s.NewBlock(args)
	if err != nil {
		t.Fatalf("Should be able to build the block: %v", err)
	}
	return blk
}

func importBest(t *testing.T, s *state.State, args state.NewBlockArgs) database.Block {
	blk := build(t, s, args)

	result, err := s.ImportBlock(blk)
	if err != nil || result != state.ImportedBest {
		t.Fatalf("Should import the block as best, got %s: %v", result, err)
	}

	return blk
}

func sign(t *testing.T, nonce uint64, to common.Address, value uint64) database.SignedTx {
	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to load the private key: %v", err)
	}

	tx, err := database.NewTx(nonce, &to, uint256.NewInt(value), 21000, uint256.NewInt(1), nil).Sign(pk)
	if err != nil {
		t.Fatalf("Should be able to sign the transaction: %v", err)
	}

	return tx
}

func reward(fee uint64) *uint256.Int {
	return new(uint256.Int).Add(state.Frontier().BlockReward, uint256.NewInt(fee))
}
