package state

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/executor"
	"github.com/ardanlabs/frontier/foundation/blockchain/metrics"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ardanlabs/frontier/foundation/blockchain/vm"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ImportBlock validates and executes the block on top of its parent's state
// and persists it when the result matches the header. The block becomes the
// canonical head when its total difficulty is greater than the current
// head's. Blocks are imported one at a time.
func (s *State) ImportBlock(blk database.Block) (result ImportResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		metrics.BlockImports.WithLabelValues(result.String()).Inc()
		metrics.BlockImportDuration.Observe(time.Since(start).Seconds())
	}()

	s.evHandler("state: ImportBlock: started: blk[%s]: txs[%d]: uncles[%d]", blk.Header, len(blk.Transactions), len(blk.Uncles))
	defer func() {
		s.evHandler("state: ImportBlock: completed: blk[%s]: result[%s]", blk.Header, result)
	}()

	hash := blk.Hash()

	if s.storage.HasBlock(hash) {
		return AlreadyExists, nil
	}

	parent, err := s.storage.Block(blk.Header.ParentHash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return NoParent, nil
		}
		return ConsensusBreak, fmt.Errorf("load parent: %w", err)
	}

	if err := s.validateBlock(blk, parent); err != nil {
		return ConsensusBreak, fmt.Errorf("block %s: %w", blk.Header, err)
	}

	view, err := s.stateAt(parent)
	if err != nil {
		return ConsensusBreak, err
	}

	receipts, err := s.processBlock(view, blk)
	if err != nil {
		return ConsensusBreak, fmt.Errorf("block %s: %w", blk.Header, err)
	}

	parentTD, err := s.storage.TotalDifficulty(parent.Hash())
	if err != nil {
		return ConsensusBreak, fmt.Errorf("load parent: %w", err)
	}
	td := new(big.Int).Add(parentTD, blk.Header.Difficulty)

	// The block, the canonical index and the head are written together so
	// a failure leaves the stored chain as it was.
	u := s.storage.NewUpdate()
	if err := u.WriteBlock(blk, td, receipts); err != nil {
		return ConsensusBreak, fmt.Errorf("write block: %w", err)
	}

	best := td.Cmp(s.HeadTD()) > 0
	if best {
		if err := s.reorg(u, blk, receipts); err != nil {
			return ConsensusBreak, fmt.Errorf("update canonical chain: %w", err)
		}
	}

	if err := u.Write(); err != nil {
		return ConsensusBreak, err
	}

	// The view is never written again so it can be shared by the cache and
	// the head.
	s.cache.Add(hash, view)

	if !best {
		return ImportedNotBest, nil
	}

	oldHead := s.Head()
	s.setHead(blk, td, view)

	if blk.Header.ParentHash != oldHead.Hash() {
		s.evHandler("state: ImportBlock: reorg: oldHead[%s]: newHead[%s]", oldHead.Header, blk.Header)
	}

	if s.Worker != nil {
		s.Worker.SignalBestBlock(blk)
	}

	return ImportedBest, nil
}

// =============================================================================

// processBlock applies the block to the view and verifies the result against
// the header.
func (s *State) processBlock(view *world.Track, blk database.Block) (database.Receipts, error) {
	_, receipts, gasUsed := s.execute(view, blk.Header, blk.Transactions, blk.Uncles)

	h := blk.Header

	if gasUsed != h.GasUsed {
		return nil, fmt.Errorf("%w: header[%d] computed[%d]", ErrGasUsedMismatch, h.GasUsed, gasUsed)
	}

	if root := database.DeriveRoot(receipts); root != h.ReceiptRoot {
		return nil, fmt.Errorf("%w: header[%s] computed[%s]", ErrReceiptRootMismatch, h.ReceiptRoot, root)
	}

	if bloom := receipts.Bloom(); bloom != h.LogsBloom {
		return nil, ErrBloomMismatch
	}

	if root := view.RootHash(); root != h.StateRoot {
		return nil, fmt.Errorf("%w: header[%s] computed[%s]", ErrStateRootMismatch, h.StateRoot, root)
	}

	return receipts, nil
}

// execute applies the transactions in order followed by the rewards.
// Declined transactions have no effect and produce no receipt.
func (s *State) execute(view *world.Track, header database.BlockHeader, txs []database.SignedTx, uncles []database.BlockHeader) ([]database.SignedTx, database.Receipts, uint64) {
	ctx := executor.Context{
		Block: s.blockContext(header),
	}

	included := make([]database.SignedTx, 0, len(txs))
	receipts := make(database.Receipts, 0, len(txs))

	for _, tx := range txs {
		sum, err := s.executor.Apply(view, tx, ctx)
		if err != nil {
			s.evHandler("state: execute: blk[%d]: tx[%s]: declined: %s", header.Number, tx, err)
			continue
		}

		ctx.CumulativeGasUsed = sum.Receipt.CumulativeGasUsed
		included = append(included, tx)
		receipts = append(receipts, sum.Receipt)
	}

	s.reward(view, header, uncles)

	return included, receipts, ctx.CumulativeGasUsed
}

// reward credits the block reward to the coinbase and the uncle rewards to
// each uncle's coinbase with the inclusion reward to the block's coinbase.
func (s *State) reward(view *world.Track, header database.BlockHeader, uncles []database.BlockHeader) {
	reward := s.params.BlockReward
	view.AddBalance(header.Coinbase, reward)

	if len(uncles) == 0 {
		return
	}

	inclusion := new(uint256.Int).Div(reward, uint256.NewInt(32))

	for _, uncle := range uncles {
		share := new(uint256.Int).Mul(reward, uint256.NewInt(uncle.Number+8-header.Number))
		share.Div(share, uint256.NewInt(8))

		view.AddBalance(uncle.Coinbase, share)
		view.AddBalance(header.Coinbase, inclusion)
	}
}

// blockContext returns the values visible to code executing in the block.
func (s *State) blockContext(header database.BlockHeader) vm.BlockContext {
	return vm.BlockContext{
		Coinbase:   header.Coinbase,
		Number:     header.Number,
		Timestamp:  header.TimeStamp,
		Difficulty: header.Difficulty,
		GasLimit:   header.GasLimit,
		GetHash:    s.ancestorHash(header),
	}
}

// ancestorHash returns a function resolving the hash of one of the 256 most
// recent ancestors of the header by number.
func (s *State) ancestorHash(header database.BlockHeader) func(uint64) common.Hash {
	return func(num uint64) common.Hash {
		if num >= header.Number || header.Number-num > 256 {
			return common.Hash{}
		}

		hash := header.ParentHash
		for n := header.Number - 1; n > num; n-- {
			blk, err := s.storage.Block(hash)
			if err != nil {
				return common.Hash{}
			}
			hash = blk.Header.ParentHash
		}

		return hash
	}
}

// =============================================================================

// stateAt returns a private copy of the state after the block. Ancestors not
// held in the cache are replayed from the nearest cached state or genesis.
func (s *State) stateAt(blk database.Block) (*world.Track, error) {
	var (
		base  *world.Track
		chain []database.Block
	)

	for {
		if view, exists := s.cache.Get(blk.Hash()); exists {
			base = view
			break
		}

		if blk.Header.IsGenesis() {
			base = s.genesisState
			break
		}

		chain = append(chain, blk)

		parent, err := s.storage.Block(blk.Header.ParentHash)
		if err != nil {
			return nil, fmt.Errorf("load ancestor: %w", err)
		}
		blk = parent
	}

	view := base.Snapshot()

	for i := len(chain) - 1; i >= 0; i-- {
		if _, err := s.processBlock(view, chain[i]); err != nil {
			return nil, fmt.Errorf("replay block %s: %w", chain[i].Header, err)
		}
	}

	if len(chain) > 0 {
		s.evHandler("state: stateAt: replayed: blocks[%d]: blk[%s]", len(chain), chain[0].Header)
		s.cache.Add(chain[0].Hash(), view.Snapshot())
	}

	return view, nil
}

// reorg stages the block as the canonical head, rewriting the canonical
// index from the common ancestor of the old and new heads.
func (s *State) reorg(u *storage.Update, blk database.Block, receipts database.Receipts) error {
	oldHead := s.Head()

	var adopted []database.Block
	for cur := blk; ; {
		canon, err := s.storage.CanonicalHash(cur.Number())
		if err == nil && canon == cur.Hash() {
			break
		}

		adopted = append(adopted, cur)

		parent, err := s.storage.Block(cur.Header.ParentHash)
		if err != nil {
			return err
		}
		cur = parent
	}

	for num := blk.Number() + 1; num <= oldHead.Number(); num++ {
		if err := u.DeleteCanonical(num); err != nil {
			return err
		}
	}

	// The new block's receipts are only staged so they come from the caller.
	if err := u.SetCanonical(blk, receipts); err != nil {
		return err
	}

	for _, ancestor := range adopted[1:] {
		rcpts, err := s.storage.Receipts(ancestor.Hash())
		if err != nil {
			return err
		}

		if err := u.SetCanonical(ancestor, rcpts); err != nil {
			return err
		}
	}

	return u.SetHead(blk.Hash())
}
