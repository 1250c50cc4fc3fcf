package state

import (
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/executor"
	"github.com/ardanlabs/frontier/foundation/blockchain/pow"
	"github.com/ardanlabs/frontier/foundation/blockchain/vm"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
)

// Genesis returns the genesis block.
func (s *State) Genesis() database.Block {
	return s.genesis
}

// Head returns the canonical head.
func (s *State) Head() database.Block {
	s.headMu.RLock()
	defer s.headMu.RUnlock()

	return s.head
}

// HeadTD returns the total difficulty of the canonical head.
func (s *State) HeadTD() *big.Int {
	s.headMu.RLock()
	defer s.headMu.RUnlock()

	return new(big.Int).Set(s.headTD)
}

// HeadState returns the head block and its post state. The state is shared
// and must only be used through checkpoints that are never committed.
func (s *State) HeadState() (database.Block, *world.Track) {
	s.headMu.RLock()
	defer s.headMu.RUnlock()

	return s.head, s.headState
}

// Executor returns the transaction executor used by the chain.
func (s *State) Executor() *executor.Executor {
	return s.executor
}

// Coinbase returns the account credited by blocks this node mines.
func (s *State) Coinbase() common.Address {
	return s.coinbase
}

// =============================================================================

// Account returns the account at the head.
func (s *State) Account(addr common.Address) (world.Account, bool) {
	_, view := s.HeadState()
	return view.Account(addr)
}

// BlockByNumber returns the canonical block with the number.
func (s *State) BlockByNumber(num uint64) (database.Block, error) {
	return s.storage.BlockByNumber(num)
}

// BlockByHash returns any stored block with the hash.
func (s *State) BlockByHash(hash common.Hash) (database.Block, error) {
	return s.storage.Block(hash)
}

// Receipt returns the receipt of a transaction on the canonical chain.
func (s *State) Receipt(txHash common.Hash) (database.Receipt, error) {
	return s.storage.Receipt(txHash)
}

// Fork returns the blocks between the common ancestor of the two blocks and
// each of them. Both lists are ordered from the ancestor forward.
func (s *State) Fork(from common.Hash, to common.Hash) (abandoned []database.Block, adopted []database.Block, err error) {
	a, err := s.storage.Block(from)
	if err != nil {
		return nil, nil, fmt.Errorf("load block: %w", err)
	}

	b, err := s.storage.Block(to)
	if err != nil {
		return nil, nil, fmt.Errorf("load block: %w", err)
	}

	parent := func(blk database.Block) (database.Block, error) {
		return s.storage.Block(blk.Header.ParentHash)
	}

	for a.Number() > b.Number() {
		abandoned = append(abandoned, a)
		if a, err = parent(a); err != nil {
			return nil, nil, err
		}
	}

	for b.Number() > a.Number() {
		adopted = append(adopted, b)
		if b, err = parent(b); err != nil {
			return nil, nil, err
		}
	}

	for a.Hash() != b.Hash() {
		abandoned = append(abandoned, a)
		adopted = append(adopted, b)

		if a, err = parent(a); err != nil {
			return nil, nil, err
		}
		if b, err = parent(b); err != nil {
			return nil, nil, err
		}
	}

	slices.Reverse(abandoned)
	slices.Reverse(adopted)

	return abandoned, adopted, nil
}

// =============================================================================

// NextBlockContext returns the context of a block built on the head by this
// node at the current time.
func (s *State) NextBlockContext() vm.BlockContext {
	head := s.Head()

	header := database.BlockHeader{
		ParentHash: head.Hash(),
		Coinbase:   s.coinbase,
		Number:     head.Number() + 1,
		GasLimit:   head.Header.GasLimit,
		TimeStamp:  max(uint64(time.Now().Unix()), head.Header.TimeStamp+1),
	}
	header.Difficulty = pow.CalcDifficulty(s.params.Pow, head.Header, header)

	return s.blockContext(header)
}

// ApplyTransaction applies the transaction on a checkpoint of the head state
// and discards it. Nothing is persisted.
func (s *State) ApplyTransaction(tx database.SignedTx, bc vm.BlockContext) (database.Receipt, vm.Result, error) {
	_, view := s.HeadState()

	cp := view.StartTracking()
	defer cp.Rollback()

	sum, err := s.executor.Apply(cp, tx, executor.Context{Block: bc})
	if err != nil {
		return database.Receipt{}, vm.Result{}, err
	}

	return sum.Receipt, sum.Result, nil
}
