package state

import (
	"fmt"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/pow"
	"github.com/ethereum/go-ethereum/common"
)

// validateBlock performs the checks that do not require executing the
// block's transactions.
func (s *State) validateBlock(blk database.Block, parent database.Block) error {
	if !pow.IsValid(blk.Header) {
		return ErrInvalidPoW
	}

	if err := s.validateHeader(blk.Header, parent.Header); err != nil {
		return err
	}

	if root := database.DeriveRoot(database.SignedTxs(blk.Transactions)); root != blk.Header.TxRoot {
		return fmt.Errorf("%w: header[%s] computed[%s]", ErrTxRootMismatch, blk.Header.TxRoot, root)
	}

	if hash := database.CalcUnclesHash(blk.Uncles); hash != blk.Header.UnclesHash {
		return fmt.Errorf("%w: header[%s] computed[%s]", ErrUncleHash, blk.Header.UnclesHash, hash)
	}

	return s.validateUncles(blk)
}

// validateHeader checks the header against its parent.
func (s *State) validateHeader(h database.BlockHeader, parent database.BlockHeader) error {
	if h.Number != parent.Number+1 {
		return fmt.Errorf("%w: number[%d] parent[%d]", ErrInvalidHeader, h.Number, parent.Number)
	}

	if h.TimeStamp <= parent.TimeStamp {
		return fmt.Errorf("%w: timestamp[%d] parent[%d]", ErrInvalidHeader, h.TimeStamp, parent.TimeStamp)
	}

	if h.Difficulty == nil {
		return fmt.Errorf("%w: missing difficulty", ErrInvalidHeader)
	}
	if exp := pow.CalcDifficulty(s.params.Pow, parent, h); exp.Cmp(h.Difficulty) != 0 {
		return fmt.Errorf("%w: difficulty[%d] expected[%d]", ErrInvalidHeader, h.Difficulty, exp)
	}

	if h.GasUsed > h.GasLimit {
		return fmt.Errorf("%w: gasUsed[%d] gasLimit[%d]", ErrInvalidHeader, h.GasUsed, h.GasLimit)
	}

	diff := h.GasLimit - parent.GasLimit
	if h.GasLimit < parent.GasLimit {
		diff = parent.GasLimit - h.GasLimit
	}
	bound := parent.GasLimit / s.params.GasLimitBoundDivisor
	if (diff != 0 && diff >= bound) || h.GasLimit < s.params.MinGasLimit {
		return fmt.Errorf("%w: gasLimit[%d] parent[%d]", ErrInvalidHeader, h.GasLimit, parent.GasLimit)
	}

	if len(h.ExtraData) > s.params.MaxExtraDataSize {
		return fmt.Errorf("%w: extraData[%d bytes]", ErrInvalidHeader, len(h.ExtraData))
	}

	return nil
}

// validateUncles checks the uncles are recent siblings of the block's
// ancestors that have not been included before.
func (s *State) validateUncles(blk database.Block) error {
	if len(blk.Uncles) > s.params.UncleListLimit {
		return fmt.Errorf("%w: too many uncles[%d]", ErrInvalidUncle, len(blk.Uncles))
	}

	if len(blk.Uncles) == 0 {
		return nil
	}

	ancestors := make(map[common.Hash]database.BlockHeader)
	included := make(map[common.Hash]struct{})

	hash := blk.Header.ParentHash
	for range s.params.UncleGenerationLimit {
		ancestor, err := s.storage.Block(hash)
		if err != nil {
			break
		}

		ancestors[hash] = ancestor.Header
		for _, uncle := range ancestor.Uncles {
			included[uncle.Hash()] = struct{}{}
		}

		if ancestor.Header.IsGenesis() {
			break
		}
		hash = ancestor.Header.ParentHash
	}

	ancestors[blk.Hash()] = blk.Header
	included[blk.Hash()] = struct{}{}

	for _, uncle := range blk.Uncles {
		hash := uncle.Hash()

		if _, exists := included[hash]; exists {
			return fmt.Errorf("%w: uncle[%s] already included", ErrInvalidUncle, uncle)
		}
		included[hash] = struct{}{}

		if _, exists := ancestors[hash]; exists {
			return fmt.Errorf("%w: uncle[%s] is an ancestor", ErrInvalidUncle, uncle)
		}

		parent, exists := ancestors[uncle.ParentHash]
		if !exists || uncle.ParentHash == blk.Header.ParentHash {
			return fmt.Errorf("%w: uncle[%s] is not a sibling of an ancestor", ErrInvalidUncle, uncle)
		}

		if err := s.validateHeader(uncle, parent); err != nil {
			return fmt.Errorf("%w: uncle[%s]: %w", ErrInvalidUncle, uncle, err)
		}

		if !pow.IsValid(uncle) {
			return fmt.Errorf("%w: uncle[%s]: %w", ErrInvalidUncle, uncle, ErrInvalidPoW)
		}
	}

	return nil
}
