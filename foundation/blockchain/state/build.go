package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/pow"
	"github.com/ethereum/go-ethereum/common"
)

// NewBlockArgs represents the content of a block to build.
type NewBlockArgs struct {
	Parent    common.Hash // Zero builds on the current head.
	Coinbase  common.Address
	Txs       []database.SignedTx
	Uncles    []database.BlockHeader
	TimeStamp uint64
	ExtraData []byte
}

// NewBlock builds an unsealed block on top of the parent. Transactions that
// are declined are left out. The header is complete except for the proof of
// work fields.
func (s *State) NewBlock(args NewBlockArgs) (database.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parentHash := args.Parent
	if parentHash == (common.Hash{}) {
		parentHash = s.Head().Hash()
	}

	parent, err := s.storage.Block(parentHash)
	if err != nil {
		return database.Block{}, fmt.Errorf("load parent: %w", err)
	}

	timeStamp := max(args.TimeStamp, parent.Header.TimeStamp+1)

	header := database.BlockHeader{
		ParentHash: parentHash,
		Coinbase:   args.Coinbase,
		Number:     parent.Number() + 1,
		GasLimit:   parent.Header.GasLimit,
		TimeStamp:  timeStamp,
		ExtraData:  args.ExtraData,
	}
	header.Difficulty = pow.CalcDifficulty(s.params.Pow, parent.Header, header)

	if len(header.ExtraData) > s.params.MaxExtraDataSize {
		return database.Block{}, fmt.Errorf("%w: extraData[%d bytes]", ErrInvalidHeader, len(header.ExtraData))
	}

	if err := s.validateUncles(database.NewBlock(header, nil, args.Uncles)); err != nil {
		return database.Block{}, err
	}

	view, err := s.stateAt(parent)
	if err != nil {
		return database.Block{}, err
	}

	included, receipts, gasUsed := s.execute(view, header, args.Txs, args.Uncles)

	header.GasUsed = gasUsed
	header.ReceiptRoot = database.DeriveRoot(receipts)
	header.LogsBloom = receipts.Bloom()
	header.StateRoot = view.RootHash()

	return database.NewBlock(header, included, args.Uncles), nil
}

// MineNewBlock builds a block on the head from the transactions, solves the
// proof of work and imports it. The search can be cancelled.
func (s *State) MineNewBlock(ctx context.Context, txs []database.SignedTx, threads int) (database.Block, error) {
	s.evHandler("state: MineNewBlock: MINING: build block: txs[%d]", len(txs))

	blk, err := s.NewBlock(NewBlockArgs{
		Coinbase:  s.coinbase,
		Txs:       txs,
		TimeStamp: uint64(time.Now().Unix()),
	})
	if err != nil {
		return database.Block{}, err
	}

	s.evHandler("state: MineNewBlock: MINING: perform POW: blk[%d]: difficulty[%d]", blk.Number(), blk.Header.Difficulty)

	header, err := pow.Seal(ctx, blk.Header, threads, s.evHandler)
	if err != nil {
		return database.Block{}, err
	}

	blk = database.Block{
		Header:       header,
		Transactions: blk.Transactions,
		Uncles:       blk.Uncles,
	}

	s.evHandler("state: MineNewBlock: MINING: import block: blk[%s]", blk.Header)

	result, err := s.ImportBlock(blk)
	if err != nil {
		return database.Block{}, err
	}

	if result != ImportedBest {
		return database.Block{}, fmt.Errorf("%w: result[%s]", ErrNotBest, result)
	}

	return blk, nil
}
