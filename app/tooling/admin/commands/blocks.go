package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
)

// Head prints the current head of the chain.
func Head(store *storage.Store) error {
	hash, err := store.Head()
	if err != nil {
		return err
	}

	blk, err := store.Block(hash)
	if err != nil {
		return err
	}

	td, err := store.TotalDifficulty(hash)
	if err != nil {
		return err
	}

	printBlock(blk)
	fmt.Printf("TotalDiff : %s\n", td)

	return nil
}

// Blocks prints the canonical blocks in the range, defaulting to the
// whole chain.
func Blocks(args []string, store *storage.Store) error {
	hash, err := store.Head()
	if err != nil {
		return err
	}
	head, err := store.Block(hash)
	if err != nil {
		return err
	}
	from, to := uint64(0), head.Number()

	if len(args) > 3 {
		if from, err = strconv.ParseUint(args[3], 10, 64); err != nil {
			return fmt.Errorf("from: %w", err)
		}
	}
	if len(args) > 4 {
		if to, err = strconv.ParseUint(args[4], 10, 64); err != nil {
			return fmt.Errorf("to: %w", err)
		}
	}

	for num := from; num <= to; num++ {
		blk, err := store.BlockByNumber(num)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				break
			}
			return err
		}

		printBlock(blk)
		fmt.Println()
	}

	return nil
}

// Receipt prints the receipt of an included transaction.
func Receipt(args []string, store *storage.Store) error {
	if len(args) < 4 {
		return errors.New("missing transaction hash")
	}

	rct, err := store.Receipt(common.HexToHash(args[3]))
	if err != nil {
		return err
	}

	fmt.Printf("Tx        : %s\n", rct.TxHash)
	fmt.Printf("Block     : %d %s\n", rct.BlockNumber, rct.BlockHash)
	fmt.Printf("Index     : %d\n", rct.Index)
	fmt.Printf("GasUsed   : %d  Cumulative: %d\n", rct.GasUsed, rct.CumulativeGasUsed)
	if rct.ContractAddress != nil {
		fmt.Printf("Contract  : %s\n", rct.ContractAddress)
	}
	if rct.Failure != "" {
		fmt.Printf("Failure   : %s\n", rct.Failure)
	}
	fmt.Printf("PostState : %s\n", rct.PostState)

	return nil
}

func printBlock(blk database.Block) {
	fmt.Printf("Block     : %d %s\n", blk.Number(), blk.Hash())
	fmt.Printf("Parent    : %s\n", blk.Header.ParentHash)
	fmt.Printf("Coinbase  : %s\n", blk.Header.Coinbase)
	fmt.Printf("StateRoot : %s\n", blk.Header.StateRoot)
	fmt.Printf("Difficulty: %s\n", blk.Header.Difficulty)
	fmt.Printf("Gas       : %d/%d\n", blk.Header.GasUsed, blk.Header.GasLimit)
	fmt.Printf("Txs       : %d  Uncles: %d\n", len(blk.Transactions), len(blk.Uncles))
	for _, tx := range blk.Transactions {
		fmt.Printf("  %s %s\n", tx.Hash(), tx)
	}
}
