// Package commands contains the functionality for the set of commands
// currently supported by the admin tool.
package commands

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ardanlabs/frontier/foundation/blockchain/genesis"
)

// Genesis loads the genesis file and prints the block it produces along
// with the premined balances.
func Genesis(args []string) error {
	if len(args) < 3 {
		return errors.New("missing genesis path")
	}

	gen, err := genesis.Load(args[2])
	if err != nil {
		return err
	}

	blk, err := gen.Block()
	if err != nil {
		return err
	}

	fmt.Printf("Hash       : %s\n", blk.Hash())
	fmt.Printf("State Root : %s\n", blk.Header.StateRoot)
	fmt.Printf("Difficulty : %s\n", blk.Header.Difficulty)
	fmt.Printf("Gas Limit  : %d\n", blk.Header.GasLimit)

	addrs := make([]string, 0, len(gen.Balances))
	for addr := range gen.Balances {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	for _, addr := range addrs {
		fmt.Printf("Balance    : %s: %s\n", addr, gen.Balances[addr])
	}

	return nil
}
