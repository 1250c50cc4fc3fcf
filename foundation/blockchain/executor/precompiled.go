package executor

import (
	"github.com/ethereum/go-ethereum/common"
	gethvm "github.com/ethereum/go-ethereum/core/vm"
)

// precompiled returns the contracts implemented natively at the reserved
// addresses 1 through 4: ecrecover, sha256, ripemd160 and identity.
func precompiled() map[common.Address]gethvm.PrecompiledContract {
	contracts := make(map[common.Address]gethvm.PrecompiledContract, len(gethvm.PrecompiledContractsHomestead))
	for addr, c := range gethvm.PrecompiledContractsHomestead {
		contracts[addr] = c
	}

	return contracts
}

// runPrecompiled meters and executes a precompiled contract. The second
// return is false when the gas does not cover the contract.
func runPrecompiled(c gethvm.PrecompiledContract, input []byte, gas uint64) (output []byte, gasUsed uint64, ok bool, err error) {
	cost := c.RequiredGas(input)
	if cost > gas {
		return nil, gas, false, nil
	}

	output, err = c.Run(input)
	if err != nil {
		return nil, gas, true, err
	}

	return output, cost, true, nil
}
