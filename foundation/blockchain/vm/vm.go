// Package vm defines the contract between the transaction executor and a
// bytecode interpreter. The interpreter itself is a collaborator plugged in
// by the node.
package vm

//go:generate mockgen -source vm.go -destination vm_mock.go -package vm

import (
	"errors"
	"math/big"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrExecutionDisabled is the fault reported by Disabled.
var ErrExecutionDisabled = errors.New("bytecode execution is not available on this node")

// Kind distinguishes a message call from a contract creation.
type Kind int

// Set of kinds of execution.
const (
	Call Kind = iota
	Create
)

// Outcome tags how an execution ended.
type Outcome int

// Set of outcomes. Only Ok keeps side effects.
const (
	Ok Outcome = iota
	OutOfGas
	Reverted
	Fault
)

// String implements the fmt.Stringer interface.
func (o Outcome) String() string {
	switch o {
	case Ok:
		return "ok"
	case OutOfGas:
		return "out of gas"
	case Reverted:
		return "reverted"
	case Fault:
		return "fault"
	}
	return "unknown"
}

// BlockContext carries the block level values visible to executing code.
type BlockContext struct {
	Coinbase   common.Address
	Number     uint64
	Timestamp  uint64
	Difficulty *big.Int
	GasLimit   uint64

	// GetHash returns the hash of the canonical block with the number.
	GetHash func(number uint64) common.Hash
}

// Parameters is the input to an execution.
type Parameters struct {
	Kind      Kind
	Origin    common.Address
	Caller    common.Address
	Recipient common.Address
	Value     *uint256.Int
	Gas       uint64
	GasPrice  *uint256.Int
	Input     []byte
	Code      []byte
	World     world.View
	Block     BlockContext
}

// InternalTx records a message sent by executing code.
type InternalTx struct {
	Kind  Kind
	From  common.Address
	To    common.Address
	Value *uint256.Int
	Data  []byte
}

// Result is the output of an execution.
type Result struct {
	Outcome     Outcome
	GasUsed     uint64
	GasRefund   uint64
	Output      []byte
	Logs        []database.Log
	Deleted     []common.Address
	InternalTxs []InternalTx
	Reason      string
}

// Interpreter executes bytecode against a world view.
type Interpreter interface {
	Run(params Parameters) Result
}

// =============================================================================

// Disabled is the interpreter used when the node has no bytecode engine.
// Empty code succeeds without using gas and any other code faults.
type Disabled struct{}

// Run implements the Interpreter interface.
func (Disabled) Run(params Parameters) Result {
	if len(params.Code) == 0 {
		return Result{Outcome: Ok}
	}

	return Result{
		Outcome: Fault,
		GasUsed: params.Gas,
		Reason:  ErrExecutionDisabled.Error(),
	}
}
