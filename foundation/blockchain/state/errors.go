package state

import "errors"

// ImportResult describes the outcome of importing a block.
type ImportResult int

// Set of import results.
const (
	ImportedBest ImportResult = iota
	ImportedNotBest
	AlreadyExists
	NoParent
	ConsensusBreak
)

// String implements the fmt.Stringer interface.
func (r ImportResult) String() string {
	switch r {
	case ImportedBest:
		return "imported_best"
	case ImportedNotBest:
		return "imported_not_best"
	case AlreadyExists:
		return "already_exists"
	case NoParent:
		return "no_parent"
	case ConsensusBreak:
		return "consensus_break"
	}
	return "unknown"
}

// Set of reasons a block is invalid.
var (
	ErrInvalidPoW          = errors.New("invalid proof of work")
	ErrInvalidHeader       = errors.New("invalid header")
	ErrTxRootMismatch      = errors.New("transaction root mismatch")
	ErrUncleHash           = errors.New("uncles hash mismatch")
	ErrInvalidUncle        = errors.New("invalid uncle")
	ErrGasUsedMismatch     = errors.New("gas used mismatch")
	ErrReceiptRootMismatch = errors.New("receipt root mismatch")
	ErrBloomMismatch       = errors.New("logs bloom mismatch")
	ErrStateRootMismatch   = errors.New("state root mismatch")
)

// ErrGenesisMismatch is returned when the stored chain was created from a
// different genesis.
var ErrGenesisMismatch = errors.New("genesis mismatch")

// ErrNotBest is returned when a mined block did not become the head.
var ErrNotBest = errors.New("block did not become the canonical head")
