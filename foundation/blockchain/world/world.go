// Package world maintains the account state of the blockchain as a stack of
// checkpoints. Every layer reads through to its parent and keeps its own
// writes until they are committed into the parent or rolled back.
package world

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Set of error variables for state changes.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCodeImmutable       = errors.New("account code already set")
)

// Account represents the information stored for an individual address.
type Account struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash common.Hash
}

// HasCode reports whether code was saved for the account.
func (a Account) HasCode() bool {
	return a.CodeHash != (common.Hash{}) && a.CodeHash != types.EmptyCodeHash
}

// View is the set of reads and writes available to code executing against
// a checkpoint.
type View interface {
	Exists(addr common.Address) bool
	Account(addr common.Address) (Account, bool)
	Balance(addr common.Address) *uint256.Int
	Nonce(addr common.Address) uint64
	Code(addr common.Address) []byte
	Storage(addr common.Address, key common.Hash) common.Hash

	CreateAccount(addr common.Address)
	AddBalance(addr common.Address, delta *uint256.Int)
	SubBalance(addr common.Address, delta *uint256.Int) error
	IncreaseNonce(addr common.Address)
	SaveCode(addr common.Address, code []byte) error
	SetStorage(addr common.Address, key common.Hash, value common.Hash)
	Delete(addr common.Address)
}

// =============================================================================

// object is the layer local copy of an account.
type object struct {
	account Account
	code    []byte
	storage map[common.Hash]common.Hash

	// fresh means the account was created or recreated in this layer so
	// storage reads must not fall through to the parent.
	fresh bool

	// deleted marks a tombstone that hides the parent's account.
	deleted bool
}

func newObject() *object {
	return &object{
		account: Account{
			Balance:  new(uint256.Int),
			CodeHash: types.EmptyCodeHash,
		},
		storage: make(map[common.Hash]common.Hash),
		fresh:   true,
	}
}

// copyFrom returns a layer local copy of obj with no storage of its own.
func copyFrom(obj *object) *object {
	return &object{
		account: Account{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance.Clone(),
			CodeHash: obj.account.CodeHash,
		},
		code:    obj.code,
		storage: make(map[common.Hash]common.Hash),
	}
}

// codeHash returns the hash stored for the code.
func codeHash(code []byte) common.Hash {
	if len(code) == 0 {
		return types.EmptyCodeHash
	}
	return crypto.Keccak256Hash(code)
}
