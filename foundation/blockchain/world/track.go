package world

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Track is one layer of the world state. The root layer, constructed with
// New, holds the committed state. Layers are not safe for concurrent use.
type Track struct {
	parent  *Track
	objects map[common.Address]*object
}

// New constructs an empty world state.
func New() *Track {
	return &Track{
		objects: make(map[common.Address]*object),
	}
}

// StartTracking returns a new checkpoint layered on top of this view.
func (t *Track) StartTracking() *Track {
	return &Track{
		parent:  t,
		objects: make(map[common.Address]*object),
	}
}

// IsRoot reports whether this is the committed base layer.
func (t *Track) IsRoot() bool {
	return t.parent == nil
}

// Commit merges the writes of this layer into its parent. The parent then
// observes the union of both layers with this layer winning on conflicts.
// Committing the root layer does nothing.
func (t *Track) Commit() {
	if t.parent == nil {
		return
	}

	p := t.parent
	for addr, obj := range t.objects {
		switch {
		case obj.deleted:
			if p.parent == nil {
				delete(p.objects, addr)
				continue
			}
			p.objects[addr] = &object{deleted: true}

		case obj.fresh:
			if p.parent == nil {
				obj.fresh = false
			}
			p.objects[addr] = obj

		default:
			pobj, exists := p.objects[addr]
			if !exists || pobj.deleted {
				p.objects[addr] = obj
				continue
			}

			pobj.account = obj.account
			pobj.code = obj.code
			for k, v := range obj.storage {
				pobj.storage[k] = v
			}
		}
	}

	t.objects = make(map[common.Address]*object)
}

// Rollback discards the writes of this layer. The parent is left unchanged.
func (t *Track) Rollback() {
	t.objects = make(map[common.Address]*object)
}

// =============================================================================
// Reads

// Exists reports whether the account is present in the view.
func (t *Track) Exists(addr common.Address) bool {
	_, exists := t.get(addr)
	return exists
}

// Account returns a copy of the account for the address.
func (t *Track) Account(addr common.Address) (Account, bool) {
	obj, exists := t.get(addr)
	if !exists {
		return Account{}, false
	}

	acc := obj.account
	acc.Balance = acc.Balance.Clone()

	return acc, true
}

// Balance returns the balance of the address, zero for unknown accounts.
func (t *Track) Balance(addr common.Address) *uint256.Int {
	obj, exists := t.get(addr)
	if !exists {
		return new(uint256.Int)
	}

	return obj.account.Balance.Clone()
}

// Nonce returns the nonce of the address, zero for unknown accounts.
func (t *Track) Nonce(addr common.Address) uint64 {
	obj, exists := t.get(addr)
	if !exists {
		return 0
	}

	return obj.account.Nonce
}

// Code returns the code saved for the address.
func (t *Track) Code(addr common.Address) []byte {
	obj, exists := t.get(addr)
	if !exists {
		return nil
	}

	return obj.code
}

// Storage returns the value of a storage slot.
func (t *Track) Storage(addr common.Address, key common.Hash) common.Hash {
	for layer := t; layer != nil; layer = layer.parent {
		obj, exists := layer.objects[addr]
		if !exists {
			continue
		}

		if obj.deleted {
			return common.Hash{}
		}

		if v, exists := obj.storage[key]; exists {
			return v
		}

		if obj.fresh {
			return common.Hash{}
		}
	}

	return common.Hash{}
}

// =============================================================================
// Writes

// CreateAccount replaces any account at the address with an empty one.
func (t *Track) CreateAccount(addr common.Address) {
	t.objects[addr] = newObject()
}

// AddBalance credits the account, creating it if needed.
func (t *Track) AddBalance(addr common.Address, delta *uint256.Int) {
	obj := t.mutate(addr)
	obj.account.Balance = new(uint256.Int).Add(obj.account.Balance, delta)
}

// SubBalance debits the account. The balance is never pushed below zero, the
// call fails without changes instead.
func (t *Track) SubBalance(addr common.Address, delta *uint256.Int) error {
	if delta.IsZero() {
		return nil
	}

	if t.Balance(addr).Lt(delta) {
		return ErrInsufficientBalance
	}

	obj := t.mutate(addr)
	obj.account.Balance = new(uint256.Int).Sub(obj.account.Balance, delta)

	return nil
}

// IncreaseNonce increments the nonce of the account.
func (t *Track) IncreaseNonce(addr common.Address) {
	obj := t.mutate(addr)
	obj.account.Nonce++
}

// SaveCode sets the code of the account. Code can only be set once.
func (t *Track) SaveCode(addr common.Address, code []byte) error {
	obj := t.mutate(addr)
	if obj.account.HasCode() {
		return ErrCodeImmutable
	}

	obj.code = append([]byte(nil), code...)
	obj.account.CodeHash = codeHash(code)

	return nil
}

// SetStorage sets the value of a storage slot.
func (t *Track) SetStorage(addr common.Address, key common.Hash, value common.Hash) {
	obj := t.mutate(addr)
	obj.storage[key] = value
}

// Delete removes the account and all of its storage from the view.
func (t *Track) Delete(addr common.Address) {
	if t.parent == nil {
		delete(t.objects, addr)
		return
	}

	t.objects[addr] = &object{deleted: true}
}

// =============================================================================

// get locates the account by walking the layers.
func (t *Track) get(addr common.Address) (*object, bool) {
	for layer := t; layer != nil; layer = layer.parent {
		obj, exists := layer.objects[addr]
		if !exists {
			continue
		}

		if obj.deleted {
			return nil, false
		}

		return obj, true
	}

	return nil, false
}

// mutate returns the layer local object for the address, copying it from a
// parent layer or creating it as needed.
func (t *Track) mutate(addr common.Address) *object {
	if obj, exists := t.objects[addr]; exists && !obj.deleted {
		return obj
	}

	if _, exists := t.objects[addr]; !exists && t.parent != nil {
		if pobj, exists := t.parent.get(addr); exists {
			obj := copyFrom(pobj)
			t.objects[addr] = obj
			return obj
		}
	}

	obj := newObject()
	t.objects[addr] = obj

	return obj
}
