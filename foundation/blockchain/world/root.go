package world

import (
	"bytes"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// RootHash returns the digest of the state seen through this view. Accounts
// are keyed by the hash of their address and storage slots by the hash of
// their key, the same layout Ethereum uses for its secure trie.
func (t *Track) RootHash() common.Hash {
	addrs := t.Addresses()
	leaves := make([]leaf, 0, len(addrs))
	for _, addr := range addrs {
		obj, _ := t.get(addr)

		sa := types.StateAccount{
			Nonce:    obj.account.Nonce,
			Balance:  obj.account.Balance,
			Root:     t.storageRoot(addr),
			CodeHash: obj.account.CodeHash.Bytes(),
		}

		value, err := rlp.EncodeToBytes(&sa)
		if err != nil {
			panic(err)
		}

		leaves = append(leaves, leaf{key: crypto.Keccak256(addr.Bytes()), value: value})
	}

	return hashLeaves(leaves)
}

// Addresses returns every account visible through this view in address order.
func (t *Track) Addresses() []common.Address {
	seen := make(map[common.Address]struct{})
	for layer := t; layer != nil; layer = layer.parent {
		for addr := range layer.objects {
			seen[addr] = struct{}{}
		}
	}

	addrs := make([]common.Address, 0, len(seen))
	for addr := range seen {
		if t.Exists(addr) {
			addrs = append(addrs, addr)
		}
	}

	slices.SortFunc(addrs, func(a, b common.Address) int {
		return a.Cmp(b)
	})

	return addrs
}

// Snapshot returns a new root holding a deep copy of the state seen through
// this view. The copy shares nothing with the layers it came from.
func (t *Track) Snapshot() *Track {
	snap := New()
	for _, addr := range t.Addresses() {
		obj, _ := t.get(addr)

		cp := copyFrom(obj)
		for k, v := range t.slots(addr) {
			cp.storage[k] = v
		}
		snap.objects[addr] = cp
	}

	return snap
}

// =============================================================================

// slots collects the non-zero storage of the account through the layers.
func (t *Track) slots(addr common.Address) map[common.Hash]common.Hash {
	var layers []*object
	for layer := t; layer != nil; layer = layer.parent {
		obj, exists := layer.objects[addr]
		if !exists {
			continue
		}

		if obj.deleted {
			break
		}

		layers = append(layers, obj)
		if obj.fresh {
			break
		}
	}

	// Apply the oldest layer first so newer writes win.
	slots := make(map[common.Hash]common.Hash)
	for i := len(layers) - 1; i >= 0; i-- {
		for k, v := range layers[i].storage {
			slots[k] = v
		}
	}

	for k, v := range slots {
		if v == (common.Hash{}) {
			delete(slots, k)
		}
	}

	return slots
}

// storageRoot computes the root of the storage trie of the account.
func (t *Track) storageRoot(addr common.Address) common.Hash {
	slots := t.slots(addr)
	if len(slots) == 0 {
		return types.EmptyRootHash
	}

	leaves := make([]leaf, 0, len(slots))
	for k, v := range slots {
		value, err := rlp.EncodeToBytes(common.TrimLeftZeroes(v[:]))
		if err != nil {
			panic(err)
		}
		leaves = append(leaves, leaf{key: crypto.Keccak256(k.Bytes()), value: value})
	}

	return hashLeaves(leaves)
}

// leaf is a hashed key and encoded value destined for a trie.
type leaf struct {
	key   []byte
	value []byte
}

// hashLeaves inserts the leaves in key order and returns the trie root.
func hashLeaves(leaves []leaf) common.Hash {
	slices.SortFunc(leaves, func(a, b leaf) int {
		return bytes.Compare(a.key, b.key)
	})

	st := trie.NewStackTrie(nil)
	for _, l := range leaves {
		st.Update(l.key, l.value)
	}

	return st.Hash()
}
