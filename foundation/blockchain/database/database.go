// Package database defines the data model of the blockchain: transactions,
// block headers, blocks and receipts, along with their canonical encodings
// and the roots derived from them.
package database

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"
)

// DeriveRoot computes the root of an index keyed trie over the list. This is
// how the transaction and receipt roots in a block header are produced.
func DeriveRoot(list types.DerivableList) common.Hash {
	return types.DeriveSha(list, trie.NewStackTrie(nil))
}

// =============================================================================

// encodeIndex writes the rlp encoding of v into w. A value that can't be
// encoded is a programming error in this package.
func encodeIndex(w *bytes.Buffer, v any) {
	if err := rlp.Encode(w, v); err != nil {
		panic(err)
	}
}
