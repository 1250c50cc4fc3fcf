package database

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BlockNonce is the value a miner varies to solve the proof of work. It is
// unrelated to the account nonce.
type BlockNonce [8]byte

// EncodeNonce converts the given integer to a block nonce.
func EncodeNonce(i uint64) BlockNonce {
	var n BlockNonce
	binary.BigEndian.PutUint64(n[:], i)
	return n
}

// Uint64 returns the integer value of a block nonce.
func (n BlockNonce) Uint64() uint64 {
	return binary.BigEndian.Uint64(n[:])
}

// MarshalText encodes n as a hex string with 0x prefix.
func (n BlockNonce) MarshalText() ([]byte, error) {
	return hexutil.Bytes(n[:]).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *BlockNonce) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("BlockNonce", input, n[:])
}

// =============================================================================

// BlockHeader represents common information required for each block. The
// field order is the canonical encoding order.
type BlockHeader struct {
	ParentHash  common.Hash    `json:"parent_hash"`  // Hash of the previous block in the chain.
	UnclesHash  common.Hash    `json:"uncles_hash"`  // Hash of the encoded uncle header list.
	Coinbase    common.Address `json:"coinbase"`     // The account who is receiving fees and rewards.
	StateRoot   common.Hash    `json:"state_root"`   // World state root after the block is applied.
	TxRoot      common.Hash    `json:"tx_root"`      // Root of the transaction trie.
	ReceiptRoot common.Hash    `json:"receipt_root"` // Root of the receipt trie.
	LogsBloom   types.Bloom    `json:"logs_bloom"`   // Bloom over every log in the block.
	Difficulty  *big.Int       `json:"difficulty"`   // Proof of work difficulty.
	Number      uint64         `json:"number"`       // Block number in the chain.
	GasLimit    uint64         `json:"gas_limit"`    // Maximum gas the block's transactions may consume.
	GasUsed     uint64         `json:"gas_used"`     // Gas consumed by the block's transactions.
	TimeStamp   uint64         `json:"timestamp"`    // Time the block was mined.
	ExtraData   []byte         `json:"extra_data"`   // Free form data, bounded in size.
	MixHash     common.Hash    `json:"mix_hash"`     // Proof of work mix digest.
	Nonce       BlockNonce     `json:"nonce"`        // Value identified to solve the hash solution.
}

// Hash returns the unique hash for the header. Hashing the header and not the
// whole block lets the chain be checked with only headers.
func (h BlockHeader) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(h)
	if err != nil {
		return common.Hash{}
	}

	return crypto.Keccak256Hash(data)
}

// EncodeNoNonce returns the header encoding without the mix hash and nonce.
// This is the input to the proof of work.
func (h BlockHeader) EncodeNoNonce() ([]byte, error) {
	return rlp.EncodeToBytes([]any{
		h.ParentHash,
		h.UnclesHash,
		h.Coinbase,
		h.StateRoot,
		h.TxRoot,
		h.ReceiptRoot,
		h.LogsBloom,
		h.Difficulty,
		h.Number,
		h.GasLimit,
		h.GasUsed,
		h.TimeStamp,
		h.ExtraData,
	})
}

// IsGenesis reports whether the header is the first in the chain.
func (h BlockHeader) IsGenesis() bool {
	return h.Number == 0
}

// IsParentOf reports whether h is the parent of child.
func (h BlockHeader) IsParentOf(child BlockHeader) bool {
	return h.Hash() == child.ParentHash
}

// String implements the fmt.Stringer interface for logging.
func (h BlockHeader) String() string {
	return fmt.Sprintf("#%d (%s)", h.Number, h.Hash().TerminalString())
}

// =============================================================================

// Block represents a group of transactions batched together along with the
// headers of any uncles being rewarded.
type Block struct {
	Header       BlockHeader   `json:"header"`
	Transactions []SignedTx    `json:"transactions"`
	Uncles       []BlockHeader `json:"uncles"`
}

// NewBlock constructs a block and fills in the transaction root and uncles
// hash from the provided content.
func NewBlock(header BlockHeader, txs []SignedTx, uncles []BlockHeader) Block {
	header.TxRoot = DeriveRoot(SignedTxs(txs))
	header.UnclesHash = CalcUnclesHash(uncles)

	return Block{
		Header:       header,
		Transactions: txs,
		Uncles:       uncles,
	}
}

// DecodeBlock constructs a block from its canonical encoding.
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := rlp.DecodeBytes(data, &b); err != nil {
		return Block{}, fmt.Errorf("decode block: %w", err)
	}

	return b, nil
}

// Encode returns the canonical encoding of the block.
func (b Block) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(b)
}

// Hash returns the unique hash for the Block.
func (b Block) Hash() common.Hash {
	return b.Header.Hash()
}

// Number returns the block number.
func (b Block) Number() uint64 {
	return b.Header.Number
}

// =============================================================================

// CalcUnclesHash returns the hash of the encoded uncle list.
func CalcUnclesHash(uncles []BlockHeader) common.Hash {
	if uncles == nil {
		uncles = []BlockHeader{}
	}

	data, err := rlp.EncodeToBytes(uncles)
	if err != nil {
		return common.Hash{}
	}

	return crypto.Keccak256Hash(data)
}
