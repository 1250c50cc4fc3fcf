package database

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Log is a record emitted by contract execution.
type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    []byte         `json:"data"`
}

// Receipt is produced once for each applied transaction. Only the first four
// fields are part of the consensus encoding.
type Receipt struct {
	PostState         common.Hash `json:"post_state"`
	CumulativeGasUsed uint64      `json:"cumulative_gas_used"`
	Bloom             types.Bloom `json:"bloom"`
	Logs              []Log       `json:"logs"`

	TxHash          common.Hash     `json:"tx_hash" rlp:"-"`
	ContractAddress *common.Address `json:"contract_address,omitempty" rlp:"-"`
	GasUsed         uint64          `json:"gas_used" rlp:"-"`
	BlockHash       common.Hash     `json:"block_hash" rlp:"-"`
	BlockNumber     uint64          `json:"block_number" rlp:"-"`
	Index           uint            `json:"index" rlp:"-"`
	Failure         string          `json:"failure,omitempty" rlp:"-"`
}

// receiptRLP is the consensus encoding of a receipt.
type receiptRLP struct {
	PostState         common.Hash
	CumulativeGasUsed uint64
	Bloom             types.Bloom
	Logs              []Log
}

// consensus returns the value encoded into the receipt trie.
func (r Receipt) consensus() receiptRLP {
	logs := r.Logs
	if logs == nil {
		logs = []Log{}
	}

	return receiptRLP{
		PostState:         r.PostState,
		CumulativeGasUsed: r.CumulativeGasUsed,
		Bloom:             r.Bloom,
		Logs:              logs,
	}
}

// =============================================================================

// Receipts implements types.DerivableList for computing the receipt root.
type Receipts []Receipt

// Len returns the number of receipts in the list.
func (rs Receipts) Len() int {
	return len(rs)
}

// EncodeIndex writes the consensus encoding of the i'th receipt.
func (rs Receipts) EncodeIndex(i int, w *bytes.Buffer) {
	encodeIndex(w, rs[i].consensus())
}

// Bloom returns the union of every receipt bloom.
func (rs Receipts) Bloom() types.Bloom {
	var bloom types.Bloom
	for _, r := range rs {
		for i := range bloom {
			bloom[i] |= r.Bloom[i]
		}
	}

	return bloom
}

// =============================================================================

// LogsBloom builds the bloom filter over the addresses and topics of logs.
func LogsBloom(logs []Log) types.Bloom {
	var bloom types.Bloom
	for _, log := range logs {
		bloom.Add(log.Address.Bytes())
		for _, topic := range log.Topics {
			bloom.Add(topic.Bytes())
		}
	}

	return bloom
}
