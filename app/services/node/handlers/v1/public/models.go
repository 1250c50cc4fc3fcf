package public

import (
	"fmt"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ardanlabs/frontier/foundation/blockchain/signature"
	"github.com/ardanlabs/frontier/foundation/blockchain/world"
	"github.com/ardanlabs/frontier/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

type account struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Nonce    uint64         `json:"nonce"`
	Balance  string         `json:"balance"`
	CodeHash common.Hash    `json:"code_hash"`
	HasCode  bool           `json:"has_code"`
}

func toAccount(ns *nameservice.NameService, addr common.Address, acc world.Account) account {
	balance := acc.Balance
	if balance == nil {
		balance = new(uint256.Int)
	}

	return account{
		Address:  addr,
		Name:     ns.Lookup(addr),
		Nonce:    acc.Nonce,
		Balance:  balance.Dec(),
		CodeHash: acc.CodeHash,
		HasCode:  acc.HasCode(),
	}
}

type tx struct {
	Hash     common.Hash     `json:"hash"`
	From     common.Address  `json:"from"`
	FromName string          `json:"from_name"`
	To       *common.Address `json:"to"`
	ToName   string          `json:"to_name,omitempty"`
	Nonce    uint64          `json:"nonce"`
	Value    string          `json:"value"`
	GasPrice string          `json:"gas_price"`
	GasLimit uint64          `json:"gas_limit"`
	Data     hexutil.Bytes   `json:"data"`
	Sig      string          `json:"sig"`
}

func toTx(ns *nameservice.NameService, signedTx database.SignedTx) tx {
	from, _ := signedTx.FromAddress()

	t := tx{
		Hash:     signedTx.Hash(),
		From:     from,
		FromName: ns.Lookup(from),
		To:       signedTx.To,
		Nonce:    signedTx.Nonce,
		Value:    signedTx.Value.Dec(),
		GasPrice: signedTx.GasPrice.Dec(),
		GasLimit: signedTx.GasLimit,
		Data:     signedTx.Data,
		Sig:      signedTx.SignatureString(),
	}

	if signedTx.To != nil {
		t.ToName = ns.Lookup(*signedTx.To)
	}

	return t
}

type block struct {
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parent_hash"`
	Number       uint64         `json:"number"`
	Coinbase     common.Address `json:"coinbase"`
	StateRoot    common.Hash    `json:"state_root"`
	TxRoot       common.Hash    `json:"tx_root"`
	ReceiptRoot  common.Hash    `json:"receipt_root"`
	UnclesHash   common.Hash    `json:"uncles_hash"`
	Difficulty   string         `json:"difficulty"`
	GasLimit     uint64         `json:"gas_limit"`
	GasUsed      uint64         `json:"gas_used"`
	TimeStamp    uint64         `json:"timestamp"`
	ExtraData    hexutil.Bytes  `json:"extra_data"`
	MixHash      common.Hash    `json:"mix_hash"`
	Nonce        uint64         `json:"nonce"`
	Transactions []tx           `json:"transactions"`
	Uncles       []common.Hash  `json:"uncles"`
}

func toBlock(ns *nameservice.NameService, blk database.Block) block {
	txs := make([]tx, len(blk.Transactions))
	for i, signedTx := range blk.Transactions {
		txs[i] = toTx(ns, signedTx)
	}

	uncles := make([]common.Hash, len(blk.Uncles))
	for i, uncle := range blk.Uncles {
		uncles[i] = uncle.Hash()
	}

	h := blk.Header

	return block{
		Hash:         blk.Hash(),
		ParentHash:   h.ParentHash,
		Number:       h.Number,
		Coinbase:     h.Coinbase,
		StateRoot:    h.StateRoot,
		TxRoot:       h.TxRoot,
		ReceiptRoot:  h.ReceiptRoot,
		UnclesHash:   h.UnclesHash,
		Difficulty:   h.Difficulty.String(),
		GasLimit:     h.GasLimit,
		GasUsed:      h.GasUsed,
		TimeStamp:    h.TimeStamp,
		ExtraData:    h.ExtraData,
		MixHash:      h.MixHash,
		Nonce:        h.Nonce.Uint64(),
		Transactions: txs,
		Uncles:       uncles,
	}
}

type receipt struct {
	database.Receipt
	Pending bool `json:"pending"`
}

// =============================================================================

// submitTx is the form a wallet uses to submit a signed transaction. A
// missing To creates a contract from the Data.
type submitTx struct {
	Nonce    uint64        `json:"nonce"`
	GasPrice string        `json:"gas_price" validate:"required,number"`
	GasLimit uint64        `json:"gas_limit" validate:"required"`
	To       string        `json:"to" validate:"omitempty,address"`
	Value    string        `json:"value" validate:"required,number"`
	Data     hexutil.Bytes `json:"data"`
	Sig      string        `json:"sig" validate:"required"`
}

// toSignedTx constructs the signed transaction described by the form.
func (st submitTx) toSignedTx() (database.SignedTx, error) {
	gasPrice, err := uint256.FromDecimal(st.GasPrice)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("gas price: %w", err)
	}

	value, err := uint256.FromDecimal(st.Value)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("value: %w", err)
	}

	var to *common.Address
	if st.To != "" {
		addr := common.HexToAddress(st.To)
		to = &addr
	}

	v, r, s, err := signature.ToVRSFromHexSignature(st.Sig)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("signature: %w", err)
	}

	signedTx := database.SignedTx{
		Tx: database.NewTx(st.Nonce, to, value, st.GasLimit, gasPrice, st.Data),
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

type applyResult struct {
	Receipt database.Receipt `json:"receipt"`
	Outcome string           `json:"outcome"`
	Output  hexutil.Bytes    `json:"output"`
	Reason  string           `json:"reason,omitempty"`
}
