package database

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"
	"io"
	"math/big"

	"github.com/ardanlabs/frontier/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// Tx is the transactional information between two parties. A nil To
// means the transaction creates a contract from the Data.
type Tx struct {
	Nonce    uint64          `json:"nonce"`     // Count of transactions originated by the sender.
	GasPrice *uint256.Int    `json:"gas_price"` // Wei paid for each unit of gas.
	GasLimit uint64          `json:"gas_limit"` // Maximum units of gas the sender will pay for.
	To       *common.Address `json:"to"`        // Account receiving the benefit of the transaction.
	Value    *uint256.Int    `json:"value"`     // Wei transferred to the recipient.
	Data     []byte          `json:"data"`      // Call data or contract init code.
}

// NewTx constructs a new transaction.
func NewTx(nonce uint64, to *common.Address, value *uint256.Int, gasLimit uint64, gasPrice *uint256.Int, data []byte) Tx {
	if value == nil {
		value = new(uint256.Int)
	}
	if gasPrice == nil {
		gasPrice = new(uint256.Int)
	}

	return Tx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	}
}

// IsCreate reports whether the transaction creates a contract.
func (tx Tx) IsCreate() bool {
	return tx.To == nil
}

// SigningHash returns the digest the sender signs.
func (tx Tx) SigningHash() common.Hash {
	data, err := rlp.EncodeToBytes([]any{tx.Nonce, tx.GasPrice, tx.GasLimit, tx.To, tx.Value, tx.Data})
	if err != nil {
		return common.Hash{}
	}

	return crypto.Keccak256Hash(data)
}

// Sign uses the specified private key to sign the transaction.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (SignedTx, error) {
	v, r, s, err := signature.Sign(tx.SigningHash(), privateKey)
	if err != nil {
		return SignedTx{}, err
	}

	signedTx := SignedTx{
		Tx: tx,
		V:  v,
		R:  r,
		S:  s,
	}

	return signedTx, nil
}

// =============================================================================

// SignedTx is a signed version of the transaction. This is how clients like
// a wallet provide transactions for inclusion into the blockchain.
type SignedTx struct {
	Tx
	V *big.Int `json:"v"` // Recovery identifier, either 27 or 28.
	R *big.Int `json:"r"` // First coordinate of the ECDSA signature.
	S *big.Int `json:"s"` // Second coordinate of the ECDSA signature.
}

// signedTxRLP is the flat wire layout of a signed transaction.
type signedTxRLP struct {
	Nonce    uint64
	GasPrice *uint256.Int
	GasLimit uint64
	To       *common.Address `rlp:"nil"`
	Value    *uint256.Int
	Data     []byte
	V        *big.Int
	R        *big.Int
	S        *big.Int
}

// EncodeRLP implements rlp.Encoder.
func (tx SignedTx) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, signedTxRLP{
		Nonce:    tx.Nonce,
		GasPrice: tx.GasPrice,
		GasLimit: tx.GasLimit,
		To:       tx.To,
		Value:    tx.Value,
		Data:     tx.Data,
		V:        tx.V,
		R:        tx.R,
		S:        tx.S,
	})
}

// DecodeRLP implements rlp.Decoder.
func (tx *SignedTx) DecodeRLP(s *rlp.Stream) error {
	var dec signedTxRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}

	*tx = SignedTx{
		Tx: Tx{
			Nonce:    dec.Nonce,
			GasPrice: dec.GasPrice,
			GasLimit: dec.GasLimit,
			To:       dec.To,
			Value:    dec.Value,
			Data:     dec.Data,
		},
		V: dec.V,
		R: dec.R,
		S: dec.S,
	}

	return nil
}

// Validate verifies the transaction has a proper signature that conforms to
// frontier rules.
func (tx SignedTx) Validate() error {
	if tx.GasPrice == nil || tx.Value == nil {
		return fmt.Errorf("transaction is missing gas price or value")
	}

	return signature.VerifySignature(tx.V, tx.R, tx.S)
}

// FromAddress extracts the address that signed the transaction.
func (tx SignedTx) FromAddress() (common.Address, error) {
	return signature.FromAddress(tx.SigningHash(), tx.V, tx.R, tx.S)
}

// Hash returns the unique hash of the signed transaction.
func (tx SignedTx) Hash() common.Hash {
	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return common.Hash{}
	}

	return crypto.Keccak256Hash(data)
}

// SignatureString returns the signature as a string.
func (tx SignedTx) SignatureString() string {
	return signature.SignatureString(tx.V, tx.R, tx.S)
}

// String implements the fmt.Stringer interface for logging.
func (tx SignedTx) String() string {
	from, err := tx.FromAddress()
	if err != nil {
		return fmt.Sprintf("unknown:%d", tx.Nonce)
	}

	return fmt.Sprintf("%s:%d", from, tx.Nonce)
}

// =============================================================================

// SignedTxs implements types.DerivableList for computing the transaction root.
type SignedTxs []SignedTx

// Len returns the number of transactions in the list.
func (txs SignedTxs) Len() int {
	return len(txs)
}

// EncodeIndex writes the encoding of the i'th transaction.
func (txs SignedTxs) EncodeIndex(i int, w *bytes.Buffer) {
	encodeIndex(w, txs[i])
}
