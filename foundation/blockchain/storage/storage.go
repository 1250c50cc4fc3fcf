// Package storage handles all the lower level support for maintaining the
// blockchain in a key value database.
package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound is returned when a key or record does not exist.
var ErrNotFound = errors.New("not found")

// KeyValue represents the behavior required of a database backend. All
// methods must be safe for concurrent use.
type KeyValue interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	Close() error
}

// Batch is a set of writes applied atomically when Write is called. A batch
// cannot be used concurrently.
type Batch interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
	Write() error
}

// Set of key prefixes for the records kept in the database.
var (
	headKey         = []byte("head")
	blockPrefix     = []byte("b") // b + hash -> rlp(block)
	tdPrefix        = []byte("t") // t + hash -> total difficulty
	receiptsPrefix  = []byte("r") // r + hash -> json(receipts)
	canonicalPrefix = []byte("c") // c + number -> hash
	lookupPrefix    = []byte("l") // l + tx hash -> json(TxLocation)
)

// =============================================================================

// TxLocation identifies where a transaction was included.
type TxLocation struct {
	BlockHash   common.Hash `json:"block_hash"`
	BlockNumber uint64      `json:"block_number"`
	Index       uint        `json:"index"`
}

// Store manages reading and writing of blocks, receipts and the canonical
// chain index.
type Store struct {
	kv KeyValue
}

// New constructs a store on top of the key value backend.
func New(kv KeyValue) *Store {
	return &Store{kv: kv}
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// WriteBlock stores the block with its total difficulty and receipts. The
// canonical index is not changed.
func (s *Store) WriteBlock(blk database.Block, td *big.Int, receipts database.Receipts) error {
	u := s.NewUpdate()
	if err := u.WriteBlock(blk, td, receipts); err != nil {
		return err
	}

	return u.Write()
}

// HasBlock reports whether the block is stored.
func (s *Store) HasBlock(hash common.Hash) bool {
	has, err := s.kv.Has(key(blockPrefix, hash[:]))
	return err == nil && has
}

// Block returns the block with the hash.
func (s *Store) Block(hash common.Hash) (database.Block, error) {
	data, err := s.kv.Get(key(blockPrefix, hash[:]))
	if err != nil {
		return database.Block{}, fmt.Errorf("block %s: %w", hash, err)
	}

	return database.DecodeBlock(data)
}

// TotalDifficulty returns the sum of the difficulties from genesis through
// the block with the hash.
func (s *Store) TotalDifficulty(hash common.Hash) (*big.Int, error) {
	data, err := s.kv.Get(key(tdPrefix, hash[:]))
	if err != nil {
		return nil, fmt.Errorf("total difficulty %s: %w", hash, err)
	}

	return new(big.Int).SetBytes(data), nil
}

// Receipts returns the receipts produced by the block with the hash.
func (s *Store) Receipts(hash common.Hash) (database.Receipts, error) {
	data, err := s.kv.Get(key(receiptsPrefix, hash[:]))
	if err != nil {
		return nil, fmt.Errorf("receipts %s: %w", hash, err)
	}

	var receipts database.Receipts
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}

	return receipts, nil
}

// =============================================================================

// SetCanonical marks the stored block as the canonical block at its number
// and indexes the transactions that have a receipt.
func (s *Store) SetCanonical(blk database.Block) error {
	receipts, err := s.Receipts(blk.Hash())
	if err != nil {
		return err
	}

	u := s.NewUpdate()
	if err := u.SetCanonical(blk, receipts); err != nil {
		return err
	}

	return u.Write()
}

// DeleteCanonical removes the canonical mapping for the number.
func (s *Store) DeleteCanonical(num uint64) error {
	u := s.NewUpdate()
	if err := u.DeleteCanonical(num); err != nil {
		return err
	}

	return u.Write()
}

// CanonicalHash returns the hash of the canonical block at the number.
func (s *Store) CanonicalHash(num uint64) (common.Hash, error) {
	data, err := s.kv.Get(key(canonicalPrefix, number(num)))
	if err != nil {
		return common.Hash{}, fmt.Errorf("canonical %d: %w", num, err)
	}

	return common.BytesToHash(data), nil
}

// BlockByNumber returns the canonical block at the number.
func (s *Store) BlockByNumber(num uint64) (database.Block, error) {
	hash, err := s.CanonicalHash(num)
	if err != nil {
		return database.Block{}, err
	}

	return s.Block(hash)
}

// TxLocation returns where the transaction was included on the canonical
// chain.
func (s *Store) TxLocation(txHash common.Hash) (TxLocation, error) {
	data, err := s.kv.Get(key(lookupPrefix, txHash[:]))
	if err != nil {
		return TxLocation{}, fmt.Errorf("tx %s: %w", txHash, err)
	}

	var loc TxLocation
	if err := json.Unmarshal(data, &loc); err != nil {
		return TxLocation{}, fmt.Errorf("decode location: %w", err)
	}

	// The index may point at a block abandoned by a reorganization.
	canon, err := s.CanonicalHash(loc.BlockNumber)
	if err != nil || canon != loc.BlockHash {
		return TxLocation{}, fmt.Errorf("tx %s: %w", txHash, ErrNotFound)
	}

	return loc, nil
}

// Receipt returns the receipt of a transaction on the canonical chain.
func (s *Store) Receipt(txHash common.Hash) (database.Receipt, error) {
	loc, err := s.TxLocation(txHash)
	if err != nil {
		return database.Receipt{}, err
	}

	receipts, err := s.Receipts(loc.BlockHash)
	if err != nil {
		return database.Receipt{}, err
	}

	if loc.Index >= uint(len(receipts)) {
		return database.Receipt{}, fmt.Errorf("receipt %s: %w", txHash, ErrNotFound)
	}

	return receipts[loc.Index], nil
}

// SetHead records the hash of the canonical head.
func (s *Store) SetHead(hash common.Hash) error {
	u := s.NewUpdate()
	if err := u.SetHead(hash); err != nil {
		return err
	}

	return u.Write()
}

// Head returns the hash of the canonical head.
func (s *Store) Head() (common.Hash, error) {
	data, err := s.kv.Get(headKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("head: %w", err)
	}

	return common.BytesToHash(data), nil
}

// =============================================================================

func key(prefix []byte, id []byte) []byte {
	k := make([]byte, 0, len(prefix)+len(id))
	k = append(k, prefix...)
	return append(k, id...)
}

func number(num uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], num)
	return b[:]
}
