package storage

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ardanlabs/frontier/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/common"
)

// Update stages writes to the store. Nothing is visible to readers until
// Write is called, and then everything is applied at once. An update that
// is never written leaves the store untouched.
type Update struct {
	batch Batch
}

// NewUpdate starts a set of writes applied together.
func (s *Store) NewUpdate() *Update {
	return &Update{batch: s.kv.NewBatch()}
}

// WriteBlock stages the block with its total difficulty and receipts. The
// receipts are stamped with the block they belong to and their position.
func (u *Update) WriteBlock(blk database.Block, td *big.Int, receipts database.Receipts) error {
	hash := blk.Hash()

	data, err := blk.Encode()
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	rcpts := make(database.Receipts, len(receipts))
	for i, r := range receipts {
		r.BlockHash = hash
		r.BlockNumber = blk.Number()
		r.Index = uint(i)
		rcpts[i] = r
	}

	rData, err := json.Marshal(rcpts)
	if err != nil {
		return fmt.Errorf("encode receipts: %w", err)
	}

	if err := u.batch.Put(key(blockPrefix, hash[:]), data); err != nil {
		return err
	}
	if err := u.batch.Put(key(tdPrefix, hash[:]), td.Bytes()); err != nil {
		return err
	}

	return u.batch.Put(key(receiptsPrefix, hash[:]), rData)
}

// SetCanonical stages the block as the canonical block at its number. The
// lookup index is built from the receipts so a transaction in the block
// that was declined and has no receipt is not indexed.
func (u *Update) SetCanonical(blk database.Block, receipts database.Receipts) error {
	hash := blk.Hash()

	if err := u.batch.Put(key(canonicalPrefix, number(blk.Number())), hash[:]); err != nil {
		return err
	}

	for i, r := range receipts {
		loc := TxLocation{BlockHash: hash, BlockNumber: blk.Number(), Index: uint(i)}

		data, err := json.Marshal(loc)
		if err != nil {
			return fmt.Errorf("encode location: %w", err)
		}

		if err := u.batch.Put(key(lookupPrefix, r.TxHash[:]), data); err != nil {
			return err
		}
	}

	return nil
}

// DeleteCanonical stages the removal of the canonical mapping for the number.
func (u *Update) DeleteCanonical(num uint64) error {
	return u.batch.Delete(key(canonicalPrefix, number(num)))
}

// SetHead stages the hash of the canonical head.
func (u *Update) SetHead(hash common.Hash) error {
	return u.batch.Put(headKey, hash[:])
}

// Write applies every staged change atomically.
func (u *Update) Write() error {
	if err := u.batch.Write(); err != nil {
		return fmt.Errorf("write update: %w", err)
	}

	return nil
}
