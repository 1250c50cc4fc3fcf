// Package leveldb implements the ability to read and write records to disk
// using LevelDB.
package leveldb

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/frontier/foundation/blockchain/storage"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"go.uber.org/zap"
)

// LevelDB is a wrapper for a leveldb database with concurrent access. This
// implements the storage.KeyValue interface.
type LevelDB struct {
	path string
	db   *leveldb.DB
	log  *zap.SugaredLogger
}

// New opens or creates the database at the path, recovering it when the
// files are corrupted.
func New(path string, cache int, handles int, log *zap.SugaredLogger) (*LevelDB, error) {
	if cache < 16 {
		cache = 16
	}
	if handles < 16 {
		handles = 16
	}

	log.Infow("storage", "status", "opening leveldb", "path", path, "cache", cache, "handles", handles)

	db, err := leveldb.OpenFile(path, &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	})

	var corrupted *lerrors.ErrCorrupted
	if errors.As(err, &corrupted) {
		log.Infow("storage", "status", "recovering corrupted leveldb", "path", path)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &LevelDB{path: path, db: db, log: log}, nil
}

// NewMemory returns a database kept in memory, used by tests.
func NewMemory() *LevelDB {
	db, err := leveldb.Open(lstorage.NewMemStorage(), nil)
	if err != nil {
		panic("can't open in-memory leveldb: " + err.Error())
	}

	return &LevelDB{path: "memory", db: db, log: zap.NewNop().Sugar()}
}

// Path returns the path to the database directory.
func (ldb *LevelDB) Path() string {
	return ldb.path
}

// Get returns the value stored under the key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	data, err := ldb.db.Get(key, nil)
	if err != nil {
		return nil, wrap("get value", err)
	}

	return data, nil
}

// Has reports whether the key exists.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	has, err := ldb.db.Has(key, nil)
	if err != nil {
		return false, wrap("check value", err)
	}

	return has, nil
}

// Put stores the value under the key.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	if err := ldb.db.Put(key, value, nil); err != nil {
		return wrap("put value", err)
	}

	return nil
}

// Delete removes the key.
func (ldb *LevelDB) Delete(key []byte) error {
	if err := ldb.db.Delete(key, nil); err != nil {
		return wrap("delete value", err)
	}

	return nil
}

// NewBatch returns a batch written atomically to the database.
func (ldb *LevelDB) NewBatch() storage.Batch {
	return &batch{db: ldb.db, b: new(leveldb.Batch)}
}

// Close flushes writes and closes the database.
func (ldb *LevelDB) Close() error {
	if err := ldb.db.Close(); err != nil {
		ldb.log.Errorw("storage", "status", "failed to close leveldb", "path", ldb.path, "ERROR", err)
		return err
	}

	ldb.log.Infow("storage", "status", "leveldb closed", "path", ldb.path)
	return nil
}

// =============================================================================

type batch struct {
	db *leveldb.DB
	b  *leveldb.Batch
}

// Put queues a write.
func (b *batch) Put(key []byte, value []byte) error {
	b.b.Put(key, value)
	return nil
}

// Delete queues a delete.
func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	return nil
}

// Write applies the queued operations atomically.
func (b *batch) Write() error {
	if err := b.db.Write(b.b, nil); err != nil {
		return wrap("write batch", err)
	}

	b.b.Reset()
	return nil
}

// wrap translates the leveldb not found error into storage.ErrNotFound.
func wrap(op string, err error) error {
	if errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return fmt.Errorf("%s: %w", op, err)
}
