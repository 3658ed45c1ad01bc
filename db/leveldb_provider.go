package db

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var syncWrite = &opt.WriteOptions{Sync: true}

// LevelDBProvider implements DatabaseProvider for LevelDB
type LevelDBProvider struct {
	once sync.Once
	db   *leveldb.DB
	name string
}

// NewLevelDBProvider creates a new LevelDB provider
func NewLevelDBProvider(directory string) (IterableProvider, error) {
	db, err := leveldb.OpenFile(directory, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open LevelDB at %s", directory)
	}

	return &LevelDBProvider{db: db, name: "leveldb"}, nil
}

// NewMemoryProvider creates a LevelDB provider backed by memory, for tests and dry runs
func NewMemoryProvider() (IterableProvider, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open in-memory LevelDB")
	}

	return &LevelDBProvider{db: db, name: "memory"}, nil
}

func (p *LevelDBProvider) Name() string {
	return p.name
}

// Get retrieves a value by key
func (p *LevelDBProvider) Get(key []byte) ([]byte, error) {
	value, err := p.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil // Return nil for not found, consistent with interface
		}
		return nil, errors.Wrap(err, "leveldb get")
	}
	return value, nil
}

// Put stores a key-value pair
func (p *LevelDBProvider) Put(key, value []byte) error {
	return errors.Wrap(p.db.Put(key, value, syncWrite), "leveldb put")
}

// Delete removes a key-value pair
func (p *LevelDBProvider) Delete(key []byte) error {
	return errors.Wrap(p.db.Delete(key, syncWrite), "leveldb delete")
}

// Has checks if a key exists
func (p *LevelDBProvider) Has(key []byte) (bool, error) {
	ok, err := p.db.Has(key, nil)
	return ok, errors.Wrap(err, "leveldb has")
}

// Close closes the database connection
func (p *LevelDBProvider) Close() error {
	// avoid double close when being used for multiple store
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a new batch for atomic operations
func (p *LevelDBProvider) Batch() DatabaseBatch {
	return &LevelDBBatch{
		batch: new(leveldb.Batch),
		db:    p.db,
	}
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *LevelDBProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter := p.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	for iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}

	return errors.Wrap(iter.Error(), "leveldb iterate")
}

// LevelDBBatch implements DatabaseBatch for LevelDB
type LevelDBBatch struct {
	batch *leveldb.Batch
	db    *leveldb.DB
}

// Put adds a key-value pair to the batch
func (b *LevelDBBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

// Delete adds a deletion to the batch
func (b *LevelDBBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

// Write commits all operations in the batch
func (b *LevelDBBatch) Write() error {
	return errors.Wrap(b.db.Write(b.batch, syncWrite), "leveldb batch write")
}

// Reset clears the batch
func (b *LevelDBBatch) Reset() {
	b.batch.Reset()
}

// Close releases batch resources
func (b *LevelDBBatch) Close() {
	// LevelDB batch doesn't need explicit closing
}
