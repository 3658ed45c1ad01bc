package db

import (
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// BadgerProvider implements DatabaseProvider for Badger
type BadgerProvider struct {
	once sync.Once
	db   *badger.DB
}

// NewBadgerProvider creates a new Badger provider with synchronous writes
func NewBadgerProvider(directory string) (IterableProvider, error) {
	opts := badger.DefaultOptions(directory).
		WithLogger(nil).
		WithSyncWrites(true)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Badger at %s", directory)
	}
	return &BadgerProvider{db: db}, nil
}

func (p *BadgerProvider) Name() string {
	return "badger"
}

// Get retrieves a value by key
func (p *BadgerProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return value, errors.Wrap(err, "badger get")
}

// Put stores a key-value pair
func (p *BadgerProvider) Put(key, value []byte) error {
	return errors.Wrap(p.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}), "badger put")
}

// Delete removes a key-value pair
func (p *BadgerProvider) Delete(key []byte) error {
	return errors.Wrap(p.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}), "badger delete")
}

// Has checks if a key exists
func (p *BadgerProvider) Has(key []byte) (bool, error) {
	err := p.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "badger has")
	}
	return true, nil
}

// Close closes the database connection
func (p *BadgerProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a batch committed as one Badger transaction
func (p *BadgerProvider) Batch() DatabaseBatch {
	return &opBatch{commit: p.commit}
}

func (p *BadgerProvider) commit(ops []batchOp) error {
	return errors.Wrap(p.db.Update(func(txn *badger.Txn) error {
		for _, op := range ops {
			var err error
			if op.delete {
				err = txn.Delete(op.key)
			} else {
				err = txn.Set(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}), "badger batch write")
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *BadgerProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	return errors.Wrap(p.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if !callback(item.KeyCopy(nil), value) {
				break
			}
		}
		return nil
	}), "badger iterate")
}
