package db

import (
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

// PebbleProvider implements DatabaseProvider for Pebble
type PebbleProvider struct {
	once sync.Once
	db   *pebble.DB
}

// NewPebbleProvider creates a new Pebble provider
func NewPebbleProvider(directory string) (IterableProvider, error) {
	db, err := pebble.Open(directory, &pebble.Options{
		MaxOpenFiles: 500,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Pebble at %s", directory)
	}
	return &PebbleProvider{db: db}, nil
}

func (p *PebbleProvider) Name() string {
	return "pebble"
}

// Get retrieves a value by key
func (p *PebbleProvider) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "pebble get")
	}
	defer closer.Close()
	return cloneBytes(v), nil
}

// Put stores a key-value pair
func (p *PebbleProvider) Put(key, value []byte) error {
	return errors.Wrap(p.db.Set(key, value, pebble.Sync), "pebble put")
}

// Delete removes a key-value pair
func (p *PebbleProvider) Delete(key []byte) error {
	return errors.Wrap(p.db.Delete(key, pebble.Sync), "pebble delete")
}

// Has checks if a key exists
func (p *PebbleProvider) Has(key []byte) (bool, error) {
	_, closer, err := p.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, "pebble has")
	}
	closer.Close()
	return true, nil
}

// Close closes the database connection
func (p *PebbleProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a new batch for atomic operations
func (p *PebbleProvider) Batch() DatabaseBatch {
	return &PebbleBatch{batch: p.db.NewBatch()}
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *PebbleProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return errors.Wrap(err, "pebble iterate")
	}
	defer iter.Close()

	for ok := iter.First(); ok; ok = iter.Next() {
		if !callback(iter.Key(), iter.Value()) {
			break
		}
	}
	return errors.Wrap(iter.Error(), "pebble iterate")
}

// prefixUpperBound returns the smallest key greater than every key with prefix,
// or nil when no such bound exists.
func prefixUpperBound(prefix []byte) []byte {
	end := cloneBytes(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// PebbleBatch implements DatabaseBatch for Pebble
type PebbleBatch struct {
	batch *pebble.Batch
	err   error
}

func (b *PebbleBatch) Put(key, value []byte) {
	if err := b.batch.Set(key, value, nil); err != nil && b.err == nil {
		b.err = err
	}
}

func (b *PebbleBatch) Delete(key []byte) {
	if err := b.batch.Delete(key, nil); err != nil && b.err == nil {
		b.err = err
	}
}

func (b *PebbleBatch) Write() error {
	if b.err != nil {
		return errors.Wrap(b.err, "pebble batch")
	}
	return errors.Wrap(b.batch.Commit(pebble.Sync), "pebble batch write")
}

func (b *PebbleBatch) Reset() {
	b.batch.Reset()
	b.err = nil
}

func (b *PebbleBatch) Close() {
	_ = b.batch.Close()
}
