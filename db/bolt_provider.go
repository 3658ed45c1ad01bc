package db

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

const (
	boltFileName = "chain.db"
	boltTimeout  = time.Second
)

var boltBucket = []byte("chain")

// BoltProvider implements DatabaseProvider for bbolt. All keys live in a single bucket.
type BoltProvider struct {
	once sync.Once
	db   *bolt.DB
}

// NewBoltProvider opens (or creates) directory/chain.db
func NewBoltProvider(directory string) (IterableProvider, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create bolt directory %s", directory)
	}

	path := filepath.Join(directory, boltFileName)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open bolt at %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create bolt bucket")
	}

	return &BoltProvider{db: db}, nil
}

func (p *BoltProvider) Name() string {
	return "bolt"
}

// Get retrieves a value by key
func (p *BoltProvider) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.View(func(tx *bolt.Tx) error {
		// values returned by bolt are only valid inside the transaction
		value = cloneBytes(tx.Bucket(boltBucket).Get(key))
		return nil
	})
	return value, errors.Wrap(err, "bolt get")
}

// Put stores a key-value pair
func (p *BoltProvider) Put(key, value []byte) error {
	return errors.Wrap(p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	}), "bolt put")
}

// Delete removes a key-value pair
func (p *BoltProvider) Delete(key []byte) error {
	return errors.Wrap(p.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Delete(key)
	}), "bolt delete")
}

// Has checks if a key exists
func (p *BoltProvider) Has(key []byte) (bool, error) {
	var found bool
	err := p.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return found, errors.Wrap(err, "bolt has")
}

// Close closes the database connection
func (p *BoltProvider) Close() error {
	var err error
	p.once.Do(func() {
		err = p.db.Close()
	})
	return err
}

// Batch returns a batch committed as one bolt read-write transaction
func (p *BoltProvider) Batch() DatabaseBatch {
	return &opBatch{commit: p.commit}
}

func (p *BoltProvider) commit(ops []batchOp) error {
	return errors.Wrap(p.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, op := range ops {
			var err error
			if op.delete {
				err = bucket.Delete(op.key)
			} else {
				err = bucket.Put(op.key, op.value)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}), "bolt batch write")
}

// IteratePrefix iterates over all key-value pairs with the given prefix
func (p *BoltProvider) IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error {
	return errors.Wrap(p.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if !callback(k, v) {
				break
			}
		}
		return nil
	}), "bolt iterate")
}
