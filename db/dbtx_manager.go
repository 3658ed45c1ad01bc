package db

import (
	"github.com/pkg/errors"
)

// DBTxManager groups writes into one atomic, synced batch on the shared provider.
type DBTxManager struct {
	provider DatabaseProvider
}

// NewDBTxManager creates a new transaction manager with the given provider
func NewDBTxManager(provider DatabaseProvider) *DBTxManager {
	return &DBTxManager{provider: provider}
}

// WithBatch executes the given function within a batch context.
// If the function returns nil, the batch is committed; otherwise, it's discarded.
// Nothing is visible to readers unless Write succeeds.
func (tm *DBTxManager) WithBatch(fn func(batch DatabaseBatch) error) error {
	batch := tm.provider.Batch()
	defer batch.Close()

	if err := fn(batch); err != nil {
		batch.Reset()
		return errors.Wrap(err, "transaction failed")
	}

	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "commit failed")
	}

	return nil
}
