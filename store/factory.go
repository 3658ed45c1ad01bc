package store

import (
	"fmt"
	"os"

	"github.com/mezonai/powchain/db"
)

// StoreType represents the embedded database backend
type StoreType string

const (
	// LevelDBStoreType uses the LevelDB implementation
	LevelDBStoreType StoreType = "leveldb"

	// BoltStoreType uses the bbolt implementation
	BoltStoreType StoreType = "bolt"

	// PebbleStoreType uses the Pebble implementation
	PebbleStoreType StoreType = "pebble"

	// BadgerStoreType uses the Badger implementation
	BadgerStoreType StoreType = "badger"

	// MemoryStoreType keeps everything in memory, for tests and dry runs
	MemoryStoreType StoreType = "memory"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Type specifies which store implementation to use
	Type StoreType `json:"type" yaml:"type"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	if sc.Type == "" {
		return fmt.Errorf("store type cannot be empty")
	}

	switch sc.Type {
	case MemoryStoreType:
		return nil
	case LevelDBStoreType, BoltStoreType, PebbleStoreType, BadgerStoreType:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("unsupported store type: %s", sc.Type)
	}
}

// CreateProvider creates a database provider based on the configuration
func CreateProvider(config *StoreConfig) (db.IterableProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if config.Type != MemoryStoreType {
		if err := os.MkdirAll(config.Directory, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	switch config.Type {
	case LevelDBStoreType:
		return db.NewLevelDBProvider(config.Directory)

	case BoltStoreType:
		return db.NewBoltProvider(config.Directory)

	case PebbleStoreType:
		return db.NewPebbleProvider(config.Directory)

	case BadgerStoreType:
		return db.NewBadgerProvider(config.Directory)

	case MemoryStoreType:
		return db.NewMemoryProvider()

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
