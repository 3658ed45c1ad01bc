package db

// DatabaseProvider abstracts the low-level database operations
// This interface allows BlockStore to work with different embedded backends
// without knowing the specific implementation details.
// Every write that returns nil must already be durable on disk.
type DatabaseProvider interface {
	// Get retrieves a value by key, returning nil, nil when the key is absent
	Get(key []byte) ([]byte, error)

	// Put stores a key-value pair
	Put(key, value []byte) error

	// Delete removes a key-value pair
	Delete(key []byte) error

	// Has checks if a key exists
	Has(key []byte) (bool, error)

	// Close closes the database connection
	Close() error

	// Batch returns a new batch for atomic operations
	Batch() DatabaseBatch

	// Name identifies the backend in logs
	Name() string
}

// IterableProvider extends DatabaseProvider with iteration capabilities
type IterableProvider interface {
	DatabaseProvider

	// IteratePrefix iterates over all key-value pairs with the given prefix in key order
	// The callback function should return false to stop iteration
	IteratePrefix(prefix []byte, callback func(key, value []byte) bool) error
}

// DatabaseBatch provides atomic batch operations
type DatabaseBatch interface {
	// Put adds a key-value pair to the batch
	Put(key, value []byte)

	// Delete adds a deletion to the batch
	Delete(key []byte)

	// Write commits all operations in the batch atomically and syncs them
	Write() error

	// Reset clears the batch
	Reset()

	// Close releases batch resources
	Close()
}

type batchOp struct {
	key    []byte
	value  []byte
	delete bool
}

// opBatch buffers operations for backends whose atomic unit is a transaction
// rather than a native write batch.
type opBatch struct {
	ops    []batchOp
	commit func(ops []batchOp) error
}

func (b *opBatch) Put(key, value []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), value: cloneBytes(value)})
}

func (b *opBatch) Delete(key []byte) {
	b.ops = append(b.ops, batchOp{key: cloneBytes(key), delete: true})
}

func (b *opBatch) Write() error {
	return b.commit(b.ops)
}

func (b *opBatch) Reset() {
	b.ops = b.ops[:0]
}

func (b *opBatch) Close() {
	b.ops = nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}
