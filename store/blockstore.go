package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/mezonai/powchain/block"
	"github.com/mezonai/powchain/db"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/monitoring"
	"github.com/mezonai/powchain/pow"
	"github.com/mezonai/powchain/utils"
)

// BlockStore is the chain manager used by the command layer.
type BlockStore interface {
	Append(ctx context.Context, payload []byte, difficulty uint32) (*block.Block, error)
	Get(hash string) (*block.Block, error)
	Tip() (string, error)
	TipBlock() (*block.Block, error)
	Iterator(hash string) *ChainIterator
	Verify(ctx context.Context) (*ChainStats, error)
	MustClose()
}

var _ BlockStore = (*GenericBlockStore)(nil)

// PayloadValidator decides whether a payload may be sealed into a block.
type PayloadValidator func(payload []byte) error

// GenericBlockStore is a content-addressed block store over any DatabaseProvider:
// immutable records keyed by their hash plus one mutable tip pointer. The
// on-disk tip is the only authority; it is re-read on every operation.
type GenericBlockStore struct {
	provider  db.DatabaseProvider
	txManager *db.DBTxManager
	miner     *pow.Miner
	validator PayloadValidator

	// appendMu serializes read-tip -> mine -> commit
	appendMu sync.Mutex
	// mu is held exclusively only while a commit is written
	mu sync.RWMutex
}

type Option func(*GenericBlockStore)

func WithMiner(m *pow.Miner) Option {
	return func(s *GenericBlockStore) {
		if m != nil {
			s.miner = m
		}
	}
}

func WithPayloadValidator(v PayloadValidator) Option {
	return func(s *GenericBlockStore) {
		s.validator = v
	}
}

func newGenericBlockStore(provider db.DatabaseProvider, opts ...Option) *GenericBlockStore {
	s := &GenericBlockStore{
		provider:  provider,
		txManager: db.NewDBTxManager(provider),
		miner:     pow.NewMiner(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open attaches to an initialized chain. It fails with Uninitialized when no
// tip exists and with ChainIntegrity unless the tip reaches genesis in exactly
// tip.Height+1 valid blocks.
func Open(provider db.DatabaseProvider, opts ...Option) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, chainerrors.NewError(chainerrors.ErrCodeInvalidArgument, "provider cannot be nil")
	}
	s := newGenericBlockStore(provider, opts...)

	tip, err := s.TipBlock()
	if err == nil {
		err = s.checkReachable(tip)
	}
	if err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpOpen)
		logx.Error("STORE", "Failed to open chain on ", provider.Name(), ": ", err)
		return nil, err
	}

	monitoring.SetChainHeight(tip.Height)
	logx.Info("STORE", "Opened chain on ", provider.Name(), " at height ", tip.Height, " tip ", utils.ShortenLog(tip.Hash))
	return s, nil
}

// checkReachable walks from tip to genesis and requires exactly tip.Height+1 blocks.
func (s *GenericBlockStore) checkReachable(tip *block.Block) error {
	var walked uint64
	it := s.Iterator(tip.Hash)
	for it.Next() {
		walked++
	}
	if err := it.Err(); err != nil {
		return err
	}
	if walked != tip.Height+1 {
		return chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("walked %d blocks from tip at height %d", walked, tip.Height))
	}
	return nil
}

// Create mines the genesis block and initializes the chain. It refuses to touch
// a provider that already holds a tip.
func Create(ctx context.Context, provider db.DatabaseProvider, genesisPayload []byte, difficulty uint32, opts ...Option) (*GenericBlockStore, error) {
	if provider == nil {
		return nil, chainerrors.NewError(chainerrors.ErrCodeInvalidArgument, "provider cannot be nil")
	}
	s := newGenericBlockStore(provider, opts...)

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	exists, err := s.provider.Has([]byte(KeyTip))
	if err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpCreate)
		return nil, chainerrors.Wrap(chainerrors.ErrCodeStoreIO, err, "failed to check tip")
	}
	if exists {
		return nil, chainerrors.ErrAlreadyInitialized
	}

	if err := s.validatePayload(genesisPayload); err != nil {
		return nil, err
	}

	genesis, err := s.miner.Genesis(ctx, genesisPayload, difficulty)
	if err != nil {
		return nil, err
	}
	if err := s.commit(genesis); err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpCreate)
		return nil, err
	}

	logx.Info("STORE", "Created chain on ", provider.Name(), " genesis ", utils.ShortenLog(genesis.Hash))
	return s, nil
}

// Append mines a block on top of the current tip and commits it together with
// the tip advance in one synced batch.
func (s *GenericBlockStore) Append(ctx context.Context, payload []byte, difficulty uint32) (*block.Block, error) {
	if err := s.validatePayload(payload); err != nil {
		return nil, err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	parent, err := s.TipBlock()
	if err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpAppend)
		return nil, err
	}

	b, err := s.miner.MineNow(ctx, parent.Hash, payload, parent.Height+1, difficulty, parent.Timestamp)
	if err != nil {
		return nil, err
	}

	exists, err := s.provider.Has(blockKey(b.Hash))
	if err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpAppend)
		return nil, chainerrors.Wrap(chainerrors.ErrCodeStoreIO, err, "failed to check block existence")
	}
	if exists {
		return nil, chainerrors.NewError(chainerrors.ErrCodeChainIntegrity, fmt.Sprintf("block %s already stored", b.Hash))
	}

	if err := s.commit(b); err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpAppend)
		return nil, err
	}

	logx.Info("STORE", "Appended block at height ", b.Height, " hash ", utils.ShortenLog(b.Hash))
	return b, nil
}

// commit writes the record and moves the tip in a single atomic batch.
func (s *GenericBlockStore) commit(b *block.Block) error {
	record := block.Encode(b)

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.txManager.WithBatch(func(batch db.DatabaseBatch) error {
		batch.Put(blockKey(b.Hash), record)
		batch.Put([]byte(KeyTip), []byte(b.Hash))
		return nil
	})
	if err != nil {
		logx.Error("STORE", "Failed to commit block ", utils.ShortenLog(b.Hash), ": ", err)
		return chainerrors.Wrap(chainerrors.ErrCodeStoreIO, err, fmt.Sprintf("failed to commit block at height %d", b.Height))
	}

	monitoring.RecordBlockSizeBytes(len(record))
	monitoring.SetChainHeight(b.Height)
	return nil
}

func (s *GenericBlockStore) validatePayload(payload []byte) error {
	if s.validator == nil {
		return nil
	}
	if err := s.validator(payload); err != nil {
		return chainerrors.Wrap(chainerrors.ErrCodePayloadRejected, err, "payload rejected")
	}
	return nil
}

// Tip returns the hash stored under the tip key.
func (s *GenericBlockStore) Tip() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tipLocked()
}

func (s *GenericBlockStore) tipLocked() (string, error) {
	value, err := s.provider.Get([]byte(KeyTip))
	if err != nil {
		return "", chainerrors.Wrap(chainerrors.ErrCodeStoreIO, err, "failed to read tip")
	}
	if value == nil {
		return "", chainerrors.ErrUninitialized
	}

	tip := string(value)
	if !block.IsHashHex(tip) {
		return "", chainerrors.NewError(chainerrors.ErrCodeChainIntegrity, fmt.Sprintf("tip value %q is not a block hash", tip))
	}
	return tip, nil
}

// TipBlock resolves the tip pointer to its block. A tip without a record is a
// ChainIntegrity failure.
func (s *GenericBlockStore) TipBlock() (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tip, err := s.tipLocked()
	if err != nil {
		return nil, err
	}
	b, err := s.getLocked(tip)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, chainerrors.Newf(chainerrors.ErrCodeChainIntegrity, chainerrors.ErrMsgTipMissing, tip)
	}
	return b, nil
}

// Get retrieves a block by hash. A missing block returns nil, nil. A stored
// block whose proof of work does not check out is a ChainIntegrity error.
func (s *GenericBlockStore) Get(hash string) (*block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(hash)
}

func (s *GenericBlockStore) getLocked(hash string) (*block.Block, error) {
	value, err := s.provider.Get(blockKey(hash))
	if err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpGet)
		return nil, chainerrors.Wrap(chainerrors.ErrCodeStoreIO, err, fmt.Sprintf("failed to read block %s", hash))
	}
	if value == nil {
		return nil, nil
	}

	b, err := block.Decode(value)
	if err != nil {
		logx.Error("STORE", "Failed to decode block ", utils.ShortenLog(hash), ": ", err)
		return nil, err
	}
	if b.Hash != hash {
		return nil, chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("record under %s carries hash %s", hash, b.Hash))
	}
	if err := pow.Check(b, b.Difficulty); err != nil {
		logx.Error("STORE", "Stored block ", utils.ShortenLog(hash), " failed proof-of-work check: ", err)
		return nil, err
	}
	return b, nil
}

// MustClose closes the underlying provider, logging any error.
func (s *GenericBlockStore) MustClose() {
	if err := s.provider.Close(); err != nil {
		logx.Error("STORE", "Failed to close provider: ", err)
	}
}
