package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/powchain/block"
	"github.com/mezonai/powchain/db"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/mezonai/powchain/pow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDifficulty = 1

// ----------------- Helpers -----------------

func testMiner() *pow.Miner {
	return pow.NewMiner(pow.WithClock(&pow.FixedClock{At: time.UnixMilli(1700000000000), Step: time.Millisecond}))
}

func newMemoryProvider(t *testing.T) db.IterableProvider {
	t.Helper()
	p, err := db.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func createChain(t *testing.T, p db.DatabaseProvider, opts ...Option) *GenericBlockStore {
	t.Helper()
	opts = append([]Option{WithMiner(testMiner())}, opts...)
	s, err := Create(context.Background(), p, []byte("Reward to 'addr1'"), testDifficulty, opts...)
	require.NoError(t, err)
	return s
}

func appendN(t *testing.T, s *GenericBlockStore, n int) []*block.Block {
	t.Helper()
	var out []*block.Block
	for i := 0; i < n; i++ {
		b, err := s.Append(context.Background(), []byte(fmt.Sprintf("data%d", i+1)), testDifficulty)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

// failingProvider fails every batch commit.
type failingProvider struct {
	db.IterableProvider
	err error
}

func (p *failingProvider) Batch() db.DatabaseBatch {
	return &failingBatch{DatabaseBatch: p.IterableProvider.Batch(), err: p.err}
}

type failingBatch struct {
	db.DatabaseBatch
	err error
}

func (b *failingBatch) Write() error {
	return b.err
}

// ----------------- Tests -----------------

func TestChainScenario(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	genesis, err := s.TipBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), genesis.Height)
	assert.Equal(t, "", genesis.PrevHash)
	assert.Equal(t, []byte("Reward to 'addr1'"), genesis.Payload)

	b1, err := s.Append(context.Background(), []byte("data1"), testDifficulty)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b1.Height)
	assert.Equal(t, genesis.Hash, b1.PrevHash)

	b2, err := s.Append(context.Background(), []byte("data2"), testDifficulty)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), b2.Height)

	tip, err := s.Tip()
	require.NoError(t, err)
	assert.Equal(t, b2.Hash, tip)

	blocks, err := s.Iterator(tip).Collect()
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	for i, want := range []uint64{2, 1, 0} {
		assert.Equal(t, want, blocks[i].Height)
	}
	assert.Equal(t, []byte("data2"), blocks[0].Payload)
	assert.Equal(t, []byte("data1"), blocks[1].Payload)
	assert.Equal(t, "", blocks[2].PrevHash)
}

func TestAppendLinksToPreviousTip(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	for i := 0; i < 5; i++ {
		tipBefore, err := s.Tip()
		require.NoError(t, err)
		parent, err := s.Get(tipBefore)
		require.NoError(t, err)
		require.NotNil(t, parent)

		b, err := s.Append(context.Background(), []byte(fmt.Sprintf("p%d", i)), testDifficulty)
		require.NoError(t, err)

		assert.Equal(t, tipBefore, b.PrevHash)
		assert.Equal(t, parent.Height+1, b.Height)
		assert.GreaterOrEqual(t, b.Timestamp, parent.Timestamp)
		assert.True(t, pow.Validate(b, testDifficulty))

		stored, err := s.Get(b.Hash)
		require.NoError(t, err)
		assert.Equal(t, b, stored)
	}
}

func TestAppendWithPerCallDifficulty(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	b, err := s.Append(context.Background(), []byte("harder"), 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), b.Difficulty)
	assert.True(t, block.MeetsDifficulty(b.Hash, 2))

	stats, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Blocks)
}

func TestOpenUninitialized(t *testing.T) {
	_, err := Open(newMemoryProvider(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrUninitialized))
}

func TestCreateRefusesExistingChain(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	tip, err := s.Tip()
	require.NoError(t, err)

	_, err = Create(context.Background(), p, []byte("other"), testDifficulty, WithMiner(testMiner()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrAlreadyInitialized))

	after, err := s.Tip()
	require.NoError(t, err)
	assert.Equal(t, tip, after)
}

func TestOpenResumesExistingChain(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	appended := appendN(t, s, 2)

	reopened, err := Open(p, WithMiner(testMiner()))
	require.NoError(t, err)
	tip, err := reopened.TipBlock()
	require.NoError(t, err)
	assert.Equal(t, appended[1], tip)
}

func TestOpenDetectsMissingTipRecord(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	appendN(t, s, 2)

	tip, err := s.Tip()
	require.NoError(t, err)
	require.NoError(t, p.Delete([]byte(tip)))

	_, err = Open(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))

	// the damaged chain is left as found
	raw, err := p.Get([]byte(KeyTip))
	require.NoError(t, err)
	assert.Equal(t, tip, string(raw))
}

func TestOpenDetectsGarbageTip(t *testing.T) {
	p := newMemoryProvider(t)
	require.NoError(t, p.Put([]byte(KeyTip), []byte("not-a-hash")))

	_, err := Open(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestOpenDetectsCorruptTipRecord(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	tip, err := s.Tip()
	require.NoError(t, err)

	require.NoError(t, p.Put([]byte(tip), []byte{block.RecordVersion, 0xff}))

	_, err = Open(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrSerialization))
}

func TestIteratorSurfacesBrokenLink(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	blocks := appendN(t, s, 3)

	require.NoError(t, p.Delete([]byte(blocks[0].Hash)))

	tip, err := s.Tip()
	require.NoError(t, err)
	it := s.Iterator(tip)

	var heights []uint64
	for it.Next() {
		heights = append(heights, it.Block().Height)
	}
	assert.Equal(t, []uint64{3, 2}, heights)
	require.Error(t, it.Err())
	assert.True(t, errors.Is(it.Err(), chainerrors.ErrChainIntegrity))
	assert.False(t, it.Next(), "iterator is not restartable")

	_, err = s.Verify(context.Background())
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestIteratorRejectsHeightGap(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	genesis, err := s.TipBlock()
	require.NoError(t, err)

	// a sealed block claiming height 5 directly on top of genesis
	forged, err := testMiner().Mine(context.Background(), genesis.Hash, []byte("x"), 5, testDifficulty, genesis.Timestamp)
	require.NoError(t, err)
	require.NoError(t, p.Put([]byte(forged.Hash), block.Encode(forged)))

	_, err = s.Iterator(forged.Hash).Collect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestIteratorFromEmptyHash(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	blocks, err := s.Iterator("").Collect()
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestIteratorFromUnknownHash(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	_, err := s.Iterator(block.HashHex("x", nil, 0, 0, 0)).Collect()
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestGetMissingBlock(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	b, err := s.Get(block.HashHex("nope", nil, 0, 0, 0))
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestGetRejectsMismatchedRecord(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	genesis, err := s.TipBlock()
	require.NoError(t, err)

	other := block.HashHex("other", nil, 0, 0, 0)
	require.NoError(t, p.Put([]byte(other), block.Encode(genesis)))

	_, err = s.Get(other)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestFailedCommitLeavesChainUnchanged(t *testing.T) {
	mem := newMemoryProvider(t)
	s := createChain(t, mem)
	tipBefore, err := s.Tip()
	require.NoError(t, err)

	flaky := &failingProvider{IterableProvider: mem, err: errors.New("fsync: input/output error")}
	broken, err := Open(flaky, WithMiner(testMiner()))
	require.NoError(t, err)

	_, err = broken.Append(context.Background(), []byte("lost"), testDifficulty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrStoreIO))

	tipAfter, err := s.Tip()
	require.NoError(t, err)
	assert.Equal(t, tipBefore, tipAfter)

	stats, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), stats.Orphans)
	assert.Equal(t, uint64(1), stats.Records)
}

func TestFailedCreateLeavesStoreUninitialized(t *testing.T) {
	mem := newMemoryProvider(t)
	flaky := &failingProvider{IterableProvider: mem, err: errors.New("disk full")}

	_, err := Create(context.Background(), flaky, nil, testDifficulty, WithMiner(testMiner()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrStoreIO))

	_, err = Open(mem)
	assert.True(t, errors.Is(err, chainerrors.ErrUninitialized))
}

func TestPayloadValidator(t *testing.T) {
	reject := errors.New("payload too large")
	validator := func(payload []byte) error {
		if len(payload) > 8 {
			return reject
		}
		return nil
	}
	s := createChain(t, newMemoryProvider(t), WithPayloadValidator(validator))

	_, err := s.Append(context.Background(), []byte("this is way too long"), testDifficulty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrPayloadRejected))
	assert.True(t, errors.Is(err, reject))

	b, err := s.Append(context.Background(), []byte("ok"), testDifficulty)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), b.Height)
}

func TestCanceledAppendKeepsTip(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))
	tipBefore, err := s.Tip()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Append(ctx, []byte("never"), testDifficulty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrCanceled))

	tipAfter, err := s.Tip()
	require.NoError(t, err)
	assert.Equal(t, tipBefore, tipAfter)
}

func TestExhaustedAppendKeepsTip(t *testing.T) {
	p := newMemoryProvider(t)
	createChain(t, p)
	s, err := Open(p, WithMiner(pow.NewMiner(pow.WithMaxNonce(10))))
	require.NoError(t, err)

	_, err = s.Append(context.Background(), []byte("hard"), 12)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrMiningExhausted))

	tip, err := s.TipBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), tip.Height)
}

func TestConcurrentAppendsDoNotFork(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Append(context.Background(), []byte(fmt.Sprintf("w%d", i)), testDifficulty)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(workers), stats.Height)
	assert.Equal(t, uint64(workers+1), stats.Blocks)
	assert.Equal(t, uint64(0), stats.Orphans)
}

func TestConcurrentReadersDuringAppends(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	readErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ctx.Err() == nil {
			tip, err := s.Tip()
			if err != nil {
				readErr <- err
				return
			}
			blocks, err := s.Iterator(tip).Collect()
			if err != nil {
				readErr <- err
				return
			}
			if uint64(len(blocks)) != blocks[0].Height+1 {
				readErr <- fmt.Errorf("walked %d blocks from height %d", len(blocks), blocks[0].Height)
				return
			}
		}
	}()

	appendN(t, s, 10)
	cancel()
	wg.Wait()
	close(readErr)
	require.NoError(t, <-readErr)
}

// forge rewrites the record of b with a different payload under its original hash.
func forge(t *testing.T, p db.DatabaseProvider, b *block.Block) {
	t.Helper()
	forged := *b
	forged.Payload = []byte("forged")
	require.NoError(t, p.Put([]byte(b.Hash), block.Encode(&forged)))
}

func TestOpenDetectsBrokenLinkBelowTip(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	blocks := appendN(t, s, 3)

	require.NoError(t, p.Delete([]byte(blocks[0].Hash)))

	reopened, err := Open(p, WithMiner(testMiner()))
	require.Error(t, err)
	assert.Nil(t, reopened)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))

	// nothing was mined on top of the broken chain
	raw, err := p.Get([]byte(KeyTip))
	require.NoError(t, err)
	assert.Equal(t, blocks[2].Hash, string(raw))
}

func TestOpenDetectsTamperedTipRecord(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	blocks := appendN(t, s, 2)

	forge(t, p, blocks[1])

	_, err := Open(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestOpenDetectsTamperedRecordBelowTip(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	blocks := appendN(t, s, 3)

	forge(t, p, blocks[0])

	_, err := Open(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestGetRejectsTamperedRecord(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	b := appendN(t, s, 1)[0]

	forge(t, p, b)

	got, err := s.Get(b.Hash)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestIteratorStopsAtTamperedRecord(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	blocks := appendN(t, s, 2)

	forge(t, p, blocks[0])

	it := s.Iterator(blocks[1].Hash)
	var payloads []string
	for it.Next() {
		payloads = append(payloads, string(it.Block().Payload))
	}
	assert.Equal(t, []string{"data2"}, payloads)
	require.Error(t, it.Err())
	assert.True(t, errors.Is(it.Err(), chainerrors.ErrChainIntegrity))
}

func TestAppendRefusesTamperedTip(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	tip := appendN(t, s, 2)[1]

	forge(t, p, tip)

	_, err := s.Append(context.Background(), []byte("on top of forgery"), testDifficulty)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))

	raw, err := p.Get([]byte(KeyTip))
	require.NoError(t, err)
	assert.Equal(t, tip.Hash, string(raw))
}
