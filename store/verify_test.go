package store

import (
	"context"
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/mezonai/powchain/block"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockWork(t *testing.T) {
	tests := []struct {
		difficulty uint32
		want       *uint256.Int
	}{
		{0, uint256.NewInt(1)},
		{1, uint256.NewInt(16)},
		{4, uint256.NewInt(65536)},
		{16, new(uint256.Int).Lsh(uint256.NewInt(1), 64)},
		{63, new(uint256.Int).Lsh(uint256.NewInt(1), 252)},
		{64, new(uint256.Int).SetAllOne()},
		{200, new(uint256.Int).SetAllOne()},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BlockWork(tt.difficulty), "difficulty %d", tt.difficulty)
	}
}

func TestVerifyHealthyChain(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))
	blocks := appendN(t, s, 2)

	stats, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blocks[1].Hash, stats.TipHash)
	assert.Equal(t, uint64(2), stats.Height)
	assert.Equal(t, uint64(3), stats.Blocks)
	assert.Equal(t, uint64(3), stats.Records)
	assert.Equal(t, uint64(0), stats.Orphans)
	assert.Equal(t, uint256.NewInt(3*16), stats.CumulativeWork)
}

func TestVerifyCountsOrphans(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	genesis, err := s.TipBlock()
	require.NoError(t, err)

	// a sealed sibling that never became tip
	orphan, err := testMiner().Mine(context.Background(), genesis.Hash, []byte("fork"), 1, testDifficulty, genesis.Timestamp+5)
	require.NoError(t, err)
	require.NoError(t, p.Put([]byte(orphan.Hash), block.Encode(orphan)))

	appendN(t, s, 1)

	stats, err := s.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), stats.Blocks)
	assert.Equal(t, uint64(3), stats.Records)
	assert.Equal(t, uint64(1), stats.Orphans)
}

func TestVerifyDetectsTamperedPayload(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	blocks := appendN(t, s, 2)

	tampered := *blocks[0]
	tampered.Payload = []byte("rewritten history")
	require.NoError(t, p.Put([]byte(tampered.Hash), block.Encode(&tampered)))

	_, err := s.Verify(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestVerifyDetectsTimestampRegression(t *testing.T) {
	p := newMemoryProvider(t)
	s := createChain(t, p)
	genesis, err := s.TipBlock()
	require.NoError(t, err)
	require.Greater(t, genesis.Timestamp, uint64(0))

	child, err := testMiner().Mine(context.Background(), genesis.Hash, []byte("early"), 1, testDifficulty, genesis.Timestamp-1)
	require.NoError(t, err)
	require.NoError(t, p.Put([]byte(child.Hash), block.Encode(child)))
	require.NoError(t, p.Put([]byte(KeyTip), []byte(child.Hash)))

	_, err = s.Verify(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrChainIntegrity))
}

func TestVerifyHonorsCancellation(t *testing.T) {
	s := createChain(t, newMemoryProvider(t))
	appendN(t, s, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Verify(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chainerrors.ErrCanceled))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestVerifyUninitialized(t *testing.T) {
	p := newMemoryProvider(t)
	s := newGenericBlockStore(p)

	_, err := s.Verify(context.Background())
	assert.True(t, errors.Is(err, chainerrors.ErrUninitialized))
}
