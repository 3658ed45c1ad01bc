package store

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/mezonai/powchain/block"
	"github.com/mezonai/powchain/db"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/monitoring"
	"github.com/mezonai/powchain/pow"
)

// ChainStats summarizes a verified chain.
type ChainStats struct {
	TipHash        string       `json:"tip_hash"`
	Height         uint64       `json:"height"`
	Blocks         uint64       `json:"blocks"`
	CumulativeWork *uint256.Int `json:"cumulative_work"`
	// Records and Orphans are only filled when the provider can iterate.
	Records uint64 `json:"records"`
	Orphans uint64 `json:"orphans"`
}

// BlockWork is the expected number of hashes to seal a block: 16^difficulty.
// It saturates at the uint256 maximum.
func BlockWork(difficulty uint32) *uint256.Int {
	if difficulty >= 64 {
		return new(uint256.Int).SetAllOne()
	}
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(difficulty)*4)
}

// Verify walks the chain from the tip to genesis and checks every link, height,
// timestamp and proof of work.
func (s *GenericBlockStore) Verify(ctx context.Context) (*ChainStats, error) {
	stats, err := s.verify(ctx)
	if err != nil {
		monitoring.RecordStoreError(monitoring.StoreOpVerify)
		logx.Error("STORE", "Chain verification failed: ", err)
		return nil, err
	}
	return stats, nil
}

func (s *GenericBlockStore) verify(ctx context.Context) (*ChainStats, error) {
	tip, err := s.TipBlock()
	if err != nil {
		return nil, err
	}

	stats := &ChainStats{
		TipHash:        tip.Hash,
		Height:         tip.Height,
		CumulativeWork: new(uint256.Int),
	}

	var child *block.Block
	it := s.Iterator(tip.Hash)
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, chainerrors.Wrap(chainerrors.ErrCodeCanceled, err, fmt.Sprintf(chainerrors.ErrMsgCanceled, "verification", stats.Blocks))
		}
		b := it.Block()
		if err := pow.Check(b, b.Difficulty); err != nil {
			return nil, err
		}
		if child != nil && child.Timestamp < b.Timestamp {
			return nil, chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
				fmt.Sprintf("block %d timestamp %d precedes parent timestamp %d", child.Height, child.Timestamp, b.Timestamp))
		}

		work, overflow := new(uint256.Int).AddOverflow(stats.CumulativeWork, BlockWork(b.Difficulty))
		if overflow {
			work.SetAllOne()
		}
		stats.CumulativeWork = work
		stats.Blocks++
		child = b
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	if stats.Blocks != tip.Height+1 {
		return nil, chainerrors.NewError(chainerrors.ErrCodeChainIntegrity,
			fmt.Sprintf("walked %d blocks from tip at height %d", stats.Blocks, tip.Height))
	}

	if iterable, ok := s.provider.(db.IterableProvider); ok {
		if err := s.countRecords(iterable, stats); err != nil {
			return nil, err
		}
	}

	logx.Info("STORE", "Verified ", stats.Blocks, " blocks, cumulative work ", stats.CumulativeWork.Dec())
	return stats, nil
}

func (s *GenericBlockStore) countRecords(p db.IterableProvider, stats *ChainStats) error {
	err := p.IteratePrefix(nil, func(key, _ []byte) bool {
		if block.IsHashHex(string(key)) {
			stats.Records++
		}
		return true
	})
	if err != nil {
		return chainerrors.Wrap(chainerrors.ErrCodeStoreIO, err, "failed to scan records")
	}
	if stats.Records > stats.Blocks {
		stats.Orphans = stats.Records - stats.Blocks
		logx.Warn("STORE", stats.Orphans, " stored blocks are not reachable from the tip")
	}
	return nil
}
