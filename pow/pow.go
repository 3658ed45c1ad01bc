package pow

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/mezonai/powchain/block"
	chainerrors "github.com/mezonai/powchain/errors"
	"github.com/mezonai/powchain/logx"
	"github.com/mezonai/powchain/monitoring"
	"github.com/mezonai/powchain/utils"
)

const (
	DefaultMaxNonce      int64  = math.MaxInt64
	DefaultCheckInterval uint64 = 1 << 14
)

// Miner seals blocks by searching for a nonce whose hash meets the difficulty.
// A Miner holds no chain state and is safe for concurrent use.
type Miner struct {
	clock         Clock
	maxNonce      int64
	checkInterval uint64
}

type Option func(*Miner)

func WithClock(c Clock) Option {
	return func(m *Miner) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithMaxNonce bounds the nonce search to [0, n].
func WithMaxNonce(n int64) Option {
	return func(m *Miner) {
		if n >= 0 {
			m.maxNonce = n
		}
	}
}

// WithCheckInterval sets how many attempts are made between context checks.
func WithCheckInterval(n uint64) Option {
	return func(m *Miner) {
		if n > 0 {
			m.checkInterval = n
		}
	}
}

func NewMiner(opts ...Option) *Miner {
	m := &Miner{
		clock:         SystemClock{},
		maxNonce:      DefaultMaxNonce,
		checkInterval: DefaultCheckInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now reads the miner's clock as epoch milliseconds.
func (m *Miner) Now() (uint64, error) {
	return TimestampMillis(m.clock.Now())
}

// Mine searches nonces from 0 upward until the block hash has at least
// difficulty leading zero nibbles. The search stops with MiningExhausted once
// the nonce limit is tried, or with Canceled when ctx is done.
func (m *Miner) Mine(ctx context.Context, prevHash string, payload []byte, height uint64, difficulty uint32, timestamp uint64) (*block.Block, error) {
	if int(difficulty) > block.HashHexLen {
		return nil, chainerrors.Newf(chainerrors.ErrCodeInvalidArgument, chainerrors.ErrMsgDifficultyTooHigh, difficulty, block.HashHexLen)
	}

	logx.Info("POW", "Mining block at height ", height, " difficulty ", difficulty)
	start := time.Now()

	// only the trailing nonce changes between attempts
	data := block.HashData(prevHash, payload, timestamp, difficulty, 0)
	nonceAt := len(data) - 8

	var attempts uint64
	nonce := int64(0)
	for {
		if attempts%m.checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				monitoring.RecordMining(monitoring.MiningCanceled, attempts, time.Since(start))
				logx.Warn("POW", "Mining canceled at height ", height, " after ", attempts, " attempts")
				return nil, chainerrors.Wrap(chainerrors.ErrCodeCanceled, err, fmt.Sprintf(chainerrors.ErrMsgCanceled, "mining", attempts))
			}
		}

		binary.BigEndian.PutUint64(data[nonceAt:], uint64(nonce))
		sum := sha256.Sum256(data)
		attempts++
		hash := hex.EncodeToString(sum[:])
		if block.MeetsDifficulty(hash, difficulty) {
			elapsed := time.Since(start)
			monitoring.RecordMining(monitoring.MiningSealed, attempts, elapsed)
			logx.Debug("POW", "Sealed height ", height, " nonce ", nonce, " hash ", utils.ShortenLog(hash), " in ", elapsed)
			return &block.Block{
				Timestamp:  timestamp,
				Payload:    append([]byte(nil), payload...),
				PrevHash:   prevHash,
				Hash:       hash,
				Height:     height,
				Nonce:      nonce,
				Difficulty: difficulty,
			}, nil
		}

		if nonce >= m.maxNonce {
			monitoring.RecordMining(monitoring.MiningExhausted, attempts, time.Since(start))
			return nil, chainerrors.Newf(chainerrors.ErrCodeMiningExhausted, chainerrors.ErrMsgMiningExhausted, m.maxNonce, difficulty)
		}
		nonce++
	}
}

// MineNow stamps the block with the miner's clock, never earlier than floor,
// and mines it. The clock is read before any hashing starts.
func (m *Miner) MineNow(ctx context.Context, prevHash string, payload []byte, height uint64, difficulty uint32, floor uint64) (*block.Block, error) {
	ts, err := m.Now()
	if err != nil {
		return nil, err
	}
	if ts < floor {
		logx.Warn("POW", "Clock behind parent timestamp, using ", floor, " instead of ", ts)
		ts = floor
	}
	return m.Mine(ctx, prevHash, payload, height, difficulty, ts)
}

// Genesis mines the root block of a new chain. A nil payload uses block.GenesisPayload.
func (m *Miner) Genesis(ctx context.Context, payload []byte, difficulty uint32) (*block.Block, error) {
	if payload == nil {
		payload = []byte(block.GenesisPayload)
	}
	return m.MineNow(ctx, "", payload, 0, difficulty, 0)
}
