package pow

import (
	"sync"
	"time"

	chainerrors "github.com/mezonai/powchain/errors"
)

// Clock supplies the mining timestamp.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock returns the same instant on every call, advancing by Step after each read.
type FixedClock struct {
	mu   sync.Mutex
	At   time.Time
	Step time.Duration
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.At
	c.At = c.At.Add(c.Step)
	return now
}

// TimestampMillis converts t to milliseconds since the unix epoch.
func TimestampMillis(t time.Time) (uint64, error) {
	ms := t.UnixMilli()
	if ms < 0 {
		return 0, chainerrors.Newf(chainerrors.ErrCodeClock, chainerrors.ErrMsgClockBeforeEpoch, t.UTC().Format(time.RFC3339))
	}
	return uint64(ms), nil
}
