package clock

import (
	"sync/atomic"

	"mutcompact/pkg/types"
)

// AtomicClock hands out strictly increasing write timestamps, following
// wall time when it is ahead.
type AtomicClock struct {
	last atomic.Int64
}

func NewAtomic(init types.Timestamp) *AtomicClock {
	var ac AtomicClock
	ac.Set(init)
	return &ac
}

func (ac *AtomicClock) Val() types.Timestamp {
	return types.Timestamp(ac.last.Load())
}

// Next returns max(now, last+1) and remembers it.
func (ac *AtomicClock) Next(now types.Timestamp) types.Timestamp {
	for {
		last := ac.last.Load()
		next := max(int64(now), last+1)
		if ac.last.CompareAndSwap(last, next) {
			return types.Timestamp(next)
		}
	}
}

func (ac *AtomicClock) Set(t types.Timestamp) {
	ac.last.Store(int64(t))
}
