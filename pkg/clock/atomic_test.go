package clock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"mutcompact/pkg/types"
)

func TestAtomicClock_Next(t *testing.T) {
	ac := NewAtomic(100)

	assert.Equal(t, types.Timestamp(101), ac.Next(50))
	assert.Equal(t, types.Timestamp(500), ac.Next(500))
	assert.Equal(t, types.Timestamp(501), ac.Next(500))
	assert.Equal(t, types.Timestamp(501), ac.Val())
}

func TestAtomicClock_ConcurrentNextIsUnique(t *testing.T) {
	ac := NewAtomic(0)

	var (
		mu   sync.Mutex
		seen = make(map[types.Timestamp]struct{})
		wg   sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				ts := ac.Next(1)
				mu.Lock()
				seen[ts] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
	assert.Equal(t, types.Timestamp(800), ac.Val())
}
