package store

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"mutcompact/pkg/mutation"
)

// GarbageRecord is what one compaction job purged.
type GarbageRecord struct {
	JobID      uuid.UUID
	At         time.Time
	Partitions []*mutation.Partition
}

// GarbageLog keeps purged data around so it can be inspected or written
// to a side table.
type GarbageLog struct {
	mu      sync.Mutex
	records []GarbageRecord
}

func (g *GarbageLog) append(rec GarbageRecord) {
	if len(rec.Partitions) == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, rec)
}

func (g *GarbageLog) Records() []GarbageRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.records)
}
