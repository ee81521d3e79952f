package store

import (
	"slices"

	"github.com/google/uuid"
	"github.com/zhangyunhao116/skipmap"

	"mutcompact/pkg/mutation"
	"mutcompact/pkg/types"
)

const segmentFalsePositiveRate = 0.01

// segment is an immutable run of compacted partitions in key order.
type segment struct {
	id         uuid.UUID
	partitions []*mutation.Partition
	filter     *bloomFilter
}

func newSegment(id uuid.UUID, partitions []*mutation.Partition) *segment {
	filter := newBloomFilter(len(partitions), segmentFalsePositiveRate)
	for _, p := range partitions {
		filter.add(p.Key.Key)
	}
	return &segment{id: id, partitions: partitions, filter: filter}
}

func (s *segment) get(key mutation.DecoratedKey) (*mutation.Partition, bool) {
	if !s.filter.mayContain(key.Key) {
		return nil, false
	}
	i, ok := slices.BinarySearchFunc(s.partitions, key, func(p *mutation.Partition, k mutation.DecoratedKey) int {
		return p.Key.Compare(k)
	})
	if !ok {
		return nil, false
	}
	return s.partitions[i], true
}

// minTimestamp is the lowest write timestamp of key in the segment,
// MaxTimestamp when the key is absent.
func (s *segment) minTimestamp(key mutation.DecoratedKey) types.Timestamp {
	if p, ok := s.get(key); ok {
		return p.MinTimestamp()
	}
	return types.MaxTimestamp
}

// MergePartitions merges partitions of several sources by key. The result
// holds copies, the sources are left untouched.
func MergePartitions(sources ...[]*mutation.Partition) []*mutation.Partition {
	merged := skipmap.NewFunc[mutation.DecoratedKey, *mutation.Partition](func(a, b mutation.DecoratedKey) bool {
		return a.Compare(b) < 0
	})
	for _, source := range sources {
		for _, p := range source {
			if prev, ok := merged.Load(p.Key); ok {
				prev.Apply(p)
				continue
			}
			merged.Store(p.Key, p.Clone())
		}
	}

	result := make([]*mutation.Partition, 0, merged.Len())
	merged.Range(func(_ mutation.DecoratedKey, p *mutation.Partition) bool {
		result = append(result, p)
		return true
	})
	return result
}
