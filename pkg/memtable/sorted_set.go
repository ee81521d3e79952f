package memtable

import "mutcompact/pkg/mutation"

type sortedSet struct {
	*concurrentSet
}

// SortedSet is a rotated table waiting to be flushed.
type SortedSet interface {
	Sorted() []*mutation.Partition
}

// Sorted returns copies of the partitions in key order.
func (s *sortedSet) Sorted() []*mutation.Partition {
	result := make([]*mutation.Partition, 0, s.Len())
	s.Range(func(_ mutation.DecoratedKey, e *entry) bool {
		result = append(result, e.snapshot())
		return true
	})

	return result
}
