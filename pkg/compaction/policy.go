package compaction

import (
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/types"
)

func (s *State) canPurge(t mutation.Tombstone) bool {
	return s.canGC(t) && t.DeletionTime < s.gcBefore()
}

func (s *State) canPurgeRow(t mutation.RowTombstone) bool {
	return s.canGC(t.Tomb()) && t.MaxDeletionTime() < s.gcBefore()
}

// gcBefore is computed once per partition. Before the first partition
// nothing is purgeable.
func (s *State) gcBefore() types.GCTime {
	if s.part.gcBeforeSet {
		return s.part.gcBefore
	}
	if s.dk == nil {
		return types.MinGCTime
	}
	s.part.gcBefore = s.gcBeforeFn(s.schema, *s.dk, s.queryTime)
	s.part.gcBeforeSet = true
	return s.part.gcBefore
}

// canGCForSSTables only lets tombstones go which are older than anything
// the compaction cannot see for this partition.
func (s *State) canGCForSSTables(t mutation.Tombstone) bool {
	if t.IsEmpty() {
		return false
	}
	if !s.part.maxPurgeableSet {
		s.part.maxPurgeable = s.getMaxPurgeable(*s.dk)
		s.part.maxPurgeableSet = true
	}
	return t.Timestamp < s.part.maxPurgeable
}
