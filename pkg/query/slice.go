package query

import (
	"math"

	"mutcompact/pkg/mutation"
	"mutcompact/pkg/types"
)

// Bound is one side of a clustering range.
type Bound struct {
	Key       mutation.ClusteringKey
	Inclusive bool
}

// ClusteringRange selects rows between Start and End. A nil side is open.
type ClusteringRange struct {
	Start *Bound
	End   *Bound
}

func FullRange() ClusteringRange {
	return ClusteringRange{}
}

func SingularRange(key mutation.ClusteringKey) ClusteringRange {
	return ClusteringRange{
		Start: &Bound{Key: key, Inclusive: true},
		End:   &Bound{Key: key, Inclusive: true},
	}
}

func (r ClusteringRange) IsFull() bool {
	return r.Start == nil && r.End == nil
}

func (r ClusteringRange) startPosition() mutation.Position {
	switch {
	case r.Start == nil:
		return mutation.BeforeAllRows()
	case r.Start.Inclusive:
		return mutation.BeforeRow(r.Start.Key)
	default:
		return mutation.AfterRow(r.Start.Key)
	}
}

func (r ClusteringRange) endPosition() mutation.Position {
	switch {
	case r.End == nil:
		return mutation.AfterAllRows()
	case r.End.Inclusive:
		return mutation.AfterRow(r.End.Key)
	default:
		return mutation.BeforeRow(r.End.Key)
	}
}

func (r ClusteringRange) Contains(key mutation.ClusteringKey) bool {
	p := mutation.RowPosition(key)
	return r.startPosition().Compare(p) < 0 && p.Compare(r.endPosition()) < 0
}

// HasClusteringSelector reports whether ranges restrict the rows of a
// partition. An empty range list selects nothing, which is a restriction
// too.
func HasClusteringSelector(ranges []ClusteringRange) bool {
	if len(ranges) == 0 {
		return true
	}
	for _, r := range ranges {
		if !r.IsFull() {
			return true
		}
	}
	return false
}

type SliceOption uint8

const (
	// OptDistinct returns at most one row per partition.
	OptDistinct SliceOption = 1 << iota
	// OptAlwaysReturnStaticContent returns the static row even when no
	// clustering row matched.
	OptAlwaysReturnStaticContent
)

// PartitionSlice is the clustering part of a read: which rows of each
// partition are wanted.
type PartitionSlice struct {
	DefaultRanges []ClusteringRange
	// SpecificRanges overrides DefaultRanges for single partition keys.
	SpecificRanges map[string][]ClusteringRange
	Options        SliceOption
	// PartitionRowLimit caps rows per partition, zero means no cap.
	PartitionRowLimit uint64
}

func FullSlice() *PartitionSlice {
	return &PartitionSlice{DefaultRanges: []ClusteringRange{FullRange()}}
}

func (s *PartitionSlice) Has(opt SliceOption) bool {
	return s.Options&opt != 0
}

func (s *PartitionSlice) RowRanges(key types.Key) []ClusteringRange {
	if r, ok := s.SpecificRanges[string(key)]; ok {
		return r
	}
	return s.DefaultRanges
}

// EffectivePartitionRowLimit is the per partition row cap after options.
func (s *PartitionSlice) EffectivePartitionRowLimit() uint64 {
	if s.Has(OptDistinct) {
		return 1
	}
	if s.PartitionRowLimit == 0 {
		return math.MaxUint64
	}
	return s.PartitionRowLimit
}

// ApplyTo restricts p to the rows selected for its key. Range tombstones
// are clipped to the selected ranges.
func (s *PartitionSlice) ApplyTo(p *mutation.Partition) *mutation.Partition {
	ranges := s.RowRanges(p.Key.Key)
	out := mutation.NewPartition(p.Key)
	out.ApplyTombstone(p.Tombstone)
	out.Static.ApplyRow(p.Static)
	for _, cr := range p.Rows() {
		for _, r := range ranges {
			if r.Contains(cr.Key) {
				out.ApplyRow(cr)
				break
			}
		}
	}
	for _, rt := range p.RangeTombstones() {
		for _, r := range ranges {
			clipped := rt
			if start := r.startPosition(); start.Compare(clipped.Start) > 0 {
				clipped.Start = start
			}
			if end := r.endPosition(); end.Compare(clipped.End) < 0 {
				clipped.End = end
			}
			out.ApplyRangeTombstone(clipped)
		}
	}
	return out
}
