package compaction

import (
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/types"
)

// DetachedState is what a compaction needs to carry over a page break:
// replaying its fragments through a fresh State puts that state where the
// detached one was.
type DetachedState struct {
	PartitionStart   mutation.PartitionStart
	StaticRow        *mutation.StaticRow
	CurrentTombstone *mutation.RangeTombstoneChange
}

// Fragments lists the fragments to replay, in stream order.
func (d DetachedState) Fragments() []mutation.Fragment {
	frags := []mutation.Fragment{d.PartitionStart}
	if d.StaticRow != nil {
		frags = append(frags, d.StaticRow.Clone())
	}
	if d.CurrentTombstone != nil {
		frags = append(frags, *d.CurrentTombstone)
	}
	return frags
}

// Resume puts the fragments of d in front of r. When r is about to end the
// detached partition, the page stopped on its last fragment and the
// partition is done: its end is dropped instead, replaying the header and
// static row would make an empty partition out of it.
func (d DetachedState) Resume(r *mutation.SliceReader) {
	if f, ok := r.Peek(); ok && f.Kind() == mutation.KindPartitionEnd {
		r.Next()
		return
	}
	r.Prepend(d.Fragments()...)
}

// StartNewPage resets the limits and query time for the next page of the
// same read. When the next fragment is a clustering one, the static row and
// the open range tombstone are emitted again so the new page is
// self-contained.
func (s *State) StartNewPage(
	rowLimit uint64,
	partitionLimit uint32,
	queryTime types.GCTime,
	nextRegion mutation.Region,
	consumer CompactedFragmentsConsumer,
) {
	s.part.empty = true
	s.part.staticRowLive = false
	s.rowLimit = rowLimit
	s.partitionLimit = partitionLimit
	s.part.rows = 0
	s.part.rowLimit = min(rowLimit, s.partitionRowLimit)
	s.queryTime = queryTime
	s.stats = Stats{}
	s.stop = false

	var noop NoopConsumer
	lastPos := s.part.lastPos
	if nextRegion == mutation.RegionClustered && s.part.lastStaticRow != nil {
		sr := *s.part.lastStaticRow
		s.part.lastStaticRow = nil
		// Stopping here would loop forever, the result is ignored.
		s.ConsumeStaticRow(sr, consumer, noop)
		s.part.lastPos = lastPos
	}
	if !s.part.effective.IsEmpty() {
		s.consumeRangeTombstoneChange(mutation.RangeTombstoneChange{
			Pos:       lastPos.After(),
			Tombstone: s.part.effective,
		}, consumer, noop)
	}

	if s.dk != nil {
		s.logger.Debug("compaction page started",
			"partition", s.dk.String(),
			"position", lastPos.String(),
			"row_limit", rowLimit,
			"partition_limit", partitionLimit,
		)
	}
}

// DetachState snapshots the compaction for resuming in another State. It
// reports false when the last partition was exhausted, there is nothing to
// carry over then. The state must not be used afterwards.
func (s *State) DetachState() (DetachedState, bool) {
	// ConsumeEndOfPartition runs both on a partition end and when a
	// consume call asked to stop; only the latter leaves the partition
	// unfinished, and s.stop remembers it.
	if !s.stop || s.dk == nil {
		return DetachedState{}, false
	}

	ds := DetachedState{
		PartitionStart: mutation.PartitionStart{
			Key:       s.dk.Clone(),
			Tombstone: s.part.tombstone,
		},
		StaticRow: s.part.lastStaticRow,
	}
	s.part.lastStaticRow = nil
	if !s.part.effective.IsEmpty() {
		ds.CurrentTombstone = &mutation.RangeTombstoneChange{
			Pos:       s.part.lastPos.After(),
			Tombstone: s.part.effective,
		}
	}

	s.logger.Debug("compaction state detached",
		"partition", ds.PartitionStart.Key.String(),
		"position", s.part.lastPos.String(),
		"static_row", ds.StaticRow != nil,
		"open_tombstone", ds.CurrentTombstone != nil,
	)
	return ds, true
}
