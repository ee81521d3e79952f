package compaction

import (
	"math"

	"mutcompact/pkg/mutation"
	"mutcompact/pkg/query"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/tombstonegc"
	"mutcompact/pkg/types"
)

var testSchema = schema.NewBuilder("ks", "events").
	WithStaticColumn("s").
	WithRegularColumn("v").
	WithRegularColumn("w").
	Build()

const (
	queryTime types.GCTime = 1_000_000
	// farFuture makes every tombstone old enough to purge.
	farFuture types.GCTime = math.MaxInt64
	// farPast makes no tombstone old enough to purge.
	farPast types.GCTime = math.MinInt64
)

func pkey(s string) mutation.DecoratedKey {
	return mutation.NewDecoratedKey([]byte(s))
}

func ck(s string) mutation.ClusteringKey {
	return mutation.ClusteringKey(s)
}

func tomb(ts types.Timestamp, dt types.GCTime) mutation.Tombstone {
	return mutation.NewTombstone(ts, dt)
}

func liveRow(key string, ts types.Timestamp) mutation.ClusteringRow {
	cr := mutation.ClusteringRow{Key: ck(key), Marker: mutation.NewRowMarker(ts)}
	cr.Cells.Apply(0, mutation.NewLiveCell(ts, []byte("v-"+key)))
	return cr
}

func deadRow(key string, ts types.Timestamp, dt types.GCTime) mutation.ClusteringRow {
	cr := mutation.ClusteringRow{Key: ck(key)}
	cr.Cells.Apply(0, mutation.NewDeadCell(ts, dt))
	return cr
}

func partitionWithRows(key string, rows ...string) *mutation.Partition {
	p := mutation.NewPartition(pkey(key))
	for i, k := range rows {
		p.ApplyRow(liveRow(k, types.Timestamp(10+i)))
	}
	return p
}

func staticCells(ts types.Timestamp) mutation.Row {
	var r mutation.Row
	r.Apply(0, mutation.NewLiveCell(ts, []byte("static")))
	return r
}

// rowEvent is what a consumer was told about a row besides the row itself.
type rowEvent struct {
	key     mutation.ClusteringKey
	current mutation.RowTombstone
	alive   bool
}

// recorder is a CompactedFragmentsConsumer keeping everything it was
// handed as a fragment stream.
type recorder struct {
	frags     []mutation.Fragment
	rows      []rowEvent
	eos       int
	liveRows  int
	stopAfter int
}

var _ CompactedFragmentsConsumer = (*recorder)(nil)

func (r *recorder) ConsumeNewPartition(key mutation.DecoratedKey) {
	r.frags = append(r.frags, mutation.PartitionStart{Key: key.Clone()})
}

func (r *recorder) ConsumeTombstone(t mutation.Tombstone) {
	ps := r.frags[len(r.frags)-1].(mutation.PartitionStart)
	ps.Tombstone = t
	r.frags[len(r.frags)-1] = ps
}

func (r *recorder) ConsumeStaticRow(sr mutation.StaticRow, current mutation.Tombstone, isAlive bool) bool {
	r.frags = append(r.frags, sr.Clone())
	r.rows = append(r.rows, rowEvent{current: mutation.NewRowTombstone(current), alive: isAlive})
	return false
}

func (r *recorder) ConsumeClusteringRow(cr mutation.ClusteringRow, current mutation.RowTombstone, isAlive bool) bool {
	r.frags = append(r.frags, cr.Clone())
	r.rows = append(r.rows, rowEvent{key: cr.Key, current: current, alive: isAlive})
	if isAlive {
		r.liveRows++
	}
	return r.stopAfter > 0 && r.liveRows%r.stopAfter == 0 && isAlive
}

func (r *recorder) ConsumeRangeTombstoneChange(rtc mutation.RangeTombstoneChange) bool {
	r.frags = append(r.frags, rtc)
	return false
}

func (r *recorder) ConsumeEndOfPartition() bool {
	r.frags = append(r.frags, mutation.PartitionEnd{})
	return false
}

func (r *recorder) ConsumeEndOfStream() {
	r.eos++
}

func (r *recorder) kinds() []mutation.FragmentKind {
	kinds := make([]mutation.FragmentKind, len(r.frags))
	for i, f := range r.frags {
		kinds[i] = f.Kind()
	}
	return kinds
}

func (r *recorder) partitionStarts() []mutation.PartitionStart {
	var out []mutation.PartitionStart
	for _, f := range r.frags {
		if ps, ok := f.(mutation.PartitionStart); ok {
			out = append(out, ps)
		}
	}
	return out
}

func (r *recorder) clusteringKeys() []string {
	var out []string
	for _, f := range r.frags {
		if cr, ok := f.(mutation.ClusteringRow); ok {
			out = append(out, string(cr.Key))
		}
	}
	return out
}

// partitions rebuilds what was recorded. Pieces of one partition split
// over pages come out as separate partitions.
func (r *recorder) partitions() []*mutation.Partition {
	b := mutation.NewPartitionBuilder()
	mutation.Consume(mutation.NewSliceReader(r.frags), b)
	return b.Partitions()
}

func runQuery(parts []*mutation.Partition, rowLimit uint64, partitionLimit uint32, gcBefore types.GCTime) *recorder {
	rec := &recorder{}
	c := NewForQuery(testSchema, queryTime, query.FullSlice(), rowLimit, partitionLimit, rec, WithGCBefore(tombstonegc.Fixed(gcBefore)))
	mutation.Consume(mutation.NewPartitionReader(parts...), c)
	return rec
}

func runCompaction(parts []*mutation.Partition, maxPurgeable types.Timestamp, gcBefore types.GCTime) (kept, garbage *recorder) {
	kept, garbage = &recorder{}, &recorder{}
	c := NewForCompaction(testSchema, queryTime,
		func(mutation.DecoratedKey) types.Timestamp { return maxPurgeable },
		kept, garbage, WithGCBefore(tombstonegc.Fixed(gcBefore)))
	mutation.Consume(mutation.NewPartitionReader(parts...), c)
	return kept, garbage
}
