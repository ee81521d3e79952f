package mutation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutcompact/pkg/types"
)

func row(key string, ts types.Timestamp) ClusteringRow {
	cr := ClusteringRow{Key: ClusteringKey(key), Marker: NewRowMarker(ts)}
	cr.Cells.Apply(0, NewLiveCell(ts, []byte(key)))
	return cr
}

func kinds(frags []Fragment) []FragmentKind {
	out := make([]FragmentKind, len(frags))
	for i, f := range frags {
		out[i] = f.Kind()
	}
	return out
}

func TestPartition_ApplyRowKeepsOrder(t *testing.T) {
	p := NewPartition(NewDecoratedKey([]byte("p")))
	p.ApplyRow(row("c", 1))
	p.ApplyRow(row("a", 1))
	p.ApplyRow(row("b", 1))
	p.ApplyRow(row("a", 2))

	require.Len(t, p.Rows(), 3)
	var keys []string
	for _, cr := range p.Rows() {
		keys = append(keys, string(cr.Key))
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Equal(t, types.Timestamp(2), p.Rows()[0].Marker.Timestamp)
}

func TestPartition_FragmentsSweepOverlappingRanges(t *testing.T) {
	p := NewPartition(NewDecoratedKey([]byte("p")))
	p.ApplyRow(row("a", 1))
	p.ApplyRow(row("c", 1))
	p.ApplyRow(row("e", 1))
	// [b, d] at 5 overlapped by [c, f) at 7.
	p.ApplyRangeTombstone(NewRangeTombstone(ClusteringKey("b"), true, ClusteringKey("d"), true, NewTombstone(5, 1)))
	p.ApplyRangeTombstone(NewRangeTombstone(ClusteringKey("c"), true, ClusteringKey("f"), false, NewTombstone(7, 1)))

	frags := p.Fragments()

	require.Equal(t, []FragmentKind{
		KindPartitionStart,
		KindClusteringRow,        // a
		KindRangeTombstoneChange, // before b: 5
		KindRangeTombstoneChange, // before c: 7
		KindClusteringRow,        // c
		KindClusteringRow,        // e
		KindRangeTombstoneChange, // before f: none
		KindPartitionEnd,
	}, kinds(frags))
	assert.Equal(t, RangeTombstoneChange{Pos: BeforeRow(ClusteringKey("b")), Tombstone: NewTombstone(5, 1)}, frags[2])
	assert.Equal(t, RangeTombstoneChange{Pos: BeforeRow(ClusteringKey("c")), Tombstone: NewTombstone(7, 1)}, frags[3])
	assert.Equal(t, RangeTombstoneChange{Pos: BeforeRow(ClusteringKey("f"))}, frags[6])

	for i := 1; i < len(frags); i++ {
		assert.LessOrEqual(t, frags[i-1].Position().Compare(frags[i].Position()), 0, "fragment %d out of order", i)
	}
}

func TestPartition_EmptyRangeIgnored(t *testing.T) {
	p := NewPartition(NewDecoratedKey([]byte("p")))
	p.ApplyRangeTombstone(NewRangeTombstone(ClusteringKey("b"), true, ClusteringKey("a"), true, NewTombstone(5, 1)))
	p.ApplyRangeTombstone(NewRangeTombstone(ClusteringKey("a"), true, ClusteringKey("b"), true, Tombstone{}))

	assert.True(t, p.Empty())
	assert.Equal(t, []FragmentKind{KindPartitionStart, KindPartitionEnd}, kinds(p.Fragments()))
}

func TestPartition_BuilderRoundTrip(t *testing.T) {
	p := NewPartition(NewDecoratedKey([]byte("p")))
	p.ApplyTombstone(NewTombstone(1, 1))
	p.ApplyStaticCell(0, NewLiveCell(3, []byte("s")))
	p.ApplyRow(row("a", 2))
	p.ApplyRow(row("c", 2))
	p.ApplyRangeTombstone(NewRangeTombstone(ClusteringKey("b"), true, nil, false, NewTombstone(5, 1)))

	b := NewPartitionBuilder()
	Consume(NewSliceReader(p.Fragments()), b)

	require.Len(t, b.Partitions(), 1)
	got := b.Partitions()[0]
	assert.Equal(t, p.Fragments(), got.Fragments())
}

func TestPartition_MergeAndMinTimestamp(t *testing.T) {
	key := NewDecoratedKey([]byte("p"))
	a := NewPartition(key)
	a.ApplyRow(row("a", 20))
	b := NewPartition(key)
	b.ApplyRow(row("a", 30))
	b.ApplyRow(row("b", 15))
	b.ApplyTombstone(NewTombstone(12, 1))

	merged := a.Clone()
	merged.Apply(b)

	assert.Len(t, merged.Rows(), 2)
	assert.Equal(t, types.Timestamp(30), merged.Rows()[0].Marker.Timestamp)
	assert.Equal(t, types.Timestamp(12), merged.MinTimestamp())
	assert.Len(t, a.Rows(), 1)
	assert.Equal(t, types.MaxTimestamp, NewPartition(key).MinTimestamp())
}

func TestDecoratedKey(t *testing.T) {
	a := NewDecoratedKey([]byte("a"))
	assert.Equal(t, a, NewDecoratedKey([]byte("a")))
	assert.True(t, a.Equal(a.Clone()))
	assert.NotEqual(t, 0, a.Compare(NewDecoratedKey([]byte("b"))))
}

func TestPosition_Order(t *testing.T) {
	ordered := []Position{
		PartitionStartPosition(),
		StaticRowPosition(),
		BeforeAllRows(),
		BeforeRow(ClusteringKey("a")),
		RowPosition(ClusteringKey("a")),
		AfterRow(ClusteringKey("a")),
		BeforeRow(ClusteringKey("b")),
		AfterAllRows(),
		PartitionEndPosition(),
	}
	for i := 1; i < len(ordered); i++ {
		assert.Negative(t, ordered[i-1].Compare(ordered[i]), "%s < %s", ordered[i-1], ordered[i])
		assert.Positive(t, ordered[i].Compare(ordered[i-1]))
	}

	assert.Equal(t, BeforeAllRows(), StaticRowPosition().After())
	assert.Equal(t, BeforeAllRows(), PartitionStartPosition().After())
	assert.Equal(t, AfterRow(ClusteringKey("a")), RowPosition(ClusteringKey("a")).After())
}
