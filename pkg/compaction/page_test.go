package compaction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutcompact/pkg/mutation"
	"mutcompact/pkg/query"
	"mutcompact/pkg/tombstonegc"
)

func queryState(rowLimit uint64) *State {
	return NewQueryState(testSchema, queryTime, query.FullSlice(), rowLimit, math.MaxUint32,
		WithGCBefore(tombstonegc.Fixed(farPast)))
}

// readPages reads parts with pages of pageSize live rows, resuming the
// same state with StartNewPage between pages.
func readPages(parts []*mutation.Partition, pageSize uint64) []*recorder {
	st := queryState(pageSize)
	r := mutation.NewPartitionReader(parts...)

	var pages []*recorder
	for {
		rec := &recorder{}
		if len(pages) > 0 {
			st.StartNewPage(pageSize, math.MaxUint32, queryTime, mutation.NextRegion(r), rec)
		}
		stopped := mutation.Consume(r, NewWithState(st, rec, nil))
		pages = append(pages, rec)
		if !stopped {
			return pages
		}
	}
}

func TestPaging_RowLimitHoldsOnEveryPage(t *testing.T) {
	parts := []*mutation.Partition{
		partitionWithRows("p1", "a", "b", "c"),
		partitionWithRows("p2", "a", "b", "c"),
		partitionWithRows("p3", "a", "b", "c"),
	}

	pages := readPages(parts, 2)

	var keys []string
	total := 0
	for _, page := range pages {
		assert.LessOrEqual(t, page.liveRows, 2)
		total += page.liveRows
		keys = append(keys, page.clusteringKeys()...)
	}
	assert.Equal(t, 9, total)
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a", "b", "c"}, keys)
	assert.Equal(t, 2, pages[1].liveRows)
	// The second page resumes p1 and has to repeat its header.
	assert.Equal(t, []string{"p1", "p2"}, partitionKeys(pages[1]))
}

func TestPaging_StaticRowAndOpenTombstoneReplayed(t *testing.T) {
	p := partitionWithRows("p", "b", "c", "d")
	p.Static = staticCells(10)
	p.ApplyRangeTombstone(mutation.NewRangeTombstone(ck("a"), true, nil, false, tomb(5, 1)))

	pages := readPages([]*mutation.Partition{p}, 1)

	require.GreaterOrEqual(t, len(pages), 3)
	second := pages[1]
	require.Equal(t, []mutation.FragmentKind{kPS, kSR, kRTC, kCR, kRTC, kPE}, second.kinds())
	replayed := second.frags[2].(mutation.RangeTombstoneChange)
	assert.Equal(t, mutation.AfterRow(ck("b")), replayed.Pos)
	assert.Equal(t, tomb(5, 1), replayed.Tombstone)
	assert.Equal(t, []string{"c"}, second.clusteringKeys())
}

func TestPaging_StaticRowNotReplayedOnPartitionBoundary(t *testing.T) {
	first := partitionWithRows("p1", "a")
	first.Static = staticCells(10)
	second := partitionWithRows("p2", "a")

	pages := readPages([]*mutation.Partition{first, second}, 1)

	require.GreaterOrEqual(t, len(pages), 2)
	assert.Equal(t, []mutation.FragmentKind{kPS, kCR, kPE}, pages[1].kinds())
	assert.Equal(t, []string{"p2"}, partitionKeys(pages[1]))
}

func TestDetach_NothingWhenPartitionExhausted(t *testing.T) {
	st := queryState(math.MaxUint64)
	mutation.Consume(mutation.NewPartitionReader(partitionWithRows("p", "a")), NewWithState(st, &recorder{}, nil))

	_, ok := st.DetachState()
	assert.False(t, ok)
}

func TestDetach_Snapshot(t *testing.T) {
	p := partitionWithRows("p", "b", "c", "d")
	p.Static = staticCells(10)
	p.ApplyTombstone(tomb(1, 1))
	p.ApplyRangeTombstone(mutation.NewRangeTombstone(ck("a"), true, nil, false, tomb(5, 1)))

	st := queryState(1)
	mutation.Consume(mutation.NewPartitionReader(p), NewWithState(st, &recorder{}, nil))

	ds, ok := st.DetachState()
	require.True(t, ok)
	assert.Equal(t, pkey("p"), ds.PartitionStart.Key)
	assert.Equal(t, tomb(1, 1), ds.PartitionStart.Tombstone)
	require.NotNil(t, ds.StaticRow)
	assert.Equal(t, 1, ds.StaticRow.Cells.Len())
	require.NotNil(t, ds.CurrentTombstone)
	assert.Equal(t, mutation.RangeTombstoneChange{Pos: mutation.AfterRow(ck("b")), Tombstone: tomb(5, 1)}, *ds.CurrentTombstone)

	kinds := make([]mutation.FragmentKind, 0, 3)
	for _, f := range ds.Fragments() {
		kinds = append(kinds, f.Kind())
	}
	assert.Equal(t, []mutation.FragmentKind{kPS, kSR, kRTC}, kinds)
}

func TestDetach_ResumeMatchesContinuing(t *testing.T) {
	tests := []struct {
		name  string
		build func() *mutation.Partition
	}{
		{
			name: "rows only",
			build: func() *mutation.Partition {
				return partitionWithRows("p", "a", "b", "c", "d")
			},
		},
		{
			name: "static row and open range tombstone",
			build: func() *mutation.Partition {
				p := partitionWithRows("p", "b", "c", "d", "e")
				p.Static = staticCells(10)
				p.ApplyRangeTombstone(mutation.NewRangeTombstone(ck("a"), true, ck("d"), false, tomb(5, 1)))
				return p
			},
		},
		{
			name: "stop on the last row with a static row",
			build: func() *mutation.Partition {
				p := partitionWithRows("p", "a", "b")
				p.Static = staticCells(10)
				return p
			},
		},
		{
			name: "covered rows",
			build: func() *mutation.Partition {
				p := partitionWithRows("p", "b", "c", "d", "e")
				p.ApplyRow(deadRow("bb", 20, queryTime))
				p.ApplyRangeTombstone(mutation.NewRangeTombstone(ck("c"), false, nil, false, tomb(12, 1)))
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			newReader := func() *mutation.SliceReader {
				return mutation.NewPartitionReader(tt.build(), partitionWithRows("q", "a", "b"))
			}

			// Continue the same state on the rest of the stream.
			continued := queryState(2)
			r := newReader()
			require.True(t, mutation.Consume(r, NewWithState(continued, &recorder{}, nil)))
			rest := append([]mutation.Fragment(nil), r.Remaining()...)
			want := &recorder{}
			continued.StartNewPage(math.MaxUint64, math.MaxUint32, queryTime, mutation.NextRegion(r), want)
			mutation.Consume(r, NewWithState(continued, want, nil))

			// Resume from a detached snapshot in a fresh state.
			detached := queryState(2)
			mutation.Consume(newReader(), NewWithState(detached, &recorder{}, nil))
			ds, ok := detached.DetachState()
			require.True(t, ok)
			got := &recorder{}
			resumed := mutation.NewSliceReader(rest)
			ds.Resume(resumed)
			mutation.Consume(resumed, NewForQuery(testSchema, queryTime, query.FullSlice(), math.MaxUint64, math.MaxUint32, got,
				WithGCBefore(tombstonegc.Fixed(farPast))))

			assert.Equal(t, want.frags, got.frags)
			assert.Equal(t, want.rows, got.rows)
		})
	}
}

func TestDetach_ResumeDropsFinishedPartition(t *testing.T) {
	p := partitionWithRows("p", "a", "b")
	p.Static = staticCells(10)

	st := queryState(2)
	r := mutation.NewPartitionReader(p, partitionWithRows("q", "c"))
	require.True(t, mutation.Consume(r, NewWithState(st, &recorder{}, nil)))
	ds, ok := st.DetachState()
	require.True(t, ok)

	ds.Resume(r)

	next, ok := r.Peek()
	require.True(t, ok)
	assert.Equal(t, mutation.KindPartitionStart, next.Kind())
	assert.Equal(t, "q", string(next.(mutation.PartitionStart).Key.Key))
}

func TestDetach_PagesCoverUninterruptedRead(t *testing.T) {
	p := partitionWithRows("p", "b", "c", "d", "e")
	p.Static = staticCells(10)
	p.ApplyRangeTombstone(mutation.NewRangeTombstone(ck("a"), true, ck("d"), false, tomb(5, 1)))

	full := &recorder{}
	mutation.Consume(mutation.NewPartitionReader(p.Clone()), NewWithState(queryState(math.MaxUint64), full, nil))

	var keys []string
	for _, page := range readPages([]*mutation.Partition{p}, 3) {
		keys = append(keys, page.clusteringKeys()...)
	}
	assert.Equal(t, full.clusteringKeys(), keys)
}

func partitionKeys(r *recorder) []string {
	var out []string
	for _, ps := range r.partitionStarts() {
		out = append(out, string(ps.Key.Key))
	}
	return out
}
