package mutation

import "fmt"

type FragmentKind uint8

const (
	KindPartitionStart FragmentKind = iota
	KindStaticRow
	KindClusteringRow
	KindRangeTombstoneChange
	KindPartitionEnd
)

func (k FragmentKind) String() string {
	switch k {
	case KindPartitionStart:
		return "partition_start"
	case KindStaticRow:
		return "static_row"
	case KindClusteringRow:
		return "clustering_row"
	case KindRangeTombstoneChange:
		return "range_tombstone_change"
	case KindPartitionEnd:
		return "partition_end"
	default:
		return fmt.Sprintf("FragmentKind(%d)", uint8(k))
	}
}

// Fragment is one element of a partition's mutation stream.
type Fragment interface {
	Kind() FragmentKind
	Position() Position
}

type PartitionStart struct {
	Key       DecoratedKey
	Tombstone Tombstone
}

func (PartitionStart) Kind() FragmentKind { return KindPartitionStart }
func (PartitionStart) Position() Position { return PartitionStartPosition() }
func (ps PartitionStart) String() string  { return fmt.Sprintf("partition_start{%s, %s}", ps.Key, ps.Tombstone) }

type StaticRow struct {
	Cells Row
}

func (StaticRow) Kind() FragmentKind { return KindStaticRow }
func (StaticRow) Position() Position { return StaticRowPosition() }

func (sr *StaticRow) Empty() bool {
	return sr.Cells.Empty()
}

func (sr *StaticRow) Clone() StaticRow {
	return StaticRow{Cells: sr.Cells.Clone()}
}

func (sr StaticRow) String() string {
	return fmt.Sprintf("static_row%s", sr.Cells)
}

type ClusteringRow struct {
	Key       ClusteringKey
	Tombstone RowTombstone
	Marker    RowMarker
	Cells     Row
}

func (ClusteringRow) Kind() FragmentKind    { return KindClusteringRow }
func (cr ClusteringRow) Position() Position { return RowPosition(cr.Key) }

// Empty reports whether the row carries nothing at all.
func (cr *ClusteringRow) Empty() bool {
	return cr.Tombstone.IsEmpty() && cr.Marker.IsMissing() && cr.Cells.Empty()
}

func (cr *ClusteringRow) RemoveTombstone() {
	cr.Tombstone = RowTombstone{}
}

// Apply merges another version of the same row into cr.
func (cr *ClusteringRow) Apply(o ClusteringRow) {
	cr.Tombstone.ApplyRow(o.Tombstone)
	cr.Marker.Apply(o.Marker)
	cr.Cells.ApplyRow(o.Cells)
}

func (cr *ClusteringRow) Clone() ClusteringRow {
	c := *cr
	c.Cells = cr.Cells.Clone()
	return c
}

func (cr ClusteringRow) String() string {
	return fmt.Sprintf("clustering_row{%s, tomb=%s, marker=%s, cells=%s}", cr.Key, cr.Tombstone, cr.Marker, cr.Cells)
}

// RangeTombstoneChange sets the range tombstone in force from Pos onwards.
// An empty tombstone closes the open range.
type RangeTombstoneChange struct {
	Pos       Position
	Tombstone Tombstone
}

func (RangeTombstoneChange) Kind() FragmentKind     { return KindRangeTombstoneChange }
func (rtc RangeTombstoneChange) Position() Position { return rtc.Pos }
func (rtc RangeTombstoneChange) String() string {
	return fmt.Sprintf("range_tombstone_change{%s, %s}", rtc.Pos, rtc.Tombstone)
}

type PartitionEnd struct{}

func (PartitionEnd) Kind() FragmentKind { return KindPartitionEnd }
func (PartitionEnd) Position() Position { return PartitionEndPosition() }
func (PartitionEnd) String() string     { return "partition_end" }
