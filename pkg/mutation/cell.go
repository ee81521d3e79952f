package mutation

import (
	"bytes"
	"cmp"
	"fmt"
	"slices"
	"time"

	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

// CanGCFunc decides whether a tombstone may be garbage collected on top of
// the gc-before check.
type CanGCFunc func(Tombstone) bool

// AlwaysGC is the predicate used outside of sstable compaction.
func AlwaysGC(Tombstone) bool { return true }

// GarbageCollector receives data dropped by CompactAndExpire.
type GarbageCollector interface {
	Collect(id schema.ColumnID, c Cell)
	CollectMarker(m RowMarker)
}

// Cell is an atomic column value. It is either live (optionally expiring
// when TTL is set) or dead.
type Cell struct {
	Timestamp types.Timestamp
	Value     types.Value

	TTL    time.Duration
	Expiry types.GCTime

	Dead         bool
	DeletionTime types.GCTime
}

func NewLiveCell(ts types.Timestamp, v types.Value) Cell {
	return Cell{Timestamp: ts, Value: v}
}

func NewExpiringCell(ts types.Timestamp, v types.Value, expiry types.GCTime, ttl time.Duration) Cell {
	return Cell{Timestamp: ts, Value: v, Expiry: expiry, TTL: ttl}
}

func NewDeadCell(ts types.Timestamp, deletionTime types.GCTime) Cell {
	return Cell{Timestamp: ts, Dead: true, DeletionTime: deletionTime}
}

func (c Cell) IsLive(now types.GCTime) bool {
	return !c.Dead && !c.HasExpired(now)
}

func (c Cell) IsExpiring() bool {
	return !c.Dead && c.TTL > 0
}

func (c Cell) HasExpired(now types.GCTime) bool {
	return c.IsExpiring() && c.Expiry <= now
}

// deletionTime is when the cell stopped (or will stop) being live.
func (c Cell) deletionTime() types.GCTime {
	switch {
	case c.Dead:
		return c.DeletionTime
	case c.IsExpiring():
		return c.Expiry.Add(-c.TTL)
	default:
		return types.MaxGCTime
	}
}

// expired turns an expired cell into the dead cell it has become.
func (c Cell) expired() Cell {
	return NewDeadCell(c.Timestamp, c.deletionTime())
}

// compareForMerge orders two versions of the same cell, the greater wins.
func compareForMerge(a, b Cell) int {
	if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
		return c
	}
	if a.Dead != b.Dead {
		if a.Dead {
			return 1
		}
		return -1
	}
	if a.Dead {
		return cmp.Compare(a.DeletionTime, b.DeletionTime)
	}
	if c := bytes.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	if a.IsExpiring() != b.IsExpiring() {
		if a.IsExpiring() {
			return 1
		}
		return -1
	}
	return cmp.Compare(a.Expiry, b.Expiry)
}

func (c Cell) String() string {
	switch {
	case c.Dead:
		return fmt.Sprintf("dead{ts=%d, dt=%d}", c.Timestamp, c.DeletionTime)
	case c.IsExpiring():
		return fmt.Sprintf("live{ts=%d, v=%q, expiry=%d, ttl=%s}", c.Timestamp, c.Value, c.Expiry, c.TTL)
	default:
		return fmt.Sprintf("live{ts=%d, v=%q}", c.Timestamp, c.Value)
	}
}

type ColumnCell struct {
	ID   schema.ColumnID
	Cell Cell
}

// Row is a set of cells ordered by column id.
type Row struct {
	cells []ColumnCell
}

func (r *Row) Empty() bool {
	return len(r.cells) == 0
}

func (r *Row) Len() int {
	return len(r.cells)
}

// Cells returns the cells in column order. The slice must not be modified.
func (r *Row) Cells() []ColumnCell {
	return r.cells
}

func (r *Row) Cell(id schema.ColumnID) (Cell, bool) {
	i, ok := r.find(id)
	if !ok {
		return Cell{}, false
	}
	return r.cells[i].Cell, true
}

func (r *Row) find(id schema.ColumnID) (int, bool) {
	return slices.BinarySearchFunc(r.cells, id, func(cc ColumnCell, id schema.ColumnID) int {
		return cmp.Compare(cc.ID, id)
	})
}

// Apply merges c into the row, reconciling with an existing version.
func (r *Row) Apply(id schema.ColumnID, c Cell) {
	i, ok := r.find(id)
	if ok {
		if compareForMerge(c, r.cells[i].Cell) > 0 {
			r.cells[i].Cell = c
		}
		return
	}
	r.cells = slices.Insert(r.cells, i, ColumnCell{ID: id, Cell: c})
}

func (r *Row) ApplyRow(o Row) {
	for _, cc := range o.cells {
		r.Apply(cc.ID, cc.Cell)
	}
}

func (r *Row) Clone() Row {
	return Row{cells: slices.Clone(r.cells)}
}

// CompactAndExpire drops cells covered by tomb, turns expired cells into
// dead ones and drops dead cells which are purgeable. Dropped purgeable
// cells are handed to collector when it is not nil. Reports whether any
// live cell remains.
func (r *Row) CompactAndExpire(
	tomb RowTombstone,
	now types.GCTime,
	canGC CanGCFunc,
	gcBefore types.GCTime,
	marker RowMarker,
	collector GarbageCollector,
) bool {
	tomb.MaybeShadow(marker)
	shadow := tomb.Tomb()

	anyLive := false
	// The cells may be shared with the source of the row, never filter in
	// place.
	kept := make([]ColumnCell, 0, len(r.cells))
	for _, cc := range r.cells {
		c := cc.Cell
		canErase := func() bool {
			dt := c.deletionTime()
			return dt < gcBefore && canGC(NewTombstone(c.Timestamp, dt))
		}

		switch {
		case shadow.Covers(c.Timestamp):
			continue
		case c.HasExpired(now):
			dead := c.expired()
			if canErase() {
				if collector != nil {
					collector.Collect(cc.ID, dead)
				}
				continue
			}
			cc.Cell = dead
		case c.Dead:
			if canErase() {
				if collector != nil {
					collector.Collect(cc.ID, c)
				}
				continue
			}
		default:
			anyLive = true
		}
		kept = append(kept, cc)
	}
	r.cells = kept
	return anyLive
}

func (r Row) String() string {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, cc := range r.cells {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: %s", cc.ID, cc.Cell)
	}
	b.WriteByte('}')
	return b.String()
}
