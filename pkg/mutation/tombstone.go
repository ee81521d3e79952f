package mutation

import (
	"cmp"
	"fmt"

	"mutcompact/pkg/types"
)

// Tombstone is a deletion marker. It shadows data written at or before its
// timestamp. The zero value is the empty tombstone.
type Tombstone struct {
	Timestamp    types.Timestamp
	DeletionTime types.GCTime
}

func NewTombstone(ts types.Timestamp, deletionTime types.GCTime) Tombstone {
	return Tombstone{Timestamp: ts, DeletionTime: deletionTime}
}

func (t Tombstone) IsEmpty() bool {
	return t.Timestamp == types.MissingTimestamp
}

// Compare orders tombstones by timestamp, then by deletion time. All empty
// tombstones are equal and sort before any real one.
func (t Tombstone) Compare(o Tombstone) int {
	if t.IsEmpty() && o.IsEmpty() {
		return 0
	}
	if c := cmp.Compare(t.Timestamp, o.Timestamp); c != 0 {
		return c
	}
	return cmp.Compare(t.DeletionTime, o.DeletionTime)
}

// Covers reports whether data written at ts is shadowed by t.
func (t Tombstone) Covers(ts types.Timestamp) bool {
	return !t.IsEmpty() && ts <= t.Timestamp
}

// Apply merges o into t, keeping the greater of the two.
func (t *Tombstone) Apply(o Tombstone) {
	if o.Compare(*t) > 0 {
		*t = o
	}
}

func MaxTombstone(a, b Tombstone) Tombstone {
	if b.Compare(a) > 0 {
		return b
	}
	return a
}

func (t Tombstone) String() string {
	if t.IsEmpty() {
		return "{}"
	}
	return fmt.Sprintf("{ts=%d, dt=%d}", t.Timestamp, t.DeletionTime)
}

// RowTombstone is the deletion state of a clustering row: a regular
// tombstone plus a shadowable one. A shadowable tombstone stops applying
// once a row marker newer than it is written.
//
// Invariant: Shadowable >= Regular.
type RowTombstone struct {
	Regular    Tombstone
	Shadowable Tombstone
}

func NewRowTombstone(t Tombstone) RowTombstone {
	return RowTombstone{Regular: t, Shadowable: t}
}

func NewShadowableRowTombstone(regular, shadowable Tombstone) RowTombstone {
	return RowTombstone{Regular: regular, Shadowable: MaxTombstone(regular, shadowable)}
}

// Tomb is the tombstone in force for the row.
func (t RowTombstone) Tomb() Tombstone {
	return MaxTombstone(t.Regular, t.Shadowable)
}

func (t RowTombstone) IsEmpty() bool {
	return t.Tomb().IsEmpty()
}

func (t RowTombstone) IsShadowable() bool {
	return t.Shadowable.Compare(t.Regular) > 0
}

func (t RowTombstone) MaxDeletionTime() types.GCTime {
	return max(t.Regular.DeletionTime, t.Shadowable.DeletionTime)
}

func (t *RowTombstone) Apply(o Tombstone) {
	t.Regular.Apply(o)
	t.Shadowable.Apply(t.Regular)
}

func (t *RowTombstone) ApplyRow(o RowTombstone) {
	t.Regular.Apply(o.Regular)
	t.Shadowable.Apply(o.Shadowable)
	t.Shadowable.Apply(t.Regular)
}

// MaybeShadow drops the shadowable part when m was written after it.
func (t *RowTombstone) MaybeShadow(m RowMarker) {
	if t.IsShadowable() && m.Timestamp > t.Shadowable.Timestamp {
		t.Shadowable = t.Regular
	}
}

func (t RowTombstone) String() string {
	if t.IsShadowable() {
		return fmt.Sprintf("{regular=%s, shadowable=%s}", t.Regular, t.Shadowable)
	}
	return t.Regular.String()
}
