package mutation

import (
	"slices"

	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

// RangeTombstone deletes the rows in [Start, End).
type RangeTombstone struct {
	Start     Position
	End       Position
	Tombstone Tombstone
}

// NewRangeTombstone builds a range from clustering bounds. A nil start or
// end leaves that side open.
func NewRangeTombstone(start ClusteringKey, startInclusive bool, end ClusteringKey, endInclusive bool, t Tombstone) RangeTombstone {
	rt := RangeTombstone{Start: BeforeAllRows(), End: AfterAllRows(), Tombstone: t}
	if len(start) > 0 {
		if startInclusive {
			rt.Start = BeforeRow(start)
		} else {
			rt.Start = AfterRow(start)
		}
	}
	if len(end) > 0 {
		if endInclusive {
			rt.End = AfterRow(end)
		} else {
			rt.End = BeforeRow(end)
		}
	}
	return rt
}

func (rt RangeTombstone) covers(p Position) bool {
	return rt.Start.Compare(p) <= 0 && p.Compare(rt.End) < 0
}

// Partition is a materialised partition: everything written to one
// partition key, kept in clustering order.
type Partition struct {
	Key       DecoratedKey
	Tombstone Tombstone
	Static    Row

	rows            []ClusteringRow
	rangeTombstones []RangeTombstone
}

func NewPartition(key DecoratedKey) *Partition {
	return &Partition{Key: key}
}

func (p *Partition) Rows() []ClusteringRow {
	return p.rows
}

func (p *Partition) RangeTombstones() []RangeTombstone {
	return p.rangeTombstones
}

func (p *Partition) ApplyTombstone(t Tombstone) {
	p.Tombstone.Apply(t)
}

func (p *Partition) ApplyStaticCell(id schema.ColumnID, c Cell) {
	p.Static.Apply(id, c)
}

func (p *Partition) ApplyRow(cr ClusteringRow) {
	i, ok := slices.BinarySearchFunc(p.rows, cr.Key, func(r ClusteringRow, k ClusteringKey) int {
		return r.Key.Compare(k)
	})
	if ok {
		p.rows[i].Apply(cr)
		return
	}
	p.rows = slices.Insert(p.rows, i, cr.Clone())
}

func (p *Partition) ApplyRangeTombstone(rt RangeTombstone) {
	if rt.Tombstone.IsEmpty() || rt.Start.Compare(rt.End) >= 0 {
		return
	}
	p.rangeTombstones = append(p.rangeTombstones, rt)
}

// Apply merges o, which must have the same key, into p.
func (p *Partition) Apply(o *Partition) {
	p.ApplyTombstone(o.Tombstone)
	p.Static.ApplyRow(o.Static)
	for _, cr := range o.rows {
		p.ApplyRow(cr)
	}
	for _, rt := range o.rangeTombstones {
		p.ApplyRangeTombstone(rt)
	}
}

func (p *Partition) Clone() *Partition {
	c := &Partition{
		Key:             p.Key,
		Tombstone:       p.Tombstone,
		Static:          p.Static.Clone(),
		rows:            make([]ClusteringRow, len(p.rows)),
		rangeTombstones: slices.Clone(p.rangeTombstones),
	}
	for i := range p.rows {
		c.rows[i] = p.rows[i].Clone()
	}
	return c
}

// Empty reports whether the partition holds no data and no deletions.
func (p *Partition) Empty() bool {
	return p.Tombstone.IsEmpty() && p.Static.Empty() && len(p.rows) == 0 && len(p.rangeTombstones) == 0
}

// MinTimestamp is the lowest write timestamp of anything in the partition.
func (p *Partition) MinTimestamp() types.Timestamp {
	minTS := types.MaxTimestamp
	see := func(ts types.Timestamp) {
		if ts != types.MissingTimestamp && ts < minTS {
			minTS = ts
		}
	}
	see(p.Tombstone.Timestamp)
	for _, cc := range p.Static.Cells() {
		see(cc.Cell.Timestamp)
	}
	for _, cr := range p.rows {
		see(cr.Tombstone.Regular.Timestamp)
		see(cr.Tombstone.Shadowable.Timestamp)
		see(cr.Marker.Timestamp)
		for _, cc := range cr.Cells.Cells() {
			see(cc.Cell.Timestamp)
		}
	}
	for _, rt := range p.rangeTombstones {
		see(rt.Tombstone.Timestamp)
	}
	return minTS
}

// Fragments renders the partition as an ordered fragment stream. Range
// tombstones are flattened into changes of the strongest tombstone in force.
func (p *Partition) Fragments() []Fragment {
	frags := []Fragment{PartitionStart{Key: p.Key, Tombstone: p.Tombstone}}
	if !p.Static.Empty() {
		frags = append(frags, StaticRow{Cells: p.Static.Clone()})
	}

	bounds := make([]Position, 0, 2*len(p.rangeTombstones))
	for _, rt := range p.rangeTombstones {
		bounds = append(bounds, rt.Start, rt.End)
	}
	slices.SortFunc(bounds, Position.Compare)
	bounds = slices.CompactFunc(bounds, func(a, b Position) bool { return a.Compare(b) == 0 })

	var current Tombstone
	rows := p.rows
	for _, b := range bounds {
		for len(rows) > 0 && RowPosition(rows[0].Key).Compare(b) < 0 {
			frags = append(frags, rows[0].Clone())
			rows = rows[1:]
		}
		var active Tombstone
		for _, rt := range p.rangeTombstones {
			if rt.covers(b) {
				active.Apply(rt.Tombstone)
			}
		}
		if active != current {
			frags = append(frags, RangeTombstoneChange{Pos: b, Tombstone: active})
			current = active
		}
	}
	for _, cr := range rows {
		frags = append(frags, cr.Clone())
	}
	return append(frags, PartitionEnd{})
}
