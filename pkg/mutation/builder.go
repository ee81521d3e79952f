package mutation

// PartitionBuilder materialises a fragment stream back into partitions.
// Range tombstone changes are folded back into range tombstones.
type PartitionBuilder struct {
	parts []*Partition

	current  *Partition
	openPos  Position
	openTomb Tombstone
}

var _ FragmentConsumer = (*PartitionBuilder)(nil)

func NewPartitionBuilder() *PartitionBuilder {
	return &PartitionBuilder{}
}

func (b *PartitionBuilder) ConsumeNewPartition(key DecoratedKey) {
	b.current = NewPartition(key.Clone())
	b.openTomb = Tombstone{}
}

func (b *PartitionBuilder) ConsumeTombstone(t Tombstone) {
	b.current.ApplyTombstone(t)
}

func (b *PartitionBuilder) ConsumeStaticRow(sr StaticRow) bool {
	b.current.Static.ApplyRow(sr.Cells)
	return false
}

func (b *PartitionBuilder) ConsumeClusteringRow(cr ClusteringRow) bool {
	b.current.ApplyRow(cr)
	return false
}

func (b *PartitionBuilder) ConsumeRangeTombstoneChange(rtc RangeTombstoneChange) bool {
	b.closeRange(rtc.Pos)
	b.openPos = rtc.Pos
	b.openTomb = rtc.Tombstone
	return false
}

func (b *PartitionBuilder) closeRange(end Position) {
	if b.openTomb.IsEmpty() {
		return
	}
	b.current.ApplyRangeTombstone(RangeTombstone{Start: b.openPos, End: end, Tombstone: b.openTomb})
	b.openTomb = Tombstone{}
}

func (b *PartitionBuilder) ConsumeEndOfPartition() bool {
	if b.current == nil {
		return false
	}
	// A well formed stream closes its ranges, a truncated one leaves
	// them open to the end of the partition.
	b.closeRange(AfterAllRows())
	b.parts = append(b.parts, b.current)
	b.current = nil
	return false
}

func (b *PartitionBuilder) ConsumeEndOfStream() {
	b.ConsumeEndOfPartition()
}

// Partitions returns what was built so far.
func (b *PartitionBuilder) Partitions() []*Partition {
	return b.parts
}
