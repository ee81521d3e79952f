package compaction

import "mutcompact/pkg/mutation"

// CompactedFragmentsConsumer receives the output of a compaction. Rows come
// with the tombstone that was in force for them and their liveness. The
// bool results ask the compaction to stop.
type CompactedFragmentsConsumer interface {
	ConsumeNewPartition(key mutation.DecoratedKey)
	ConsumeTombstone(t mutation.Tombstone)
	ConsumeStaticRow(sr mutation.StaticRow, current mutation.Tombstone, isAlive bool) bool
	ConsumeClusteringRow(cr mutation.ClusteringRow, current mutation.RowTombstone, isAlive bool) bool
	ConsumeRangeTombstoneChange(rtc mutation.RangeTombstoneChange) bool
	ConsumeEndOfPartition() bool
	ConsumeEndOfStream()
}

// NoopConsumer drops everything and never asks to stop.
type NoopConsumer struct{}

func (NoopConsumer) ConsumeNewPartition(mutation.DecoratedKey) {}
func (NoopConsumer) ConsumeTombstone(mutation.Tombstone)       {}
func (NoopConsumer) ConsumeStaticRow(mutation.StaticRow, mutation.Tombstone, bool) bool {
	return false
}
func (NoopConsumer) ConsumeClusteringRow(mutation.ClusteringRow, mutation.RowTombstone, bool) bool {
	return false
}
func (NoopConsumer) ConsumeRangeTombstoneChange(mutation.RangeTombstoneChange) bool { return false }
func (NoopConsumer) ConsumeEndOfPartition() bool                                    { return false }
func (NoopConsumer) ConsumeEndOfStream()                                            {}

// ForwardTo adapts a plain fragment consumer, such as another compactor,
// so it can sit behind a compaction.
func ForwardTo(next mutation.FragmentConsumer) CompactedFragmentsConsumer {
	return forwarder{next: next}
}

type forwarder struct {
	next mutation.FragmentConsumer
}

func (f forwarder) ConsumeNewPartition(key mutation.DecoratedKey) {
	f.next.ConsumeNewPartition(key)
}

func (f forwarder) ConsumeTombstone(t mutation.Tombstone) {
	f.next.ConsumeTombstone(t)
}

func (f forwarder) ConsumeStaticRow(sr mutation.StaticRow, _ mutation.Tombstone, _ bool) bool {
	return f.next.ConsumeStaticRow(sr)
}

func (f forwarder) ConsumeClusteringRow(cr mutation.ClusteringRow, _ mutation.RowTombstone, _ bool) bool {
	return f.next.ConsumeClusteringRow(cr)
}

func (f forwarder) ConsumeRangeTombstoneChange(rtc mutation.RangeTombstoneChange) bool {
	return f.next.ConsumeRangeTombstoneChange(rtc)
}

func (f forwarder) ConsumeEndOfPartition() bool {
	return f.next.ConsumeEndOfPartition()
}

func (f forwarder) ConsumeEndOfStream() {
	f.next.ConsumeEndOfStream()
}
