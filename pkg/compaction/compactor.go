package compaction

import (
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/query"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

// Compactor binds a State to its two consumers. It is itself a
// mutation.FragmentConsumer, so it can be a stage of a larger pipeline.
type Compactor struct {
	state      *State
	consumer   CompactedFragmentsConsumer
	gcConsumer CompactedFragmentsConsumer
}

var _ mutation.FragmentConsumer = (*Compactor)(nil)

// NewForQuery compacts a read. Purged data is dropped.
func NewForQuery(
	s *schema.Schema,
	queryTime types.GCTime,
	slice *query.PartitionSlice,
	rowLimit uint64,
	partitionLimit uint32,
	consumer CompactedFragmentsConsumer,
	opts ...Option,
) *Compactor {
	return NewWithState(NewQueryState(s, queryTime, slice, rowLimit, partitionLimit, opts...), consumer, nil)
}

// NewForCompaction compacts data being rewritten. gcConsumer receives what
// was purged, nil drops it.
func NewForCompaction(
	s *schema.Schema,
	compactionTime types.GCTime,
	getMaxPurgeable MaxPurgeableFunc,
	consumer CompactedFragmentsConsumer,
	gcConsumer CompactedFragmentsConsumer,
	opts ...Option,
) *Compactor {
	return NewWithState(NewCompactionState(s, compactionTime, getMaxPurgeable, opts...), consumer, gcConsumer)
}

// NewWithState continues with an existing state, typically on a new page.
func NewWithState(state *State, consumer, gcConsumer CompactedFragmentsConsumer) *Compactor {
	if gcConsumer == nil {
		gcConsumer = NoopConsumer{}
	}
	return &Compactor{
		state:      state,
		consumer:   consumer,
		gcConsumer: gcConsumer,
	}
}

func (c *Compactor) ConsumeNewPartition(key mutation.DecoratedKey) {
	c.state.ConsumeNewPartition(key)
}

func (c *Compactor) ConsumeTombstone(t mutation.Tombstone) {
	c.state.ConsumeTombstone(t, c.consumer, c.gcConsumer)
}

func (c *Compactor) ConsumeStaticRow(sr mutation.StaticRow) bool {
	return c.state.ConsumeStaticRow(sr, c.consumer, c.gcConsumer)
}

func (c *Compactor) ConsumeClusteringRow(cr mutation.ClusteringRow) bool {
	return c.state.ConsumeClusteringRow(cr, c.consumer, c.gcConsumer)
}

func (c *Compactor) ConsumeRangeTombstoneChange(rtc mutation.RangeTombstoneChange) bool {
	return c.state.ConsumeRangeTombstoneChange(rtc, c.consumer, c.gcConsumer)
}

func (c *Compactor) ConsumeEndOfPartition() bool {
	return c.state.ConsumeEndOfPartition(c.consumer, c.gcConsumer)
}

func (c *Compactor) ConsumeEndOfStream() {
	c.state.ConsumeEndOfStream(c.consumer, c.gcConsumer)
}

func (c *Compactor) State() *State {
	return c.state
}
