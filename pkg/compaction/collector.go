package compaction

import (
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/schema"
)

type collecting uint8

const (
	notCollecting collecting = iota
	collectingStatic
	collectingClustering
)

// garbageCollector buffers what cell compaction purged from the row being
// compacted, so it can be reported downstream as one row.
type garbageCollector struct {
	state collecting
	key   mutation.ClusteringKey
	tomb  mutation.RowTombstone
	mark  mutation.RowMarker
	row   mutation.Row
}

var _ mutation.GarbageCollector = (*garbageCollector)(nil)

func (c *garbageCollector) startCollectingStaticRow() {
	c.reset()
	c.state = collectingStatic
}

func (c *garbageCollector) startCollectingClusteringRow(key mutation.ClusteringKey) {
	c.reset()
	c.state = collectingClustering
	c.key = key
}

func (c *garbageCollector) collectTombstone(t mutation.RowTombstone) {
	c.tomb = t
}

func (c *garbageCollector) Collect(id schema.ColumnID, cell mutation.Cell) {
	c.row.Apply(id, cell)
}

func (c *garbageCollector) CollectMarker(m mutation.RowMarker) {
	c.mark = m
}

// consumeStaticRow hands the buffered static row to consume if anything was
// collected.
func (c *garbageCollector) consumeStaticRow(consume func(mutation.StaticRow)) {
	if c.state != collectingStatic {
		return
	}
	defer c.reset()
	if c.row.Empty() {
		return
	}
	consume(mutation.StaticRow{Cells: c.row})
}

func (c *garbageCollector) consumeClusteringRow(consume func(mutation.ClusteringRow)) {
	if c.state != collectingClustering {
		return
	}
	defer c.reset()
	if c.tomb.IsEmpty() && c.mark.IsMissing() && c.row.Empty() {
		return
	}
	consume(mutation.ClusteringRow{
		Key:       c.key,
		Tombstone: c.tomb,
		Marker:    c.mark,
		Cells:     c.row,
	})
}

func (c *garbageCollector) reset() {
	*c = garbageCollector{}
}
