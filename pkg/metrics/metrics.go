package metrics

import (
	"mutcompact/pkg/compaction"
)

// Collector captures counters, gauges and histograms.
type Collector interface {
	IncCounter(name string, labels map[string]string, delta float64)
	SetGauge(name string, labels map[string]string, value float64)
	ObserveHistogram(name string, labels map[string]string, value float64)
}

// Nop drops everything.
type Nop struct{}

func (Nop) IncCounter(string, map[string]string, float64)       {}
func (Nop) SetGauge(string, map[string]string, float64)         {}
func (Nop) ObserveHistogram(string, map[string]string, float64) {}

const (
	CompactionPartitions      = "compaction_partitions_total"
	CompactionRows            = "compaction_rows_total"
	CompactionRangeTombstones = "compaction_range_tombstones_total"
	FlushDuration             = "flush_duration_seconds"
	Segments                  = "segments"
)

// ReportCompaction adds the stats of one compaction run to c.
func ReportCompaction(c Collector, mode compaction.Mode, st compaction.Stats) {
	m := mode.String()
	c.IncCounter(CompactionPartitions, map[string]string{"mode": m}, float64(st.Partitions))
	c.IncCounter(CompactionRangeTombstones, map[string]string{"mode": m}, float64(st.RangeTombstones))

	rows := func(kind string, rs compaction.RowStats) {
		c.IncCounter(CompactionRows, map[string]string{"mode": m, "kind": kind, "state": "live"}, float64(rs.Live))
		c.IncCounter(CompactionRows, map[string]string{"mode": m, "kind": kind, "state": "dead"}, float64(rs.Dead))
	}
	rows("static", st.StaticRows)
	rows("clustering", st.ClusteringRows)
}
