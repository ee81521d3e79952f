package compaction

type RowStats struct {
	Live uint64
	Dead uint64
}

func (s *RowStats) add(isLive bool) {
	if isLive {
		s.Live++
	} else {
		s.Dead++
	}
}

func (s RowStats) Total() uint64 {
	return s.Live + s.Dead
}

// Stats counts what a compaction went through. Purely informational.
type Stats struct {
	Partitions      uint64
	StaticRows      RowStats
	ClusteringRows  RowStats
	RangeTombstones uint64
}
