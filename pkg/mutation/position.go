package mutation

import (
	"cmp"
	"fmt"
)

// Region is the coarse part of a position in a partition.
type Region uint8

const (
	RegionPartitionStart Region = iota
	RegionStatic
	RegionClustered
	RegionPartitionEnd
)

func (r Region) String() string {
	switch r {
	case RegionPartitionStart:
		return "partition_start"
	case RegionStatic:
		return "static"
	case RegionClustered:
		return "clustered"
	case RegionPartitionEnd:
		return "partition_end"
	default:
		return fmt.Sprintf("Region(%d)", uint8(r))
	}
}

// BoundWeight places a position relative to its clustering key.
type BoundWeight int8

const (
	BeforeKey BoundWeight = -1
	AtKey     BoundWeight = 0
	AfterKey  BoundWeight = 1
)

// Position is a point in a partition. In the clustered region an empty key
// with BeforeKey is before every row and with AfterKey after every row.
type Position struct {
	Region Region
	Key    ClusteringKey
	Weight BoundWeight
}

func PartitionStartPosition() Position {
	return Position{Region: RegionPartitionStart}
}

func StaticRowPosition() Position {
	return Position{Region: RegionStatic}
}

func PartitionEndPosition() Position {
	return Position{Region: RegionPartitionEnd}
}

func RowPosition(key ClusteringKey) Position {
	return Position{Region: RegionClustered, Key: key, Weight: AtKey}
}

func BeforeRow(key ClusteringKey) Position {
	return Position{Region: RegionClustered, Key: key, Weight: BeforeKey}
}

func AfterRow(key ClusteringKey) Position {
	return Position{Region: RegionClustered, Key: key, Weight: AfterKey}
}

func BeforeAllRows() Position {
	return Position{Region: RegionClustered, Weight: BeforeKey}
}

func AfterAllRows() Position {
	return Position{Region: RegionClustered, Weight: AfterKey}
}

// After returns the position immediately following p. Anything before the
// clustered region maps to the position before the first row.
func (p Position) After() Position {
	switch p.Region {
	case RegionPartitionStart, RegionStatic:
		return BeforeAllRows()
	case RegionClustered:
		if p.Weight == BeforeKey && len(p.Key) == 0 {
			return p
		}
		return Position{Region: RegionClustered, Key: p.Key, Weight: AfterKey}
	default:
		return p
	}
}

func (p Position) Compare(o Position) int {
	if c := cmp.Compare(p.Region, o.Region); c != 0 {
		return c
	}
	if p.Region != RegionClustered {
		return 0
	}
	switch {
	case len(p.Key) == 0 && len(o.Key) == 0:
		return cmp.Compare(p.Weight, o.Weight)
	case len(p.Key) == 0:
		if p.Weight == AfterKey {
			return 1
		}
		return -1
	case len(o.Key) == 0:
		if o.Weight == AfterKey {
			return -1
		}
		return 1
	}
	if c := p.Key.Compare(o.Key); c != 0 {
		return c
	}
	return cmp.Compare(p.Weight, o.Weight)
}

func (p Position) String() string {
	if p.Region != RegionClustered {
		return p.Region.String()
	}
	switch {
	case len(p.Key) == 0 && p.Weight == BeforeKey:
		return "before_all_rows"
	case len(p.Key) == 0:
		return "after_all_rows"
	case p.Weight == BeforeKey:
		return fmt.Sprintf("before(%s)", p.Key)
	case p.Weight == AfterKey:
		return fmt.Sprintf("after(%s)", p.Key)
	default:
		return fmt.Sprintf("row(%s)", p.Key)
	}
}
