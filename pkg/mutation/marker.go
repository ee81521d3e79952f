package mutation

import (
	"cmp"
	"fmt"
	"time"

	"mutcompact/pkg/types"
)

// RowMarker records that a row exists independently of its cells. The zero
// value is a missing marker.
type RowMarker struct {
	Timestamp types.Timestamp

	TTL    time.Duration
	Expiry types.GCTime

	Dead         bool
	DeletionTime types.GCTime
}

func NewRowMarker(ts types.Timestamp) RowMarker {
	return RowMarker{Timestamp: ts}
}

func NewExpiringRowMarker(ts types.Timestamp, expiry types.GCTime, ttl time.Duration) RowMarker {
	return RowMarker{Timestamp: ts, Expiry: expiry, TTL: ttl}
}

func NewDeadRowMarker(ts types.Timestamp, deletionTime types.GCTime) RowMarker {
	return RowMarker{Timestamp: ts, Dead: true, DeletionTime: deletionTime}
}

func (m RowMarker) IsMissing() bool {
	return m.Timestamp == types.MissingTimestamp
}

func (m RowMarker) IsLive(now types.GCTime) bool {
	if m.IsMissing() || m.Dead {
		return false
	}
	return m.TTL <= 0 || now < m.Expiry
}

func (m RowMarker) deletionTime() types.GCTime {
	switch {
	case m.Dead:
		return m.DeletionTime
	case m.TTL > 0:
		return m.Expiry.Add(-m.TTL)
	default:
		return types.MaxGCTime
	}
}

// Apply merges o into m, the later write wins.
func (m *RowMarker) Apply(o RowMarker) {
	if o.IsMissing() {
		return
	}
	if m.IsMissing() {
		*m = o
		return
	}
	c := cmp.Compare(o.Timestamp, m.Timestamp)
	if c == 0 && o.Dead != m.Dead {
		if o.Dead {
			c = 1
		}
	} else if c == 0 {
		c = cmp.Compare(o.deletionTime(), m.deletionTime())
	}
	if c > 0 {
		*m = o
	}
}

// CompactAndExpire applies the same rules as Row.CompactAndExpire to the
// marker and reports whether it is still live.
func (m *RowMarker) CompactAndExpire(
	tomb Tombstone,
	now types.GCTime,
	canGC CanGCFunc,
	gcBefore types.GCTime,
	collector GarbageCollector,
) bool {
	if m.IsMissing() {
		return false
	}
	if tomb.Covers(m.Timestamp) {
		*m = RowMarker{}
		return false
	}
	if !m.Dead && m.TTL > 0 && m.Expiry <= now {
		*m = NewDeadRowMarker(m.Timestamp, m.deletionTime())
	}
	if m.Dead && m.DeletionTime < gcBefore && canGC(NewTombstone(m.Timestamp, m.DeletionTime)) {
		if collector != nil {
			collector.CollectMarker(*m)
		}
		*m = RowMarker{}
	}
	return !m.IsMissing() && !m.Dead
}

func (m RowMarker) String() string {
	switch {
	case m.IsMissing():
		return "none"
	case m.Dead:
		return fmt.Sprintf("dead{ts=%d, dt=%d}", m.Timestamp, m.DeletionTime)
	case m.TTL > 0:
		return fmt.Sprintf("{ts=%d, expiry=%d, ttl=%s}", m.Timestamp, m.Expiry, m.TTL)
	default:
		return fmt.Sprintf("{ts=%d}", m.Timestamp)
	}
}
