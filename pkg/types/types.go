package types

import (
	"math"
	"time"
)

// Key is an immutable byte slice type alias used for clarity.
type Key = []byte

// Value is an immutable byte slice type alias used for clarity.
type Value = []byte

// Timestamp is a write timestamp in microseconds since the epoch.
// Zero is reserved for "missing".
type Timestamp int64

const (
	MissingTimestamp Timestamp = 0
	MaxTimestamp     Timestamp = math.MaxInt64
)

// GCTime is a deletion or expiry time with second precision.
type GCTime int64

const (
	MinGCTime GCTime = math.MinInt64
	MaxGCTime GCTime = math.MaxInt64
)

// GCTimeOf truncates t to GCTime precision.
func GCTimeOf(t time.Time) GCTime {
	return GCTime(t.Unix())
}

// Time converts back to wall-clock time.
func (t GCTime) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

// Add returns t shifted by d, saturating at the bounds.
func (t GCTime) Add(d time.Duration) GCTime {
	secs := int64(d / time.Second)
	switch {
	case secs > 0 && int64(t) > math.MaxInt64-secs:
		return MaxGCTime
	case secs < 0 && int64(t) < math.MinInt64-secs:
		return MinGCTime
	}
	return t + GCTime(secs)
}

// TimestampOf converts t to a microsecond write timestamp.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMicro())
}
