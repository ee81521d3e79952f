package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGCTime_Add(t *testing.T) {
	assert.Equal(t, GCTime(110), GCTime(100).Add(10*time.Second))
	assert.Equal(t, GCTime(90), GCTime(100).Add(-10*time.Second))
	assert.Equal(t, MaxGCTime, (MaxGCTime - 1).Add(time.Hour))
	assert.Equal(t, MinGCTime, (MinGCTime + 1).Add(-time.Hour))
}

func TestGCTime_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now, GCTimeOf(now).Time())
	assert.Equal(t, Timestamp(now.UnixMicro()), TimestampOf(now))
}
