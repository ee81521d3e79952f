// Package tombstonegc computes the purge horizon of a partition: the time
// before which a tombstone's deletion time makes it eligible for removal.
package tombstonegc

import (
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

// GCBeforeFunc is the per key purge horizon oracle.
type GCBeforeFunc func(s *schema.Schema, key mutation.DecoratedKey, queryTime types.GCTime) types.GCTime

// GCBefore derives the horizon from the table's tombstone gc options.
func GCBefore(s *schema.Schema, _ mutation.DecoratedKey, queryTime types.GCTime) types.GCTime {
	switch s.TombstoneGC.Mode {
	case schema.GCImmediate:
		return queryTime
	case schema.GCDisabled:
		return types.MinGCTime
	default:
		return queryTime.Add(-s.TombstoneGC.GracePeriod)
	}
}

// Fixed returns an oracle answering t for every key.
func Fixed(t types.GCTime) GCBeforeFunc {
	return func(*schema.Schema, mutation.DecoratedKey, types.GCTime) types.GCTime {
		return t
	}
}
