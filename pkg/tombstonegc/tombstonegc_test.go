package tombstonegc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mutcompact/pkg/mutation"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

func TestGCBefore(t *testing.T) {
	const now types.GCTime = 1_000_000
	key := mutation.NewDecoratedKey([]byte("p"))

	tests := []struct {
		mode schema.TombstoneGCMode
		want types.GCTime
	}{
		{mode: schema.GCTimeout, want: now - 3600},
		{mode: schema.GCImmediate, want: now},
		{mode: schema.GCDisabled, want: types.MinGCTime},
	}

	for _, tt := range tests {
		s := schema.NewBuilder("ks", "t").
			WithTombstoneGC(schema.TombstoneGCOptions{Mode: tt.mode, GracePeriod: time.Hour}).
			Build()
		assert.Equal(t, tt.want, GCBefore(s, key, now))
	}
}

func TestGCBefore_DefaultGracePeriod(t *testing.T) {
	s := schema.NewBuilder("ks", "t").Build()
	got := GCBefore(s, mutation.NewDecoratedKey([]byte("p")), 1_000_000)
	assert.Equal(t, types.GCTime(1_000_000-864_000), got)
}

func TestFixed(t *testing.T) {
	fn := Fixed(42)
	assert.Equal(t, types.GCTime(42), fn(nil, mutation.DecoratedKey{}, 7))
}
