package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutcompact/pkg/dberrors"
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

const sample = `
schema:
  keyspace: ks
  table: events
  static: [s]
  regular: [v, w]
partitions:
  - key: p1
    tombstone: {timestamp: 5, deletion_time: 100}
    static:
      s: {timestamp: 10, value: shared}
    rows:
      - key: a
        marker: 10
        cells:
          v: {timestamp: 10, value: hello}
          w: {timestamp: 11, deleted_at: 200}
      - key: b
        tombstone: {timestamp: 12, deletion_time: 300}
      - key: c
        cells:
          v: {timestamp: 10, value: short, ttl: 1m, expiry: 400}
    range_tombstones:
      - start: b
        start_inclusive: true
        end: d
        tombstone: {timestamp: 15, deletion_time: 500}
`

func TestParseAndBuild(t *testing.T) {
	f, err := Parse([]byte(sample))
	require.NoError(t, err)

	s, parts, err := f.Build(schema.TombstoneGCOptions{Mode: schema.GCImmediate})
	require.NoError(t, err)

	assert.Equal(t, "ks.events", s.String())
	assert.Equal(t, schema.GCImmediate, s.TombstoneGC.Mode)
	require.Len(t, parts, 1)

	p := parts[0]
	assert.Equal(t, mutation.NewTombstone(5, 100), p.Tombstone)

	static, ok := p.Static.Cell(0)
	require.True(t, ok)
	assert.Equal(t, []byte("shared"), static.Value)

	rows := p.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, mutation.NewRowMarker(10), rows[0].Marker)
	w, ok := rows[0].Cells.Cell(1)
	require.True(t, ok)
	assert.True(t, w.Dead)
	assert.Equal(t, types.GCTime(200), w.DeletionTime)

	assert.Equal(t, mutation.NewRowTombstone(mutation.NewTombstone(12, 300)), rows[1].Tombstone)

	v, ok := rows[2].Cells.Cell(0)
	require.True(t, ok)
	assert.True(t, v.IsExpiring())
	assert.Equal(t, time.Minute, v.TTL)

	rts := p.RangeTombstones()
	require.Len(t, rts, 1)
	assert.Equal(t, mutation.BeforeRow(mutation.ClusteringKey("b")), rts[0].Start)
	assert.Equal(t, mutation.BeforeRow(mutation.ClusteringKey("d")), rts[0].End)
}

func TestBuild_UnknownColumn(t *testing.T) {
	f, err := Parse([]byte(`
schema: {keyspace: ks, table: t, regular: [v]}
partitions:
  - key: p
    static:
      v: {timestamp: 1, value: x}
`))
	require.NoError(t, err)

	_, _, err = f.Build(schema.TombstoneGCOptions{})
	assert.ErrorIs(t, err, dberrors.ErrUnknownColumn)
}

func TestBuild_EmptyKey(t *testing.T) {
	f, err := Parse([]byte(`
schema: {keyspace: ks, table: t}
partitions:
  - rows: []
`))
	require.NoError(t, err)

	_, _, err = f.Build(schema.TombstoneGCOptions{})
	assert.ErrorIs(t, err, dberrors.ErrInvalidArgument)
}

func TestParse_NoTable(t *testing.T) {
	_, err := Parse([]byte("partitions: []"))
	assert.ErrorIs(t, err, dberrors.ErrInvalidArgument)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, f.Partitions, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
