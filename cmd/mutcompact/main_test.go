package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
schema:
  keyspace: ks
  table: events
  regular: [v]
partitions:
  - key: p
    rows:
      - key: a
        marker: 10
        cells:
          v: {timestamp: 10, value: alive}
      - key: b
        cells:
          v: {timestamp: 11, deleted_at: 1000}
      - key: c
        marker: 12
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	return runWith(t, fixtureYAML, "", args...)
}

// runWith runs the command on fixture, with config as the config file when
// it is not empty.
func runWith(t *testing.T, fixture, config string, args ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fixture), 0o600))
	configPath := filepath.Join(dir, "config.yaml")
	if config != "" {
		require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	}

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--config", configPath, "--now", "2024-01-20T00:00:00Z", path))
	require.NoError(t, root.Execute())
	return out.String()
}

func TestCompactCmd(t *testing.T) {
	out := run(t, "compact")

	kept, garbage, found := strings.Cut(out, "garbage:")
	require.True(t, found)
	assert.Contains(t, kept, "clustering_row{a,")
	assert.Contains(t, kept, "clustering_row{c,")
	assert.NotContains(t, kept, "clustering_row{b,")
	assert.Contains(t, garbage, "clustering_row{b,")
	assert.Contains(t, garbage, "dead{ts=11, dt=1000}")
	assert.Contains(t, out, "compaction_rows_total")
}

func TestCompactCmd_NothingPurgeable(t *testing.T) {
	out := run(t, "compact", "--max-purgeable", "0")

	kept, garbage, found := strings.Cut(out, "garbage:")
	require.True(t, found)
	assert.Contains(t, kept, "clustering_row{b,")
	assert.NotContains(t, garbage, "clustering_row")
}

func TestCompactCmd_ManyPartitionsSmallMemtable(t *testing.T) {
	var fixture strings.Builder
	fixture.WriteString("schema: {keyspace: ks, table: events, regular: [v]}\npartitions:\n")
	for i := range 10 {
		fmt.Fprintf(&fixture, "  - key: p%d\n    rows:\n      - {key: a, marker: 10}\n", i)
	}
	fixture.WriteString("  - key: p0\n    rows:\n      - {key: b, marker: 11}\n")

	out := runWith(t, fixture.String(), "memtable: {flush_threshold: 1, flush_chan_buff_size: 1}\n", "compact")

	kept, _, found := strings.Cut(out, "garbage:")
	require.True(t, found)
	assert.Equal(t, 10, strings.Count(kept, "partition_start{"))
	assert.Equal(t, 11, strings.Count(kept, "clustering_row{"))
}

func TestQueryCmd_Pages(t *testing.T) {
	out := run(t, "query", "--page-size", "1")

	assert.Contains(t, out, "page 1: 1 live rows")
	assert.Contains(t, out, "page 2: 1 live rows")
	assert.Contains(t, out, "clustering_row{a,")
	assert.Contains(t, out, "clustering_row{c,")
	assert.NotContains(t, out, "clustering_row{b,")
	assert.Contains(t, out, "compaction_partitions_total{mode=query}")
}

func TestQueryCmd_Flush(t *testing.T) {
	out := run(t, "query", "--flush", "--key", "p")

	assert.Contains(t, out, "page 1: 2 live rows")
	assert.Contains(t, out, "segments{table=ks.events} 1")
}

func TestRootCmd_BadNow(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"compact", "--now", "yesterday", "--config", filepath.Join(t.TempDir(), "none.yaml"), "x.yaml"})
	assert.Error(t, root.Execute())
}
