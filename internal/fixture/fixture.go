// Package fixture decodes tables written as YAML, for the command line and
// for tests.
package fixture

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"mutcompact/pkg/dberrors"
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/types"
)

type File struct {
	Schema     Schema      `yaml:"schema"`
	Partitions []Partition `yaml:"partitions"`
}

type Schema struct {
	Keyspace string   `yaml:"keyspace"`
	Table    string   `yaml:"table"`
	Static   []string `yaml:"static"`
	Regular  []string `yaml:"regular"`
}

type Tombstone struct {
	Timestamp    int64 `yaml:"timestamp"`
	DeletionTime int64 `yaml:"deletion_time"`
}

type Cell struct {
	Timestamp int64         `yaml:"timestamp"`
	Value     string        `yaml:"value"`
	TTL       time.Duration `yaml:"ttl"`
	Expiry    int64         `yaml:"expiry"`
	// DeletedAt makes the cell dead.
	DeletedAt *int64 `yaml:"deleted_at"`
}

type Row struct {
	Key        string          `yaml:"key"`
	Marker     int64           `yaml:"marker"`
	Tombstone  *Tombstone      `yaml:"tombstone"`
	Shadowable *Tombstone      `yaml:"shadowable"`
	Cells      map[string]Cell `yaml:"cells"`
}

type RangeTombstone struct {
	Start          string    `yaml:"start"`
	StartInclusive bool      `yaml:"start_inclusive"`
	End            string    `yaml:"end"`
	EndInclusive   bool      `yaml:"end_inclusive"`
	Tombstone      Tombstone `yaml:"tombstone"`
}

type Partition struct {
	Key             string           `yaml:"key"`
	Tombstone       *Tombstone       `yaml:"tombstone"`
	Static          map[string]Cell  `yaml:"static"`
	Rows            []Row            `yaml:"rows"`
	RangeTombstones []RangeTombstone `yaml:"range_tombstones"`
}

// Load reads and decodes a fixture file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Schema.Table == "" {
		return nil, fmt.Errorf("%w: fixture has no table name", dberrors.ErrInvalidArgument)
	}
	return &f, nil
}

// Build returns the schema and the partitions, with the table options
// given by gc.
func (f *File) Build(gc schema.TombstoneGCOptions) (*schema.Schema, []*mutation.Partition, error) {
	b := schema.NewBuilder(f.Schema.Keyspace, f.Schema.Table).WithTombstoneGC(gc)
	for _, name := range f.Schema.Static {
		b.WithStaticColumn(name)
	}
	for _, name := range f.Schema.Regular {
		b.WithRegularColumn(name)
	}
	s := b.Build()

	parts := make([]*mutation.Partition, 0, len(f.Partitions))
	for _, fp := range f.Partitions {
		p, err := fp.build(s)
		if err != nil {
			return nil, nil, fmt.Errorf("partition %q: %w", fp.Key, err)
		}
		parts = append(parts, p)
	}
	return s, parts, nil
}

func (t *Tombstone) build() mutation.Tombstone {
	if t == nil {
		return mutation.Tombstone{}
	}
	return mutation.NewTombstone(types.Timestamp(t.Timestamp), types.GCTime(t.DeletionTime))
}

func (c Cell) build() mutation.Cell {
	switch {
	case c.DeletedAt != nil:
		return mutation.NewDeadCell(types.Timestamp(c.Timestamp), types.GCTime(*c.DeletedAt))
	case c.TTL > 0:
		return mutation.NewExpiringCell(types.Timestamp(c.Timestamp), []byte(c.Value), types.GCTime(c.Expiry), c.TTL)
	default:
		return mutation.NewLiveCell(types.Timestamp(c.Timestamp), []byte(c.Value))
	}
}

func column(s *schema.Schema, kind schema.ColumnKind, name string) (schema.ColumnID, error) {
	col, ok := s.ColumnByName(name)
	if !ok || col.Kind != kind {
		return 0, fmt.Errorf("%w: %s column %q", dberrors.ErrUnknownColumn, kind, name)
	}
	return col.ID, nil
}

func (fp Partition) build(s *schema.Schema) (*mutation.Partition, error) {
	if fp.Key == "" {
		return nil, fmt.Errorf("%w: empty partition key", dberrors.ErrInvalidArgument)
	}

	p := mutation.NewPartition(mutation.NewDecoratedKey([]byte(fp.Key)))
	p.ApplyTombstone(fp.Tombstone.build())

	for name, c := range fp.Static {
		id, err := column(s, schema.StaticColumn, name)
		if err != nil {
			return nil, err
		}
		p.ApplyStaticCell(id, c.build())
	}

	for _, fr := range fp.Rows {
		cr := mutation.ClusteringRow{Key: mutation.ClusteringKey(fr.Key)}
		if fr.Marker != 0 {
			cr.Marker = mutation.NewRowMarker(types.Timestamp(fr.Marker))
		}
		switch {
		case fr.Shadowable != nil:
			cr.Tombstone = mutation.NewShadowableRowTombstone(fr.Tombstone.build(), fr.Shadowable.build())
		case fr.Tombstone != nil:
			cr.Tombstone = mutation.NewRowTombstone(fr.Tombstone.build())
		}
		for name, c := range fr.Cells {
			id, err := column(s, schema.RegularColumn, name)
			if err != nil {
				return nil, fmt.Errorf("row %q: %w", fr.Key, err)
			}
			cr.Cells.Apply(id, c.build())
		}
		p.ApplyRow(cr)
	}

	for _, rt := range fp.RangeTombstones {
		var start, end mutation.ClusteringKey
		if rt.Start != "" {
			start = mutation.ClusteringKey(rt.Start)
		}
		if rt.End != "" {
			end = mutation.ClusteringKey(rt.End)
		}
		p.ApplyRangeTombstone(mutation.NewRangeTombstone(start, rt.StartInclusive, end, rt.EndInclusive, rt.Tombstone.build()))
	}

	return p, nil
}
