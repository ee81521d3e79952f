package schema

import (
	"fmt"
	"time"

	"mutcompact/pkg/dberrors"
)

// ColumnID indexes a column within its kind.
type ColumnID uint32

type ColumnKind uint8

const (
	StaticColumn ColumnKind = iota
	RegularColumn
)

func (k ColumnKind) String() string {
	switch k {
	case StaticColumn:
		return "static"
	case RegularColumn:
		return "regular"
	default:
		return fmt.Sprintf("ColumnKind(%d)", uint8(k))
	}
}

type ColumnDefinition struct {
	ID   ColumnID
	Name string
	Kind ColumnKind
}

// TombstoneGCMode selects how the purge horizon of a table is derived.
type TombstoneGCMode uint8

const (
	// GCTimeout purges tombstones older than the grace period.
	GCTimeout TombstoneGCMode = iota
	// GCImmediate purges tombstones as soon as they are written.
	GCImmediate
	// GCDisabled never purges tombstones.
	GCDisabled
)

// ParseTombstoneGCMode accepts the names used in config files.
func ParseTombstoneGCMode(s string) (TombstoneGCMode, error) {
	switch s {
	case "", "timeout":
		return GCTimeout, nil
	case "immediate":
		return GCImmediate, nil
	case "disabled":
		return GCDisabled, nil
	default:
		return 0, fmt.Errorf("%w: tombstone gc mode %q", dberrors.ErrInvalidArgument, s)
	}
}

type TombstoneGCOptions struct {
	Mode        TombstoneGCMode
	GracePeriod time.Duration
}

// Schema describes a table. It is immutable once built.
type Schema struct {
	Keyspace string
	Table    string

	static  []ColumnDefinition
	regular []ColumnDefinition

	TombstoneGC TombstoneGCOptions
}

// DefaultGracePeriod matches the usual gc_grace_seconds of ten days.
const DefaultGracePeriod = 10 * 24 * time.Hour

type Builder struct {
	s Schema
}

func NewBuilder(keyspace, table string) *Builder {
	return &Builder{s: Schema{
		Keyspace: keyspace,
		Table:    table,
		TombstoneGC: TombstoneGCOptions{
			Mode:        GCTimeout,
			GracePeriod: DefaultGracePeriod,
		},
	}}
}

func (b *Builder) WithStaticColumn(name string) *Builder {
	b.s.static = append(b.s.static, ColumnDefinition{
		ID:   ColumnID(len(b.s.static)),
		Name: name,
		Kind: StaticColumn,
	})
	return b
}

func (b *Builder) WithRegularColumn(name string) *Builder {
	b.s.regular = append(b.s.regular, ColumnDefinition{
		ID:   ColumnID(len(b.s.regular)),
		Name: name,
		Kind: RegularColumn,
	})
	return b
}

func (b *Builder) WithTombstoneGC(opts TombstoneGCOptions) *Builder {
	b.s.TombstoneGC = opts
	return b
}

func (b *Builder) Build() *Schema {
	s := b.s
	s.static = append([]ColumnDefinition(nil), b.s.static...)
	s.regular = append([]ColumnDefinition(nil), b.s.regular...)
	return &s
}

func (s *Schema) Columns(kind ColumnKind) []ColumnDefinition {
	if kind == StaticColumn {
		return s.static
	}
	return s.regular
}

// ColumnAt returns the definition for id, panicking on an unknown id like
// any out-of-range index would.
func (s *Schema) ColumnAt(kind ColumnKind, id ColumnID) ColumnDefinition {
	return s.Columns(kind)[id]
}

// ColumnByName looks a column up by name across both kinds.
func (s *Schema) ColumnByName(name string) (ColumnDefinition, bool) {
	for _, cols := range [][]ColumnDefinition{s.static, s.regular} {
		for _, c := range cols {
			if c.Name == name {
				return c, true
			}
		}
	}
	return ColumnDefinition{}, false
}

func (s *Schema) HasStaticColumns() bool {
	return len(s.static) > 0
}

func (s *Schema) String() string {
	return s.Keyspace + "." + s.Table
}
