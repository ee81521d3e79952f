package store

import (
	"context"
	"fmt"

	"mutcompact/pkg/compaction"
	"mutcompact/pkg/config"
	"mutcompact/pkg/dberrors"
	"mutcompact/pkg/metrics"
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/query"
	"mutcompact/pkg/types"
)

// ReadCommand describes a read. Zero limits take the configured defaults.
// RowLimit bounds the live rows of the whole read, PageSize those of one
// page. PartitionLimit applies to each page on its own, not to the read.
type ReadCommand struct {
	// Keys restricts the read to some partitions, all of them when empty.
	Keys           []types.Key
	Slice          *query.PartitionSlice
	RowLimit       uint64
	PartitionLimit uint32
	PageSize       uint64
}

func (c ReadCommand) withDefaults(cfg config.QueryConfig) ReadCommand {
	if c.Slice == nil {
		c.Slice = query.FullSlice()
		c.Slice.PartitionRowLimit = cfg.PartitionRowLimit
	}
	if c.RowLimit == 0 {
		c.RowLimit = cfg.RowLimit
	}
	if c.PartitionLimit == 0 {
		c.PartitionLimit = cfg.PartitionLimit
	}
	if c.PageSize == 0 {
		c.PageSize = cfg.PageSize
	}
	return c
}

func (c ReadCommand) validate() error {
	for i, k := range c.Keys {
		if len(k) == 0 {
			return fmt.Errorf("%w: key %d is empty", dberrors.ErrInvalidArgument, i)
		}
	}
	return nil
}

// Page is one page of a read.
type Page struct {
	Partitions []*mutation.Partition
	Stats      compaction.Stats
	// Position is where the page stopped, unset when the read is over.
	Position *compaction.FullPosition
}

// Last reports whether no page follows.
func (p Page) Last() bool {
	return p.Position == nil
}

// Pager reads a snapshot page by page. Every page runs a fresh query
// compaction; a partition cut by the page limit is resumed from the
// detached state of the previous page, which is put back in front of the
// reader as soon as the page ends.
type Pager struct {
	store     *Store
	cmd       ReadCommand
	queryTime types.GCTime

	reader   *mutation.SliceReader
	rowsLeft uint64
	done     bool
}

func newPager(s *Store, cmd ReadCommand, partitions []*mutation.Partition) *Pager {
	sliced := make([]*mutation.Partition, 0, len(partitions))
	for _, p := range partitions {
		sliced = append(sliced, cmd.Slice.ApplyTo(p))
	}

	return &Pager{
		store:     s,
		cmd:       cmd,
		queryTime: s.now(),
		reader:    mutation.NewPartitionReader(sliced...),
		rowsLeft:  cmd.RowLimit,
	}
}

func (p *Pager) Done() bool {
	return p.done
}

func (p *Pager) NextPage(ctx context.Context) (Page, error) {
	if p.done {
		return Page{}, ErrPagerExhausted
	}
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	pageRows := min(p.cmd.PageSize, p.rowsLeft)
	st := compaction.NewQueryState(
		p.store.schema,
		p.queryTime,
		p.cmd.Slice,
		pageRows,
		p.cmd.PartitionLimit,
		compaction.WithGCBefore(p.store.gcBefore),
		compaction.WithLogger(p.store.logger),
	)
	b := mutation.NewPartitionBuilder()
	stopped := mutation.Consume(p.reader, compaction.NewWithState(st, compaction.ForwardTo(b), nil))

	page := Page{Partitions: b.Partitions(), Stats: st.Stats()}
	metrics.ReportCompaction(p.store.metrics, compaction.ForQuery, page.Stats)
	p.rowsLeft -= min(p.rowsLeft, pageRows-st.RowLimit())

	if ds, ok := st.DetachState(); ok {
		ds.Resume(p.reader)
	}
	_, more := p.reader.Peek()
	if !stopped || !more || p.rowsLeft == 0 {
		p.done = true
		return page, nil
	}

	if pos, ok := st.CurrentFullPosition(); ok {
		page.Position = &pos
	}
	return page, nil
}

// ReadAll reads every page and returns the partitions merged back.
func (p *Pager) ReadAll(ctx context.Context) ([]*mutation.Partition, error) {
	var pages [][]*mutation.Partition
	for !p.done {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page.Partitions)
	}
	return MergePartitions(pages...), nil
}
