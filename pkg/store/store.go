package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mutcompact/pkg/clock"
	"mutcompact/pkg/compaction"
	"mutcompact/pkg/config"
	"mutcompact/pkg/dberrors"
	"mutcompact/pkg/memtable"
	"mutcompact/pkg/metrics"
	"mutcompact/pkg/mutation"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/tombstonegc"
	"mutcompact/pkg/types"
)

type iTimeProvider interface {
	Now() time.Time
}

type iClock interface {
	Next(now types.Timestamp) types.Timestamp
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

type Option func(*Store)

func WithTimeProvider(tp iTimeProvider) Option {
	return func(s *Store) {
		s.tp = tp
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func WithMetrics(c metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = c
	}
}

// WithGCBefore replaces the purge horizon derived from the table options.
func WithGCBefore(fn tombstonegc.GCBeforeFunc) Option {
	return func(s *Store) {
		s.gcBefore = fn
	}
}

// Store is an in-memory table: writes go to a memtable, rotated memtables
// are compacted into immutable segments, reads merge both and compact the
// result for the query.
type Store struct {
	cfg      config.Config
	schema   *schema.Schema
	tp       iTimeProvider
	seqN     iClock
	logger   *slog.Logger
	metrics  metrics.Collector
	gcBefore tombstonegc.GCBeforeFunc

	mt *memtable.Memtable

	// segMu serializes segment list updates, readers load the pointer.
	segMu    sync.Mutex
	segments atomic.Pointer[[]*segment]
	// majorMu serializes major compactions.
	majorMu sync.Mutex
	garbage GarbageLog

	closeMu sync.RWMutex
	closed  bool
	close   func()
}

func New(cfg config.Config, s *schema.Schema, opts ...Option) (*Store, error) {
	if s == nil {
		return nil, ErrNoSchema
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store := &Store{
		cfg:      cfg,
		schema:   s,
		tp:       systemTime{},
		seqN:     clock.NewAtomic(types.MissingTimestamp),
		logger:   slog.Default(),
		metrics:  metrics.Nop{},
		gcBefore: tombstonegc.GCBefore,
		mt:       memtable.New(cfg.Memtable),
	}
	for _, opt := range opts {
		opt(store)
	}
	store.logger = store.logger.With("table", s.String())
	store.segments.Store(&[]*segment{})

	flusher := startFlusher(context.Background(), store)
	store.close = func() {
		flusher.stop()
		store.mt.Close()
	}

	return store, nil
}

// Timestamp returns a write timestamp greater than any returned before.
func (s *Store) Timestamp() types.Timestamp {
	return s.seqN.Next(types.TimestampOf(s.tp.Now()))
}

func (s *Store) now() types.GCTime {
	return types.GCTimeOf(s.tp.Now())
}

// Apply writes the partition mutation p.
func (s *Store) Apply(p *mutation.Partition) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return dberrors.ErrClosed
	}

	if err := s.mt.Apply(p); err != nil {
		return fmt.Errorf("apply to %s: %w", p.Key, err)
	}
	return nil
}

// Flush rotates the memtable and waits until every rotated table is
// compacted into a segment.
func (s *Store) Flush(ctx context.Context) error {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		return dberrors.ErrClosed
	}
	s.mt.Rotate()
	s.closeMu.RUnlock()

	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for s.mt.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// Compact merges all segments into one, purging what became purgeable.
func (s *Store) Compact(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.majorMu.Lock()
	defer s.majorMu.Unlock()

	segs := s.loadSegments()
	if len(segs) == 0 {
		return nil
	}

	jobID := uuid.New()
	compacting := make(map[uuid.UUID]struct{}, len(segs))
	sources := make([][]*mutation.Partition, 0, len(segs))
	for _, seg := range segs {
		compacting[seg.id] = struct{}{}
		sources = append(sources, seg.partitions)
	}

	start := s.tp.Now()
	kept, garbage, stats := s.rewrite(jobID, MergePartitions(sources...), s.maxPurgeable(nil, compacting))
	s.replaceSegments(compacting, newSegment(jobID, kept))
	s.garbage.append(GarbageRecord{JobID: jobID, At: start, Partitions: garbage})

	s.logger.Info("segments compacted",
		"job_id", jobID.String(),
		"segments", len(segs),
		"partitions_kept", len(kept),
		"partitions_with_garbage", len(garbage),
		"rows_live", stats.ClusteringRows.Live,
		"duration", s.tp.Now().Sub(start),
	)
	return nil
}

// Query starts a paged read.
func (s *Store) Query(cmd ReadCommand) (*Pager, error) {
	cmd = cmd.withDefaults(s.cfg.Query)
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	return newPager(s, cmd, s.snapshot(cmd.Keys)), nil
}

// Garbage lists what compactions purged so far.
func (s *Store) Garbage() []GarbageRecord {
	return s.garbage.Records()
}

func (s *Store) Close() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.close()
}

func (s *Store) loadSegments() []*segment {
	return *s.segments.Load()
}

func (s *Store) addSegment(seg *segment) {
	s.segMu.Lock()
	defer s.segMu.Unlock()

	segs := append(slices.Clone(s.loadSegments()), seg)
	s.segments.Store(&segs)
	s.metrics.SetGauge(metrics.Segments, map[string]string{"table": s.schema.String()}, float64(len(segs)))
}

// replaceSegments swaps the segments in ids for merged, keeping the ones
// added meanwhile.
func (s *Store) replaceSegments(ids map[uuid.UUID]struct{}, merged *segment) {
	s.segMu.Lock()
	defer s.segMu.Unlock()

	var segs []*segment
	if len(merged.partitions) > 0 {
		segs = append(segs, merged)
	}
	for _, seg := range s.loadSegments() {
		if _, ok := ids[seg.id]; !ok {
			segs = append(segs, seg)
		}
	}
	s.segments.Store(&segs)
	s.metrics.SetGauge(metrics.Segments, map[string]string{"table": s.schema.String()}, float64(len(segs)))
}

// maxPurgeable answers with the oldest write of a key in every source left
// out of a compaction: the memtable but flushing and the segments not in
// compacting. A tombstone older than that cannot shadow anything there.
func (s *Store) maxPurgeable(flushing memtable.SortedSet, compacting map[uuid.UUID]struct{}) compaction.MaxPurgeableFunc {
	return func(key mutation.DecoratedKey) types.Timestamp {
		ts := types.MaxTimestamp
		if p, ok := s.mt.GetExcluding(key, flushing); ok {
			ts = min(ts, p.MinTimestamp())
		}
		for _, seg := range s.loadSegments() {
			if _, skip := compacting[seg.id]; skip {
				continue
			}
			ts = min(ts, seg.minTimestamp(key))
		}
		return ts
	}
}

// snapshot reads every source. The memtable goes first: a flush publishes
// the segment before it drops the table, so nothing is missed in between.
func (s *Store) snapshot(keys []types.Key) []*mutation.Partition {
	if len(keys) == 0 {
		sources := [][]*mutation.Partition{s.mt.Partitions()}
		for _, seg := range s.loadSegments() {
			sources = append(sources, seg.partitions)
		}
		return MergePartitions(sources...)
	}

	var found []*mutation.Partition
	for _, k := range keys {
		dk := mutation.NewDecoratedKey(k)
		if p, ok := s.mt.Get(dk); ok {
			found = append(found, p)
		}
	}
	segs := s.loadSegments()
	sources := [][]*mutation.Partition{found}
	for _, k := range keys {
		dk := mutation.NewDecoratedKey(k)
		for _, seg := range segs {
			if p, ok := seg.get(dk); ok {
				sources = append(sources, []*mutation.Partition{p})
			}
		}
	}
	return MergePartitions(sources...)
}
