package store

import (
	"context"

	"github.com/google/uuid"

	"mutcompact/pkg/compaction"
	"mutcompact/pkg/memtable"
	"mutcompact/pkg/metrics"
	"mutcompact/pkg/mutation"
)

// flusher compacts the memtables rotated out by writes, one at a time, in
// the order they were rotated.
type flusher struct {
	store  *Store
	in     <-chan memtable.SortedSet
	cancel context.CancelFunc
	done   chan struct{}
}

func startFlusher(ctx context.Context, s *Store) *flusher {
	ctx, cancel := context.WithCancel(ctx)
	f := &flusher{
		store:  s,
		in:     s.mt.FlushChan(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go f.run(ctx)
	return f
}

func (f *flusher) run(ctx context.Context) {
	defer close(f.done)
	for {
		select {
		case ss, ok := <-f.in:
			if !ok {
				return
			}
			f.store.flush(ss)
		case <-ctx.Done():
			pending := f.store.mt.Pending()
			if pending > 0 {
				f.store.logger.Warn("flusher stopped with memtables left", "pending", pending)
			}
			return
		}
	}
}

// stop waits for the flush in progress, if any.
func (f *flusher) stop() {
	f.cancel()
	<-f.done
}

// flush compacts a rotated memtable into a new segment. Tombstones are
// only purged when they cannot shadow data in the other sources.
func (s *Store) flush(ss memtable.SortedSet) {
	snapshot := ss.Sorted()

	if len(snapshot) == 0 {
		s.mt.Flushed(ss)
		return
	}

	jobID := uuid.New()
	start := s.tp.Now()
	kept, garbage, stats := s.rewrite(jobID, snapshot, s.maxPurgeable(ss, nil))

	if len(kept) > 0 {
		s.addSegment(newSegment(jobID, kept))
	}
	s.garbage.append(GarbageRecord{JobID: jobID, At: start, Partitions: garbage})
	s.mt.Flushed(ss)

	elapsed := s.tp.Now().Sub(start)
	s.metrics.ObserveHistogram(metrics.FlushDuration, map[string]string{"table": s.schema.String()}, elapsed.Seconds())
	s.logger.Info("memtable flushed",
		"job_id", jobID.String(),
		"partitions", len(snapshot),
		"partitions_kept", len(kept),
		"partitions_with_garbage", len(garbage),
		"rows_live", stats.ClusteringRows.Live,
		"rows_dead", stats.ClusteringRows.Dead,
		"duration", elapsed,
	)
}

// rewrite runs partitions through a physical compaction, splitting them
// into what survives and what was purged.
func (s *Store) rewrite(
	jobID uuid.UUID,
	partitions []*mutation.Partition,
	maxPurgeable compaction.MaxPurgeableFunc,
) (kept, garbage []*mutation.Partition, stats compaction.Stats) {
	var (
		keptBuilder    = mutation.NewPartitionBuilder()
		garbageBuilder = mutation.NewPartitionBuilder()
	)

	c := compaction.NewForCompaction(
		s.schema,
		s.now(),
		maxPurgeable,
		compaction.ForwardTo(keptBuilder),
		compaction.ForwardTo(garbageBuilder),
		compaction.WithGCBefore(s.gcBefore),
		compaction.WithLogger(s.logger.With("job_id", jobID.String())),
	)
	mutation.Consume(mutation.NewPartitionReader(partitions...), c)

	stats = c.State().Stats()
	metrics.ReportCompaction(s.metrics, compaction.ForSSTables, stats)

	return keptBuilder.Partitions(), garbageBuilder.Partitions(), stats
}
