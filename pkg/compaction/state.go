package compaction

import (
	"log/slog"
	"math"

	"mutcompact/pkg/mutation"
	"mutcompact/pkg/query"
	"mutcompact/pkg/schema"
	"mutcompact/pkg/tombstonegc"
	"mutcompact/pkg/types"
)

// Mode selects the pipeline a compaction runs in.
type Mode uint8

const (
	// ForQuery compacts data being returned to a reader. Limits apply and
	// tombstones are purgeable as soon as their grace period is over.
	ForQuery Mode = iota
	// ForSSTables compacts data being rewritten. Purged data goes to the
	// garbage consumer and tombstones are only purged when they cannot
	// shadow data in sources outside of the compaction.
	ForSSTables
)

func (m Mode) String() string {
	if m == ForSSTables {
		return "sstables"
	}
	return "query"
}

// MaxPurgeableFunc returns the timestamp below which tombstones of key can
// be purged without resurrecting data elsewhere.
type MaxPurgeableFunc func(key mutation.DecoratedKey) types.Timestamp

type Option func(*State)

// WithGCBefore replaces the purge horizon oracle.
func WithGCBefore(fn tombstonegc.GCBeforeFunc) Option {
	return func(s *State) {
		s.gcBeforeFn = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *State) {
		s.logger = l
	}
}

// partitionState is the scratch state of the partition being compacted.
// It is reset as a whole on every new partition.
type partitionState struct {
	tombstone mutation.Tombstone

	gcBefore        types.GCTime
	gcBeforeSet     bool
	maxPurgeable    types.Timestamp
	maxPurgeableSet bool

	staticRowLive               bool
	rows                        uint64
	rowLimit                    uint64
	empty                       bool
	emptyForGC                  bool
	returnStaticContentOnNoRows bool

	lastStaticRow *mutation.StaticRow
	lastPos       mutation.Position

	// effective is the range tombstone in force. It can differ from the
	// one emitted to the consumer because purged tombstones still apply to
	// the data they cover.
	effective mutation.Tombstone
	// emitted and emittedGC are the last range tombstones sent to each
	// consumer, used to close them at the end of the partition.
	emitted   mutation.Tombstone
	emittedGC mutation.Tombstone
}

// State compacts a stream of fragments. It is driven one fragment at a time
// and forwards what survives to a consumer and, in ForSSTables mode, what
// was purged to a gc consumer.
//
// A State is not safe for concurrent use.
type State struct {
	schema    *schema.Schema
	mode      Mode
	queryTime types.GCTime
	slice     *query.PartitionSlice

	gcBeforeFn      tombstonegc.GCBeforeFunc
	getMaxPurgeable MaxPurgeableFunc
	canGC           mutation.CanGCFunc

	rowLimit          uint64
	partitionLimit    uint32
	partitionRowLimit uint64

	dk        *mutation.DecoratedKey
	part      partitionState
	collector *garbageCollector
	stats     Stats

	// stop remembers that a stop was requested mid-partition.
	stop bool

	logger *slog.Logger
}

// NewQueryState creates a state compacting data for a read.
func NewQueryState(
	s *schema.Schema,
	queryTime types.GCTime,
	slice *query.PartitionSlice,
	rowLimit uint64,
	partitionLimit uint32,
	opts ...Option,
) *State {
	st := &State{
		schema:            s,
		mode:              ForQuery,
		queryTime:         queryTime,
		slice:             slice,
		canGC:             mutation.AlwaysGC,
		rowLimit:          rowLimit,
		partitionLimit:    partitionLimit,
		partitionRowLimit: slice.EffectivePartitionRowLimit(),
	}
	st.init(opts)
	return st
}

// NewCompactionState creates a state compacting data being rewritten.
// There are no limits in this mode.
func NewCompactionState(
	s *schema.Schema,
	compactionTime types.GCTime,
	getMaxPurgeable MaxPurgeableFunc,
	opts ...Option,
) *State {
	st := &State{
		schema:            s,
		mode:              ForSSTables,
		queryTime:         compactionTime,
		slice:             query.FullSlice(),
		getMaxPurgeable:   getMaxPurgeable,
		rowLimit:          math.MaxUint64,
		partitionLimit:    math.MaxUint32,
		partitionRowLimit: math.MaxUint64,
		collector:         &garbageCollector{},
	}
	st.canGC = st.canGCForSSTables
	st.init(opts)
	return st
}

func (s *State) init(opts []Option) {
	s.gcBeforeFn = tombstonegc.GCBefore
	s.logger = slog.Default()
	for _, opt := range opts {
		opt(s)
	}
	s.part.lastPos = mutation.PartitionEndPosition()
}

func (s *State) Mode() Mode {
	return s.mode
}

func (s *State) sstableCompaction() bool {
	return s.mode == ForSSTables
}

// gcCollector is the garbage sink handed to cell compaction, nil unless
// compacting sstables.
func (s *State) gcCollector() mutation.GarbageCollector {
	if s.collector == nil {
		return nil
	}
	return s.collector
}

func (s *State) ConsumeNewPartition(dk mutation.DecoratedKey) {
	s.stop = false
	s.dk = &dk
	s.part = partitionState{
		returnStaticContentOnNoRows: s.slice.Has(query.OptAlwaysReturnStaticContent) ||
			!query.HasClusteringSelector(s.slice.RowRanges(dk.Key)),
		empty:      true,
		emptyForGC: true,
		rowLimit:   min(s.rowLimit, s.partitionRowLimit),
		lastPos:    mutation.PartitionStartPosition(),
	}
}

// ConsumeTombstone routes the partition tombstone to exactly one of the
// consumers depending on whether it can be purged.
func (s *State) ConsumeTombstone(t mutation.Tombstone, consumer, gcConsumer CompactedFragmentsConsumer) {
	s.part.tombstone = t
	if t.IsEmpty() {
		return
	}
	if s.canPurge(t) {
		s.partitionNotEmptyForGC(gcConsumer)
	} else {
		s.partitionNotEmpty(consumer)
	}
}

// ForcePartitionNotEmpty emits the partition header to consumer even if
// nothing in the partition survives.
func (s *State) ForcePartitionNotEmpty(consumer CompactedFragmentsConsumer) {
	s.partitionNotEmpty(consumer)
}

func (s *State) ConsumeStaticRow(sr mutation.StaticRow, consumer, gcConsumer CompactedFragmentsConsumer) bool {
	last := sr.Clone()
	s.part.lastStaticRow = &last
	s.part.lastPos = mutation.StaticRowPosition()

	current := s.part.tombstone
	if s.sstableCompaction() {
		s.collector.startCollectingStaticRow()
	}
	gcBefore := s.gcBefore()
	isLive := sr.Cells.CompactAndExpire(mutation.NewRowTombstone(current), s.queryTime, s.canGC, gcBefore,
		mutation.RowMarker{}, s.gcCollector())
	s.stats.StaticRows.add(isLive)

	if s.sstableCompaction() {
		s.collector.consumeStaticRow(func(garbage mutation.StaticRow) {
			s.partitionNotEmptyForGC(gcConsumer)
			// Only purged data goes there, so it is never alive.
			gcConsumer.ConsumeStaticRow(garbage, current, false)
		})
	} else if s.canPurge(current) {
		current = mutation.Tombstone{}
	}

	s.part.staticRowLive = isLive
	if isLive || !sr.Empty() {
		s.partitionNotEmpty(consumer)
		s.stop = consumer.ConsumeStaticRow(sr, current, isLive)
	}
	return s.stop
}

func (s *State) ConsumeClusteringRow(cr mutation.ClusteringRow, consumer, gcConsumer CompactedFragmentsConsumer) bool {
	s.part.lastPos = cr.Position()

	current := mutation.MaxTombstone(s.part.tombstone, s.part.effective)
	t := cr.Tombstone
	t.Apply(current)

	if s.sstableCompaction() {
		s.collector.startCollectingClusteringRow(cr.Key)
	}

	if rt := cr.Tombstone; rt.Tomb().Compare(current) <= 0 {
		// Shadowed by a wider tombstone, nobody will miss it.
		cr.RemoveTombstone()
	} else if s.canPurgeRow(rt) {
		if s.sstableCompaction() {
			s.collector.collectTombstone(rt)
		}
		cr.RemoveTombstone()
	}

	gcBefore := s.gcBefore()
	markerLive := cr.Marker.CompactAndExpire(t.Tomb(), s.queryTime, s.canGC, gcBefore, s.gcCollector())
	cellsLive := cr.Cells.CompactAndExpire(t, s.queryTime, s.canGC, gcBefore, cr.Marker, s.gcCollector())
	isLive := markerLive || cellsLive
	s.stats.ClusteringRows.add(isLive)

	if s.sstableCompaction() {
		s.collector.consumeClusteringRow(func(garbage mutation.ClusteringRow) {
			s.partitionNotEmptyForGC(gcConsumer)
			gcConsumer.ConsumeClusteringRow(garbage, t, false)
		})
	} else if s.canPurgeRow(t) {
		t = mutation.RowTombstone{}
	}

	if !cr.Empty() {
		s.partitionNotEmpty(consumer)
		s.stop = consumer.ConsumeClusteringRow(cr, t, isLive)
	}
	if !s.sstableCompaction() && isLive {
		s.part.rows++
		if s.part.rows >= s.part.rowLimit {
			s.stop = true
		}
	}
	return s.stop
}

func (s *State) ConsumeRangeTombstoneChange(rtc mutation.RangeTombstoneChange, consumer, gcConsumer CompactedFragmentsConsumer) bool {
	s.part.lastPos = rtc.Pos
	s.stats.RangeTombstones++
	s.stop = s.consumeRangeTombstoneChange(rtc, consumer, gcConsumer)
	return s.stop
}

func (s *State) consumeRangeTombstoneChange(rtc mutation.RangeTombstoneChange, consumer, gcConsumer CompactedFragmentsConsumer) bool {
	var consumerStop, gcConsumerStop bool

	if rtc.Tombstone.Compare(s.part.tombstone) <= 0 {
		rtc.Tombstone = mutation.Tombstone{}
	}
	s.part.effective = rtc.Tombstone

	purge := !rtc.Tombstone.IsEmpty() && s.canPurge(rtc.Tombstone)
	if purge || !s.part.emittedGC.IsEmpty() {
		s.partitionNotEmptyForGC(gcConsumer)
		var tomb mutation.Tombstone
		if purge {
			tomb = rtc.Tombstone
		}
		s.part.emittedGC = tomb
		gcConsumerStop = gcConsumer.ConsumeRangeTombstoneChange(mutation.RangeTombstoneChange{Pos: rtc.Pos, Tombstone: tomb})
		if purge {
			rtc.Tombstone = mutation.Tombstone{}
		}
	}

	// An open tombstone has to be closed even when its successor is purged.
	if !s.part.emitted.IsEmpty() || (!rtc.Tombstone.IsEmpty() && !purge) {
		s.partitionNotEmpty(consumer)
		s.part.emitted = rtc.Tombstone
		consumerStop = consumer.ConsumeRangeTombstoneChange(rtc)
	}
	return gcConsumerStop || consumerStop
}

func (s *State) ConsumeEndOfPartition(consumer, gcConsumer CompactedFragmentsConsumer) bool {
	if !s.part.effective.IsEmpty() {
		// consumeRangeTombstoneChange overwrites the effective tombstone,
		// it still has to be known if the compaction is resumed.
		prev := s.part.effective
		s.consumeRangeTombstoneChange(mutation.RangeTombstoneChange{Pos: s.part.lastPos.After()}, consumer, gcConsumer)
		s.part.effective = prev
	}
	if !s.part.emptyForGC {
		gcConsumer.ConsumeEndOfPartition()
	}
	if s.part.empty {
		return false
	}

	// A partition with a live static row and no rows counts as one row
	// unless rows were explicitly asked for.
	if s.part.rows == 0 && s.part.staticRowLive && s.part.returnStaticContentOnNoRows {
		s.part.rows++
	}

	stop := consumer.ConsumeEndOfPartition()
	if s.sstableCompaction() {
		return false
	}

	s.rowLimit -= min(s.rowLimit, s.part.rows)
	if s.part.rows > 0 && s.partitionLimit > 0 {
		s.partitionLimit--
	}
	stop = stop || s.rowLimit == 0 || s.partitionLimit == 0
	// Deciding to go on after a stop was requested mid-partition skips the
	// rest of the partition, which makes it exhausted as far as resuming
	// goes.
	if s.stop && !stop {
		s.stop = false
	}
	return stop
}

func (s *State) ConsumeEndOfStream(consumer, gcConsumer CompactedFragmentsConsumer) {
	if s.dk != nil {
		// The key may point into a buffer owned by the stream.
		dk := s.dk.Clone()
		s.dk = &dk
	}
	gcConsumer.ConsumeEndOfStream()
	consumer.ConsumeEndOfStream()

	s.logger.Debug("compaction finished",
		"mode", s.mode.String(),
		"table", s.schema.String(),
		"partitions", s.stats.Partitions,
		"static_rows_live", s.stats.StaticRows.Live,
		"static_rows_dead", s.stats.StaticRows.Dead,
		"rows_live", s.stats.ClusteringRows.Live,
		"rows_dead", s.stats.ClusteringRows.Dead,
		"range_tombstones", s.stats.RangeTombstones,
	)
}

func (s *State) partitionNotEmpty(consumer CompactedFragmentsConsumer) {
	if !s.part.empty {
		return
	}
	s.part.empty = false
	s.stats.Partitions++
	consumer.ConsumeNewPartition(*s.dk)
	if pt := s.part.tombstone; !pt.IsEmpty() && !s.canPurge(pt) {
		consumer.ConsumeTombstone(pt)
	}
}

func (s *State) partitionNotEmptyForGC(gcConsumer CompactedFragmentsConsumer) {
	if !s.part.emptyForGC {
		return
	}
	s.part.emptyForGC = false
	gcConsumer.ConsumeNewPartition(*s.dk)
	if pt := s.part.tombstone; !pt.IsEmpty() && s.canPurge(pt) {
		gcConsumer.ConsumeTombstone(pt)
	}
}

// CurrentPartition is the key of the partition being compacted, nil if
// compaction did not start yet. It stays valid after the end of stream.
func (s *State) CurrentPartition() *mutation.DecoratedKey {
	return s.dk
}

// CurrentPosition is the position of the last fragment consumed. Only
// meaningful once CurrentPartition is not nil.
func (s *State) CurrentPosition() mutation.Position {
	return s.part.lastPos
}

// FullPosition locates a fragment across partitions.
type FullPosition struct {
	Partition mutation.DecoratedKey
	Position  mutation.Position
}

func (s *State) CurrentFullPosition() (FullPosition, bool) {
	if s.dk == nil {
		return FullPosition{}, false
	}
	return FullPosition{Partition: *s.dk, Position: s.part.lastPos}, true
}

// RowLimit is what is left of the row limit.
func (s *State) RowLimit() uint64 {
	return s.rowLimit
}

func (s *State) AreLimitsReached() bool {
	return s.rowLimit == 0 || s.partitionLimit == 0
}

func (s *State) Stats() Stats {
	return s.stats
}
