package memtable

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/zhangyunhao116/skipmap"

	"mutcompact/pkg/config"
	"mutcompact/pkg/mutation"
)

var (
	ErrTooLargeEntry = errors.New("entry is too large")
)

type concurrentSet = skipmap.FuncMap[mutation.DecoratedKey, *entry]

func newConcurrentSet() *concurrentSet {
	return skipmap.NewFunc[mutation.DecoratedKey, *entry](func(a, b mutation.DecoratedKey) bool {
		return a.Compare(b) < 0
	})
}

// entry serializes merges into one partition.
type entry struct {
	mu sync.Mutex
	p  *mutation.Partition
}

func (e *entry) snapshot() *mutation.Partition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.p.Clone()
}

type Memtable struct {
	cfg  *config.MemtableConfig
	ver  atomic.Uint64
	size atomic.Uint64

	// swap is held shared by writers and exclusively by rotation, so a
	// write never lands in a table already handed to the flusher.
	swap       sync.RWMutex
	underlying atomic.Pointer[concurrentSet]
	// tables rotated out and not flushed yet
	imm atomic.Pointer[[]*concurrentSet]

	flushChan chan SortedSet
	mu        sync.Mutex
}

func New(cfg config.MemtableConfig) *Memtable {
	mt := Memtable{
		cfg:       &cfg,
		flushChan: make(chan SortedSet, cfg.FlushChanBuffSize),
	}
	mt.underlying.Store(newConcurrentSet())

	return &mt
}

// Apply merges m into the partition with the same key.
func (mt *Memtable) Apply(m *mutation.Partition) error {
	var (
		entSize   = estimateSize(m)
		threshold = uint64(mt.cfg.FlushThresholdBytes)
	)

	if entSize > threshold {
		return ErrTooLargeEntry
	}

	for {
		currentSize := mt.size.Load()
		newSize := currentSize + entSize

		if newSize < threshold {
			if mt.size.CompareAndSwap(currentSize, newSize) {
				break
			}
			continue
		}

		// whoever bumps ver rotates; the others retry against the new table
		ver := mt.ver.Load()
		mt.mu.Lock()
		acquired := mt.ver.CompareAndSwap(ver, ver+1)
		if acquired {
			mt.rotate(entSize)
			mt.mu.Unlock()
			break
		}
		mt.mu.Unlock()
	}

	mt.swap.RLock()
	defer mt.swap.RUnlock()

	e, _ := mt.underlying.Load().LoadOrStore(m.Key, &entry{p: mutation.NewPartition(m.Key.Clone())})
	e.mu.Lock()
	e.p.Apply(m)
	e.mu.Unlock()

	return nil
}

func (mt *Memtable) rotate(initSize uint64) {
	mt.swap.Lock()
	current := mt.underlying.Load()
	oldSlicePtr := mt.imm.Load()
	var newSlice []*concurrentSet
	if oldSlicePtr != nil {
		newSlice = append([]*concurrentSet{}, *oldSlicePtr...)
	}
	newSlice = append(newSlice, current)
	mt.imm.Store(&newSlice)

	mt.underlying.Store(newConcurrentSet())
	mt.size.Store(initSize)
	mt.swap.Unlock()

	// outside of swap: the flusher takes it in Flushed
	mt.flushChan <- &sortedSet{current}
}

// Flushed forgets an immutable table once its content is readable
// elsewhere.
func (mt *Memtable) Flushed(ss SortedSet) {
	s, ok := ss.(*sortedSet)
	if !ok {
		return
	}

	mt.swap.Lock()
	defer mt.swap.Unlock()

	oldSlicePtr := mt.imm.Load()
	if oldSlicePtr == nil {
		return
	}
	newSlice := make([]*concurrentSet, 0, len(*oldSlicePtr))
	for _, t := range *oldSlicePtr {
		if t != s.concurrentSet {
			newSlice = append(newSlice, t)
		}
	}
	mt.imm.Store(&newSlice)
}

// Get returns a copy of the partition merged over the active and the
// immutable tables.
func (mt *Memtable) Get(key mutation.DecoratedKey) (*mutation.Partition, bool) {
	return mt.GetExcluding(key, nil)
}

// GetExcluding is Get ignoring the rotated table ss, typically the one
// being flushed.
func (mt *Memtable) GetExcluding(key mutation.DecoratedKey, ss SortedSet) (*mutation.Partition, bool) {
	mt.swap.RLock()
	defer mt.swap.RUnlock()

	var skip *concurrentSet
	if s, ok := ss.(*sortedSet); ok {
		skip = s.concurrentSet
	}

	var merged *mutation.Partition
	for _, set := range mt.tables() {
		if set == skip {
			continue
		}
		e, ok := set.Load(key)
		if !ok {
			continue
		}
		if merged == nil {
			merged = e.snapshot()
		} else {
			merged.Apply(e.snapshot())
		}
	}

	return merged, merged != nil
}

// Partitions returns copies of every partition in key order.
func (mt *Memtable) Partitions() []*mutation.Partition {
	mt.swap.RLock()
	defer mt.swap.RUnlock()

	merged := newConcurrentSet()
	for _, set := range mt.tables() {
		set.Range(func(key mutation.DecoratedKey, e *entry) bool {
			p := e.snapshot()
			if prev, loaded := merged.LoadOrStore(key, &entry{p: p}); loaded {
				prev.p.Apply(p)
			}
			return true
		})
	}

	return (&sortedSet{merged}).Sorted()
}

// Reader streams the content of the memtable in partition order.
func (mt *Memtable) Reader() *mutation.SliceReader {
	return mutation.NewPartitionReader(mt.Partitions()...)
}

// tables lists the active table first, then the immutable ones from the
// newest.
func (mt *Memtable) tables() []*concurrentSet {
	sets := []*concurrentSet{mt.underlying.Load()}
	if immutable := mt.imm.Load(); immutable != nil {
		for i := len(*immutable) - 1; i >= 0; i-- {
			sets = append(sets, (*immutable)[i])
		}
	}
	return sets
}

// Pending counts the rotated tables not flushed yet.
func (mt *Memtable) Pending() int {
	if immutable := mt.imm.Load(); immutable != nil {
		return len(*immutable)
	}
	return 0
}

// Size is the estimated size of the active table.
func (mt *Memtable) Size() uint64 {
	return mt.size.Load()
}

// Rotate hands the active table to the flusher even if it is not full.
func (mt *Memtable) Rotate() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.underlying.Load().Len() == 0 {
		return
	}
	mt.ver.Add(1)
	mt.rotate(0)
}

func (mt *Memtable) FlushChan() <-chan SortedSet {
	return mt.flushChan
}

func (mt *Memtable) Close() {
	close(mt.flushChan)
}

// estimateSize approximates the memory taken by p.
func estimateSize(p *mutation.Partition) uint64 {
	const (
		cellOverhead = 48
		rowOverhead  = 64
		rtSize       = 96
	)

	size := uint64(len(p.Key.Key)) + rowOverhead
	for _, cc := range p.Static.Cells() {
		size += cellOverhead + uint64(len(cc.Cell.Value))
	}
	for _, cr := range p.Rows() {
		size += rowOverhead + uint64(len(cr.Key))
		for _, cc := range cr.Cells.Cells() {
			size += cellOverhead + uint64(len(cc.Cell.Value))
		}
	}
	size += uint64(len(p.RangeTombstones())) * rtSize
	return size
}
