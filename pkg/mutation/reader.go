package mutation

// FragmentConsumer is the push side of a fragment stream. The bool results
// ask the producer to stop.
type FragmentConsumer interface {
	ConsumeNewPartition(key DecoratedKey)
	ConsumeTombstone(t Tombstone)
	ConsumeStaticRow(sr StaticRow) bool
	ConsumeClusteringRow(cr ClusteringRow) bool
	ConsumeRangeTombstoneChange(rtc RangeTombstoneChange) bool
	ConsumeEndOfPartition() bool
	ConsumeEndOfStream()
}

// Reader is the pull side of a fragment stream.
type Reader interface {
	// Next returns the next fragment, false once the stream is exhausted.
	Next() (Fragment, bool)
	// Peek returns the next fragment without consuming it.
	Peek() (Fragment, bool)
	// NextPartition skips the rest of the current partition.
	NextPartition()
}

// Consume pushes fragments from r into c until r is exhausted or c asks to
// stop. A stop requested mid-partition is followed by ConsumeEndOfPartition;
// when that does not confirm the stop the rest of the partition is skipped
// and consumption goes on. ConsumeEndOfStream is always called last.
//
// Reports whether consumption stopped before the end of r.
func Consume(r Reader, c FragmentConsumer) bool {
	stopped := consumePausable(r, c)
	c.ConsumeEndOfStream()
	return stopped
}

func consumePausable(r Reader, c FragmentConsumer) bool {
	midPartition := func(stop bool) bool {
		if !stop {
			return false
		}
		if c.ConsumeEndOfPartition() {
			return true
		}
		r.NextPartition()
		return false
	}

	for {
		f, ok := r.Next()
		if !ok {
			return false
		}

		var stop bool
		switch f := f.(type) {
		case PartitionStart:
			c.ConsumeNewPartition(f.Key)
			if !f.Tombstone.IsEmpty() {
				c.ConsumeTombstone(f.Tombstone)
			}
		case StaticRow:
			stop = midPartition(c.ConsumeStaticRow(f))
		case ClusteringRow:
			stop = midPartition(c.ConsumeClusteringRow(f))
		case RangeTombstoneChange:
			stop = midPartition(c.ConsumeRangeTombstoneChange(f))
		case PartitionEnd:
			stop = c.ConsumeEndOfPartition()
		}
		if stop {
			return true
		}
	}
}

// SliceReader reads fragments from memory.
type SliceReader struct {
	frags []Fragment
	pos   int
}

func NewSliceReader(frags []Fragment) *SliceReader {
	return &SliceReader{frags: frags}
}

// NewPartitionReader streams the given partitions in order.
func NewPartitionReader(parts ...*Partition) *SliceReader {
	var frags []Fragment
	for _, p := range parts {
		frags = append(frags, p.Fragments()...)
	}
	return NewSliceReader(frags)
}

func (r *SliceReader) Next() (Fragment, bool) {
	f, ok := r.Peek()
	if ok {
		r.pos++
	}
	return f, ok
}

func (r *SliceReader) Peek() (Fragment, bool) {
	if r.pos >= len(r.frags) {
		return nil, false
	}
	return r.frags[r.pos], true
}

func (r *SliceReader) NextPartition() {
	for r.pos < len(r.frags) && r.frags[r.pos].Kind() != KindPartitionStart {
		r.pos++
	}
}

// Remaining returns the fragments not read yet.
func (r *SliceReader) Remaining() []Fragment {
	return r.frags[r.pos:]
}

// Prepend pushes frags in front of the unread part of r.
func (r *SliceReader) Prepend(frags ...Fragment) {
	rest := append(append([]Fragment(nil), frags...), r.frags[r.pos:]...)
	r.frags = rest
	r.pos = 0
}

// NextRegion tells which region the next fragment of r belongs to.
func NextRegion(r Reader) Region {
	f, ok := r.Peek()
	if !ok {
		return RegionPartitionEnd
	}
	return f.Position().Region
}
