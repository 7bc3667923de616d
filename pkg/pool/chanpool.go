package pool

// Pool is a channel-backed free list of fixed-size Buffers, grounded on
// the teacher's ChanBufferPool/ChanBytePool pair. Get never blocks: on
// exhaustion it allocates a fresh Buffer of size. Put drops the buffer
// on the floor, for the garbage collector, once the free list is at its
// capacity rather than blocking the releasing goroutine.
type Pool struct {
	free chan *Buffer
	size int
}

// New returns a Pool that hands out Buffers of size bytes, keeping up to
// chansize of them on its free list.
func New(chansize, size int) *Pool {
	return &Pool{
		free: make(chan *Buffer, chansize),
		size: size,
	}
}

// Get returns a Buffer of at least p.size bytes, reused from the free
// list if one is available.
func (p *Pool) Get() *Buffer {
	select {
	case b := <-p.free:
		return b
	default:
		b := NewBuffer(make([]byte, p.size))
		return b
	}
}

// Put resets buf and returns it to the free list, or discards it if the
// free list is full.
func (p *Pool) Put(buf *Buffer) {
	buf.Reset()
	select {
	case p.free <- buf:
	default:
	}
}

// Size reports the nominal buffer size this pool issues.
func (p *Pool) Size() int {
	return p.size
}

// TieredPool selects among several fixed-size Pools by requested size,
// falling back to a direct, unpooled Buffer for requests larger than
// every tier, as the teacher's GetBufferPool does across its ladder of
// bufferpool128..bufferpool128k.
type TieredPool struct {
	tiers []*Pool // ascending by size
}

// NewTieredPool builds a TieredPool from pools in ascending size order.
func NewTieredPool(tiers ...*Pool) *TieredPool {
	return &TieredPool{tiers: tiers}
}

// Get returns a Buffer able to hold size bytes, drawn from the smallest
// tier that fits, or a freshly allocated Buffer if size exceeds every
// tier.
func (t *TieredPool) Get(size int) *Buffer {
	for _, p := range t.tiers {
		if size <= p.size {
			b := p.Get()
			b.Resize(size, false)
			return b
		}
	}
	return NewBuffer(make([]byte, size))
}

// Put returns buf to the smallest tier it fits within its original
// capacity, or discards it if it doesn't match any tier (it came from
// the unpooled fallback, or from a tier whose size changed).
func (t *TieredPool) Put(buf *Buffer) {
	for _, p := range t.tiers {
		if buf.Cap() == p.size {
			p.Put(buf)
			return
		}
	}
}
