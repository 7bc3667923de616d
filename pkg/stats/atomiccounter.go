package stats

import (
	"sync/atomic"
)

// AtomicUint64Counter is a monotonic or resettable counter safe for
// concurrent use by a stream's packet-handling goroutine and a reader
// of its stats.
type AtomicUint64Counter struct {
	cnt uint64
}

func (c *AtomicUint64Counter) Get() uint64 {
	return atomic.LoadUint64(&c.cnt)
}

func (c *AtomicUint64Counter) Add(delta uint64) {
	atomic.AddUint64(&c.cnt, delta)
}

func (c *AtomicUint64Counter) Inc() {
	atomic.AddUint64(&c.cnt, 1)
}

func (c *AtomicUint64Counter) Reset() {
	atomic.StoreUint64(&c.cnt, 0)
}

func (c *AtomicUint64Counter) Set(cnt uint64) {
	atomic.StoreUint64(&c.cnt, cnt)
}
