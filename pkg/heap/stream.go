package heap

import (
	"time"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/errors"
	"github.com/lao19881213/spead2/pkg/pool"
	"github.com/lao19881213/spead2/pkg/proto"
	"github.com/lao19881213/spead2/pkg/stats"
	"github.com/lao19881213/spead2/third_party/forked/golang/glog"
)

// ReadyFunc is the injectable emission strategy a ReceiveStream invokes
// exactly once per live heap removed from its live set, in removal
// order, per spec §9's "virtual heap_ready" design note.
type ReadyFunc func(*FrozenHeap)

// ReceiveStream multiplexes packets across a bounded set of live heaps.
// It is not safe for concurrent use: the core is single-threaded per
// stream, per spec §5, and callers are responsible for serializing
// access (e.g. one goroutine per stream).
type ReceiveStream struct {
	maxHeaps  int
	heaps     []*ReceiveHeap // ordered by ascending heap_cnt
	stopped   bool
	bugCompat cfg.BugCompat
	pool      *pool.Pool
	stats     *stats.StreamStats
	ready     ReadyFunc
}

// NewReceiveStream constructs a stream with the given config and
// emission callback.
func NewReceiveStream(c cfg.StreamConfig, ready ReadyFunc) *ReceiveStream {
	maxHeaps := c.MaxHeaps
	if maxHeaps <= 0 {
		maxHeaps = cfg.DefaultMaxHeaps
	}
	return &ReceiveStream{
		maxHeaps:  maxHeaps,
		bugCompat: c.BugCompat,
		ready:     ready,
	}
}

// SetMemPool installs the pool new heaps draw payload buffers from.
func (s *ReceiveStream) SetMemPool(p *pool.Pool) {
	s.pool = p
}

// SetStats installs the counters and histograms every emitted heap and
// rejected/malformed packet reports to.
func (s *ReceiveStream) SetStats(st *stats.StreamStats) {
	s.stats = st
}

// SetMaxHeaps changes the live-heap ceiling. It does not immediately
// evict if already over the new limit, but prevents further growth
// until the live set is back under it, per recv_stream's
// set_max_heaps.
func (s *ReceiveStream) SetMaxHeaps(maxHeaps int) {
	s.maxHeaps = maxHeaps
}

// IsStopped reports whether Stop has been called.
func (s *ReceiveStream) IsStopped() bool { return s.stopped }

// AddPacket absorbs one decoded packet. It is a programmer error to
// call this after Stop, per spec §9's open-question resolution.
func (s *ReceiveStream) AddPacket(pkt *proto.Packet) bool {
	if s.stopped {
		panic(errors.New(errors.KindStopped, "add_packet after stop"))
	}

	insertBefore := len(s.heaps)
	found := false
	result := false
	endOfStream := false

	for i, h := range s.heaps {
		if h.Cnt() == pkt.HeapCnt {
			found = true
			if h.AddPacket(pkt) {
				result = true
				endOfStream = h.IsEndOfStream()
				if h.IsComplete() {
					s.emit(h)
					s.heaps = append(s.heaps[:i], s.heaps[i+1:]...)
				}
			}
			break
		} else if h.Cnt() < pkt.HeapCnt {
			insertBefore = i + 1
		}
	}

	if !found {
		h := NewReceiveHeap(pkt.HeapCnt, s.bugCompat)
		h.SetPool(s.pool)
		h.SetStats(s.stats)
		if h.AddPacket(pkt) {
			result = true
			endOfStream = h.IsEndOfStream()
			if h.IsComplete() {
				s.emit(h)
			} else {
				s.heaps = insertAt(s.heaps, insertBefore, h)
				if len(s.heaps) > s.maxHeaps {
					evicted := s.heaps[0]
					glog.Warningf("stream: live-heap window exceeded (max %d), evicting heap %d (contiguous=%v)", s.maxHeaps, evicted.Cnt(), evicted.IsContiguous())
					s.emit(evicted) // counted via RecordHeap(complete=false) inside emit
					s.heaps = s.heaps[1:]
				}
			}
		}
	}

	if !result && s.stats != nil {
		s.stats.PacketsRejected.Inc()
	}
	if endOfStream {
		s.Stop()
	}
	return result
}

func insertAt(heaps []*ReceiveHeap, idx int, h *ReceiveHeap) []*ReceiveHeap {
	heaps = append(heaps, nil)
	copy(heaps[idx+1:], heaps[idx:])
	heaps[idx] = h
	return heaps
}

func (s *ReceiveStream) emit(h *ReceiveHeap) {
	fh := h.Freeze()
	if s.stats != nil {
		latency := time.Duration(0)
		if !h.FirstAbsorbed().IsZero() {
			latency = time.Since(h.FirstAbsorbed())
		}
		s.stats.RecordHeap(len(fh.Payload()), latency, fh.IsComplete())
	}
	if s.ready != nil {
		s.ready(fh)
	}
}

// Flush emits every live heap, in ascending heap_cnt order, and clears
// the live set.
func (s *ReceiveStream) Flush() {
	for _, h := range s.heaps {
		s.emit(h)
	}
	s.heaps = nil
}

// Stop marks the stream stopped and flushes its live heaps. Idempotent.
func (s *ReceiveStream) Stop() {
	if s.stopped {
		return
	}
	s.stopped = true
	s.Flush()
}

// DecodeAll repeatedly decodes packets from buf and feeds each into s
// until the codec rejects a packet as malformed or s stops. It does not
// itself stop the stream, per spec §6's bulk-decode helper.
func DecodeAll(s *ReceiveStream, buf []byte) {
	for len(buf) > 0 && !s.IsStopped() {
		pkt, consumed, err := proto.Decode(buf, s.bugCompat)
		if err != nil || consumed == 0 {
			if err != nil {
				glog.Warningf("stream: stopping bulk decode on malformed packet: %v", err)
				if s.stats != nil {
					s.stats.PacketsMalformed.Inc()
				}
			}
			return
		}
		s.AddPacket(pkt)
		buf = buf[consumed:]
	}
}
