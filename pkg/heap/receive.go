// Package heap implements incremental receive-side heap assembly, the
// stream that multiplexes packets across live heaps, the immutable
// frozen-heap view, and the send-side structured heap, per spec §4.5–4.8.
package heap

import (
	"sort"
	"time"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/flavor"
	"github.com/lao19881213/spead2/pkg/pool"
	"github.com/lao19881213/spead2/pkg/proto"
	"github.com/lao19881213/spead2/pkg/stats"
	"github.com/lao19881213/spead2/pkg/util"
	"github.com/lao19881213/spead2/third_party/forked/golang/glog"
)

// payloadRange is one absorbed packet's [offset, offset+length) span,
// kept to detect duplicates and to determine contiguity.
type payloadRange struct {
	offset uint64
	length uint64
}

// ReceiveHeap incrementally assembles one heap identified by heapCnt
// from a sequence of packets. Any SPEAD flavor may be used, but every
// packet absorbed by one ReceiveHeap must agree on flavor.
type ReceiveHeap struct {
	heapCnt        uint64
	heapLength     int64 // -1 until a packet establishes it
	receivedLength int64
	endOfStream    bool
	minLength      int64

	flavorSet bool
	fl        flavor.Flavor
	bugCompat cfg.BugCompat

	payload         *pool.Buffer
	payloadReserved int
	payloadFromPool bool
	pool            *pool.Pool
	stats           *stats.StreamStats

	firstAbsorbed time.Time
	pointers      []uint64
	seen          map[uint64]struct{} // payload offsets already absorbed
	ranges        []payloadRange
}

// NewReceiveHeap constructs an empty live heap for heapCnt.
func NewReceiveHeap(heapCnt uint64, bc cfg.BugCompat) *ReceiveHeap {
	return &ReceiveHeap{
		heapCnt:    heapCnt,
		heapLength: -1,
		bugCompat:  bc,
		seen:       make(map[uint64]struct{}),
	}
}

// SetPool installs the memory pool new payload buffers are drawn from.
// Without one, payload buffers are allocated directly.
func (h *ReceiveHeap) SetPool(p *pool.Pool) {
	h.pool = p
}

// SetStats installs the counters reject paths and duplicate/malformed
// detection report to. Without one, rejects are only logged.
func (h *ReceiveHeap) SetStats(s *stats.StreamStats) {
	h.stats = s
}

// Cnt returns the heap's ID.
func (h *ReceiveHeap) Cnt() uint64 { return h.heapCnt }

// FirstAbsorbed returns the time of this heap's first accepted packet,
// used by ReceiveStream to compute assembly latency.
func (h *ReceiveHeap) FirstAbsorbed() time.Time { return h.firstAbsorbed }

// AddPacket attempts to absorb pkt, returning false if it is rejected
// per the checks in spec §4.5.
func (h *ReceiveHeap) AddPacket(pkt *proto.Packet) bool {
	if pkt.HeapCnt != h.heapCnt {
		glog.Warningf("heap %d: rejecting packet for heap_cnt %d", h.heapCnt, pkt.HeapCnt)
		return false
	}
	if h.flavorSet {
		if pkt.Flavor != h.fl {
			glog.Warningf("heap %d: rejecting packet with mismatched flavor %+v, want %+v", h.heapCnt, pkt.Flavor, h.fl)
			return false
		}
	} else {
		h.fl = pkt.Flavor
		h.flavorSet = true
	}
	if _, dup := h.seen[pkt.PayloadOffset]; dup {
		glog.Warningf("heap %d: rejecting duplicate packet at payload_offset %d: %s", h.heapCnt, pkt.PayloadOffset, util.ToPrintableAndHexString(pkt.Payload))
		if h.stats != nil {
			h.stats.HeapsDuplicate.Inc()
		}
		return false
	}
	if pkt.HeapLength >= 0 {
		if h.heapLength >= 0 && pkt.HeapLength != h.heapLength {
			glog.Warningf("heap %d: rejecting packet with inconsistent heap_length %d, want %d", h.heapCnt, pkt.HeapLength, h.heapLength)
			if h.stats != nil {
				h.stats.PacketsMalformed.Inc()
			}
			return false
		}
		if int64(pkt.PayloadOffset+pkt.PayloadLength) > pkt.HeapLength {
			glog.Warningf("heap %d: rejecting packet whose payload [%d,%d) overruns heap_length %d", h.heapCnt, pkt.PayloadOffset, pkt.PayloadOffset+pkt.PayloadLength, pkt.HeapLength)
			if h.stats != nil {
				h.stats.PacketsMalformed.Inc()
			}
			return false
		}
	}
	if pkt.HeapLength >= 0 && h.heapLength < 0 {
		h.heapLength = pkt.HeapLength
	}
	if h.firstAbsorbed.IsZero() {
		h.firstAbsorbed = time.Now()
	}

	needed := int64(pkt.PayloadOffset + pkt.PayloadLength)
	for _, ptr := range pkt.Pointers {
		_, value, immediate := pkt.Flavor.Decode(ptr)
		if !immediate {
			if v := int64(value); v > needed {
				needed = v
			}
		}
	}
	if h.heapLength > needed {
		needed = h.heapLength
	}
	h.reserve(needed, h.heapLength >= 0)

	buf := h.payload.Bytes()
	copy(buf[pkt.PayloadOffset:pkt.PayloadOffset+pkt.PayloadLength], pkt.Payload)

	h.receivedLength += int64(pkt.PayloadLength)
	if v := int64(pkt.PayloadOffset + pkt.PayloadLength); v > h.minLength {
		h.minLength = v
	}
	for _, ptr := range pkt.Pointers {
		_, value, immediate := pkt.Flavor.Decode(ptr)
		if !immediate {
			if v := int64(value); v > h.minLength {
				h.minLength = v
			}
		}
	}

	h.pointers = append(h.pointers, pkt.Pointers...)
	h.seen[pkt.PayloadOffset] = struct{}{}
	h.ranges = append(h.ranges, payloadRange{offset: pkt.PayloadOffset, length: pkt.PayloadLength})
	if pkt.EndOfStream {
		h.endOfStream = true
	}
	return true
}

// reserve ensures the payload buffer holds at least size bytes. When
// exact is true (heap_length is known) it grows to exactly size;
// otherwise it doubles from the current capacity, per the growth
// heuristic in spec §9: never zero-fill beyond what Go's allocator
// already guarantees, and never reallocate more often than doubling
// requires.
func (h *ReceiveHeap) reserve(size int64, exact bool) {
	if int64(h.payloadReserved) >= size {
		return
	}
	n := int(size)
	if h.payload == nil {
		if h.pool != nil && n <= h.pool.Size() {
			h.payload = h.pool.Get()
			h.payloadFromPool = true
		} else {
			h.payload = pool.NewBuffer(nil)
		}
	}
	h.payload.Resize(n, exact)
	h.payloadReserved = h.payload.Cap()
}

// IsComplete reports whether heap_length is known and every byte of it
// has been received.
func (h *ReceiveHeap) IsComplete() bool {
	return h.heapLength >= 0 && h.receivedLength == h.heapLength
}

// IsContiguous reports whether the received payload covers the prefix
// [0, minLength) with no gaps, per spec §4.5. Ranges are sorted once
// per query rather than maintained incrementally.
func (h *ReceiveHeap) IsContiguous() bool {
	if h.minLength == 0 {
		return true
	}
	ranges := append([]payloadRange(nil), h.ranges...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].offset < ranges[j].offset })
	var covered uint64
	for _, r := range ranges {
		if r.offset > covered {
			return false
		}
		if end := r.offset + r.length; end > covered {
			covered = end
		}
	}
	return int64(covered) >= h.minLength
}

// IsEndOfStream reports whether an absorbed packet carried an
// end-of-stream stream-control marker.
func (h *ReceiveHeap) IsEndOfStream() bool { return h.endOfStream }

// Freeze converts the live heap into an immutable FrozenHeap, handing
// ownership of the payload buffer to the result.
func (h *ReceiveHeap) Freeze() *FrozenHeap {
	var payload []byte
	if h.payload != nil {
		payload = h.payload.Bytes()[:h.minLength]
	}
	fh := &FrozenHeap{
		heapCnt:    h.heapCnt,
		flavor:     h.fl,
		pointers:   h.pointers,
		payload:    payload,
		minLength:  h.minLength,
		isComplete: h.IsComplete(),
	}
	if h.payloadFromPool {
		fh.pool = h.pool
		fh.buf = h.payload
	}
	return fh
}
