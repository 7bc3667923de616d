package heap

import (
	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/errors"
	"github.com/lao19881213/spead2/pkg/flavor"
	"github.com/lao19881213/spead2/pkg/proto"
)

// SendItem is one item queued for transmission: either an immediate
// value or a byte range that contributes to the heap's virtual payload.
type SendItem struct {
	ID        uint64
	Bytes     []byte
	Immediate bool
}

// SendHeap is an ordered list of items, plus descriptors that have been
// encoded and appended as DESCRIPTOR-id addressed items, per spec §3
// and §4.8.
type SendHeap struct {
	heapCnt   uint64
	flavor    flavor.Flavor
	bugCompat cfg.BugCompat
	items     []SendItem
	endOfHeap bool
}

// NewSendHeap constructs an empty heap identified by heapCnt.
func NewSendHeap(heapCnt uint64, fl flavor.Flavor, bc cfg.BugCompat) *SendHeap {
	return &SendHeap{heapCnt: heapCnt, flavor: fl, bugCompat: bc}
}

// AddItem appends an immediate or addressed item.
func (s *SendHeap) AddItem(id uint64, value []byte, immediate bool) {
	s.items = append(s.items, SendItem{ID: id, Bytes: value, Immediate: immediate})
}

// AddImmediate appends an immediate item with an inline numeric value.
func (s *SendHeap) AddImmediate(id, value uint64) error {
	n := int(s.flavor.HeapAddressBits / 8)
	b := make([]byte, n)
	v := value
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	s.AddItem(id, b, true)
	return nil
}

// AddDescriptor encodes d and appends the result as a DESCRIPTOR-id
// addressed item, per spec §4.8.
func (s *SendHeap) AddDescriptor(d proto.Descriptor) error {
	blob, err := proto.EncodeDescriptor(d, s.flavor, s.bugCompat)
	if err != nil {
		return err
	}
	s.AddItem(proto.DescriptorID, blob, false)
	return nil
}

// SetEndOfStream marks the final packet of this heap with a stream
// control end-of-heap marker.
func (s *SendHeap) SetEndOfStream(end bool) {
	s.endOfHeap = end
}

// packetizedItem is one addressed item placed at an offset in the
// heap's virtual payload.
type packetizedItem struct {
	id     uint64
	offset uint64
	data   []byte
}

// Packetize splits the heap into a sequence of complete wire packets no
// larger than maxPacketSize, per spec §4.3. The first packet carries
// every item pointer (addressing items by their offset in the virtual
// payload); subsequent packets omit the item-pointer list and carry
// only their payload slice. When maxPacketSize leaves no room for payload
// after a packet's header and item pointers, all remaining payload goes
// into that one packet, which then exceeds maxPacketSize. A heap with no
// addressed payload is sent as a single packet regardless of its size.
func (s *SendHeap) Packetize(maxPacketSize int) ([][]byte, error) {
	var immediatePointers []uint64
	var addressed []packetizedItem
	var offset uint64

	for _, it := range s.items {
		if it.Immediate {
			n := int(s.flavor.HeapAddressBits / 8)
			if len(it.Bytes) != n {
				return nil, errors.InvalidArgument("immediate value width mismatch")
			}
			var v uint64
			for _, b := range it.Bytes {
				v = v<<8 | uint64(b)
			}
			p, err := s.flavor.EncodeImmediate(it.ID, v)
			if err != nil {
				return nil, err
			}
			immediatePointers = append(immediatePointers, p)
			continue
		}
		addressed = append(addressed, packetizedItem{id: it.ID, offset: offset, data: it.Bytes})
		offset += uint64(len(it.Bytes))
	}
	totalPayload := offset

	pointers := make([]uint64, 0, len(addressed)+len(immediatePointers))
	pointers = append(pointers, immediatePointers...)
	for _, a := range addressed {
		p, err := s.flavor.EncodeAddress(a.id, a.offset)
		if err != nil {
			return nil, err
		}
		pointers = append(pointers, p)
	}

	payload := make([]byte, 0, totalPayload)
	for _, a := range addressed {
		payload = append(payload, a.data...)
	}

	// Every packet carries HEAP_CNT, HEAP_LENGTH, PAYLOAD_OFFSET, and
	// PAYLOAD_LENGTH (proto.Encode always emits these four once
	// HeapLength is set, which Packetize always does). A heap with
	// SetEndOfStream(true) also needs room for STREAM_CTRL on its last
	// packet; that overhead is reserved on every packet here rather than
	// threading "is this the last chunk" back into chunkOffsets.
	const headerSizeOverhead = 8
	const mandatoryPointerOverhead = 8 * 4
	eosOverhead := 0
	if s.endOfHeap {
		eosOverhead = 8
	}
	firstOverhead := headerSizeOverhead + mandatoryPointerOverhead + eosOverhead + 8*len(pointers)
	restOverhead := headerSizeOverhead + mandatoryPointerOverhead + eosOverhead
	slices := chunkOffsets(len(payload), maxPacketSize, firstOverhead, restOverhead)

	packets := make([][]byte, 0, len(slices))
	for i, sl := range slices {
		spec := proto.EncodeSpec{
			Flavor:        s.flavor,
			BugCompat:     s.bugCompat,
			HeapCnt:       s.heapCnt,
			HeapLength:    int64(totalPayload),
			PayloadOffset: uint64(sl.start),
			PayloadLength: uint64(sl.end - sl.start),
			Payload:       payload[sl.start:sl.end],
			EndOfStream:   s.endOfHeap && i == len(slices)-1,
		}
		if i == 0 {
			spec.Pointers = pointers
		}
		buf, err := proto.Encode(spec)
		if err != nil {
			return nil, err
		}
		packets = append(packets, buf)
	}
	if len(packets) == 0 {
		spec := proto.EncodeSpec{
			Flavor:        s.flavor,
			BugCompat:     s.bugCompat,
			HeapCnt:       s.heapCnt,
			HeapLength:    int64(totalPayload),
			PayloadOffset: 0,
			PayloadLength: 0,
			Pointers:      pointers,
			EndOfStream:   s.endOfHeap,
		}
		buf, err := proto.Encode(spec)
		if err != nil {
			return nil, err
		}
		packets = append(packets, buf)
	}
	return packets, nil
}

type byteSlice struct {
	start, end int
}

// chunkOffsets deterministically slices [0, total) into payload-offset-
// sorted packet-sized spans, accounting for the first packet's larger
// header (it carries the item-pointer list).
func chunkOffsets(total, maxPacketSize, firstOverhead, restOverhead int) []byteSlice {
	if total == 0 {
		return nil
	}
	var slices []byteSlice
	pos := 0
	first := true
	for pos < total {
		overhead := restOverhead
		if first {
			overhead = firstOverhead
		}
		room := maxPacketSize - overhead
		if room <= 0 {
			room = total - pos
		}
		end := pos + room
		if end > total {
			end = total
		}
		slices = append(slices, byteSlice{start: pos, end: end})
		pos = end
		first = false
	}
	return slices
}
