package proto

import (
	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/errors"
	"github.com/lao19881213/spead2/pkg/flavor"
	"github.com/lao19881213/spead2/pkg/util"
	"github.com/lao19881213/spead2/third_party/forked/golang/glog"
)

// Packet is a decoded view over a caller-owned byte range: the payload
// field is a slice into that range, never copied.
type Packet struct {
	Flavor        flavor.Flavor
	HeapCnt       uint64
	HeapLength    int64 // -1 if this packet carries no HEAP_LENGTH item
	PayloadOffset uint64
	PayloadLength uint64
	EndOfStream   bool
	Pointers      []uint64 // non-special item pointers, in original order
	Payload       []byte
}

// Decode parses buf as one SPEAD packet. It returns the packet and the
// number of bytes consumed, or a MalformedPacket error with 0 consumed
// on any failed check, per the wire format in spec §4.2/§6.
func Decode(buf []byte, bc cfg.BugCompat) (*Packet, int, error) {
	if len(buf) < headerSize {
		glog.Warningf("decode: buffer shorter than header: %s", util.ToPrintableAndHexString(buf))
		return nil, 0, errors.ErrBufferTooShort
	}
	if EncByteOrder.Uint16(buf[0:2]) != magicWord {
		glog.Warningf("decode: bad magic: %s", util.ToPrintableAndHexString(buf[0:headerSize]))
		return nil, 0, errors.ErrBadMagic
	}
	itemPointerBytesDelta := buf[4]
	heapAddressBytes := buf[5]
	itemPointerBytes := itemPointerBytesDelta + heapAddressBytes
	if itemPointerBytes != 8 || heapAddressBytes < 1 || heapAddressBytes > 7 {
		glog.Warningf("decode: unsupported item pointer width %d/%d: %s", itemPointerBytesDelta, heapAddressBytes, util.ToPrintableAndHexString(buf[0:headerSize]))
		return nil, 0, errors.ErrBadItemPointerWidth
	}
	fl, err := flavor.New(heapAddressBytes * 8)
	if err != nil {
		glog.Warningf("decode: invalid flavor in header: %s", util.ToPrintableAndHexString(buf[0:headerSize]))
		return nil, 0, errors.MalformedPacket("invalid flavor in packet header")
	}
	nItems := int(EncByteOrder.Uint16(buf[6:8]))

	need := headerSize + pointerSize*nItems
	if len(buf) < need {
		glog.Warningf("decode: buffer too short for %d item pointers: %s", nItems, util.ToPrintableAndHexString(buf))
		return nil, 0, errors.ErrBufferTooShort
	}

	pkt := &Packet{
		Flavor:     fl,
		HeapLength: -1,
	}
	haveHeapCnt := false
	off := headerSize
	for i := 0; i < nItems; i++ {
		raw := EncByteOrder.Uint64(buf[off : off+8])
		off += 8
		id, value, immediate := fl.Decode(raw)
		switch id {
		case HeapCntID:
			if !immediate {
				glog.Warningf("decode: HEAP_CNT must be immediate, raw=%#x", raw)
				return nil, 0, errors.MalformedPacket("HEAP_CNT must be immediate")
			}
			pkt.HeapCnt = value
			haveHeapCnt = true
		case HeapLengthID:
			if !immediate {
				glog.Warningf("decode: HEAP_LENGTH must be immediate, raw=%#x", raw)
				return nil, 0, errors.MalformedPacket("HEAP_LENGTH must be immediate")
			}
			pkt.HeapLength = int64(value)
		case PayloadOffsetID:
			if !immediate {
				glog.Warningf("decode: PAYLOAD_OFFSET must be immediate, raw=%#x", raw)
				return nil, 0, errors.MalformedPacket("PAYLOAD_OFFSET must be immediate")
			}
			pkt.PayloadOffset = value
		case PayloadLengthID:
			if !immediate {
				glog.Warningf("decode: PAYLOAD_LENGTH must be immediate, raw=%#x", raw)
				return nil, 0, errors.MalformedPacket("PAYLOAD_LENGTH must be immediate")
			}
			pkt.PayloadLength = value
		case StreamCtrlID:
			if immediate && value == StreamCtrlStop {
				pkt.EndOfStream = true
			}
		case NullID:
			// ignored
		default:
			if immediate && bc.Has(cfg.BugCompatSwapEndian) {
				swapped := fl.ApplyBugCompat(bc, value, true)
				if p, err := fl.EncodeImmediate(id, swapped); err == nil {
					raw = p
				}
			}
			pkt.Pointers = append(pkt.Pointers, raw)
		}
	}
	if !haveHeapCnt {
		glog.Warningf("decode: packet missing HEAP_CNT: %s", util.ToPrintableAndHexString(buf[0:need]))
		return nil, 0, errors.MalformedPacket("missing HEAP_CNT")
	}

	total := need + int(pkt.PayloadLength)
	if len(buf) < total {
		glog.Warningf("decode: buffer too short for declared payload length %d: %s", pkt.PayloadLength, util.ToPrintableAndHexString(buf))
		return nil, 0, errors.ErrBufferTooShort
	}
	pkt.Payload = buf[need:total]
	return pkt, total, nil
}

// EncodeSpec describes one wire packet to serialize.
type EncodeSpec struct {
	Flavor        flavor.Flavor
	BugCompat     cfg.BugCompat
	HeapCnt       uint64
	HeapLength    int64 // omitted from the wire if negative
	PayloadOffset uint64
	PayloadLength uint64
	Pointers      []uint64 // additional, already-encoded item pointers
	EndOfStream   bool
	Payload       []byte
}

// Encode serializes s into one complete wire packet.
func Encode(s EncodeSpec) ([]byte, error) {
	ptrs := make([]uint64, 0, 4+len(s.Pointers))

	p, err := s.Flavor.EncodeImmediate(HeapCntID, s.HeapCnt)
	if err != nil {
		return nil, err
	}
	ptrs = append(ptrs, p)

	if s.HeapLength >= 0 {
		p, err = s.Flavor.EncodeImmediate(HeapLengthID, uint64(s.HeapLength))
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, p)
	}

	p, err = s.Flavor.EncodeImmediate(PayloadOffsetID, s.PayloadOffset)
	if err != nil {
		return nil, err
	}
	ptrs = append(ptrs, p)

	p, err = s.Flavor.EncodeImmediate(PayloadLengthID, s.PayloadLength)
	if err != nil {
		return nil, err
	}
	ptrs = append(ptrs, p)

	if s.EndOfStream {
		p, err = s.Flavor.EncodeImmediate(StreamCtrlID, StreamCtrlStop)
		if err != nil {
			return nil, err
		}
		ptrs = append(ptrs, p)
	}

	ptrs = append(ptrs, s.Pointers...)

	heapAddressBytes := s.Flavor.HeapAddressBits / 8
	total := headerSize + pointerSize*len(ptrs) + len(s.Payload)
	buf := make([]byte, total)

	EncByteOrder.PutUint16(buf[0:2], magicWord)
	buf[4] = 8 - heapAddressBytes
	buf[5] = heapAddressBytes
	EncByteOrder.PutUint16(buf[6:8], uint16(len(ptrs)))

	off := headerSize
	for _, ptr := range ptrs {
		EncByteOrder.PutUint64(buf[off:off+8], ptr)
		off += 8
	}
	copy(buf[off:], s.Payload)
	return buf, nil
}
