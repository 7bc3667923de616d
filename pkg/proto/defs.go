// Package proto implements the SPEAD wire codec: parsing a byte range
// into a packet header with its item-pointer list and payload span, and
// serializing a send heap's items into a sequence of wire packets. It
// also implements the self-describing item descriptor blob.
package proto

import (
	"encoding/binary"
)

// EncByteOrder is the byte order of every multi-byte field on the wire:
// the packet header, item pointers, and descriptor field widths.
var EncByteOrder = binary.BigEndian

const (
	magicWord   uint16 = 0x5304
	headerSize         = 8
	pointerSize        = 8
)

// Special item IDs recognized by the packet codec and descriptor
// encoder. ID 0 is NULL and is always ignored.
const (
	NullID              uint64 = 0x00
	HeapCntID           uint64 = 0x01
	HeapLengthID        uint64 = 0x02
	PayloadOffsetID     uint64 = 0x03
	PayloadLengthID     uint64 = 0x04
	DescriptorID        uint64 = 0x05
	StreamCtrlID        uint64 = 0x06
	DescriptorIDID      uint64 = 0x14
	DescriptorNameID    uint64 = 0x10
	DescriptorDescrID   uint64 = 0x11
	DescriptorFormatID  uint64 = 0x13
	DescriptorShapeID   uint64 = 0x12
	DescriptorDtypeID   uint64 = 0x15
)

// StreamCtrlStop is the STREAM_CTRL value signaling end-of-stream.
const StreamCtrlStop uint64 = 2

// isSpecialID reports whether id is one of the packet-structuring
// special item pointers, excluded from a packet's or heap's item list.
func isSpecialID(id uint64) bool {
	switch id {
	case NullID, HeapCntID, HeapLengthID, PayloadOffsetID, PayloadLengthID, StreamCtrlID:
		return true
	}
	return false
}
