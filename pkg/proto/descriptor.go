package proto

import (
	"sort"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/errors"
	"github.com/lao19881213/spead2/pkg/flavor"
)

// FormatField is one (type tag, bit length) pair of a descriptor's
// format list.
type FormatField struct {
	Tag   byte
	Value uint64
}

// Descriptor is an item's self-description: name, free text, a list of
// (type, bit-length) format fields, a shape (-1 marks a variable
// dimension), and an optional numpy-style dtype header.
type Descriptor struct {
	ID          uint64
	Name        string
	Description string
	Format      []FormatField
	Shape       []int64
	NumpyHeader []byte
}

// widths returns the on-wire byte width of one format record and one
// shape record for the given flavor and bug-compat mask, per
// encode_descriptor in the original send-heap implementation.
func widths(fl flavor.Flavor, bc cfg.BugCompat) (fieldSize, shapeSize int) {
	if bc.Has(cfg.BugCompatDescriptorWidths) {
		return 4, 8
	}
	heapAddressBytes := int(fl.HeapAddressBits / 8)
	return 9 - heapAddressBytes, 1 + heapAddressBytes
}

// storeBytesBE writes value as a big-endian unsigned number in the low
// len bytes of dst's tail.
func storeBytesBE(dst []byte, value uint64) {
	n := len(dst)
	for i := n - 1; i >= 0; i-- {
		dst[i] = byte(value)
		value >>= 8
	}
}

func loadBytesBE(src []byte) uint64 {
	var v uint64
	for _, b := range src {
		v = v<<8 | uint64(b)
	}
	return v
}

// EncodeDescriptor serializes d as a complete, self-contained SPEAD
// packet: a header and item pointers addressing name, description,
// format, shape, and optional dtype payload slices, per spec §4.8.
func EncodeDescriptor(d Descriptor, fl flavor.Flavor, bc cfg.BugCompat) ([]byte, error) {
	if d.ID == 0 || d.ID > fl.MaxItemID() {
		return nil, errors.InvalidArgument("item ID out of range")
	}
	fieldSize, shapeSize := widths(fl, bc)
	haveNumpy := len(d.NumpyHeader) > 0

	payloadSize := len(d.Name) + len(d.Description) +
		len(d.Format)*fieldSize + len(d.Shape)*shapeSize + len(d.NumpyHeader)

	offset := uint64(0)
	pointers := make([]uint64, 0, 5)
	p, err := fl.EncodeImmediate(DescriptorIDID, d.ID)
	if err != nil {
		return nil, err
	}
	pointers = append(pointers, p)

	p, err = fl.EncodeAddress(DescriptorNameID, offset)
	if err != nil {
		return nil, err
	}
	pointers = append(pointers, p)
	offset += uint64(len(d.Name))

	p, err = fl.EncodeAddress(DescriptorDescrID, offset)
	if err != nil {
		return nil, err
	}
	pointers = append(pointers, p)
	offset += uint64(len(d.Description))

	p, err = fl.EncodeAddress(DescriptorFormatID, offset)
	if err != nil {
		return nil, err
	}
	pointers = append(pointers, p)
	offset += uint64(len(d.Format) * fieldSize)

	p, err = fl.EncodeAddress(DescriptorShapeID, offset)
	if err != nil {
		return nil, err
	}
	pointers = append(pointers, p)
	offset += uint64(len(d.Shape) * shapeSize)

	if haveNumpy {
		p, err = fl.EncodeAddress(DescriptorDtypeID, offset)
		if err != nil {
			return nil, err
		}
		pointers = append(pointers, p)
		offset += uint64(len(d.NumpyHeader))
	}

	payload := make([]byte, 0, payloadSize)
	payload = append(payload, d.Name...)
	payload = append(payload, d.Description...)
	for _, f := range d.Format {
		rec := make([]byte, fieldSize)
		rec[0] = f.Tag
		storeBytesBE(rec[1:], f.Value)
		payload = append(payload, rec...)
	}
	variableTag := byte(1)
	if bc.Has(cfg.BugCompatShapeBit1) {
		variableTag = 2
	}
	for _, dim := range d.Shape {
		rec := make([]byte, shapeSize)
		if dim < 0 {
			rec[0] = variableTag
		} else {
			storeBytesBE(rec[1:], uint64(dim))
		}
		payload = append(payload, rec...)
	}
	if haveNumpy {
		payload = append(payload, d.NumpyHeader...)
	}

	return Encode(EncodeSpec{
		Flavor:        fl,
		HeapCnt:       1,
		HeapLength:    int64(payloadSize),
		PayloadOffset: 0,
		PayloadLength: uint64(payloadSize),
		Pointers:      pointers,
		Payload:       payload,
	})
}

// DecodeDescriptor reconstructs a Descriptor from an already-decoded
// descriptor packet.
func DecodeDescriptor(pkt *Packet, bc cfg.BugCompat) (Descriptor, error) {
	fieldSize, shapeSize := widths(pkt.Flavor, bc)

	type span struct {
		id     uint64
		offset uint64
	}
	var spans []span
	var d Descriptor
	for _, raw := range pkt.Pointers {
		id, value, immediate := pkt.Flavor.Decode(raw)
		if id == DescriptorIDID {
			if !immediate {
				return Descriptor{}, errors.MalformedPacket("DESCRIPTOR_ID must be immediate")
			}
			d.ID = value
			continue
		}
		if immediate {
			continue
		}
		spans = append(spans, span{id: id, offset: value})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].offset < spans[j].offset })

	sliceFor := func(idx int) []byte {
		start := spans[idx].offset
		end := uint64(len(pkt.Payload))
		if idx+1 < len(spans) {
			end = spans[idx+1].offset
		}
		if start > uint64(len(pkt.Payload)) || end > uint64(len(pkt.Payload)) || start > end {
			return nil
		}
		return pkt.Payload[start:end]
	}

	for i, sp := range spans {
		b := sliceFor(i)
		switch sp.id {
		case DescriptorNameID:
			d.Name = string(b)
		case DescriptorDescrID:
			d.Description = string(b)
		case DescriptorFormatID:
			for off := 0; off+fieldSize <= len(b); off += fieldSize {
				d.Format = append(d.Format, FormatField{
					Tag:   b[off],
					Value: loadBytesBE(b[off+1 : off+fieldSize]),
				})
			}
		case DescriptorShapeID:
			variableTag := byte(1)
			if bc.Has(cfg.BugCompatShapeBit1) {
				variableTag = 2
			}
			for off := 0; off+shapeSize <= len(b); off += shapeSize {
				if b[off] == variableTag {
					d.Shape = append(d.Shape, -1)
				} else {
					d.Shape = append(d.Shape, int64(loadBytesBE(b[off+1:off+shapeSize])))
				}
			}
		case DescriptorDtypeID:
			d.NumpyHeader = append([]byte(nil), b...)
		}
	}
	return d, nil
}
