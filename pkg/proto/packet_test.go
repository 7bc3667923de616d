package proto

import (
	"testing"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/errors"
	"github.com/lao19881213/spead2/pkg/flavor"
)

func mustFlavor(t *testing.T, bits uint8) flavor.Flavor {
	fl, err := flavor.New(bits)
	if err != nil {
		t.Fatalf("flavor.New(%d): %v", bits, err)
	}
	return fl
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fl := mustFlavor(t, 48)
	itemPtr, err := fl.EncodeAddress(0x1000, 3)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("hello")
	buf, err := Encode(EncodeSpec{
		Flavor:        fl,
		HeapCnt:       7,
		HeapLength:    int64(len(payload)),
		PayloadOffset: 0,
		PayloadLength: uint64(len(payload)),
		Pointers:      []uint64{itemPtr},
		Payload:       payload,
	})
	if err != nil {
		t.Fatal(err)
	}

	pkt, n, err := Decode(buf, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(buf) {
		t.Fatalf("consumed %d, want %d", n, len(buf))
	}
	if pkt.HeapCnt != 7 || pkt.HeapLength != int64(len(payload)) {
		t.Fatalf("got heap_cnt=%d heap_length=%d", pkt.HeapCnt, pkt.HeapLength)
	}
	if string(pkt.Payload) != "hello" {
		t.Fatalf("got payload %q", pkt.Payload)
	}
	if len(pkt.Pointers) != 1 || pkt.Pointers[0] != itemPtr {
		t.Fatalf("got pointers %v", pkt.Pointers)
	}
}

func TestDecodeBadMagic(t *testing.T) {
	buf := make([]byte, 8)
	buf[0], buf[1] = 0x00, 0x00
	if _, _, err := Decode(buf, 0); !errors.IsKind(err, errors.KindMalformedPacket) {
		t.Fatalf("expected malformed packet error, got %v", err)
	}
}

func TestDecodeBufferTooShort(t *testing.T) {
	if _, _, err := Decode([]byte{1, 2, 3}, 0); !errors.IsKind(err, errors.KindMalformedPacket) {
		t.Fatalf("expected malformed packet error, got %v", err)
	}
}

func TestDecodeMissingHeapCnt(t *testing.T) {
	fl := mustFlavor(t, 48)
	p, err := fl.EncodeImmediate(PayloadOffsetID, 0)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, headerSize+pointerSize)
	EncByteOrder.PutUint16(buf[0:2], magicWord)
	buf[4] = 8 - fl.HeapAddressBits/8
	buf[5] = fl.HeapAddressBits / 8
	EncByteOrder.PutUint16(buf[6:8], 1)
	EncByteOrder.PutUint64(buf[8:16], p)

	if _, _, err := Decode(buf, 0); !errors.IsKind(err, errors.KindMalformedPacket) {
		t.Fatalf("expected missing HEAP_CNT error, got %v", err)
	}
}

func TestEndOfStreamFlag(t *testing.T) {
	fl := mustFlavor(t, 48)
	buf, err := Encode(EncodeSpec{
		Flavor:      fl,
		HeapCnt:     1,
		HeapLength:  0,
		EndOfStream: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	pkt, _, err := Decode(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !pkt.EndOfStream {
		t.Fatalf("expected EndOfStream=true")
	}
}

func TestBugCompatSwapEndianAffectsOnlyOrdinaryItems(t *testing.T) {
	fl := mustFlavor(t, 48)
	itemPtr, err := fl.EncodeImmediate(0x2000, 0x0102030405)
	if err != nil {
		t.Fatal(err)
	}
	buf, err := Encode(EncodeSpec{
		Flavor:     fl,
		HeapCnt:    1,
		HeapLength: 0,
		Pointers:   []uint64{itemPtr},
	})
	if err != nil {
		t.Fatal(err)
	}

	plain, _, err := Decode(buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	swapped, _, err := Decode(buf, cfg.BugCompatSwapEndian)
	if err != nil {
		t.Fatal(err)
	}
	if plain.HeapCnt != swapped.HeapCnt {
		t.Fatalf("HEAP_CNT must be unaffected by swap-endian bug compat: %d vs %d", plain.HeapCnt, swapped.HeapCnt)
	}
	if plain.Pointers[0] == swapped.Pointers[0] {
		t.Fatalf("expected ordinary item pointer value to differ under swap-endian bug compat")
	}
}

func TestDescriptorRoundTrip(t *testing.T) {
	fl := mustFlavor(t, 48)
	d := Descriptor{
		ID:          0x1234,
		Name:        "vis",
		Description: "visibility data",
		Format:      []FormatField{{Tag: 'c', Value: 64}},
		Shape:       []int64{-1, 4},
	}
	blob, err := EncodeDescriptor(d, fl, 0)
	if err != nil {
		t.Fatal(err)
	}
	pkt, _, err := Decode(blob, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeDescriptor(pkt, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != d.ID || got.Name != d.Name || got.Description != d.Description {
		t.Fatalf("got %+v, want %+v", got, d)
	}
	if len(got.Shape) != 2 || got.Shape[0] != -1 || got.Shape[1] != 4 {
		t.Fatalf("got shape %v", got.Shape)
	}
	if len(got.Format) != 1 || got.Format[0].Tag != 'c' || got.Format[0].Value != 64 {
		t.Fatalf("got format %v", got.Format)
	}
}

func TestDescriptorBugCompatWidths(t *testing.T) {
	fl := mustFlavor(t, 40)
	d := Descriptor{ID: 1, Name: "x", Shape: []int64{-1}}
	blob, err := EncodeDescriptor(d, fl, cfg.BugCompatDescriptorWidths)
	if err != nil {
		t.Fatal(err)
	}
	pkt, _, err := Decode(blob, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeDescriptor(pkt, cfg.BugCompatDescriptorWidths)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "x" || len(got.Shape) != 1 || got.Shape[0] != -1 {
		t.Fatalf("got %+v", got)
	}
}

func TestDescriptorShapeBit1BugCompat(t *testing.T) {
	fl := mustFlavor(t, 48)
	d := Descriptor{ID: 1, Shape: []int64{-1}}
	blob, err := EncodeDescriptor(d, fl, cfg.BugCompatShapeBit1)
	if err != nil {
		t.Fatal(err)
	}
	pkt, _, err := Decode(blob, 0)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeDescriptor(pkt, cfg.BugCompatShapeBit1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Shape) != 1 || got.Shape[0] != -1 {
		t.Fatalf("got shape %v", got.Shape)
	}
}
