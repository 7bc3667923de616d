package heap

import (
	"bytes"
	"testing"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/proto"
)

// Packetizing a heap and feeding every resulting packet back through a
// receive stream reconstructs the original payload, regardless of how
// many packets the heap was split into.
func TestSendHeapPacketizeAndReassemble(t *testing.T) {
	fl := mustFlavor(t, 48)
	sh := NewSendHeap(5, fl, 0)
	sh.AddItem(0x4000, []byte("the quick brown fox jumps over the lazy dog"), false)
	sh.SetEndOfStream(true)

	const maxPacketSize = 72
	packets, err := sh.Packetize(maxPacketSize)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) < 2 {
		t.Fatalf("expected payload split across multiple packets, got %d", len(packets))
	}
	for i, p := range packets {
		if len(p) > maxPacketSize {
			t.Fatalf("packet %d is %d bytes, exceeds max_packet_size %d", i, len(p), maxPacketSize)
		}
	}

	var got *FrozenHeap
	rs := NewReceiveStream(cfg.StreamConfig{HeapAddressBits: 48, MaxHeaps: 4}, func(fh *FrozenHeap) {
		got = fh
	})
	for _, p := range packets {
		pkt, _, err := proto.Decode(p, 0)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !rs.AddPacket(pkt) {
			t.Fatalf("packet rejected")
		}
	}
	rs.Stop()

	if got == nil {
		t.Fatalf("heap never emitted")
	}
	if !got.IsComplete() {
		t.Fatalf("expected reassembled heap to be complete")
	}
	if !bytes.Equal(got.Payload(), []byte("the quick brown fox jumps over the lazy dog")) {
		t.Fatalf("got payload %q", got.Payload())
	}
}

func TestSendHeapWithImmediateItem(t *testing.T) {
	fl := mustFlavor(t, 48)
	sh := NewSendHeap(1, fl, 0)
	if err := sh.AddImmediate(0x5000, 42); err != nil {
		t.Fatal(err)
	}
	packets, err := sh.Packetize(1024)
	if err != nil {
		t.Fatal(err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected one packet, got %d", len(packets))
	}
	pkt, _, err := proto.Decode(packets[0], 0)
	if err != nil {
		t.Fatal(err)
	}
	id, value, immediate := fl.Decode(pkt.Pointers[0])
	if id != 0x5000 || value != 42 || !immediate {
		t.Fatalf("got id=%#x value=%d immediate=%v", id, value, immediate)
	}
}
