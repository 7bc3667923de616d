package heap

import (
	"sort"

	"github.com/lao19881213/spead2/pkg/flavor"
	"github.com/lao19881213/spead2/pkg/pool"
)

// Item is one value carried by a frozen heap: either an inline
// immediate value, or a slice into the heap's payload buffer.
type Item struct {
	ID        uint64
	Value     []byte
	Immediate bool
}

// FrozenHeap is the immutable result of completing or evicting a
// ReceiveHeap. It owns the payload buffer and item-pointer list handed
// to it at construction.
type FrozenHeap struct {
	heapCnt    uint64
	flavor     flavor.Flavor
	pointers   []uint64
	payload    []byte
	minLength  int64
	isComplete bool

	pool *pool.Pool   // non-nil only if buf was drawn from a pool
	buf  *pool.Buffer // the ReceiveHeap's payload buffer, carried forward
}

// Cnt returns the heap's ID.
func (f *FrozenHeap) Cnt() uint64 { return f.heapCnt }

// Flavor returns the flavor every absorbed packet agreed on.
func (f *FrozenHeap) Flavor() flavor.Flavor { return f.flavor }

// IsComplete reports whether the heap's declared length was fully
// received.
func (f *FrozenHeap) IsComplete() bool { return f.isComplete }

// Payload returns the heap's raw payload buffer.
func (f *FrozenHeap) Payload() []byte { return f.payload }

// Release returns the heap's payload buffer to the pool it was drawn
// from, if any, and clears the payload. Callers must stop calling
// Payload/Items once a heap has been released, matching the
// ReleaseBuffer/GiveUpBufferOwnership split the buffer-owning type this
// is grounded on uses: Release hands the buffer back, Payload/Items
// become invalid once the underlying bytes may be reused by the next
// Get.
func (f *FrozenHeap) Release() {
	if f.pool != nil && f.buf != nil {
		f.pool.Put(f.buf)
	}
	f.pool = nil
	f.buf = nil
	f.payload = nil
}

// Pointers returns the heap's raw, non-special item pointers in the
// order they were absorbed.
func (f *FrozenHeap) Pointers() []uint64 { return f.pointers }

// Items derives the heap's item list. Address-mode pointers are sorted
// by offset; the value of the pointer at offset o runs from o to the
// next address-mode pointer's offset in that sorted order, or to the end
// of the payload for the last one. A pointer whose span falls outside
// the payload is skipped.
func (f *FrozenHeap) Items() []Item {
	type addrItem struct {
		id     uint64
		offset uint64
	}
	var addrs []addrItem
	items := make([]Item, 0, len(f.pointers))

	for _, raw := range f.pointers {
		id, value, immediate := f.flavor.Decode(raw)
		if id == 0 {
			continue
		}
		if immediate {
			items = append(items, Item{ID: id, Immediate: true, Value: encodeImmediateValue(value, f.flavor)})
			continue
		}
		addrs = append(addrs, addrItem{id: id, offset: value})
	}

	sort.SliceStable(addrs, func(i, j int) bool { return addrs[i].offset < addrs[j].offset })
	for i, a := range addrs {
		end := uint64(len(f.payload))
		if i+1 < len(addrs) {
			end = addrs[i+1].offset
		}
		if a.offset > uint64(len(f.payload)) || end > uint64(len(f.payload)) || a.offset > end {
			continue
		}
		items = append(items, Item{ID: a.id, Value: f.payload[a.offset:end]})
	}
	return items
}

// encodeImmediateValue renders an immediate value as a big-endian byte
// slice sized to the flavor's heap_address_bits, matching the width an
// addressed item's bytes would occupy on the wire.
func encodeImmediateValue(value uint64, fl flavor.Flavor) []byte {
	n := int(fl.HeapAddressBits / 8)
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(value)
		value >>= 8
	}
	return out
}
