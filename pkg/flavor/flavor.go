// Package flavor implements the SPEAD item-pointer codec: encoding and
// decoding a 64-bit item pointer given a chosen (heap-address-bits,
// item-pointer-bits) split, per spec.md §3 and §4.1.
package flavor

import (
	"math/bits"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/errors"
)

// ItemPointerBits is fixed at 64 in this core.
const ItemPointerBits = 64

// immediateFlag is the top bit of a 64-bit item pointer.
const immediateFlag = uint64(1) << 63

// Flavor is the (heap_address_bits, item_pointer_bits) split that
// governs item-pointer layout. item_pointer_bits is always 64 here.
type Flavor struct {
	HeapAddressBits uint8
}

// New validates and returns a Flavor for the given heap-address-bit width.
func New(heapAddressBits uint8) (Flavor, error) {
	f := Flavor{HeapAddressBits: heapAddressBits}
	if err := f.Validate(); err != nil {
		return Flavor{}, err
	}
	return f, nil
}

// Validate checks heap_address_bits % 8 == 0 and
// 0 < heap_address_bits < item_pointer_bits, per spec.md §3.
func (f Flavor) Validate() error {
	if f.HeapAddressBits == 0 || f.HeapAddressBits >= ItemPointerBits {
		return errors.ErrInvalidFlavor
	}
	if f.HeapAddressBits%8 != 0 {
		return errors.ErrInvalidFlavor
	}
	return nil
}

// addressMask is the low heap_address_bits bits, all set.
func (f Flavor) addressMask() uint64 {
	return (uint64(1) << f.HeapAddressBits) - 1
}

// idBits is the width available to the item ID: item_pointer_bits - 1 (the
// immediate flag) - heap_address_bits.
func (f Flavor) idBits() uint {
	return uint(ItemPointerBits) - 1 - uint(f.HeapAddressBits)
}

// MaxItemID returns the largest item ID this flavor's pointer layout can
// address.
func (f Flavor) MaxItemID() uint64 {
	return (uint64(1) << f.idBits()) - 1
}

func (f Flavor) checkID(id uint64) error {
	if id > f.MaxItemID() {
		return errors.ErrItemIDOutOfRange
	}
	return nil
}

// EncodeImmediate builds an item pointer naming id with an inline value.
// value is masked to heap_address_bits; callers that need the full range
// should use an addressed item instead.
func (f Flavor) EncodeImmediate(id, value uint64) (uint64, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	v := value & f.addressMask()
	return immediateFlag | (id << f.HeapAddressBits) | v, nil
}

// EncodeAddress builds an item pointer naming id at a byte offset into
// the heap payload.
func (f Flavor) EncodeAddress(id, offset uint64) (uint64, error) {
	if err := f.checkID(id); err != nil {
		return 0, err
	}
	return (id << f.HeapAddressBits) | (offset & f.addressMask()), nil
}

// Decode splits a raw item pointer into its id, its value (an inline
// value if immediate, otherwise a payload byte offset), and whether it
// is immediate.
func (f Flavor) Decode(ptr uint64) (id uint64, value uint64, immediate bool) {
	immediate = ptr&immediateFlag != 0
	value = ptr & f.addressMask()
	id = (ptr &^ immediateFlag) >> f.HeapAddressBits
	return
}

// SwapImmediateValueBytes reverses the byte order of an immediate
// value's low heap_address_bits/8 bytes. Honored only under
// cfg.BugCompatSwapEndian, for producers that emitted the pre-SPEAD-64
// immediate byte order. See SPEC_FULL.md's supplemented features.
func (f Flavor) SwapImmediateValueBytes(value uint64) uint64 {
	nbytes := f.HeapAddressBits / 8
	swapped := bits.ReverseBytes64(value << (8 * (8 - nbytes)))
	return swapped
}

// ApplyBugCompat conditionally byte-swaps an immediate value according
// to the bug-compat mask. It is a no-op for addressed item pointers.
func (f Flavor) ApplyBugCompat(bc cfg.BugCompat, value uint64, immediate bool) uint64 {
	if immediate && bc.Has(cfg.BugCompatSwapEndian) {
		return f.SwapImmediateValueBytes(value)
	}
	return value
}
