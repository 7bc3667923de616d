package flavor

import (
	"testing"

	"github.com/lao19881213/spead2/pkg/cfg"
)

func TestNewValidatesBits(t *testing.T) {
	if _, err := New(48); err != nil {
		t.Fatalf("New(48): %v", err)
	}
	if _, err := New(0); err == nil {
		t.Fatalf("New(0): expected error")
	}
	if _, err := New(64); err == nil {
		t.Fatalf("New(64): expected error")
	}
	if _, err := New(12); err == nil {
		t.Fatalf("New(12): expected error, not a multiple of 8")
	}
}

func TestEncodeDecodeImmediate(t *testing.T) {
	fl, err := New(48)
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := fl.EncodeImmediate(0x1000, 0x1234)
	if err != nil {
		t.Fatal(err)
	}
	id, value, immediate := fl.Decode(ptr)
	if !immediate {
		t.Fatalf("expected immediate")
	}
	if id != 0x1000 || value != 0x1234 {
		t.Fatalf("got id=%#x value=%#x", id, value)
	}
}

func TestEncodeDecodeAddress(t *testing.T) {
	fl, err := New(48)
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := fl.EncodeAddress(0x1000, 128)
	if err != nil {
		t.Fatal(err)
	}
	id, value, immediate := fl.Decode(ptr)
	if immediate {
		t.Fatalf("expected addressed")
	}
	if id != 0x1000 || value != 128 {
		t.Fatalf("got id=%#x value=%#x", id, value)
	}
}

func TestItemIDOutOfRange(t *testing.T) {
	fl, err := New(56)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fl.EncodeImmediate(fl.MaxItemID()+1, 0); err == nil {
		t.Fatalf("expected item ID out of range")
	}
	if _, err := fl.EncodeImmediate(fl.MaxItemID(), 0); err != nil {
		t.Fatalf("max item ID should be valid: %v", err)
	}
}

func TestSwapImmediateValueBytesInvolution(t *testing.T) {
	fl, err := New(48)
	if err != nil {
		t.Fatal(err)
	}
	value := uint64(0x0102030405)
	swapped := fl.SwapImmediateValueBytes(value)
	back := fl.SwapImmediateValueBytes(swapped)
	if back != value {
		t.Fatalf("swap is not involutive: %#x -> %#x -> %#x", value, swapped, back)
	}
}

func TestApplyBugCompatOnlyAffectsImmediate(t *testing.T) {
	fl, err := New(48)
	if err != nil {
		t.Fatal(err)
	}
	value := uint64(0x0102030405)
	if got := fl.ApplyBugCompat(cfg.BugCompatSwapEndian, value, false); got != value {
		t.Fatalf("addressed value should be untouched, got %#x", got)
	}
	if got := fl.ApplyBugCompat(0, value, true); got != value {
		t.Fatalf("immediate value without the flag should be untouched, got %#x", got)
	}
}
