package pool

import "testing"

func TestBufferResizeGrowsGeometrically(t *testing.T) {
	b := NewBuffer(nil)
	b.Resize(10, false)
	if b.Len() != 10 {
		t.Fatalf("got len %d, want 10", b.Len())
	}
	firstCap := b.Cap()
	if firstCap < 10 {
		t.Fatalf("cap %d should be at least 10", firstCap)
	}
	b.Resize(11, false)
	if b.Cap() == firstCap+1 {
		t.Fatalf("expected doubling growth, not exact +1, cap=%d", b.Cap())
	}
}

func TestBufferResizeExact(t *testing.T) {
	b := NewBuffer(nil)
	b.Resize(100, true)
	if b.Cap() != 100 {
		t.Fatalf("exact resize should allocate exactly 100, got %d", b.Cap())
	}
}

func TestBufferResizePreservesPrefix(t *testing.T) {
	b := NewBuffer([]byte("hello"))
	b.Resize(10, false)
	if string(b.Bytes()[:5]) != "hello" {
		t.Fatalf("prefix not preserved: %q", b.Bytes()[:5])
	}
}

func TestPoolReusesReleasedBuffers(t *testing.T) {
	p := New(2, 64)
	b1 := p.Get()
	p.Put(b1)
	b2 := p.Get()
	if b1 != b2 {
		t.Fatalf("expected Get to reuse the released buffer")
	}
}

func TestPoolDropsOnFullFreeList(t *testing.T) {
	p := New(1, 64)
	a := p.Get()
	b := p.Get()
	p.Put(a)
	p.Put(b) // free list already has a slot filled; this one is dropped
	got1 := p.Get()
	got2 := p.Get()
	if got1 != a {
		t.Fatalf("expected first Get to reuse the retained buffer")
	}
	if got2 == a || got2 == b {
		t.Fatalf("expected second Get to allocate fresh, free list was exhausted")
	}
}

func TestTieredPoolSelectsSmallestFittingTier(t *testing.T) {
	small := New(2, 64)
	large := New(2, 4096)
	tp := NewTieredPool(small, large)

	b := tp.Get(32)
	if b.Cap() < 32 {
		t.Fatalf("buffer too small")
	}
	tp.Put(b)
	again := tp.Get(32)
	if again.Cap() != 64 {
		t.Fatalf("expected reuse from the 64-byte tier, got cap %d", again.Cap())
	}
}

func TestTieredPoolFallsBackBeyondEveryTier(t *testing.T) {
	small := New(2, 64)
	tp := NewTieredPool(small)
	b := tp.Get(4096)
	if b.Cap() < 4096 {
		t.Fatalf("expected unpooled buffer of at least 4096 bytes, got %d", b.Cap())
	}
}
