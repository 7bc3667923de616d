// Package stats collects per-stream counters and latency/size
// histograms for a receive stream, grounded on the teacher's load-test
// statistics (test/drv/junoload/stats.go) and its HdrHistogram-go usage.
package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// StreamStats tracks heap outcomes and two histograms: the size, in
// bytes, of heaps handed to heap_ready, and the wall-clock time between
// a heap's first absorbed packet and its emission.
type StreamStats struct {
	mu         sync.Mutex
	sizeHist   *hdrhistogram.Histogram
	latencyHist *hdrhistogram.Histogram

	HeapsCompleted      AtomicUint64Counter
	HeapsEvictedPartial AtomicUint64Counter
	HeapsDuplicate      AtomicUint64Counter
	PacketsMalformed    AtomicUint64Counter
	PacketsRejected     AtomicUint64Counter
}

// New constructs a StreamStats with histograms sized for heap payloads
// up to 1 GiB and assembly latencies up to one hour.
func New() *StreamStats {
	return &StreamStats{
		sizeHist:    hdrhistogram.New(1, 1<<30, 3),
		latencyHist: hdrhistogram.New(1, int64(time.Hour), 3),
	}
}

// RecordHeap records one emitted heap's payload size and the duration
// since its first packet was absorbed.
func (s *StreamStats) RecordHeap(size int, latency time.Duration, complete bool) {
	s.mu.Lock()
	s.sizeHist.RecordValues(int64(size), 1)
	s.latencyHist.RecordValues(int64(latency), 1)
	s.mu.Unlock()
	if complete {
		s.HeapsCompleted.Inc()
	} else {
		s.HeapsEvictedPartial.Inc()
	}
}

// Snapshot is a point-in-time read of the histograms.
type Snapshot struct {
	NumHeaps      int64
	MinSize       int64
	MaxSize       int64
	P50Size       int64
	P99Size       int64
	P50Latency    time.Duration
	P99Latency    time.Duration
}

// Snapshot reads the current histogram state.
func (s *StreamStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		NumHeaps:   s.sizeHist.TotalCount(),
		MinSize:    s.sizeHist.Min(),
		MaxSize:    s.sizeHist.Max(),
		P50Size:    s.sizeHist.ValueAtQuantile(50),
		P99Size:    s.sizeHist.ValueAtQuantile(99),
		P50Latency: time.Duration(s.latencyHist.ValueAtQuantile(50)),
		P99Latency: time.Duration(s.latencyHist.ValueAtQuantile(99)),
	}
}

// Reset clears both histograms and every counter.
func (s *StreamStats) Reset() {
	s.mu.Lock()
	s.sizeHist.Reset()
	s.latencyHist.Reset()
	s.mu.Unlock()
	s.HeapsCompleted.Reset()
	s.HeapsEvictedPartial.Reset()
	s.HeapsDuplicate.Reset()
	s.PacketsMalformed.Reset()
	s.PacketsRejected.Reset()
}
