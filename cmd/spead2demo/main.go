package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lao19881213/spead2/pkg/cfg"
	"github.com/lao19881213/spead2/pkg/flavor"
	"github.com/lao19881213/spead2/pkg/heap"
	"github.com/lao19881213/spead2/pkg/pool"
	"github.com/lao19881213/spead2/pkg/proto"
	"github.com/lao19881213/spead2/pkg/ring"
	"github.com/lao19881213/spead2/pkg/stats"
	"github.com/lao19881213/spead2/third_party/forked/golang/glog"
)

func main() {
	var (
		heapAddressBits int
		maxHeaps        int
		maxPacketSize   int
		payloadSize     int
	)

	glog.InitLogging("info", "[spead2demo] ")
	defer glog.Finalize()

	flag.IntVar(&heapAddressBits, "heap-address-bits", 48, "heap address bits of the demo flavor")
	flag.IntVar(&maxHeaps, "max-heaps", cfg.DefaultMaxHeaps, "max live heaps held by the receive stream")
	flag.IntVar(&maxPacketSize, "max-packet-size", 1024, "max wire packet size")
	flag.IntVar(&payloadSize, "payload-size", 4096, "demo item payload size in bytes")
	flag.Parse()

	fl, err := flavor.New(uint8(heapAddressBits))
	if err != nil {
		glog.Errorf("invalid flavor: %v", err)
		os.Exit(1)
	}

	sh := heap.NewSendHeap(1, fl, 0)
	descriptor := proto.Descriptor{
		ID:          0x1000,
		Name:        "demo_item",
		Description: "demo payload item",
		Format:      []proto.FormatField{{Tag: 'u', Value: 8}},
		Shape:       []int64{-1},
	}
	if err := sh.AddDescriptor(descriptor); err != nil {
		glog.Errorf("encode descriptor: %v", err)
		os.Exit(1)
	}
	sh.AddItem(0x1000, makePayload(payloadSize), false)
	sh.SetEndOfStream(true)

	packets, err := sh.Packetize(maxPacketSize)
	if err != nil {
		glog.Errorf("packetize: %v", err)
		os.Exit(1)
	}
	glog.Infof("packetized heap 1 into %d packets", len(packets))

	bufs := ring.New[*heap.FrozenHeap](4)
	buffers := pool.New(8, payloadSize*2)
	s := stats.New()

	rs := heap.NewReceiveStream(cfg.StreamConfig{HeapAddressBits: uint8(heapAddressBits), MaxHeaps: maxHeaps}, func(fh *heap.FrozenHeap) {
		if err := bufs.Push(fh); err != nil {
			glog.Warningf("ringbuffer stopped while pushing heap %d: %v", fh.Cnt(), err)
		}
	})
	rs.SetMemPool(buffers)
	rs.SetStats(s)

	for _, p := range packets {
		heap.DecodeAll(rs, p)
	}
	bufs.Stop()

	for {
		fh, err := bufs.Pop()
		if err != nil {
			break
		}
		fmt.Printf("heap %d: complete=%v items=%d\n", fh.Cnt(), fh.IsComplete(), len(fh.Items()))
		fh.Release()
	}

	snap := s.Snapshot()
	fmt.Printf("stats: heaps=%d completed=%d evicted_partial=%d p50_size=%d p99_latency=%s\n",
		snap.NumHeaps, s.HeapsCompleted.Get(), s.HeapsEvictedPartial.Get(), snap.P50Size, snap.P99Latency)
}

func makePayload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
