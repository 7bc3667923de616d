// Package cfg loads the configuration a receive stream or send heap
// needs: the wire flavor, the live-heap window, and the protocol
// bug-compatibility mask.
package cfg

import (
	"io"

	"github.com/BurntSushi/toml"

	"github.com/lao19881213/spead2/third_party/forked/golang/glog"
)

// BugCompat selects deliberately-wrong encodings kept for compatibility
// with older producers, per spec.md §4.8 and §6.
type BugCompat uint8

const (
	// BugCompatDescriptorWidths forces the descriptor field width to 4
	// and the shape width to 8, regardless of flavor.
	BugCompatDescriptorWidths BugCompat = 1 << 0
	// BugCompatShapeBit1 marks a variable dimension with bit 1 (value 2)
	// instead of bit 0 (value 1).
	BugCompatShapeBit1 BugCompat = 1 << 1
	// BugCompatSwapEndian swaps the byte order of an immediate item
	// pointer's inline value, for producers predating the current
	// immediate-value convention. See original_source's item-pointer
	// encoder and SPEC_FULL.md's "Supplemented features" §4.
	BugCompatSwapEndian BugCompat = 1 << 2
)

func (b BugCompat) Has(flag BugCompat) bool {
	return b&flag != 0
}

// StreamConfig is the configuration a receive stream is constructed
// with: the flavor it expects, how many heaps it keeps live at once, and
// which protocol bugs to tolerate.
type StreamConfig struct {
	HeapAddressBits uint8     `toml:"heap_address_bits"`
	MaxHeaps        int       `toml:"max_heaps"`
	BugCompat       BugCompat `toml:"bug_compat"`
}

// DefaultMaxHeaps matches stream_base's default in original_source's
// recv_stream.h (explicit stream_base(bug_compat_mask = 0, max_heaps = 4)).
const DefaultMaxHeaps = 4

func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		HeapAddressBits: 48,
		MaxHeaps:        DefaultMaxHeaps,
	}
}

// ReadFromToml reads a StreamConfig from TOML text.
func ReadFromToml(r io.Reader) (cfg StreamConfig, err error) {
	cfg = DefaultStreamConfig()
	if _, err = toml.NewDecoder(r).Decode(&cfg); err != nil {
		glog.Warningf("failed to decode stream config: %v", err)
		return StreamConfig{}, err
	}
	return cfg, nil
}

// ReadFromTomlFile reads a StreamConfig from a TOML file on disk.
func ReadFromTomlFile(path string) (cfg StreamConfig, err error) {
	cfg = DefaultStreamConfig()
	if _, err = toml.DecodeFile(path, &cfg); err != nil {
		glog.Warningf("failed to decode stream config file %s: %v", path, err)
		return StreamConfig{}, err
	}
	return cfg, nil
}
