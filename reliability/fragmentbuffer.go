// SPDX-License-Identifier: MIT

package reliability

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds"
)

// fragmentKey identifies one in-flight reassembly, matching the DATA_FRAG
// submessage's (writer_guid, writer_sn) addressing.
type fragmentKey struct {
	writer hdds.GUID
	seq    hdds.SequenceNumber
}

type fragmentGroup struct {
	fragmentSize  uint32
	dataSize      uint32
	have          map[uint32][]byte
	fragmentCount uint32
	lastTouch     time.Time
}

func (g *fragmentGroup) complete() bool {
	return uint32(len(g.have)) == g.fragmentCount
}

func (g *fragmentGroup) assemble() []byte {
	out := make([]byte, 0, g.dataSize)
	for i := uint32(1); i <= g.fragmentCount; i++ {
		out = append(out, g.have[i]...)
	}
	if uint32(len(out)) > g.dataSize {
		out = out[:g.dataSize]
	}
	return out
}

// missing returns the 1-based fragment numbers not yet received.
func (g *fragmentGroup) missing() []uint32 {
	var out []uint32
	for i := uint32(1); i <= g.fragmentCount; i++ {
		if _, ok := g.have[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// FragmentBufferConfig bounds the resources a FragmentBuffer may use.
type FragmentBufferConfig struct {
	// MaxInFlight bounds concurrently reassembling messages; the oldest
	// is evicted to admit a new one once the bound is hit.
	MaxInFlight int
	// Timeout is how long an incomplete group may sit idle before Tick
	// discards it.
	Timeout time.Duration
}

// DefaultFragmentBufferConfig matches the reliability engine's default
// 5 second per-message reassembly timeout.
func DefaultFragmentBufferConfig() FragmentBufferConfig {
	return FragmentBufferConfig{MaxInFlight: 64, Timeout: 5 * time.Second}
}

// FragmentBuffer reassembles DATA_FRAG submessages into complete
// samples, one fragmentGroup per (writer_guid, writer_sn).
type FragmentBuffer struct {
	cfg FragmentBufferConfig

	mu      sync.Mutex
	groups  map[fragmentKey]*fragmentGroup
	order   []fragmentKey
}

// NewFragmentBuffer builds a FragmentBuffer with cfg.
func NewFragmentBuffer(cfg FragmentBufferConfig) *FragmentBuffer {
	return &FragmentBuffer{cfg: cfg, groups: make(map[fragmentKey]*fragmentGroup)}
}

// OnFragment feeds one DATA_FRAG's payload into the buffer for
// (writer, seq). fragmentStartingNum is 1-based, per wire convention.
// Returns the complete payload once every fragment has arrived.
func (b *FragmentBuffer) OnFragment(writer hdds.GUID, seq hdds.SequenceNumber, fragmentStartingNum, fragmentsInSubmessage uint32, fragmentSize, dataSize uint32, payload []byte, now time.Time) []byte {
	key := fragmentKey{writer: writer, seq: seq}

	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups[key]
	if !ok {
		if len(b.groups) >= b.cfg.MaxInFlight {
			b.evictOldestLocked()
		}
		fragmentCount := (dataSize + fragmentSize - 1) / fragmentSize
		g = &fragmentGroup{fragmentSize: fragmentSize, dataSize: dataSize, fragmentCount: fragmentCount, have: make(map[uint32][]byte)}
		b.groups[key] = g
		b.order = append(b.order, key)
	}
	g.lastTouch = now

	off := 0
	for i := uint32(0); i < fragmentsInSubmessage; i++ {
		fragNum := fragmentStartingNum + i
		start := off
		end := start + int(fragmentSize)
		if end > len(payload) {
			end = len(payload)
		}
		chunk := make([]byte, end-start)
		copy(chunk, payload[start:end])
		g.have[fragNum] = chunk
		off = end
	}

	if !g.complete() {
		return nil
	}
	out := g.assemble()
	delete(b.groups, key)
	return out
}

// MissingFragments reports the 1-based fragment numbers still needed
// for (writer, seq), for building a NACK_FRAG; returns nil if the
// group isn't tracked (nothing received yet, or already complete).
func (b *FragmentBuffer) MissingFragments(writer hdds.GUID, seq hdds.SequenceNumber) []uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[fragmentKey{writer: writer, seq: seq}]
	if !ok {
		return nil
	}
	return g.missing()
}

func (b *FragmentBuffer) evictOldestLocked() {
	// order can still hold keys of groups that already completed; skip
	// those so an open group is actually evicted.
	for len(b.order) > 0 {
		oldest := b.order[0]
		b.order = b.order[1:]
		if _, ok := b.groups[oldest]; ok {
			delete(b.groups, oldest)
			return
		}
	}
}

// Tick discards any group idle longer than cfg.Timeout, returning the
// number of groups dropped.
func (b *FragmentBuffer) Tick(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := 0
	kept := b.order[:0]
	for _, key := range b.order {
		g, ok := b.groups[key]
		if !ok {
			continue
		}
		if now.Sub(g.lastTouch) > b.cfg.Timeout {
			delete(b.groups, key)
			dropped++
			continue
		}
		kept = append(kept, key)
	}
	b.order = kept
	return dropped
}

// InFlight reports how many reassembly groups are currently open.
func (b *FragmentBuffer) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.groups)
}
