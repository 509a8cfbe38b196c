// SPDX-License-Identifier: MIT

package history

import (
	"sort"
	"sync"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/qos"
)

// Sample is one sample delivered into a reader's reception cache,
// carrying both timestamps DestinationOrder chooses between.
type Sample struct {
	Seq         hdds.SequenceNumber
	WriterGUID  hdds.GUID
	SourceTS    time.Time
	ReceptionTS time.Time
	Payload     []byte
	Strength    int32 // OwnershipStrength.Value, meaningful only under Exclusive
}

// ReceptionCache is a reader-side bounded store that orders incoming
// samples per DestinationOrder and, under Exclusive ownership, drops
// samples from any writer weaker than the instance's current owner.
//
// Instances are keyed by writer GUID: without a wired type system that
// parses key fields out of a sample's payload, the writer identity is
// the only instance key this cache can assume, which collapses
// per-instance ownership tracking to per-writer tracking. A real key
// extractor can be layered in by the dds package once one exists.
type ReceptionCache struct {
	order     qos.DestinationOrderKind
	ownership qos.OwnershipKind
	depth     int

	mu      sync.Mutex
	samples []Sample

	// owner tracks, under Exclusive ownership, the writer currently
	// holding the highest OwnershipStrength seen for this cache's key.
	owner         hdds.GUID
	ownerStrength int32
	haveOwner     bool
}

// NewReceptionCache builds a reader cache honoring order/ownership,
// retaining at most depth samples (KeepLast semantics; depth <= 0
// means unbounded, i.e. KeepAll).
func NewReceptionCache(order qos.DestinationOrderKind, ownership qos.OwnershipKind, depth int) *ReceptionCache {
	return &ReceptionCache{order: order, ownership: ownership, depth: depth}
}

// Insert admits s into the cache, returning false only when Exclusive
// ownership drops it because another writer of at least s's strength
// already owns the instance. Under a depth bound the oldest samples are
// trimmed after the insert, which can include s itself; Insert still
// returns true then.
func (c *ReceptionCache) Insert(s Sample) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ownership == qos.Exclusive {
		if c.haveOwner && c.owner != s.WriterGUID && s.Strength <= c.ownerStrength {
			return false
		}
		c.owner = s.WriterGUID
		c.ownerStrength = s.Strength
		c.haveOwner = true
	}

	c.samples = append(c.samples, s)
	c.sortLocked()

	if c.depth > 0 {
		for len(c.samples) > c.depth {
			c.samples = c.samples[1:]
		}
	}
	return true
}

func (c *ReceptionCache) sortLocked() {
	less := func(i, j int) bool {
		if c.order == qos.BySourceTimestamp {
			return c.samples[i].SourceTS.Before(c.samples[j].SourceTS)
		}
		return c.samples[i].ReceptionTS.Before(c.samples[j].ReceptionTS)
	}
	sort.SliceStable(c.samples, less)
}

// Take drains and returns every sample currently retained, in
// delivery order, leaving the cache empty (READ_SAMPLE_STATE semantics
// live in the dds package's Reader, which marks samples read without
// necessarily draining them; Take backs its take() call).
func (c *ReceptionCache) Take() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.samples
	c.samples = nil
	return out
}

// Peek returns every sample currently retained without draining the
// cache, backing a Reader's read() call.
func (c *ReceptionCache) Peek() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sample(nil), c.samples...)
}

// Len reports how many samples are currently retained.
func (c *ReceptionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples)
}

// EvictExpired drops every retained sample older than lifespan as of
// now, per the Lifespan QoS policy, and reports how many were dropped.
func (c *ReceptionCache) EvictExpired(lifespan time.Duration, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	kept := c.samples[:0]
	for _, s := range c.samples {
		if now.Sub(s.ReceptionTS) > lifespan {
			n++
			continue
		}
		kept = append(kept, s)
	}
	c.samples = kept
	return n
}
