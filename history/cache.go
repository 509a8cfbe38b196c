// SPDX-License-Identifier: MIT

// Package history implements the bounded sample storage spec.md §4.5
// describes: a writer-side HistoryCache that retains samples for
// retransmission subject to History/ResourceLimits QoS, a reader-side
// ReceptionCache that orders and filters delivery subject to
// DestinationOrder/Ownership QoS, and the lifespan/deadline background
// tickers that age both out.
package history

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
	"github.com/hdds-io/hdds/metrics"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/reliability"
)

// CacheEntry is one sample retained by a writer's HistoryCache.
type CacheEntry struct {
	Payload   []byte
	Timestamp time.Time
	InlineQoS []byte
}

// HistoryCache is a writer's bounded, sequence-ordered sample store.
// Inserts must be strictly increasing; eviction under KeepLast(N) or a
// byte quota appends the evicted span to a pending-GAP list the
// reliability engine drains on the next NACK round.
type HistoryCache struct {
	history qos.History
	limits  qos.ResourceLimits
	topic   string

	mu        sync.Mutex
	seqs      []hdds.SequenceNumber // ascending, parallel to entries
	entries   map[hdds.SequenceNumber]CacheEntry
	totalBytes int64
	maxSeq    hdds.SequenceNumber
	pending   *reliability.SeqRangeSet
}

// NewHistoryCache builds a cache enforcing history/limits for the
// given topic (used only as a metrics label).
func NewHistoryCache(topic string, history qos.History, limits qos.ResourceLimits) *HistoryCache {
	return &HistoryCache{
		history: history,
		limits:  limits,
		topic:   topic,
		entries: make(map[hdds.SequenceNumber]CacheEntry),
		pending: reliability.NewSeqRangeSet(),
	}
}

// Insert adds entry at seq, evicting oldest samples as needed to
// satisfy KeepLast(N) or the byte quota. seq must exceed the highest
// sequence currently held (ErrSequenceOutOfOrder otherwise); a cache
// emptied by eviction accepts any seq.
func (c *HistoryCache) Insert(seq hdds.SequenceNumber, entry CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.seqs) > 0 && seq <= c.maxSeq {
		return errs.ErrSequenceOutOfOrder
	}

	c.seqs = append(c.seqs, seq)
	c.entries[seq] = entry
	c.totalBytes += int64(len(entry.Payload))
	c.maxSeq = seq

	if c.history.Kind == qos.KeepLastKind && c.history.Depth > 0 {
		for len(c.seqs) > c.history.Depth {
			c.evictOldestLocked("keep_last")
		}
	}
	if c.limits.MaxBytes > 0 {
		for c.totalBytes > c.limits.MaxBytes && len(c.seqs) > 0 {
			c.evictOldestLocked("quota")
		}
	}
	return nil
}

func (c *HistoryCache) evictOldestLocked(reason string) {
	seq := c.seqs[0]
	c.seqs = c.seqs[1:]
	entry := c.entries[seq]
	delete(c.entries, seq)
	c.totalBytes -= int64(len(entry.Payload))
	c.pending.Add(reliability.SingleSeqRange(seq))
	metrics.HistoryEvictions.WithLabelValues(c.topic, reason).Inc()
}

// Get looks up the retained sample at seq.
func (c *HistoryCache) Get(seq hdds.SequenceNumber) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[seq]
	return e, ok
}

// PendingGaps drains and returns the ranges evicted since the last
// call, for the writer's NACK handler to fold into a GAP submessage.
func (c *HistoryCache) PendingGaps() []reliability.SeqRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	ranges := c.pending.Ranges()
	out := append([]reliability.SeqRange(nil), ranges...)
	c.pending = reliability.NewSeqRangeSet()
	return out
}

// Range returns the lowest and highest sequence number currently
// retained, for HeartbeatScheduler.UpdateRange.
func (c *HistoryCache) Range() (first, last hdds.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.seqs) == 0 {
		return hdds.SeqNumZero, hdds.SeqNumZero
	}
	return c.seqs[0], c.seqs[len(c.seqs)-1]
}

// Len returns the number of samples currently retained.
func (c *HistoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seqs)
}

// EvictExpired drops every entry older than lifespan as of now,
// per the Lifespan QoS policy; evicted entries are never delivered so
// they are dropped outright, not added to the pending-GAP list (a
// late reader is expected to have already given up on them via its
// own deadline/lifespan accounting).
func (c *HistoryCache) EvictExpired(lifespan time.Duration, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	kept := c.seqs[:0]
	for _, seq := range c.seqs {
		entry := c.entries[seq]
		if now.Sub(entry.Timestamp) > lifespan {
			delete(c.entries, seq)
			c.totalBytes -= int64(len(entry.Payload))
			n++
			metrics.HistoryEvictions.WithLabelValues(c.topic, "lifespan").Inc()
			continue
		}
		kept = append(kept, seq)
	}
	c.seqs = kept
	return n
}
