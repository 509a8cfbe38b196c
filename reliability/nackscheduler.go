// SPDX-License-Identifier: MIT

package reliability

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds"
)

// AckNackRequest is the coalesced form a NackScheduler flushes: the
// current gap state rendered as a bitmap-ready range set plus the
// monotonic count and final flag an ACKNACK submessage carries.
type AckNackRequest struct {
	Base       hdds.SequenceNumber
	Missing    []SeqRange
	Count      uint32
	FinalFlag  bool
}

// NackScheduler coalesces a GapTracker's missing ranges and emits at
// most one ACKNACK per window, echoing the writer's heartbeat count so
// duplicate-detection on the writer side can dedup.
type NackScheduler struct {
	window time.Duration
	tracker *GapTracker
	send    func(AckNackRequest)

	mu          sync.Mutex
	count       uint32
	pendingEcho uint32
	dirty       bool
	timer       *time.Timer

	closed chan struct{}
	once   sync.Once
}

// NewNackScheduler builds a scheduler over tracker, flushing coalesced
// ACKNACKs via send no more than once per window.
func NewNackScheduler(window time.Duration, tracker *GapTracker, send func(AckNackRequest)) *NackScheduler {
	return &NackScheduler{window: window, tracker: tracker, send: send, closed: make(chan struct{})}
}

// OnHeartbeat notifies the scheduler a HEARTBEAT with the given count
// arrived, scheduling a coalesced ACKNACK flush within window if one
// isn't already pending.
func (n *NackScheduler) OnHeartbeat(heartbeatCount uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pendingEcho = heartbeatCount
	if n.dirty {
		return
	}
	n.dirty = true
	n.timer = time.AfterFunc(n.window, n.flush)
}

// Flush sends the pending coalesced ACKNACK now instead of waiting out
// the window; it sends nothing when no HEARTBEAT has scheduled one since
// the last send. Used for the reader's follow-up ACKNACK once gaps close.
func (n *NackScheduler) Flush() {
	n.flush()
}

func (n *NackScheduler) flush() {
	n.mu.Lock()
	if !n.dirty {
		n.mu.Unlock()
		return
	}
	n.dirty = false
	count := n.pendingEcho
	n.mu.Unlock()

	missing := n.tracker.Missing()
	base := n.tracker.LastContiguous() + 1
	n.send(AckNackRequest{
		Base:      base,
		Missing:   missing,
		Count:     count,
		FinalFlag: n.tracker.Empty(),
	})
}

// Close stops any pending timer.
func (n *NackScheduler) Close() {
	n.once.Do(func() {
		close(n.closed)
		n.mu.Lock()
		if n.timer != nil {
			n.timer.Stop()
		}
		n.mu.Unlock()
	})
}
