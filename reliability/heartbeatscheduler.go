// SPDX-License-Identifier: MIT

package reliability

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/sirupsen/logrus"
)

// HeartbeatRange is the {first_seq, last_seq} a HEARTBEAT advertises.
type HeartbeatRange struct {
	FirstSeq hdds.SequenceNumber
	LastSeq  hdds.SequenceNumber
	Count    uint32
}

// HeartbeatScheduler is a standalone per-writer task that periodically
// emits HEARTBEAT submessages whenever the writer has data, so readers
// are shaken loose after quiet periods rather than only on new writes.
// Kept as its own type (not folded into the writer); each scheduler
// runs its own goroutine.
type HeartbeatScheduler struct {
	period time.Duration
	send   func(HeartbeatRange)
	log    *logrus.Entry

	count       atomic.Uint32
	firstSeq    atomic.Int64
	lastSeq     atomic.Int64
	hasData     atomic.Bool

	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewHeartbeatScheduler builds a scheduler that calls send every
// period while the writer has data, starting its own goroutine.
func NewHeartbeatScheduler(period time.Duration, send func(HeartbeatRange), log *logrus.Entry) *HeartbeatScheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := &HeartbeatScheduler{
		period: period,
		send:   send,
		log:    log,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go h.run()
	return h
}

// UpdateRange bumps the scheduler's view of the writer's first/last
// available sequence number, called after every write and eviction.
func (h *HeartbeatScheduler) UpdateRange(first, last hdds.SequenceNumber) {
	h.firstSeq.Store(int64(first))
	h.lastSeq.Store(int64(last))
	h.hasData.Store(last.Valid())
}

func (h *HeartbeatScheduler) run() {
	defer close(h.done)
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			if !h.hasData.Load() {
				continue
			}
			count := h.count.Add(1)
			h.send(HeartbeatRange{
				FirstSeq: hdds.SequenceNumber(h.firstSeq.Load()),
				LastSeq:  hdds.SequenceNumber(h.lastSeq.Load()),
				Count:    count,
			})
		}
	}
}

// Stop signals the scheduler's goroutine to exit and waits for it to
// finish, per the bounded-worker-join shutdown contract.
func (h *HeartbeatScheduler) Stop() {
	h.once.Do(func() { close(h.stop) })
	<-h.done
}
