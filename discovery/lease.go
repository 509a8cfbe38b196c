// SPDX-License-Identifier: MIT

package discovery

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds/metrics"
	"github.com/sirupsen/logrus"
)

// LeaseTracker is the single background task that scans the
// participant database at a fixed period, evicting participants whose
// lease has lapsed and disposing of everything they owned. Kept as
// its own ticking goroutine rather than folded into the SPDP receive
// path, so a quiet network still reclaims dead peers.
type LeaseTracker struct {
	db       *ParticipantDB
	registry *EndpointRegistry
	period   time.Duration
	onExpire func(ParticipantInfo)
	log      *logrus.Entry

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewLeaseTracker builds a tracker over db/registry, ticking every
// period (the spec's "1 Hz" default is period=time.Second) and
// starting its own goroutine. onExpire, if non-nil, is called for
// every participant removed.
func NewLeaseTracker(db *ParticipantDB, registry *EndpointRegistry, period time.Duration, onExpire func(ParticipantInfo), log *logrus.Entry) *LeaseTracker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &LeaseTracker{
		db:       db,
		registry: registry,
		period:   period,
		onExpire: onExpire,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *LeaseTracker) run() {
	defer close(t.done)
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.tick(now)
		}
	}
}

func (t *LeaseTracker) tick(now time.Time) {
	expired := t.db.ExpireStale(now)
	for _, p := range expired {
		t.log.WithField("participant", p.GUID).Info("participant lease expired")
		t.registry.RemoveParticipant(p.GUID)
		if t.onExpire != nil {
			t.onExpire(p)
		}
	}
	metrics.DiscoveryParticipants.Set(float64(t.db.Count()))
}

// Stop signals the tracker's goroutine to exit and waits for it to
// finish.
func (t *LeaseTracker) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
