// SPDX-License-Identifier: MIT

package history

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Expirable is anything a LifespanTicker can age out: both
// HistoryCache and ReceptionCache implement it.
type Expirable interface {
	EvictExpired(lifespan time.Duration, now time.Time) int
}

// LifespanTicker is the standalone background task that evicts expired
// samples from a set of caches at a fixed period (typically 1-10 Hz), so lifespan
// expiry does not depend on the next read or write touching the cache.
// Kept as its own goroutine for the same reason HeartbeatScheduler and
// LeaseTracker are: a quiet cache still needs to shed stale samples.
type LifespanTicker struct {
	period   time.Duration
	lifespan time.Duration
	targets  []Expirable
	log      *logrus.Entry

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewLifespanTicker builds a ticker evicting entries older than
// lifespan from every target, checking at the given period. A period
// between 100ms and 1s (1-10 Hz) is typical; callers needing tighter
// lifespans should pass a shorter period.
func NewLifespanTicker(period, lifespan time.Duration, log *logrus.Entry, targets ...Expirable) *LifespanTicker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &LifespanTicker{
		period:   period,
		lifespan: lifespan,
		targets:  targets,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *LifespanTicker) run() {
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

func (t *LifespanTicker) tick(now time.Time) {
	for _, target := range t.targets {
		if n := target.EvictExpired(t.lifespan, now); n > 0 {
			t.log.WithField("count", n).Debug("evicted lifespan-expired samples")
		}
	}
}

// Stop signals the ticker's goroutine to exit and waits for it to
// finish.
func (t *LifespanTicker) Stop() {
	t.once.Do(func() { close(t.stop) })
	<-t.done
}
