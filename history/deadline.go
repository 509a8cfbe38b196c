// SPDX-License-Identifier: MIT

package history

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/sirupsen/logrus"
)

// DeadlineMonitor watches a set of keys (writer GUIDs on the reader
// side for requested_deadline_missed, or instance keys on the writer
// side for offered_deadline_missed) and fires onMissed once per period
// for any key that hasn't registered activity within it. Missing a
// deadline never drops the retained sample — it is purely a status
// event, per the Deadline QoS policy's "informative" contract.
type DeadlineMonitor struct {
	period   time.Duration
	onMissed func(hdds.GUID)
	log      *logrus.Entry

	mu       sync.Mutex
	lastSeen map[hdds.GUID]time.Time

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDeadlineMonitor builds a monitor checking every checkPeriod
// (typically a fraction of period, so misses are detected promptly)
// for keys silent longer than period, starting its own goroutine.
func NewDeadlineMonitor(period, checkPeriod time.Duration, onMissed func(hdds.GUID), log *logrus.Entry) *DeadlineMonitor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &DeadlineMonitor{
		period:   period,
		onMissed: onMissed,
		log:      log,
		lastSeen: make(map[hdds.GUID]time.Time),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.run(checkPeriod)
	return m
}

// Touch records activity for key at now, resetting its deadline
// window. Called on every sample written or received for the key.
func (m *DeadlineMonitor) Touch(key hdds.GUID, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSeen[key] = now
}

// Forget stops tracking key, e.g. once its writer/reader is disposed.
func (m *DeadlineMonitor) Forget(key hdds.GUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.lastSeen, key)
}

func (m *DeadlineMonitor) run(checkPeriod time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(checkPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.tick(now)
		}
	}
}

func (m *DeadlineMonitor) tick(now time.Time) {
	m.mu.Lock()
	var missed []hdds.GUID
	for key, last := range m.lastSeen {
		if now.Sub(last) > m.period {
			missed = append(missed, key)
			m.lastSeen[key] = now // re-arm: one event per period, not a storm
		}
	}
	m.mu.Unlock()

	for _, key := range missed {
		m.log.WithField("key", key).Warn("deadline missed")
		if m.onMissed != nil {
			m.onMissed(key)
		}
	}
}

// Stop signals the monitor's goroutine to exit and waits for it to
// finish.
func (m *DeadlineMonitor) Stop() {
	m.once.Do(func() { close(m.stop) })
	<-m.done
}
