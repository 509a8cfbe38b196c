// SPDX-License-Identifier: MIT

package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/transport"
	"github.com/hdds-io/hdds/wire"
	"github.com/pion/randutil"
	"github.com/sirupsen/logrus"
)

// AnnouncerConfig tunes SPDP's periodic-broadcast-plus-fast-join-burst
// schedule.
type AnnouncerConfig struct {
	DomainID      int
	Period        time.Duration
	InitialBursts int
	BurstInterval time.Duration
	Destination   hdds.Locator
}

// Announcer periodically sends this participant's own
// ParticipantInfo over transport, with an initial fast-join burst
// (cfg.InitialBursts repeats at a short interval) followed by the
// steady period. A small jitter is added to each burst interval so
// many participants starting in lockstep don't all announce on the
// same tick; the steady-period sends follow a plain ticker.
type Announcer struct {
	cfg       AnnouncerConfig
	transport transport.Transport
	self      func() ParticipantInfo
	log       *logrus.Entry
	rng       randutil.MathRandomGenerator
	seq       atomic.Int64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewAnnouncer builds an announcer that calls self() to get the
// current ParticipantInfo to advertise each time it fires (so locator
// changes are picked up without restarting the announcer).
func NewAnnouncer(cfg AnnouncerConfig, tr transport.Transport, self func() ParticipantInfo, log *logrus.Entry) *Announcer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Announcer{
		cfg:       cfg,
		transport: tr,
		self:      self,
		log:       log,
		rng:       randutil.NewMathRandomGenerator(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Announcer) run() {
	defer close(a.done)

	for i := 0; i < a.cfg.InitialBursts; i++ {
		a.send()
		if a.sleep(a.cfg.BurstInterval) {
			return
		}
	}

	ticker := time.NewTicker(a.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.send()
		}
	}
}

// sleep waits for d (plus a small jitter), returning true if stop
// fired during the wait.
func (a *Announcer) sleep(d time.Duration) bool {
	jitter := time.Duration(a.rng.Uint32()%uint32(d/4+1)) * time.Nanosecond
	timer := time.NewTimer(d + jitter)
	defer timer.Stop()
	select {
	case <-a.stop:
		return true
	case <-timer.C:
		return false
	}
}

func (a *Announcer) send() {
	info := a.self()
	payload, err := EncodeParticipantInfo(info, a.cfg.DomainID)
	if err != nil {
		a.log.WithError(err).Warn("failed to encode SPDP participant info")
		return
	}
	header := wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: info.GUID.Prefix}
	seq := hdds.SequenceNumber(a.seq.Add(1))
	msg, err := wire.BuildDataMessage(header, hdds.EntityIDSPDPReader, hdds.EntityIDSPDPWriter, seq, payload)
	if err != nil {
		a.log.WithError(err).Warn("failed to build SPDP message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.transport.Send(ctx, a.cfg.Destination, msg); err != nil {
		a.log.WithError(err).Debug("SPDP send failed")
	}
}

// Stop signals the announcer's goroutine to exit and waits for it to
// finish.
func (a *Announcer) Stop() {
	a.once.Do(func() { close(a.stop) })
	<-a.done
}
