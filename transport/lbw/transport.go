// SPDX-License-Identifier: MIT

package lbw

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
	"github.com/sirupsen/logrus"
)

// streamRTPS is the record stream id carrying whole RTPS messages;
// the original protocol reserves low stream ids for its own CONTROL
// traffic, so user data starts at 1.
const streamRTPS byte = 1

// Config configures a Transport instance.
type Config struct {
	SessionID         uint16
	MTU               int
	Scheduler         SchedulerConfig
	Reassembler       ReassemblerConfig
	FlushInterval     time.Duration
	Local             hdds.Locator
}

// DefaultConfig returns sensible defaults for a constrained radio link.
func DefaultConfig() Config {
	return Config{
		MTU:           256,
		Scheduler:     DefaultSchedulerConfig(),
		Reassembler:   DefaultReassemblerConfig(),
		FlushInterval: 200 * time.Millisecond,
	}
}

// Transport implements transport.Transport over a single point-to-
// point link (a serial port, a radio modem's byte stream, or a test
// io.ReadWriteCloser). Because the underlying medium has exactly one
// peer, the destination locator passed to Send is not used for
// routing — it exists only to satisfy the shared interface.
type Transport struct {
	link io.ReadWriteCloser
	cfg  Config
	log  *logrus.Entry

	sched       *Scheduler
	reassembler *Reassembler

	frameSeq atomic.Uint32
	msgSeq   atomic.Uint64
	groupID  atomic.Uint32

	writeMu sync.Mutex
	rxBuf   []byte

	closed chan struct{}
	once   sync.Once
}

// New wraps link as a Transport.
func New(link io.ReadWriteCloser, cfg Config, log *logrus.Entry) *Transport {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.MTU <= 0 {
		cfg = DefaultConfig()
	}
	return &Transport{
		link:        link,
		cfg:         cfg,
		log:         log,
		sched:       NewScheduler(cfg.Scheduler),
		reassembler: NewReassembler(cfg.Reassembler),
		closed:      make(chan struct{}),
	}
}

// Send implements transport.Transport. dst is ignored: the link has
// exactly one peer.
func (t *Transport) Send(ctx context.Context, dst hdds.Locator, message []byte) error {
	msgSeq := t.msgSeq.Add(1)

	var records []Record
	if len(message) <= t.cfg.MTU {
		records = []Record{{StreamID: streamRTPS, Priority: PriorityP0, MsgSeq: msgSeq, Payload: message}}
	} else {
		groupID := t.groupID.Add(1)
		records = NewFragmenter(t.cfg.MTU).Fragment(streamRTPS, msgSeq, groupID, message)
		for i := range records {
			records[i].Priority = PriorityP0
		}
	}

	for _, r := range records {
		if batch := t.sched.Enqueue(r); batch != nil {
			if err := t.flush(batch); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushPending forces out any batched P1/P2 records; callers drive
// this on a timer (FlushInterval). Enqueuing a P0 record does not carry
// queued P1/P2 records out with it, and Send enqueues every record as P0.
func (t *Transport) FlushPending() error {
	batch := t.sched.Flush()
	if len(batch) == 0 {
		return nil
	}
	return t.flush(batch)
}

func (t *Transport) flush(records []Record) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	frame := Frame{
		SessionID: t.cfg.SessionID,
		FrameSeq:  uint16(t.frameSeq.Add(1)),
		Records:   records,
	}
	wire := EncodeFrame(frame)
	if _, err := t.link.Write(wire); err != nil {
		return fmt.Errorf("lbw: write frame: %w", err)
	}
	return nil
}

// Receive implements transport.Transport. It blocks reading raw bytes
// off the link, reassembling fragmented messages before returning a
// complete one.
func (t *Transport) Receive(ctx context.Context) ([]byte, hdds.Locator, error) {
	readCh := make(chan []byte, 1)
	errCh := make(chan error, 1)

	for {
		if msg := t.tryDrainComplete(); msg != nil {
			return msg, t.cfg.Local, nil
		}

		go func() {
			buf := make([]byte, 4096)
			n, err := t.link.Read(buf)
			if err != nil {
				errCh <- err
				return
			}
			readCh <- buf[:n]
		}()

		select {
		case <-ctx.Done():
			return nil, hdds.Locator{}, ctx.Err()
		case <-t.closed:
			return nil, hdds.Locator{}, errs.ErrShutdown
		case err := <-errCh:
			return nil, hdds.Locator{}, fmt.Errorf("lbw: read: %w", err)
		case chunk := <-readCh:
			t.rxBuf = append(t.rxBuf, chunk...)
			if msg := t.tryDrainComplete(); msg != nil {
				return msg, t.cfg.Local, nil
			}
		}
	}
}

// tryDrainComplete consumes as many complete frames as are buffered,
// feeding their records through the reassembler, and returns the
// first fully reassembled RTPS message found (if any).
func (t *Transport) tryDrainComplete() []byte {
	for {
		frame, n, err := DecodeFrame(t.rxBuf)
		if err != nil {
			if len(t.rxBuf) > 0 {
				// Resync: drop one byte and look for the next sync marker.
				if idx := indexByte(t.rxBuf[1:], FrameSync); idx >= 0 {
					t.rxBuf = t.rxBuf[1+idx:]
					continue
				}
			}
			return nil
		}
		t.rxBuf = t.rxBuf[n:]

		for _, r := range frame.Records {
			if r.StreamID != streamRTPS {
				continue
			}
			if !r.Fragment {
				return r.Payload
			}
			msg, ferr := t.reassembler.OnFragment(r.StreamID, r.Payload, time.Now())
			if ferr != nil {
				t.log.WithError(ferr).Warn("lbw: dropping malformed fragment")
				continue
			}
			if msg != nil {
				return msg
			}
		}
	}
}

func indexByte(buf []byte, b byte) int {
	for i, c := range buf {
		if c == b {
			return i
		}
	}
	return -1
}

// LocalLocators implements transport.Transport.
func (t *Transport) LocalLocators() []hdds.Locator {
	return []hdds.Locator{t.cfg.Local}
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		err = t.link.Close()
	})
	return err
}
