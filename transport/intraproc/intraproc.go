// SPDX-License-Identifier: MIT

// Package intraproc implements the intra-process transport: a
// process-wide registry mapping topic name to a set of bounded MPMC
// queues, one per reader, so co-located participants exchange samples
// without ever touching a socket.
package intraproc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
	"github.com/hdds-io/hdds/metrics"
)

// queueLocatorKind is a private locator kind used only to address
// queues registered in this process; it never appears on the wire.
const queueLocatorKind = hdds.LocatorKind(-1000)

type message struct {
	data []byte
	src  hdds.Locator
}

type queue struct {
	ch   chan message
	drop atomic.Uint64
}

// Registry is the process-wide topic-name → queue-set map. One
// Registry is normally shared by every in-process Transport instance.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[*queue]struct{}
	nextID atomic.Uint32
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{topics: make(map[string]map[*queue]struct{})}
}

// Transport is a transport.Transport bound to one reader's queue on
// one topic within a shared Registry.
type Transport struct {
	reg   *Registry
	topic string
	local hdds.Locator
	q     *queue

	depth        int
	reliableWait time.Duration

	closed chan struct{}
	once   sync.Once
}

// Config configures a Transport's queue.
type Config struct {
	// Depth bounds how many unread messages the queue may hold.
	Depth int
	// ReliableWait is how long Send blocks trying to push into a full
	// queue before giving up with ErrWouldBlock, for Reliable callers
	// that asked to back-pressure once rather than drop. Zero means
	// never wait (BestEffort semantics: drop and count immediately).
	ReliableWait time.Duration
}

// New registers a new reader queue for topic in reg and returns a
// Transport addressing it.
func New(reg *Registry, topic string, cfg Config) *Transport {
	if cfg.Depth <= 0 {
		cfg.Depth = 64
	}

	t := &Transport{
		reg:          reg,
		topic:        topic,
		depth:        cfg.Depth,
		reliableWait: cfg.ReliableWait,
		q:            &queue{ch: make(chan message, cfg.Depth)},
		closed:       make(chan struct{}),
	}
	t.local = hdds.Locator{Kind: queueLocatorKind, Port: reg.nextID.Add(1)}

	reg.mu.Lock()
	set, ok := reg.topics[topic]
	if !ok {
		set = make(map[*queue]struct{})
		reg.topics[topic] = set
	}
	set[t.q] = struct{}{}
	reg.mu.Unlock()

	return t
}

// Send implements transport.Transport by cloning message into every
// reader queue currently registered for this Transport's topic. dst
// is ignored: delivery fans out to every matched reader, same as a
// multicast publish.
func (t *Transport) Send(ctx context.Context, dst hdds.Locator, msg []byte) error {
	t.reg.mu.RLock()
	queues := make([]*queue, 0, len(t.reg.topics[t.topic]))
	for q := range t.reg.topics[t.topic] {
		queues = append(queues, q)
	}
	t.reg.mu.RUnlock()

	data := make([]byte, len(msg))
	copy(data, msg)

	for _, q := range queues {
		if q == t.q {
			continue // a publisher never receives its own writes back
		}
		if !t.deliver(ctx, q, message{data: data, src: t.local}) {
			return fmt.Errorf("intraproc: queue full on topic %q: %w", t.topic, errs.ErrWouldBlock)
		}
	}
	return nil
}

func (t *Transport) deliver(ctx context.Context, q *queue, m message) bool {
	select {
	case q.ch <- m:
		return true
	default:
	}

	if t.reliableWait <= 0 {
		q.drop.Add(1)
		metrics.TransportDrops.WithLabelValues("intraproc").Inc()
		return true
	}

	timer := time.NewTimer(t.reliableWait)
	defer timer.Stop()
	select {
	case q.ch <- m:
		return true
	case <-timer.C:
		q.drop.Add(1)
		metrics.TransportDrops.WithLabelValues("intraproc").Inc()
		return false
	case <-ctx.Done():
		return false
	}
}

// Receive implements transport.Transport.
func (t *Transport) Receive(ctx context.Context) ([]byte, hdds.Locator, error) {
	select {
	case <-ctx.Done():
		return nil, hdds.Locator{}, ctx.Err()
	case <-t.closed:
		return nil, hdds.Locator{}, errs.ErrShutdown
	case m := <-t.q.ch:
		return m.data, m.src, nil
	}
}

// LocalLocators implements transport.Transport.
func (t *Transport) LocalLocators() []hdds.Locator {
	return []hdds.Locator{t.local}
}

// Dropped reports how many messages this Transport's queue has
// dropped due to being full.
func (t *Transport) Dropped() uint64 {
	return t.q.drop.Load()
}

// Close implements transport.Transport, deregistering the queue from
// the shared Registry.
func (t *Transport) Close() error {
	t.once.Do(func() {
		close(t.closed)
		t.reg.mu.Lock()
		if set, ok := t.reg.topics[t.topic]; ok {
			delete(set, t.q)
			if len(set) == 0 {
				delete(t.reg.topics, t.topic)
			}
		}
		t.reg.mu.Unlock()
	})
	return nil
}
