// SPDX-License-Identifier: MIT

package dds

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/config"
	"github.com/hdds-io/hdds/discovery"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/transport"
	"github.com/sirupsen/logrus"
)

// Participant is the root object an application creates once per
// domain join: it owns the GUID prefix all local entities share, the
// discovery subsystem that finds remote participants and endpoints,
// and the registry of local Writers/Readers that discovery's match
// events are wired into.
type Participant struct {
	GUID   hdds.GUID
	cfg    *config.Config
	transport transport.Transport
	log    *logrus.Entry

	discovery *discovery.Discovery
	entitySeq uint32

	mu      sync.RWMutex
	writers map[hdds.GUID]*Writer
	readers map[hdds.GUID]*Reader
}

// NewParticipant joins domain cfg.Discovery.DomainID over tr, starting
// SPDP announcement and lease tracking immediately. The caller is
// responsible for pumping tr.Receive into Participant.OnReceive.
func NewParticipant(cfg *config.Config, tr transport.Transport, log *logrus.Entry, opts ...discovery.Option) *Participant {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	prefix := hdds.NewGUIDPrefix()
	p := &Participant{
		GUID:      hdds.NewParticipantGUID(prefix),
		cfg:       cfg,
		transport: tr,
		log:       log,
		writers:   make(map[hdds.GUID]*Writer),
		readers:   make(map[hdds.GUID]*Reader),
	}

	self := discovery.ParticipantInfo{
		GUID:                p.GUID,
		LeaseDuration:       hdds.DurationFromStd(cfg.Discovery.LeaseDuration),
		MetatrafficLocators: tr.LocalLocators(),
		DefaultLocators:     tr.LocalLocators(),
		VendorID:            hdds.VendorHDDS,
		ProtocolVersion:     uint16(2)<<8 | 4,
		LastSeen:            time.Now(),
	}

	p.discovery = discovery.New(cfg, tr, self, p.onMatch, p.onUnmatch, log.WithField("task", "discovery"), opts...)
	return p
}

// nextEntityID allocates the next user entity id of kind, packing an
// incrementing counter into the three high bytes. Every user-created
// entity is treated as no-key: a real instance-keyed type layer would
// need to flip WriterWithKey/ReaderWithKey when the type has a key,
// but no type system extracts keys from payload bytes yet.
func (p *Participant) nextEntityID(kind hdds.EntityKind) hdds.EntityID {
	n := atomic.AddUint32(&p.entitySeq, 1)
	return hdds.EntityID{byte(n >> 16), byte(n >> 8), byte(n), byte(kind)}
}

// CreateWriter builds a Writer for topic/typeName under q, registers
// it with discovery so remote readers can find it, and returns it
// ready to Write.
func (p *Participant) CreateWriter(topic, typeName string, q qos.QoS) *Writer {
	guid := hdds.GUID{Prefix: p.GUID.Prefix, Entity: p.nextEntityID(hdds.EntityKindWriterNoKey)}
	w := NewWriter(guid, topic, q, p.transport, p.cfg.Reliability, p.cfg.FragmentSize, p.log.WithField("writer", guid))

	p.mu.Lock()
	p.writers[guid] = w
	p.mu.Unlock()

	p.discovery.AddLocalEndpoint(discovery.EndpointInfo{
		GUID:            guid,
		ParticipantGUID: p.GUID,
		Role:            discovery.RoleWriter,
		TopicName:       topic,
		TypeName:        typeName,
		QoS:             q,
		UnicastLocators: p.transport.LocalLocators(),
	})
	return w
}

// CreateReader builds a Reader for topic/typeName under q, registers
// it with discovery so remote writers can find it, and returns it
// ready to Take/Read. filter may be nil, defaulting to AlwaysTrue.
func (p *Participant) CreateReader(topic, typeName string, q qos.QoS, filter ContentFilter) *Reader {
	guid := hdds.GUID{Prefix: p.GUID.Prefix, Entity: p.nextEntityID(hdds.EntityKindReaderNoKey)}
	r := NewReader(guid, topic, q, p.transport, p.cfg.Reliability, filter, p.log.WithField("reader", guid))

	p.mu.Lock()
	p.readers[guid] = r
	p.mu.Unlock()

	p.discovery.AddLocalEndpoint(discovery.EndpointInfo{
		GUID:            guid,
		ParticipantGUID: p.GUID,
		Role:            discovery.RoleReader,
		TopicName:       topic,
		TypeName:        typeName,
		QoS:             q,
		UnicastLocators: p.transport.LocalLocators(),
	})
	return r
}

// DeleteWriter tears down a locally created writer, removing it from
// discovery (see Discovery.RemoveLocalEndpoint; remote participants
// are not sent a disposal) and closing its heartbeat scheduler.
func (p *Participant) DeleteWriter(w *Writer) {
	p.discovery.RemoveLocalEndpoint(w.GUID)
	p.mu.Lock()
	delete(p.writers, w.GUID)
	p.mu.Unlock()
	_ = w.Close()
}

// DeleteReader tears down a locally created reader, removing it from
// discovery (see Discovery.RemoveLocalEndpoint; remote participants
// are not sent a disposal) and closing its deadline monitor.
func (p *Participant) DeleteReader(r *Reader) {
	p.discovery.RemoveLocalEndpoint(r.GUID)
	p.mu.Lock()
	delete(p.readers, r.GUID)
	p.mu.Unlock()
	_ = r.Close()
}

func locatorOf(locs []hdds.Locator) hdds.Locator {
	if len(locs) == 0 {
		return hdds.Locator{}
	}
	return locs[0]
}

// onMatch wires a freshly discovered compatible writer/reader pair
// into whichever side is local: a local Writer gets the remote reader
// as a ReaderProxy, a local Reader gets the remote writer as a
// WriterProxy. Both branches can fire for a single event when both
// endpoints happen to be local (self-matching on the same topic).
func (p *Participant) onMatch(event discovery.MatchEvent) {
	p.mu.RLock()
	w, haveWriter := p.writers[event.Writer.GUID]
	r, haveReader := p.readers[event.Reader.GUID]
	p.mu.RUnlock()

	reliable := event.Reader.QoS.Reliability.Kind == qos.Reliable

	if haveWriter {
		w.AddMatchedReader(event.Reader.GUID, locatorOf(event.Reader.UnicastLocators), reliable)
	}
	if haveReader {
		r.AddMatchedWriter(event.Writer.GUID, locatorOf(event.Writer.UnicastLocators), reliable, event.Writer.QoS.OwnershipStrength.Value)
	}
}

// onUnmatch tears down the proxy side set up by onMatch, e.g. on SEDP
// disposal or the remote participant's lease expiry.
func (p *Participant) onUnmatch(event discovery.MatchEvent) {
	p.mu.RLock()
	w, haveWriter := p.writers[event.Writer.GUID]
	r, haveReader := p.readers[event.Reader.GUID]
	p.mu.RUnlock()

	if haveWriter {
		w.RemoveMatchedReader(event.Reader.GUID)
	}
	if haveReader {
		r.RemoveMatchedWriter(event.Writer.GUID)
	}
}

// Close stops discovery and every local writer/reader's background
// tasks, in that order so no more SEDP/match traffic arrives mid-
// teardown.
func (p *Participant) Close() {
	p.discovery.Close()

	p.mu.Lock()
	writers := make([]*Writer, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	readers := make([]*Reader, 0, len(p.readers))
	for _, r := range p.readers {
		readers = append(readers, r)
	}
	p.mu.Unlock()

	for _, w := range writers {
		_ = w.Close()
	}
	for _, r := range readers {
		_ = r.Close()
	}
}
