// SPDX-License-Identifier: MIT

package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/config"
	"github.com/hdds-io/hdds/transport"
	"github.com/hdds-io/hdds/wire"
	"github.com/hdds-io/hdds/wire/dialect"
	"github.com/sirupsen/logrus"
)

// Option configures a Discovery at construction time.
type Option func(*Discovery)

// WithStaticPeers adds a fixed set of metatraffic locators, for
// networks without multicast: New sends one unicast SPDP announcement
// to each of them at construction. The periodic announcer still sends
// only to the multicast destination, and SEDP goes to the locators a
// peer advertises in its own SPDP, not to these.
func WithStaticPeers(locators ...hdds.Locator) Option {
	return func(d *Discovery) {
		d.staticPeers = append(d.staticPeers, locators...)
	}
}

// Discovery ties together the participant database, endpoint
// registry, SPDP announcer and lease tracker into the participant's
// single discovery subsystem.
type Discovery struct {
	cfg       *config.Config
	transport transport.Transport
	log       *logrus.Entry

	mu             sync.RWMutex
	self           ParticipantInfo
	localEndpoints []EndpointInfo

	staticPeers []hdds.Locator

	db       *ParticipantDB
	registry *EndpointRegistry
	announcer *Announcer
	lease     *LeaseTracker
}

// New builds a Discovery for self (this participant's own
// advertisement), driving SPDP/SEDP over tr. onMatch/onUnmatch are
// forwarded from the internal EndpointRegistry.
func New(cfg *config.Config, tr transport.Transport, self ParticipantInfo, onMatch, onUnmatch func(MatchEvent), log *logrus.Entry, opts ...Option) *Discovery {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Discovery{
		cfg:       cfg,
		transport: tr,
		log:       log,
		self:      self,
		db:        NewParticipantDB(),
		registry:  NewEndpointRegistry(onMatch, onUnmatch),
	}
	for _, opt := range opts {
		opt(d)
	}

	dest := hdds.NewUDPv4Locator(hdds.SPDPMulticastAddress, hdds.SPDPMulticastPort(cfg.Discovery.DomainID))
	d.announcer = NewAnnouncer(AnnouncerConfig{
		DomainID:      cfg.Discovery.DomainID,
		Period:        cfg.Discovery.SPDPPeriod,
		InitialBursts: cfg.Discovery.SPDPInitialBursts,
		BurstInterval: cfg.Discovery.SPDPBurstInterval,
		Destination:   dest,
	}, tr, d.Self, log.WithField("task", "spdp"))

	d.lease = NewLeaseTracker(d.db, d.registry, cfg.Discovery.LeaseTickPeriod, func(p ParticipantInfo) {
		log.WithField("participant", p.GUID).Info("participant lease expired, endpoints disposed")
	}, log.WithField("task", "lease"))

	for _, peer := range d.staticPeers {
		d.sendSPDPTo(peer)
	}

	return d
}

// Self returns the current ParticipantInfo this discovery instance
// advertises; the announcer calls this on every tick so locator
// changes are picked up live.
func (d *Discovery) Self() ParticipantInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.self
}

func (d *Discovery) sendSPDPTo(dest hdds.Locator) {
	info := d.Self()
	payload, err := EncodeParticipantInfo(info, d.cfg.Discovery.DomainID)
	if err != nil {
		d.log.WithError(err).Warn("failed to encode SPDP for static peer")
		return
	}
	header := wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: info.GUID.Prefix}
	msg, err := wire.BuildDataMessage(header, hdds.EntityIDSPDPReader, hdds.EntityIDSPDPWriter, 1, payload)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = d.transport.Send(ctx, dest, msg)
}

// AddLocalEndpoint registers a locally-created writer or reader,
// sending its SEDP descriptor to every participant already known and
// running QoS matching against every already-known remote endpoint on
// the same topic.
func (d *Discovery) AddLocalEndpoint(ep EndpointInfo) {
	d.registry.Add(ep)

	d.mu.Lock()
	d.localEndpoints = append(d.localEndpoints, ep)
	d.mu.Unlock()

	for _, p := range d.db.All() {
		d.sendSEDPTo(ep, p)
	}
}

// RemoveLocalEndpoint deregisters a locally-destroyed writer or
// reader: the registry's unmatch callback fires for its local matches
// and it is no longer announced to newly discovered participants. No
// disposal message is sent to participants already known.
func (d *Discovery) RemoveLocalEndpoint(guid hdds.GUID) {
	d.registry.Remove(guid)
	d.mu.Lock()
	kept := d.localEndpoints[:0]
	for _, ep := range d.localEndpoints {
		if ep.GUID != guid {
			kept = append(kept, ep)
		}
	}
	d.localEndpoints = kept
	d.mu.Unlock()
}

func (d *Discovery) sendSEDPTo(ep EndpointInfo, peer ParticipantInfo) {
	if len(peer.MetatrafficLocators) == 0 {
		return
	}
	enc := dialect.NewEncoder(dialect.Select(peer.VendorID))
	payload, err := EncodeEndpointInfo(ep, enc)
	if err != nil {
		d.log.WithError(err).Warn("failed to encode SEDP endpoint")
		return
	}
	self := d.Self()
	header := wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: self.GUID.Prefix}
	writerEntity := hdds.EntityIDSEDPPubWriter
	readerEntity := hdds.EntityIDSEDPPubReader
	if ep.Role == RoleReader {
		writerEntity = hdds.EntityIDSEDPSubWriter
		readerEntity = hdds.EntityIDSEDPSubReader
	}
	msg, err := wire.BuildDataMessage(header, readerEntity, writerEntity, 1, payload)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = d.transport.Send(ctx, peer.MetatrafficLocators[0], msg)
}

// OnReceive dispatches one received RTPS message to the SPDP or SEDP
// handler based on its writer entity id, classifying the builtin
// topic the way the wire codec's submessage stream addresses it.
func (d *Discovery) OnReceive(msg []byte) error {
	header, data, err := wire.ParseDataMessage(msg)
	if err != nil {
		return err
	}

	switch data.WriterEntity {
	case hdds.EntityIDSPDPWriter:
		return d.onSPDP(data.InlineQoS)
	case hdds.EntityIDSEDPPubWriter:
		return d.onSEDP(data.InlineQoS, RoleWriter, header)
	case hdds.EntityIDSEDPSubWriter:
		return d.onSEDP(data.InlineQoS, RoleReader, header)
	default:
		return nil
	}
}

func (d *Discovery) onSPDP(payload []byte) error {
	info, err := DecodeParticipantInfo(payload, time.Now())
	if err != nil {
		return err
	}
	if info.GUID.Prefix == d.Self().GUID.Prefix {
		return nil // never discover ourselves
	}

	isNew := d.db.OnSPDP(info)
	if isNew {
		d.log.WithField("participant", info.GUID).Info("discovered new participant")
		d.mu.RLock()
		locals := append([]EndpointInfo(nil), d.localEndpoints...)
		d.mu.RUnlock()
		for _, ep := range locals {
			d.sendSEDPTo(ep, info)
		}
	}
	return nil
}

func (d *Discovery) onSEDP(payload []byte, role Role, header wire.Header) error {
	ep, err := DecodeEndpointInfo(payload, role)
	if err != nil {
		return err
	}
	d.registry.Add(ep)
	return nil
}

// ParticipantDB exposes the underlying participant table, for
// read-only inspection (e.g. a status CLI or test assertion).
func (d *Discovery) ParticipantDB() *ParticipantDB { return d.db }

// EndpointRegistry exposes the underlying endpoint registry.
func (d *Discovery) EndpointRegistry() *EndpointRegistry { return d.registry }

// Close stops the announcer and lease tracker goroutines.
func (d *Discovery) Close() {
	d.announcer.Stop()
	d.lease.Stop()
}
