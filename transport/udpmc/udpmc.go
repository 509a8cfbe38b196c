// SPDX-License-Identifier: MIT

// Package udpmc implements the UDP multicast/unicast transport: the
// default wire medium for SPDP, SEDP, and regular best-effort/reliable
// user traffic.
package udpmc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
	"github.com/hdds-io/hdds/internal/netiface"
	"github.com/hdds-io/hdds/metrics"
	"github.com/hdds-io/hdds/transport"
	"github.com/sirupsen/logrus"
)

// bufferPool recycles MTU-sized receive buffers across Receive calls,
// avoiding an allocation per datagram under steady-state traffic.
var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, transport.MTU)
		return &b
	},
}

type inbound struct {
	data []byte
	src  hdds.Locator
}

// Transport is a UDP-backed transport.Transport bound to one or more
// local sockets (unicast plus any joined multicast groups).
type Transport struct {
	log    *logrus.Entry
	conns  []*net.UDPConn
	locals []hdds.Locator

	rx     chan inbound
	closed chan struct{}
	once   sync.Once
}

// Config describes the sockets a Transport should open.
type Config struct {
	// UnicastAddr is the local unicast bind address, e.g. "0.0.0.0:7411".
	UnicastAddr string
	// MulticastGroups are additional multicast groups to join on the
	// same port, e.g. SPDP's well-known 239.255.0.1.
	MulticastGroups []string
	// Interface, if set, is checked against the kernel's reported
	// multicast membership list after each group join, so a silently
	// dropped IGMP join doesn't look like healthy SPDP traffic.
	Interface string
	// RXQueueDepth bounds how many inbound datagrams may be queued
	// before Receive callers catch up; beyond that, new datagrams are
	// dropped and metrics.TransportDrops is incremented.
	RXQueueDepth int
}

// New opens the sockets cfg describes and starts a read pump per
// socket feeding a shared bounded channel.
func New(cfg Config, log *logrus.Entry) (*Transport, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	depth := cfg.RXQueueDepth
	if depth <= 0 {
		depth = 256
	}

	t := &Transport{
		log:    log,
		rx:     make(chan inbound, depth),
		closed: make(chan struct{}),
	}

	uaddr, err := net.ResolveUDPAddr("udp", cfg.UnicastAddr)
	if err != nil {
		return nil, fmt.Errorf("udpmc: resolve %q: %w", cfg.UnicastAddr, err)
	}
	uconn, err := net.ListenUDP("udp", uaddr)
	if err != nil {
		return nil, fmt.Errorf("udpmc: listen %q: %w", cfg.UnicastAddr, err)
	}
	t.addConn(uconn)

	for _, group := range cfg.MulticastGroups {
		gaddr, err := net.ResolveUDPAddr("udp", group)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("udpmc: resolve multicast group %q: %w", group, err)
		}
		gconn, err := net.ListenMulticastUDP("udp", nil, gaddr)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("udpmc: join multicast group %q: %w", group, err)
		}
		t.addConn(gconn)

		if cfg.Interface != "" {
			if ok, err := netiface.HasMulticastMembership(cfg.Interface, gaddr.IP); err != nil {
				log.WithError(err).Warn("udpmc: could not verify multicast membership")
			} else if !ok {
				log.WithField("group", group).Warn("udpmc: kernel reports no multicast membership after join")
			}
		}
	}

	return t, nil
}

func (t *Transport) addConn(conn *net.UDPConn) {
	t.conns = append(t.conns, conn)
	if loc, err := localeFromConn(conn); err == nil {
		t.locals = append(t.locals, loc)
	}
	go t.pump(conn)
}

func localeFromConn(conn *net.UDPConn) (hdds.Locator, error) {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return hdds.Locator{}, errs.ErrInvalidLocator
	}
	return hdds.NewUDPv4Locator(addr.IP, uint32(addr.Port)), nil
}

func (t *Transport) pump(conn *net.UDPConn) {
	for {
		bufp := bufferPool.Get().(*[]byte)
		buf := *bufp
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			bufferPool.Put(bufp)
			select {
			case <-t.closed:
				return
			default:
				t.log.WithError(err).Warn("udpmc: read error, pump exiting")
				return
			}
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		bufferPool.Put(bufp)

		loc := hdds.NewUDPv4Locator(addr.IP, uint32(addr.Port))
		select {
		case t.rx <- inbound{data: data, src: loc}:
		default:
			metrics.TransportDrops.WithLabelValues("udpmc").Inc()
			t.log.Warn("udpmc: rx queue full, dropping datagram")
		}
	}
}

// Send implements transport.Transport.
func (t *Transport) Send(ctx context.Context, dst hdds.Locator, message []byte) error {
	if len(t.conns) == 0 {
		return errs.ErrPeerUnreachable
	}
	addr, err := dst.UDPAddr()
	if err != nil {
		return fmt.Errorf("udpmc: %w", err)
	}
	if _, err := t.conns[0].WriteToUDP(message, addr); err != nil {
		return fmt.Errorf("udpmc: write to %s: %w", dst, err)
	}
	return nil
}

// Receive implements transport.Transport.
func (t *Transport) Receive(ctx context.Context) ([]byte, hdds.Locator, error) {
	select {
	case <-ctx.Done():
		return nil, hdds.Locator{}, ctx.Err()
	case <-t.closed:
		return nil, hdds.Locator{}, errs.ErrShutdown
	case in := <-t.rx:
		return in.data, in.src, nil
	}
}

// LocalLocators implements transport.Transport.
func (t *Transport) LocalLocators() []hdds.Locator {
	return t.locals
}

// Close implements transport.Transport.
func (t *Transport) Close() error {
	var err error
	t.once.Do(func() {
		close(t.closed)
		for _, c := range t.conns {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
