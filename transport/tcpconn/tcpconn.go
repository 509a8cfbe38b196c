// SPDX-License-Identifier: MIT

// Package tcpconn implements the TCP transport: a length-prefixed
// framing over a persistent connection, with a GUID-prefix tie-
// breaker so two participants that dial each other simultaneously
// converge on a single connection instead of leaking one.
package tcpconn

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
)

// ConnectionState is the lifecycle state of a Connection.
type ConnectionState int32

// States a Connection moves through, mirroring the set a single TCP
// link can occupy from dial/accept through teardown.
const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateReconnecting
	StateConnected
	StateClosed
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateReconnecting:
		return "Reconnecting"
	case StateConnected:
		return "Connected"
	case StateClosed:
		return "Closed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// IsOperational reports whether messages may be sent/received.
func (s ConnectionState) IsOperational() bool { return s == StateConnected }

// IsTerminal reports whether the connection will never transition
// again without being rebuilt from scratch.
func (s ConnectionState) IsTerminal() bool { return s == StateClosed || s == StateFailed }

// IsConnecting reports whether a handshake is currently in flight.
func (s ConnectionState) IsConnecting() bool {
	return s == StateConnecting || s == StateReconnecting
}

// ShouldKeepConnection resolves the tie-break when both peers dial
// each other at once: the participant with the lexicographically
// smaller GUID prefix plays server and keeps the connection it
// accepted; the other plays client and keeps the connection it
// initiated. weInitiated is true if this side dialed out rather than
// accepted the inbound connection being evaluated.
func ShouldKeepConnection(local, remote hdds.GUIDPrefix, weInitiated bool) bool {
	if local.Less(remote) {
		return !weInitiated
	}
	return weInitiated
}

const lengthPrefixSize = 4

// maxFrameLength bounds a single frame to guard against a corrupt or
// hostile length prefix driving an unbounded allocation.
const maxFrameLength = 8 << 20

// Connection wraps one net.Conn with 4-byte big-endian length-prefixed
// framing and the state machine above.
type Connection struct {
	conn   net.Conn
	reader *bufio.Reader
	state  atomic.Int32

	remotePrefix hdds.GUIDPrefix
	weInitiated  bool

	writeMu sync.Mutex
}

// Dial opens a new outbound Connection to addr.
func Dial(ctx context.Context, addr string) (*Connection, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcpconn: dial %s: %w", addr, err)
	}
	c := newConnection(conn, true)
	c.state.Store(int32(StateConnecting))
	return c, nil
}

// Accept wraps an inbound net.Conn produced by a net.Listener.
func Accept(conn net.Conn) *Connection {
	c := newConnection(conn, false)
	c.state.Store(int32(StateConnecting))
	return c
}

func newConnection(conn net.Conn, weInitiated bool) *Connection {
	return &Connection{
		conn:        conn,
		reader:      bufio.NewReader(conn),
		weInitiated: weInitiated,
	}
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// MarkConnected transitions the connection to Connected once the RTPS
// header exchange (which carries each side's GUID prefix) completes,
// recording the remote prefix for future tie-break decisions on
// reconnect.
func (c *Connection) MarkConnected(remotePrefix hdds.GUIDPrefix) {
	c.remotePrefix = remotePrefix
	c.state.Store(int32(StateConnected))
}

// WeInitiated reports whether this side dialed out for this connection.
func (c *Connection) WeInitiated() bool { return c.weInitiated }

// RemotePrefix returns the peer's GUID prefix, valid once MarkConnected
// has run.
func (c *Connection) RemotePrefix() hdds.GUIDPrefix { return c.remotePrefix }

// Send writes one length-prefixed frame.
func (c *Connection) Send(message []byte) error {
	if !c.State().IsOperational() {
		return fmt.Errorf("tcpconn: send while %s: %w", c.State(), errs.ErrPeerUnreachable)
	}
	if len(message) > maxFrameLength {
		return fmt.Errorf("tcpconn: frame %d bytes exceeds max %d: %w", len(message), maxFrameLength, errs.ErrTooLarge)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(message)))
	if _, err := c.conn.Write(lenBuf[:]); err != nil {
		c.fail()
		return fmt.Errorf("tcpconn: write length prefix: %w", err)
	}
	if _, err := c.conn.Write(message); err != nil {
		c.fail()
		return fmt.Errorf("tcpconn: write frame: %w", err)
	}
	return nil
}

// Receive blocks for the next length-prefixed frame.
func (c *Connection) Receive() ([]byte, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(c.reader, lenBuf[:]); err != nil {
		c.fail()
		return nil, fmt.Errorf("tcpconn: read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameLength {
		c.fail()
		return nil, fmt.Errorf("tcpconn: peer declared %d byte frame, exceeds max %d: %w", n, maxFrameLength, errs.ErrCorrupt)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		c.fail()
		return nil, fmt.Errorf("tcpconn: read frame body: %w", err)
	}
	return buf, nil
}

func (c *Connection) fail() {
	c.state.Store(int32(StateFailed))
}

// Close closes the underlying socket and marks the connection closed.
func (c *Connection) Close() error {
	c.state.Store(int32(StateClosed))
	return c.conn.Close()
}
