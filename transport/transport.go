// SPDX-License-Identifier: MIT

// Package transport defines the interface every locator-addressable
// transport implements (UDP multicast, TCP, the low-bandwidth framed
// transport, and the intra-process queue), so the reliability and
// discovery layers above never know which one they're talking to.
package transport

import (
	"context"

	"github.com/hdds-io/hdds"
)

// Transport sends and receives raw RTPS message bytes (message header
// plus submessage stream) over a locator-addressable medium.
type Transport interface {
	// Send writes an RTPS message to dst. Send must not block past
	// ctx's deadline; a transport that cannot accept more data within
	// that window returns errs.ErrWouldBlock.
	Send(ctx context.Context, dst hdds.Locator, message []byte) error

	// Receive blocks until a message arrives or ctx is done, returning
	// the message bytes and the locator it arrived from.
	Receive(ctx context.Context) (message []byte, src hdds.Locator, err error)

	// LocalLocators reports the locators peers should use to reach
	// this transport instance.
	LocalLocators() []hdds.Locator

	// Close releases the transport's resources. Calls to Send/Receive
	// in flight when Close runs return errs.ErrShutdown.
	Close() error
}

// MTU is the maximum message size a Transport implementation is
// expected to carry without fragmentation at the RTPS layer; callers
// needing to send a larger sample use DATA_FRAG instead.
const MTU = 1472 // Ethernet 1500 minus IPv4/UDP headers, the conservative default
