// SPDX-License-Identifier: MIT

// Package errs declares the categorical error taxonomy used at every
// layer boundary: transient, protocol, resource,
// configuration and fatal. Callers compare with errors.Is, never by
// string.
package errs

import "errors"

// Transient errors are recovered locally with retry or drop; they are
// surfaced to the application only when max_blocking_time elapses.
var (
	ErrWouldBlock      = errors.New("hdds: would block")
	ErrTimeout         = errors.New("hdds: timeout")
	ErrPeerUnreachable = errors.New("hdds: peer unreachable")
	ErrBufferExhausted = errors.New("hdds: buffer exhausted")
)

// Protocol errors are logged and the offending packet discarded; the
// peer is never disconnected for these, since wire tolerance is
// required for interop.
var (
	ErrInvalidMagic       = errors.New("hdds: invalid magic")
	ErrBadSubmessage      = errors.New("hdds: malformed submessage")
	ErrMalformedPID       = errors.New("hdds: malformed parameter id entry")
	ErrSequenceOutOfOrder = errors.New("hdds: sequence number out of order")
	ErrCorrupt            = errors.New("hdds: corrupt frame")
)

// Resource errors are surfaced to the caller for backpressure.
var (
	ErrBufferTooSmall = errors.New("hdds: buffer too small")
	ErrQuotaExceeded  = errors.New("hdds: quota exceeded")
	ErrTooLarge       = errors.New("hdds: payload too large")
)

// Configuration errors are surfaced eagerly at participant/endpoint
// creation time.
var (
	ErrInvalidQoS        = errors.New("hdds: invalid qos")
	ErrIncompatibleQoS   = errors.New("hdds: incompatible qos")
	ErrInvalidLocator    = errors.New("hdds: invalid locator")
)

// Fatal errors cause orderly teardown.
var (
	ErrShutdown           = errors.New("hdds: shutdown")
	ErrInvariantViolation = errors.New("hdds: internal invariant violation")
)
