// SPDX-License-Identifier: MIT

// Package dds is the application-facing endpoint layer: Participant,
// Writer, Reader, their proxies for the matched remote side, and the
// content-filtered topic extension point. Everything below this layer
// (wire, transport, discovery, reliability, history) is plumbing; dds
// is where write(sample)/take() live.
package dds

import (
	"time"

	"github.com/hdds-io/hdds"
)

// SampleState reports how a sample reached the application:
// Reader.Take marks it SampleNotRead, the non-consuming Reader.Read
// marks it SampleRead.
type SampleState int

const (
	SampleNotRead SampleState = iota
	SampleRead
)

// ViewState tracks whether an instance (here, a writer) is new to the
// reader or has been seen before.
type ViewState int

const (
	ViewNew ViewState = iota
	ViewNotNew
)

// InstanceState tracks liveliness of the writer owning an instance.
type InstanceState int

const (
	InstanceAlive InstanceState = iota
	InstanceNotAliveDisposed
	InstanceNotAliveNoWriters
)

// SampleInfo accompanies every sample a Reader delivers, carrying the
// metadata an application needs to make delivery-order and liveliness
// decisions without reaching into the protocol layers itself.
type SampleInfo struct {
	SourceTimestamp    time.Time
	ReceptionTimestamp time.Time
	WriterGUID         hdds.GUID
	SampleState        SampleState
	ViewState          ViewState
	InstanceState      InstanceState
}

// TakenSample pairs a sample's payload with its SampleInfo, the unit
// Reader.Take/Read return.
type TakenSample struct {
	Payload []byte
	Info    SampleInfo
}
