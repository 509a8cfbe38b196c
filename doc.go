// SPDX-License-Identifier: MIT

// Package hdds implements the wire-interoperable core of a DDS/RTPS
// middleware stack: discovery, reliable delivery, history caching, and
// the codecs and transports that carry samples between participants.
//
// This package holds the fundamental value types (GUID, SequenceNumber,
// Locator, Duration) shared across every other package in the module.
// The layered subsystems live in their own packages:
//
//	hdds/wire         RTPS submessage codec, PID parameter lists, CDR
//	hdds/transport     UDP multicast, TCP, low-bandwidth, intra-process
//	hdds/qos           QoS policies and compatibility matching
//	hdds/discovery     SPDP/SEDP participant and endpoint discovery
//	hdds/reliability   sequence tracking, heartbeats, NACK-driven repair
//	hdds/history       bounded per-writer sample storage
//	hdds/dds           Participant, Writer, Reader
package hdds
