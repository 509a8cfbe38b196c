// SPDX-License-Identifier: MIT

package lbw

import (
	"fmt"

	"github.com/hdds-io/hdds/errs"
)

// Priority classifies a record's delivery treatment on the scheduler.
type Priority byte

// Priority levels, lowest-numbered flushed first.
const (
	// PriorityP0 is critical traffic: the Scheduler flushes it
	// immediately. This package does not retransmit lost records.
	PriorityP0 Priority = 0
	// PriorityP1 is important traffic: batched.
	PriorityP1 Priority = 1
	// PriorityP2 is telemetry: batched alongside P1 and drained after
	// it; the Scheduler never drops queued records.
	PriorityP2 Priority = 2
)

// Record flag bits.
const (
	recordFlagFragment byte = 1 << 0
)

// Record is one entry inside a frame's body:
//
//	stream_id(u8) | rflags(u8) | msg_seq(varint) | len(varint) | payload
type Record struct {
	StreamID   byte
	Priority   Priority
	Fragment   bool
	MsgSeq     uint64
	Payload    []byte
}

func (r Record) flags() byte {
	f := byte(r.Priority) << 1
	if r.Fragment {
		f |= recordFlagFragment
	}
	return f
}

// EncodeRecord appends r's wire encoding to buf.
func EncodeRecord(buf []byte, r Record) []byte {
	buf = append(buf, r.StreamID, r.flags())
	buf = EncodeVarint(buf, r.MsgSeq)
	buf = EncodeVarint(buf, uint64(len(r.Payload)))
	buf = append(buf, r.Payload...)
	return buf
}

// DecodeRecord parses one record from the front of buf, returning it
// and the bytes consumed.
func DecodeRecord(buf []byte) (Record, int, error) {
	if len(buf) < 2 {
		return Record{}, 0, fmt.Errorf("lbw: truncated record header: %w", errs.ErrBadSubmessage)
	}
	streamID := buf[0]
	rflags := buf[1]
	cursor := 2

	msgSeq, n, err := DecodeVarint(buf[cursor:])
	if err != nil {
		return Record{}, 0, fmt.Errorf("lbw: record msg_seq: %w", errs.ErrBadSubmessage)
	}
	cursor += n

	payloadLen, n, err := DecodeVarint(buf[cursor:])
	if err != nil {
		return Record{}, 0, fmt.Errorf("lbw: record len: %w", errs.ErrBadSubmessage)
	}
	cursor += n

	if cursor+int(payloadLen) > len(buf) {
		return Record{}, 0, fmt.Errorf("lbw: record payload len %d exceeds buffer: %w", payloadLen, errs.ErrBadSubmessage)
	}
	payload := make([]byte, payloadLen)
	copy(payload, buf[cursor:cursor+int(payloadLen)])
	cursor += int(payloadLen)

	return Record{
		StreamID: streamID,
		Priority: Priority((rflags >> 1) & 0x03),
		Fragment: rflags&recordFlagFragment != 0,
		MsgSeq:   msgSeq,
		Payload:  payload,
	}, cursor, nil
}
