package wire

import (
	"fmt"

	"github.com/hdds-io/hdds/errs"
)

// RawSubmessage is one submessage lifted out of a parsed message
// stream, still in its own wire-endianness, left for the caller to
// dispatch on Kind and decode with the matching UnmarshalXxx.
type RawSubmessage struct {
	Kind  SubmessageKind
	Flags uint8
	Body  []byte
}

// LittleEndian reports the endianness this submessage's body was
// encoded in.
func (s RawSubmessage) LittleEndian() bool { return s.Flags&FlagEndianness != 0 }

// MessageBuilder assembles an RTPS message out of an arbitrary
// sequence of submessages — the general case BuildDataMessage
// special-cases for the single-DATA-submessage SPDP/SEDP announcements.
// A writer's DATA+HEARTBEAT piggyback, or a standalone ACKNACK/GAP
// burst, both go through this builder.
type MessageBuilder struct {
	header Header
	body   []byte
	err    error
}

// NewMessageBuilder starts a message under header.
func NewMessageBuilder(header Header) *MessageBuilder {
	return &MessageBuilder{header: header}
}

// Add appends one submessage: kind identifies it, flags carries its
// kind-specific bits (FlagEndianness is added automatically), and
// body is the already-encoded submessage payload.
func (b *MessageBuilder) Add(kind SubmessageKind, flags uint8, body []byte) *MessageBuilder {
	if b.err != nil {
		return b
	}
	sub := SubmessageHeader{Kind: kind, Flags: flags | FlagEndianness, OctetsToNextHeader: uint16(len(body))}
	subBuf := make([]byte, sub.MarshalSize())
	if _, err := sub.MarshalTo(subBuf); err != nil {
		b.err = err
		return b
	}
	b.body = append(b.body, subBuf...)
	b.body = append(b.body, body...)
	return b
}

// Finish renders the assembled header + submessage stream.
func (b *MessageBuilder) Finish() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	headerBuf, err := b.header.Marshal()
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(headerBuf)+len(b.body))
	out = append(out, headerBuf...)
	out = append(out, b.body...)
	return out, nil
}

// ParseMessage splits an RTPS message into its header and the raw
// submessage stream, leaving each submessage's body undecoded for the
// caller to dispatch on Kind.
func ParseMessage(buf []byte) (Header, []RawSubmessage, error) {
	var header Header
	n, err := header.Unmarshal(buf)
	if err != nil {
		return Header{}, nil, err
	}
	buf = buf[n:]

	var subs []RawSubmessage
	for len(buf) > 0 {
		var sub SubmessageHeader
		n, err := sub.Unmarshal(buf)
		if err != nil {
			return Header{}, nil, err
		}
		buf = buf[n:]

		bodyLen := int(sub.OctetsToNextHeader)
		if bodyLen > len(buf) {
			return Header{}, nil, fmt.Errorf("wire: submessage %s body needs %d bytes, got %d: %w",
				sub.Kind, bodyLen, len(buf), errs.ErrBadSubmessage)
		}
		subs = append(subs, RawSubmessage{Kind: sub.Kind, Flags: sub.Flags, Body: append([]byte(nil), buf[:bodyLen]...)})
		buf = buf[bodyLen:]
	}
	return header, subs, nil
}
