package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
)

// BuildDataMessage wraps a single DATA submessage (as SPDP/SEDP
// builtin-topic announcements always are: one sample per message) in
// an RTPS message header, ready to hand to a transport's Send.
func BuildDataMessage(header Header, reader, writer hdds.EntityID, writerSN hdds.SequenceNumber, inlineQoS []byte) ([]byte, error) {
	d := Data{ReaderEntity: reader, WriterEntity: writer, WriterSN: writerSN, InlineQoS: inlineQoS}
	body := make([]byte, d.MarshalSize())
	flags, n, err := d.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return nil, err
	}
	body = body[:n]

	headerBuf, err := header.Marshal()
	if err != nil {
		return nil, err
	}

	sub := SubmessageHeader{Kind: KindData, Flags: flags | FlagEndianness, OctetsToNextHeader: uint16(len(body))}
	subBuf := make([]byte, sub.MarshalSize())
	if _, err := sub.MarshalTo(subBuf); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(headerBuf)+len(subBuf)+len(body))
	out = append(out, headerBuf...)
	out = append(out, subBuf...)
	out = append(out, body...)
	return out, nil
}

// ParseDataMessage parses a message built by BuildDataMessage: an RTPS
// header followed by exactly one DATA submessage.
func ParseDataMessage(buf []byte) (Header, Data, error) {
	var header Header
	n, err := header.Unmarshal(buf)
	if err != nil {
		return Header{}, Data{}, err
	}
	buf = buf[n:]

	var sub SubmessageHeader
	n, err = sub.Unmarshal(buf)
	if err != nil {
		return Header{}, Data{}, err
	}
	buf = buf[n:]

	if sub.Kind != KindData {
		return Header{}, Data{}, fmt.Errorf("wire: expected DATA submessage, got %s: %w", sub.Kind, errs.ErrBadSubmessage)
	}
	order := byteOrder(sub.LittleEndian())
	d, _, err := UnmarshalData(buf, order, sub.Flags)
	if err != nil {
		return Header{}, Data{}, err
	}
	return header, d, nil
}
