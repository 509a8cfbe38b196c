package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds/errs"
)

// SubmessageKind identifies the submessage type in a submessage
// header's id byte.
type SubmessageKind uint8

// Submessage kinds the core must produce and consume.
const (
	KindGap           SubmessageKind = 0x08
	KindInfoTS        SubmessageKind = 0x09
	KindInfoSrc       SubmessageKind = 0x0c
	KindInfoReply     SubmessageKind = 0x0d
	KindInfoDst       SubmessageKind = 0x0e
	KindNackFrag      SubmessageKind = 0x12
	KindHeartbeatFrag SubmessageKind = 0x13
	KindAckNack       SubmessageKind = 0x06
	KindHeartbeat     SubmessageKind = 0x07
	KindData          SubmessageKind = 0x15
	KindDataFrag      SubmessageKind = 0x16
)

func (k SubmessageKind) String() string {
	switch k {
	case KindGap:
		return "GAP"
	case KindInfoTS:
		return "INFO_TS"
	case KindInfoSrc:
		return "INFO_SRC"
	case KindInfoReply:
		return "INFO_REPLY"
	case KindInfoDst:
		return "INFO_DST"
	case KindNackFrag:
		return "NACK_FRAG"
	case KindHeartbeatFrag:
		return "HEARTBEAT_FRAG"
	case KindAckNack:
		return "ACKNACK"
	case KindHeartbeat:
		return "HEARTBEAT"
	case KindData:
		return "DATA"
	case KindDataFrag:
		return "DATA_FRAG"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", uint8(k))
	}
}

// Submessage flag bits common to every submessage: bit 0 of flags is
// endianness, 1 = LE.
const (
	FlagEndianness uint8 = 1 << 0
)

const submessageHeaderLength = 4

// SubmessageHeader is the 4-byte header every submessage carries:
// {id, flags, octets_to_next_header}.
type SubmessageHeader struct {
	Kind             SubmessageKind
	Flags            uint8
	OctetsToNextHeader uint16
}

// LittleEndian reports whether FlagEndianness is set. All current
// implementations use LE, but decoders must honor the bit.
func (h SubmessageHeader) LittleEndian() bool {
	return h.Flags&FlagEndianness != 0
}

// MarshalSize returns the fixed wire length of a submessage header.
func (SubmessageHeader) MarshalSize() int { return submessageHeaderLength }

// MarshalTo writes h into buf in the endianness h.Flags selects.
func (h SubmessageHeader) MarshalTo(buf []byte) (int, error) {
	if len(buf) < submessageHeaderLength {
		return 0, fmt.Errorf("wire: submessage header needs %d bytes: %w", submessageHeaderLength, errs.ErrBufferTooSmall)
	}
	buf[0] = byte(h.Kind)
	buf[1] = h.Flags
	order := byteOrder(h.LittleEndian())
	order.PutUint16(buf[2:4], h.OctetsToNextHeader)
	return submessageHeaderLength, nil
}

// Unmarshal parses buf into h, returning the number of bytes consumed.
func (h *SubmessageHeader) Unmarshal(buf []byte) (int, error) {
	if len(buf) < submessageHeaderLength {
		return 0, fmt.Errorf("wire: need %d bytes for submessage header, got %d: %w",
			submessageHeaderLength, len(buf), errs.ErrBadSubmessage)
	}
	h.Kind = SubmessageKind(buf[0])
	h.Flags = buf[1]
	order := byteOrder(h.LittleEndian())
	h.OctetsToNextHeader = order.Uint16(buf[2:4])
	return submessageHeaderLength, nil
}

// byteOrder selects the binary.ByteOrder a submessage body is encoded
// in based on the header's endianness flag.
func byteOrder(littleEndian bool) binary.ByteOrder {
	if littleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}
