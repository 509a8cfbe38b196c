package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds/errs"
)

// EncapsulationKind identifies the CDR variant a sample payload is
// encoded with.
type EncapsulationKind uint16

// Encapsulation kinds the core must accept.
const (
	EncapsulationCDRLE    EncapsulationKind = 0x0001
	EncapsulationPLCDRLE  EncapsulationKind = 0x0003
	EncapsulationXCDR2LE  EncapsulationKind = 0x0007
	EncapsulationPLXCDR2LE EncapsulationKind = 0x000B
)

// LittleEndian reports whether the kind's payload is little-endian.
// Every kind this core emits/accepts ends in "LE".
func (k EncapsulationKind) LittleEndian() bool { return true }

func (k EncapsulationKind) String() string {
	switch k {
	case EncapsulationCDRLE:
		return "CDR_LE"
	case EncapsulationPLCDRLE:
		return "PL_CDR_LE"
	case EncapsulationXCDR2LE:
		return "XCDR2_LE"
	case EncapsulationPLXCDR2LE:
		return "PL_XCDR2_LE"
	default:
		return fmt.Sprintf("UNKNOWN(0x%04x)", uint16(k))
	}
}

const encapsulationHeaderLength = 4

// EncapsulationHeader is the 4-byte CDR header preceding every
// payload: {kind (u16 BE), options (u16)}.
type EncapsulationHeader struct {
	Kind    EncapsulationKind
	Options uint16
}

// MarshalSize returns the fixed wire length of the header.
func (EncapsulationHeader) MarshalSize() int { return encapsulationHeaderLength }

// MarshalTo writes the header into buf.
func (h EncapsulationHeader) MarshalTo(buf []byte) (int, error) {
	if len(buf) < encapsulationHeaderLength {
		return 0, fmt.Errorf("wire: cdr header needs %d bytes: %w", encapsulationHeaderLength, errs.ErrBufferTooSmall)
	}
	binary.BigEndian.PutUint16(buf[0:2], uint16(h.Kind))
	binary.BigEndian.PutUint16(buf[2:4], h.Options)
	return encapsulationHeaderLength, nil
}

// Unmarshal parses buf into h, returning bytes consumed. Readers must
// accept any kind whose endianness they support; this core only
// emits/parses the *_LE kinds above, so any well-formed header
// round-trips even if the kind is one we don't specifically
// interpret beyond framing.
func (h *EncapsulationHeader) Unmarshal(buf []byte) (int, error) {
	if len(buf) < encapsulationHeaderLength {
		return 0, fmt.Errorf("wire: need %d bytes for cdr header, got %d: %w",
			encapsulationHeaderLength, len(buf), errs.ErrBadSubmessage)
	}
	h.Kind = EncapsulationKind(binary.BigEndian.Uint16(buf[0:2]))
	h.Options = binary.BigEndian.Uint16(buf[2:4])
	return encapsulationHeaderLength, nil
}
