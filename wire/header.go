// SPDX-License-Identifier: MIT

// Package wire implements the dialect-neutral RTPS wire codec:
// message and submessage headers, the PID parameter list, CDR
// encapsulation, and the SequenceNumberSet bitmap encoding.
// Marshal/Unmarshal follow the pion/rtp idiom this module is
// grounded on: Unmarshal returns bytes consumed, Marshal/MarshalTo/
// MarshalSize mirror each other, and every size violation is a
// sentinel error from hdds/errs wrapped with local context.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
)

// Magic is the 4-byte literal every RTPS message starts with.
var Magic = [4]byte{'R', 'T', 'P', 'S'}

const headerLength = 20 // magic(4) + major(1) + minor(1) + vendor(2) + prefix(12)

// ProtocolVersion is the {major, minor} pair fielded on the wire.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// Protocol versions this core must interoperate with.
var (
	ProtocolVersion23 = ProtocolVersion{2, 3}
	ProtocolVersion24 = ProtocolVersion{2, 4}
	ProtocolVersion25 = ProtocolVersion{2, 5}
)

// Header is the fixed RTPS message header preceding every
// submessage stream:
//
//	"RTPS" | major (u8) | minor (u8) | vendor_id (2B BE) | guid_prefix (12B) | submessages…
type Header struct {
	Version      ProtocolVersion
	VendorID     hdds.VendorID
	GUIDPrefix   hdds.GUIDPrefix
}

// MarshalSize returns the fixed wire length of a Header.
func (h Header) MarshalSize() int { return headerLength }

// Marshal serializes h into a freshly allocated buffer.
func (h Header) Marshal() ([]byte, error) {
	buf := make([]byte, h.MarshalSize())
	n, err := h.MarshalTo(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// MarshalTo writes h into buf, returning the number of bytes written.
func (h Header) MarshalTo(buf []byte) (int, error) {
	if len(buf) < headerLength {
		return 0, fmt.Errorf("wire: header needs %d bytes, got %d: %w", headerLength, len(buf), errs.ErrBufferTooSmall)
	}
	copy(buf[0:4], Magic[:])
	buf[4] = h.Version.Major
	buf[5] = h.Version.Minor
	binary.BigEndian.PutUint16(buf[6:8], uint16(h.VendorID))
	copy(buf[8:20], h.GUIDPrefix[:])
	return headerLength, nil
}

// Unmarshal parses buf into h, returning the number of bytes consumed.
func (h *Header) Unmarshal(buf []byte) (int, error) {
	if len(buf) < headerLength {
		return 0, fmt.Errorf("wire: need %d bytes for header, got %d: %w", headerLength, len(buf), errs.ErrBadSubmessage)
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return 0, fmt.Errorf("wire: bad magic %q: %w", buf[0:4], errs.ErrInvalidMagic)
	}
	h.Version = ProtocolVersion{Major: buf[4], Minor: buf[5]}
	h.VendorID = hdds.VendorID(binary.BigEndian.Uint16(buf[6:8]))
	copy(h.GUIDPrefix[:], buf[8:20])
	return headerLength, nil
}
