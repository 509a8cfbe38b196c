package hdds

import (
	"encoding/hex"
	"fmt"

	"github.com/rs/xid"
)

const (
	// GUIDPrefixLength is the length in bytes of the participant-scoped
	// prefix half of a GUID.
	GUIDPrefixLength = 12
	// EntityIDLength is the length in bytes of the entity-scoped suffix
	// half of a GUID.
	EntityIDLength = 4
	// GUIDLength is the total wire length of a GUID.
	GUIDLength = GUIDPrefixLength + EntityIDLength
)

// GUIDPrefix uniquely identifies a participant within a domain.
type GUIDPrefix [GUIDPrefixLength]byte

// String renders the prefix as hex, matching the form used in RTPS traces.
func (p GUIDPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// Less provides the lexicographic ordering a TCP tie-breaker
// relies on: the peer with the smaller prefix plays server role.
func (p GUIDPrefix) Less(other GUIDPrefix) bool {
	for i := range p {
		if p[i] != other[i] {
			return p[i] < other[i]
		}
	}
	return false
}

// NewGUIDPrefix generates a locally-unique prefix from an xid, which
// packs a timestamp, machine id, process id and counter into 12 bytes —
// exactly the width RTPS wants for a GUID prefix.
func NewGUIDPrefix() GUIDPrefix {
	var p GUIDPrefix
	copy(p[:], xid.New().Bytes())
	return p
}

// EntityKind occupies the low byte of an EntityID and carries the
// writer/reader/builtin classification.
type EntityKind byte

// Entity kind bits, RTPS-standard values.
const (
	EntityKindUnknown           EntityKind = 0x00
	EntityKindParticipant       EntityKind = 0x01
	EntityKindWriterWithKey     EntityKind = 0x02
	EntityKindWriterNoKey       EntityKind = 0x03
	EntityKindReaderNoKey       EntityKind = 0x04
	EntityKindReaderWithKey     EntityKind = 0x07
	EntityKindWriterGroup       EntityKind = 0x08
	EntityKindReaderGroup       EntityKind = 0x09
	EntityKindBuiltinWriterFlag EntityKind = 0xC0
	EntityKindBuiltinReaderFlag EntityKind = 0xC0
)

// EntityID identifies an endpoint within a participant.
type EntityID [EntityIDLength]byte

// Well-known builtin entity ids for the standard discovery endpoints.
var (
	EntityIDParticipant          = EntityID{0x00, 0x00, 0x01, byte(EntityKindParticipant)}
	EntityIDSPDPWriter           = EntityID{0x00, 0x01, 0x00, 0xC2}
	EntityIDSPDPReader           = EntityID{0x00, 0x01, 0x00, 0xC7}
	EntityIDSEDPPubWriter        = EntityID{0x00, 0x00, 0x03, 0xC2}
	EntityIDSEDPPubReader        = EntityID{0x00, 0x00, 0x03, 0xC7}
	EntityIDSEDPSubWriter        = EntityID{0x00, 0x00, 0x04, 0xC2}
	EntityIDSEDPSubReader        = EntityID{0x00, 0x00, 0x04, 0xC7}
	EntityIDParticipantMsgWriter = EntityID{0x00, 0x02, 0x00, 0xC2}
	EntityIDParticipantMsgReader = EntityID{0x00, 0x02, 0x00, 0xC7}
)

// IsWriter reports whether the entity id's kind byte marks it a writer.
func (e EntityID) IsWriter() bool {
	return e[3] == 0x02 || e[3] == 0x03 || e[3] == 0xC2 || e[3] == 0xC3
}

// IsReader reports whether the entity id's kind byte marks it a reader.
func (e EntityID) IsReader() bool {
	return e[3] == 0x04 || e[3] == 0x07 || e[3] == 0xC7 || e[3] == 0xC4
}

func (e EntityID) String() string {
	return hex.EncodeToString(e[:])
}

// GUID is the 16-byte identifier naming a participant, writer, or
// reader: a 12-byte participant prefix plus a 4-byte entity id.
type GUID struct {
	Prefix GUIDPrefix
	Entity EntityID
}

// NewParticipantGUID builds the GUID a participant advertises for
// itself, with the standard builtin participant entity id.
func NewParticipantGUID(prefix GUIDPrefix) GUID {
	return GUID{Prefix: prefix, Entity: EntityIDParticipant}
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.Entity)
}

// Bytes returns the 16-byte wire representation.
func (g GUID) Bytes() [GUIDLength]byte {
	var out [GUIDLength]byte
	copy(out[:GUIDPrefixLength], g.Prefix[:])
	copy(out[GUIDPrefixLength:], g.Entity[:])
	return out
}

// GUIDFromBytes parses a 16-byte slice into a GUID.
func GUIDFromBytes(b []byte) (GUID, error) {
	if len(b) < GUIDLength {
		return GUID{}, fmt.Errorf("hdds: guid requires %d bytes, got %d", GUIDLength, len(b))
	}
	var g GUID
	copy(g.Prefix[:], b[:GUIDPrefixLength])
	copy(g.Entity[:], b[GUIDPrefixLength:GUIDLength])
	return g, nil
}

// VendorID identifies the implementation that produced a message.
type VendorID uint16

// Vendor ids observed / required to tolerate on the wire.
const (
	VendorHDDS      VendorID = 0x01AA
	VendorRTI       VendorID = 0x0101
	VendorFastDDS   VendorID = 0x010F
	VendorCyclone   VendorID = 0x0110
	VendorOpenDDS   VendorID = 0x0103
	VendorUnknown   VendorID = 0x0000
)

func (v VendorID) String() string {
	switch v {
	case VendorHDDS:
		return "HDDS"
	case VendorRTI:
		return "RTI"
	case VendorFastDDS:
		return "FastDDS"
	case VendorCyclone:
		return "CycloneDDS"
	case VendorOpenDDS:
		return "OpenDDS"
	default:
		return fmt.Sprintf("vendor(0x%04x)", uint16(v))
	}
}
