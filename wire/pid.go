package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds/errs"
)

// ParameterID identifies a PID parameter-list entry.
type ParameterID uint16

// Mandatory PIDs the core must produce and consume.
const (
	PIDParticipantLeaseDuration    ParameterID = 0x0002
	PIDTopicName                   ParameterID = 0x0005
	PIDTypeName                    ParameterID = 0x0007
	PIDSentinel                    ParameterID = 0x0001
	PIDDomainID                    ParameterID = 0x000F
	PIDProtocolVersion             ParameterID = 0x0015
	PIDVendorID                    ParameterID = 0x0016
	PIDUnicastLocator              ParameterID = 0x002F
	PIDDefaultUnicastLocator       ParameterID = 0x0031
	PIDMetatrafficUnicastLocator   ParameterID = 0x0032
	PIDParticipantGUID             ParameterID = 0x0050
	PIDEndpointGUID                ParameterID = 0x005A
	PIDBuiltinEndpointSet          ParameterID = 0x0058
	PIDTypeInformation             ParameterID = 0x0075
)

// QoS policy PIDs, used in SEDP endpoint announcements.
const (
	PIDReliability ParameterID = 0x001a
	PIDLiveliness  ParameterID = 0x001b
	PIDOwnership   ParameterID = 0x001f
	PIDDurability  ParameterID = 0x001d
	PIDDeadline    ParameterID = 0x0023
	PIDPartition   ParameterID = 0x0029
	PIDHistory     ParameterID = 0x0040
)

// BuiltinEndpointSetMinimum is the bitmask advertised at
// PIDBuiltinEndpointSet: the minimum every participant must set.
const BuiltinEndpointSetMinimum uint32 = 0x000F0C3F

// vendorPIDLowWatermark is the floor of the vendor-private PID range,
// covering RTI's 0x8000-0x801F block among others.
const vendorPIDLowWatermark ParameterID = 0x8000

// IsVendorPrivate reports whether pid falls in the vendor-private
// range; decoders tolerate but never act on these.
func (p ParameterID) IsVendorPrivate() bool {
	return p >= vendorPIDLowWatermark
}

// Parameter is one {pid, length, payload} entry of a parameter list.
type Parameter struct {
	ID      ParameterID
	Payload []byte
}

const parameterHeaderLength = 4

// align4 rounds n up to the next multiple of 4, as every PID entry
// must be 4-byte aligned.
func align4(n int) int {
	return (n + 3) &^ 3
}

// MarshalParameterList encodes entries, each 4-byte aligned, followed
// by PID_SENTINEL, using the given byte order.
func MarshalParameterList(entries []Parameter, order byteOrderer16) ([]byte, error) {
	size := 0
	for _, e := range entries {
		size += parameterHeaderLength + align4(len(e.Payload))
	}
	size += parameterHeaderLength // sentinel

	buf := make([]byte, size)
	off := 0
	for _, e := range entries {
		padded := align4(len(e.Payload))
		if padded > 0xFFFF {
			return nil, fmt.Errorf("wire: pid 0x%04x payload %d bytes exceeds u16 length: %w", e.ID, padded, errs.ErrTooLarge)
		}
		order.PutUint16(buf[off:off+2], uint16(e.ID))
		order.PutUint16(buf[off+2:off+4], uint16(padded))
		off += parameterHeaderLength
		copy(buf[off:off+len(e.Payload)], e.Payload)
		off += padded
	}
	order.PutUint16(buf[off:off+2], uint16(PIDSentinel))
	order.PutUint16(buf[off+2:off+4], 0)
	off += parameterHeaderLength
	return buf[:off], nil
}

// ParseParameterList decodes a sentinel-terminated PID list. Unknown
// PIDs are retained in order (decoders are permissive); the caller
// decides which ones matter.
func ParseParameterList(buf []byte, order byteOrderer16) ([]Parameter, error) {
	var entries []Parameter
	off := 0
	for {
		if off+parameterHeaderLength > len(buf) {
			return nil, fmt.Errorf("wire: truncated parameter list at offset %d: %w", off, errs.ErrMalformedPID)
		}
		pid := ParameterID(order.Uint16(buf[off : off+2]))
		length := int(order.Uint16(buf[off+2 : off+4]))
		off += parameterHeaderLength

		if pid == PIDSentinel {
			return entries, nil
		}
		if off+length > len(buf) {
			return nil, fmt.Errorf("wire: pid 0x%04x declares %d bytes past end of buffer: %w", pid, length, errs.ErrMalformedPID)
		}
		payload := make([]byte, length)
		copy(payload, buf[off:off+length])
		entries = append(entries, Parameter{ID: pid, Payload: payload})
		off += length
	}
}

// byteOrderer16 is the subset of binary.ByteOrder the PID codec needs.
type byteOrderer16 interface {
	PutUint16([]byte, uint16)
	Uint16([]byte) uint16
}

// MarshalPIDString encodes a PID string payload: length_with_null
// (u32) | bytes | NUL | padding.
func MarshalPIDString(s string, order binary.ByteOrder) []byte {
	n := len(s) + 1
	buf := make([]byte, 4+align4(n))
	order.PutUint32(buf[0:4], uint32(n))
	copy(buf[4:4+len(s)], s)
	// buf[4+len(s)] is already 0 (NUL), padding bytes already zero.
	return buf
}

// ParsePIDString decodes a PID string payload produced by MarshalPIDString.
func ParsePIDString(buf []byte, order binary.ByteOrder) (string, error) {
	if len(buf) < 4 {
		return "", fmt.Errorf("wire: pid string needs 4-byte length prefix: %w", errs.ErrMalformedPID)
	}
	n := int(order.Uint32(buf[0:4]))
	if n < 1 || 4+n > len(buf) {
		return "", fmt.Errorf("wire: pid string length %d out of range: %w", n, errs.ErrMalformedPID)
	}
	return string(buf[4 : 4+n-1]), nil
}
