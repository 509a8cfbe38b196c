package hdds

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/hdds-io/hdds/errs"
)

// LocatorWireLength is the fixed wire size of a Locator: kind (4) +
// port (4) + address (16), all big-endian.
const LocatorWireLength = 24

// LocatorKind identifies the transport address family a Locator
// describes.
type LocatorKind int32

// Locator kinds, RTPS-standard values.
const (
	LocatorKindInvalid LocatorKind = -1
	LocatorKindUDPv4    LocatorKind = 1
	LocatorKindUDPv6    LocatorKind = 2
	LocatorKindTCPv4     LocatorKind = 4
	LocatorKindTCPv6     LocatorKind = 8
	LocatorKindSHMEM     LocatorKind = 0x01000000
)

func (k LocatorKind) String() string {
	switch k {
	case LocatorKindUDPv4:
		return "udpv4"
	case LocatorKindUDPv6:
		return "udpv6"
	case LocatorKindTCPv4:
		return "tcpv4"
	case LocatorKindTCPv6:
		return "tcpv6"
	case LocatorKindSHMEM:
		return "shmem"
	default:
		return "invalid"
	}
}

// Locator is the {kind, port, address} tuple used throughout the core
// to name a transport endpoint.
type Locator struct {
	Kind    LocatorKind
	Port    uint32
	Address [16]byte // IPv4 addresses are stored in the last 4 bytes
}

// NewUDPv4Locator builds a Locator from a dotted-quad/port pair.
func NewUDPv4Locator(ip net.IP, port uint32) Locator {
	var loc Locator
	loc.Kind = LocatorKindUDPv4
	loc.Port = port
	v4 := ip.To4()
	if v4 != nil {
		copy(loc.Address[12:], v4)
	}
	return loc
}

// UDPAddr renders the locator as a *net.UDPAddr, valid for UDPv4/UDPv6
// locators only.
func (l Locator) UDPAddr() (*net.UDPAddr, error) {
	switch l.Kind {
	case LocatorKindUDPv4:
		ip := net.IPv4(l.Address[12], l.Address[13], l.Address[14], l.Address[15])
		return &net.UDPAddr{IP: ip, Port: int(l.Port)}, nil
	case LocatorKindUDPv6:
		ip := make(net.IP, 16)
		copy(ip, l.Address[:])
		return &net.UDPAddr{IP: ip, Port: int(l.Port)}, nil
	default:
		return nil, fmt.Errorf("hdds: locator kind %s has no UDP address form", l.Kind)
	}
}

func (l Locator) String() string {
	addr, err := l.UDPAddr()
	if err != nil {
		return fmt.Sprintf("%s:%d", l.Kind, l.Port)
	}
	return addr.String()
}

// MarshalBinary encodes the locator as {kind, port, address}, the
// fixed 24-byte form carried in PID locator parameters.
func (l Locator) MarshalBinary() ([]byte, error) {
	buf := make([]byte, LocatorWireLength)
	binary.BigEndian.PutUint32(buf[0:4], uint32(l.Kind))
	binary.BigEndian.PutUint32(buf[4:8], l.Port)
	copy(buf[8:24], l.Address[:])
	return buf, nil
}

// UnmarshalLocator parses a 24-byte locator from buf.
func UnmarshalLocator(buf []byte) (Locator, error) {
	if len(buf) < LocatorWireLength {
		return Locator{}, fmt.Errorf("hdds: locator needs %d bytes, got %d: %w", LocatorWireLength, len(buf), errs.ErrBufferTooSmall)
	}
	var l Locator
	l.Kind = LocatorKind(binary.BigEndian.Uint32(buf[0:4]))
	l.Port = binary.BigEndian.Uint32(buf[4:8])
	copy(l.Address[:], buf[8:24])
	return l, nil
}

// Well-known port formulas.
const (
	portSPDPMulticastBase = 7400
	portPerDomainStride   = 250
	portSPDPUnicastOffset = 10
	portUserUnicastOffset = 11
	portUserMulticastOffset = 1
	portPerParticipantStride = 2
)

// SPDPMulticastPort returns the well-known SPDP multicast port for a
// domain: 7400 + 250*domain_id.
func SPDPMulticastPort(domainID int) uint32 {
	return portSPDPMulticastBase + portPerDomainStride*uint32(domainID)
}

// SPDPUnicastPort returns the well-known SPDP unicast port for a
// domain/participant pair.
func SPDPUnicastPort(domainID, participantID int) uint32 {
	return portSPDPMulticastBase + portPerDomainStride*uint32(domainID) +
		portSPDPUnicastOffset + portPerParticipantStride*uint32(participantID)
}

// UserUnicastPort returns the default unicast port for user data.
func UserUnicastPort(domainID, participantID int) uint32 {
	return portSPDPMulticastBase + portPerDomainStride*uint32(domainID) +
		portUserUnicastOffset + portPerParticipantStride*uint32(participantID)
}

// UserMulticastPort returns the optional user-data multicast port.
func UserMulticastPort(domainID int) uint32 {
	return portSPDPMulticastBase + portPerDomainStride*uint32(domainID) + portUserMulticastOffset
}

// SPDPMulticastAddress is the well-known SPDP multicast group.
var SPDPMulticastAddress = net.IPv4(239, 255, 0, 1)
