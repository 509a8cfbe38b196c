// SPDX-License-Identifier: MIT

// Package dialect holds the per-vendor interoperability quirks a
// participant needs to talk to FastDDS, CycloneDDS, OpenDDS, RTI
// Connext, and other HDDS peers over the same wire codec. Every
// dialect module stays isolated from the others — nothing here
// imports from a sibling dialect file; shared behavior lives in
// hdds/wire.
package dialect

import "github.com/hdds-io/hdds"

// Dialect names a peer implementation whose quirks a capability
// table entry describes.
type Dialect int

// Dialects this core recognizes. Hybrid covers peers that mix
// behaviors (observed vendor id doesn't match a known implementation
// cleanly) and falls back to the strictest common denominator.
const (
	DialectHDDS Dialect = iota
	DialectFastDDS
	DialectCycloneDDS
	DialectOpenDDS
	DialectRTI
	DialectHybrid
)

func (d Dialect) String() string {
	switch d {
	case DialectHDDS:
		return "HDDS"
	case DialectFastDDS:
		return "FastDDS"
	case DialectCycloneDDS:
		return "CycloneDDS"
	case DialectOpenDDS:
		return "OpenDDS"
	case DialectRTI:
		return "RTI"
	case DialectHybrid:
		return "Hybrid"
	default:
		return "Unknown"
	}
}

// Capabilities records what a dialect requires or tolerates when this
// core builds SPDP/SEDP announcements or control submessages for it.
type Capabilities struct {
	Dialect Dialect

	// RTPSMajor/RTPSMinor is the protocol version the dialect's own
	// implementation reports; used to decide which optional fields it
	// is safe to omit.
	RTPSMajor, RTPSMinor uint8

	// RequiresTypeObject records that the dialect expects
	// PID_TYPE_INFORMATION even for a type known only by name. It is
	// exposed through Encoder.RequiresTypeObject; SEDP encoding in this
	// module does not emit PID_TYPE_INFORMATION.
	RequiresTypeObject bool

	// SupportsXCDR2 records whether XCDR2_LE/PL_XCDR2_LE encapsulation
	// kinds may be offered, vs. plain CDR_LE/PL_CDR_LE; it is read by
	// Encoder.PreferredEncapsulation. Writers do not consult it.
	SupportsXCDR2 bool

	// EndpointGUIDFirst requires PID_ENDPOINT_GUID to be the first
	// parameter in a SEDP announcement (FastDDS validates it before
	// anything else).
	EndpointGUIDFirst bool

	// SkipSPDPBarrier records that the dialect expects SEDP endpoint
	// announcements without waiting for a full SPDP round trip first
	// (peers with a short builtin-endpoint discovery timeout). No code
	// in this module reads it.
	SkipSPDPBarrier bool

	// FragmentSize is the dialect's preferred DATA_FRAG payload size;
	// Encoder.ClampFragmentSize returns the smaller of it and a
	// configured size. Writers fragment with their own configured size
	// and do not clamp it.
	FragmentSize int

	// VendorID is the dialect's registered RTPS vendor id.
	VendorID hdds.VendorID
}

// knownCapabilities is the capability table for dialects this core
// has concrete interoperability data for. Entries grounded on
// interoperability notes carried in each vendor's SEDP/heartbeat
// encoder.
var knownCapabilities = map[Dialect]Capabilities{
	DialectHDDS: {
		Dialect: DialectHDDS, RTPSMajor: 2, RTPSMinor: 4,
		RequiresTypeObject: false, SupportsXCDR2: true,
		EndpointGUIDFirst: false, SkipSPDPBarrier: false,
		FragmentSize: 1300, VendorID: hdds.VendorHDDS,
	},
	DialectFastDDS: {
		Dialect: DialectFastDDS, RTPSMajor: 2, RTPSMinor: 3,
		RequiresTypeObject: false, SupportsXCDR2: true,
		EndpointGUIDFirst: true, SkipSPDPBarrier: false,
		FragmentSize: 1300, VendorID: hdds.VendorFastDDS,
	},
	DialectCycloneDDS: {
		Dialect: DialectCycloneDDS, RTPSMajor: 2, RTPSMinor: 3,
		RequiresTypeObject: false, SupportsXCDR2: true,
		EndpointGUIDFirst: false, SkipSPDPBarrier: true,
		FragmentSize: 1300, VendorID: hdds.VendorCyclone,
	},
	DialectOpenDDS: {
		Dialect: DialectOpenDDS, RTPSMajor: 2, RTPSMinor: 1,
		RequiresTypeObject: true, SupportsXCDR2: false,
		EndpointGUIDFirst: false, SkipSPDPBarrier: false,
		FragmentSize: 1024, VendorID: hdds.VendorOpenDDS,
	},
	DialectRTI: {
		Dialect: DialectRTI, RTPSMajor: 2, RTPSMinor: 3,
		RequiresTypeObject: true, SupportsXCDR2: true,
		EndpointGUIDFirst: false, SkipSPDPBarrier: false,
		FragmentSize: 1300, VendorID: hdds.VendorRTI,
	},
	DialectHybrid: {
		Dialect: DialectHybrid, RTPSMajor: 2, RTPSMinor: 1,
		RequiresTypeObject: true, SupportsXCDR2: false,
		EndpointGUIDFirst: false, SkipSPDPBarrier: false,
		FragmentSize: 1024, VendorID: hdds.VendorUnknown,
	},
}

// Select returns the capability table entry for the dialect matching
// vendor, falling back to DialectHybrid's conservative defaults for
// any vendor id this core doesn't specifically recognize.
func Select(vendor hdds.VendorID) Capabilities {
	switch vendor {
	case hdds.VendorHDDS:
		return knownCapabilities[DialectHDDS]
	case hdds.VendorFastDDS:
		return knownCapabilities[DialectFastDDS]
	case hdds.VendorCyclone:
		return knownCapabilities[DialectCycloneDDS]
	case hdds.VendorOpenDDS:
		return knownCapabilities[DialectOpenDDS]
	case hdds.VendorRTI:
		return knownCapabilities[DialectRTI]
	default:
		return knownCapabilities[DialectHybrid]
	}
}
