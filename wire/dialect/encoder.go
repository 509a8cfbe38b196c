// SPDX-License-Identifier: MIT

package dialect

import (
	"github.com/hdds-io/hdds/wire"
)

// Encoder builds a SEDP endpoint announcement's parameter list in
// the order and encapsulation a dialect expects, given the
// capability-neutral entries this core would otherwise emit in
// whatever order it built them.
type Encoder struct {
	Caps Capabilities
}

// NewEncoder builds an Encoder for the given dialect capabilities.
func NewEncoder(caps Capabilities) *Encoder {
	return &Encoder{Caps: caps}
}

// OrderEndpointParameters reorders entries to satisfy the dialect's
// parameter-ordering requirements (e.g. FastDDS wants
// PID_ENDPOINT_GUID first) without otherwise changing their content.
func (e *Encoder) OrderEndpointParameters(entries []wire.Parameter) []wire.Parameter {
	if !e.Caps.EndpointGUIDFirst {
		return entries
	}
	ordered := make([]wire.Parameter, 0, len(entries))
	for _, p := range entries {
		if p.ID == wire.PIDEndpointGUID {
			ordered = append(ordered, p)
		}
	}
	for _, p := range entries {
		if p.ID != wire.PIDEndpointGUID {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

// PreferredEncapsulation returns the CDR encapsulation kind this
// dialect should be sent data in: PL_XCDR2_LE when it supports
// XCDR2, PL_CDR_LE otherwise.
func (e *Encoder) PreferredEncapsulation() wire.EncapsulationKind {
	if e.Caps.SupportsXCDR2 {
		return wire.EncapsulationPLXCDR2LE
	}
	return wire.EncapsulationPLCDRLE
}

// ClampFragmentSize returns the smaller of the locally configured
// fragment size and the dialect's preferred size, so DATA_FRAG
// submessages never exceed what the peer expects.
func (e *Encoder) ClampFragmentSize(configured int) int {
	if e.Caps.FragmentSize > 0 && e.Caps.FragmentSize < configured {
		return e.Caps.FragmentSize
	}
	return configured
}

// RequiresTypeObject reports whether SEDP announcements to this
// dialect must carry PID_TYPE_INFORMATION even for a type the local
// registry only knows by name.
func (e *Encoder) RequiresTypeObject() bool {
	return e.Caps.RequiresTypeObject
}
