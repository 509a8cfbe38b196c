// SPDX-License-Identifier: MIT

package discovery

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
	"github.com/hdds-io/hdds/wire"
)

// EncodeParticipantInfo renders info as the PID parameter list an SPDP
// DATA submessage carries, in the PIDs named by the canonical SPDP
// table: protocol version, vendor, participant GUID, lease duration,
// metatraffic/default unicast locators, builtin endpoint set, domain.
func EncodeParticipantInfo(info ParticipantInfo, domainID int) ([]byte, error) {
	var params []wire.Parameter

	params = append(params, wire.Parameter{ID: wire.PIDProtocolVersion, Payload: []byte{byte(wire.ProtocolVersion24.Major), byte(wire.ProtocolVersion24.Minor)}})

	vendorPayload := make([]byte, 2)
	binary.BigEndian.PutUint16(vendorPayload, uint16(info.VendorID))
	params = append(params, wire.Parameter{ID: wire.PIDVendorID, Payload: vendorPayload})

	guidBytes := info.GUID.Bytes()
	params = append(params, wire.Parameter{ID: wire.PIDParticipantGUID, Payload: guidBytes[:]})

	leasePayload := make([]byte, 8)
	binary.BigEndian.PutUint32(leasePayload[0:4], uint32(info.LeaseDuration.Seconds))
	binary.BigEndian.PutUint32(leasePayload[4:8], info.LeaseDuration.Fraction)
	params = append(params, wire.Parameter{ID: wire.PIDParticipantLeaseDuration, Payload: leasePayload})

	for _, loc := range info.MetatrafficLocators {
		payload, err := loc.MarshalBinary()
		if err != nil {
			return nil, err
		}
		params = append(params, wire.Parameter{ID: wire.PIDMetatrafficUnicastLocator, Payload: payload})
	}
	for _, loc := range info.DefaultLocators {
		payload, err := loc.MarshalBinary()
		if err != nil {
			return nil, err
		}
		params = append(params, wire.Parameter{ID: wire.PIDDefaultUnicastLocator, Payload: payload})
	}

	endpointSetPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(endpointSetPayload, wire.BuiltinEndpointSetMinimum)
	params = append(params, wire.Parameter{ID: wire.PIDBuiltinEndpointSet, Payload: endpointSetPayload})

	domainPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(domainPayload, uint32(domainID))
	params = append(params, wire.Parameter{ID: wire.PIDDomainID, Payload: domainPayload})

	return wire.MarshalParameterList(params, binary.BigEndian)
}

// DecodeParticipantInfo parses the PID parameter list produced by
// EncodeParticipantInfo, tolerating unknown/vendor-private PIDs.
func DecodeParticipantInfo(buf []byte, now time.Time) (ParticipantInfo, error) {
	params, err := wire.ParseParameterList(buf, binary.BigEndian)
	if err != nil {
		return ParticipantInfo{}, err
	}

	var info ParticipantInfo
	info.LastSeen = now
	var sawGUID bool

	for _, p := range params {
		switch p.ID {
		case wire.PIDVendorID:
			if len(p.Payload) < 2 {
				continue
			}
			info.VendorID = hdds.VendorID(binary.BigEndian.Uint16(p.Payload))
		case wire.PIDParticipantGUID:
			guid, gerr := hdds.GUIDFromBytes(p.Payload)
			if gerr != nil {
				return ParticipantInfo{}, gerr
			}
			info.GUID = guid
			sawGUID = true
		case wire.PIDParticipantLeaseDuration:
			if len(p.Payload) < 8 {
				continue
			}
			info.LeaseDuration = hdds.Duration{
				Seconds:  int32(binary.BigEndian.Uint32(p.Payload[0:4])),
				Fraction: binary.BigEndian.Uint32(p.Payload[4:8]),
			}
		case wire.PIDMetatrafficUnicastLocator:
			loc, lerr := hdds.UnmarshalLocator(p.Payload)
			if lerr != nil {
				return ParticipantInfo{}, lerr
			}
			info.MetatrafficLocators = append(info.MetatrafficLocators, loc)
		case wire.PIDDefaultUnicastLocator:
			loc, lerr := hdds.UnmarshalLocator(p.Payload)
			if lerr != nil {
				return ParticipantInfo{}, lerr
			}
			info.DefaultLocators = append(info.DefaultLocators, loc)
		default:
			// Unknown and vendor-private PIDs are tolerated silently,
			// per the decoder's permissive contract.
		}
	}

	if !sawGUID {
		return ParticipantInfo{}, fmt.Errorf("discovery: SPDP payload missing PID_PARTICIPANT_GUID: %w", errs.ErrMalformedPID)
	}
	return info, nil
}
