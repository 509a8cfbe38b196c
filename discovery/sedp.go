// SPDX-License-Identifier: MIT

package discovery

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/wire"
	"github.com/hdds-io/hdds/wire/dialect"
)

// EncodeEndpointInfo renders ep as the PID parameter list an SEDP DATA
// submessage carries, ordered for enc's dialect: FastDDS and OpenDDS
// require PID_ENDPOINT_GUID ahead of every other parameter, everyone
// else tolerates this core's natural build order.
func EncodeEndpointInfo(ep EndpointInfo, enc *dialect.Encoder) ([]byte, error) {
	guidBytes := ep.GUID.Bytes()
	participantBytes := ep.ParticipantGUID.Bytes()

	params := []wire.Parameter{
		{ID: wire.PIDEndpointGUID, Payload: guidBytes[:]},
		{ID: wire.PIDParticipantGUID, Payload: participantBytes[:]},
		{ID: wire.PIDTopicName, Payload: wire.MarshalPIDString(ep.TopicName, binary.BigEndian)},
		{ID: wire.PIDTypeName, Payload: wire.MarshalPIDString(ep.TypeName, binary.BigEndian)},
	}

	reliabilityPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(reliabilityPayload, uint32(ep.QoS.Reliability.Kind))
	params = append(params, wire.Parameter{ID: wire.PIDReliability, Payload: reliabilityPayload})

	durabilityPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(durabilityPayload, uint32(ep.QoS.Durability.Kind))
	params = append(params, wire.Parameter{ID: wire.PIDDurability, Payload: durabilityPayload})

	ownershipPayload := make([]byte, 4)
	binary.BigEndian.PutUint32(ownershipPayload, uint32(ep.QoS.Ownership.Kind))
	params = append(params, wire.Parameter{ID: wire.PIDOwnership, Payload: ownershipPayload})

	livelinessPayload := make([]byte, 12)
	binary.BigEndian.PutUint32(livelinessPayload[0:4], uint32(ep.QoS.Liveliness.Kind))
	binary.BigEndian.PutUint32(livelinessPayload[4:8], uint32(ep.QoS.Liveliness.LeaseDuration.Seconds))
	binary.BigEndian.PutUint32(livelinessPayload[8:12], ep.QoS.Liveliness.LeaseDuration.Fraction)
	params = append(params, wire.Parameter{ID: wire.PIDLiveliness, Payload: livelinessPayload})

	deadlinePayload := make([]byte, 8)
	binary.BigEndian.PutUint32(deadlinePayload[0:4], uint32(ep.QoS.Deadline.Period.Seconds))
	binary.BigEndian.PutUint32(deadlinePayload[4:8], ep.QoS.Deadline.Period.Fraction)
	params = append(params, wire.Parameter{ID: wire.PIDDeadline, Payload: deadlinePayload})

	historyPayload := make([]byte, 8)
	binary.BigEndian.PutUint32(historyPayload[0:4], uint32(ep.QoS.History.Kind))
	binary.BigEndian.PutUint32(historyPayload[4:8], uint32(ep.QoS.History.Depth))
	params = append(params, wire.Parameter{ID: wire.PIDHistory, Payload: historyPayload})

	for _, pattern := range ep.QoS.Partition.Patterns {
		params = append(params, wire.Parameter{ID: wire.PIDPartition, Payload: wire.MarshalPIDString(pattern, binary.BigEndian)})
	}

	for _, loc := range ep.UnicastLocators {
		payload, err := loc.MarshalBinary()
		if err != nil {
			return nil, err
		}
		params = append(params, wire.Parameter{ID: wire.PIDUnicastLocator, Payload: payload})
	}

	if enc != nil {
		params = enc.OrderEndpointParameters(params)
	}
	return wire.MarshalParameterList(params, binary.BigEndian)
}

// DecodeEndpointInfo parses the PID parameter list produced by
// EncodeEndpointInfo. role must be supplied by the caller: SEDP
// carries it implicitly via which builtin topic (publications vs
// subscriptions writer) the DATA arrived on, which this function
// doesn't see.
func DecodeEndpointInfo(buf []byte, role Role) (EndpointInfo, error) {
	params, err := wire.ParseParameterList(buf, binary.BigEndian)
	if err != nil {
		return EndpointInfo{}, err
	}

	ep := EndpointInfo{Role: role, QoS: qos.Default()}
	var sawGUID, sawParticipant bool

	for _, p := range params {
		switch p.ID {
		case wire.PIDEndpointGUID:
			guid, gerr := hdds.GUIDFromBytes(p.Payload)
			if gerr != nil {
				return EndpointInfo{}, gerr
			}
			ep.GUID = guid
			sawGUID = true
		case wire.PIDParticipantGUID:
			guid, gerr := hdds.GUIDFromBytes(p.Payload)
			if gerr != nil {
				return EndpointInfo{}, gerr
			}
			ep.ParticipantGUID = guid
			sawParticipant = true
		case wire.PIDTopicName:
			name, serr := wire.ParsePIDString(p.Payload, binary.BigEndian)
			if serr != nil {
				return EndpointInfo{}, serr
			}
			ep.TopicName = name
		case wire.PIDTypeName:
			name, serr := wire.ParsePIDString(p.Payload, binary.BigEndian)
			if serr != nil {
				return EndpointInfo{}, serr
			}
			ep.TypeName = name
		case wire.PIDReliability:
			if len(p.Payload) < 4 {
				continue
			}
			ep.QoS.Reliability.Kind = qos.ReliabilityKind(binary.BigEndian.Uint32(p.Payload))
		case wire.PIDDurability:
			if len(p.Payload) < 4 {
				continue
			}
			ep.QoS.Durability.Kind = qos.DurabilityKind(binary.BigEndian.Uint32(p.Payload))
		case wire.PIDOwnership:
			if len(p.Payload) < 4 {
				continue
			}
			ep.QoS.Ownership.Kind = qos.OwnershipKind(binary.BigEndian.Uint32(p.Payload))
		case wire.PIDLiveliness:
			if len(p.Payload) < 12 {
				continue
			}
			ep.QoS.Liveliness.Kind = qos.LivelinessKind(binary.BigEndian.Uint32(p.Payload[0:4]))
			ep.QoS.Liveliness.LeaseDuration = hdds.Duration{
				Seconds:  int32(binary.BigEndian.Uint32(p.Payload[4:8])),
				Fraction: binary.BigEndian.Uint32(p.Payload[8:12]),
			}
		case wire.PIDDeadline:
			if len(p.Payload) < 8 {
				continue
			}
			ep.QoS.Deadline.Period = hdds.Duration{
				Seconds:  int32(binary.BigEndian.Uint32(p.Payload[0:4])),
				Fraction: binary.BigEndian.Uint32(p.Payload[4:8]),
			}
		case wire.PIDHistory:
			if len(p.Payload) < 8 {
				continue
			}
			ep.QoS.History.Kind = qos.HistoryKind(binary.BigEndian.Uint32(p.Payload[0:4]))
			ep.QoS.History.Depth = int(binary.BigEndian.Uint32(p.Payload[4:8]))
		case wire.PIDPartition:
			pattern, serr := wire.ParsePIDString(p.Payload, binary.BigEndian)
			if serr != nil {
				return EndpointInfo{}, serr
			}
			ep.QoS.Partition.Patterns = append(ep.QoS.Partition.Patterns, pattern)
		case wire.PIDUnicastLocator:
			loc, lerr := hdds.UnmarshalLocator(p.Payload)
			if lerr != nil {
				return EndpointInfo{}, lerr
			}
			ep.UnicastLocators = append(ep.UnicastLocators, loc)
		default:
			// Unknown/vendor-private PIDs tolerated, per the decoder's
			// permissive contract.
		}
	}

	if !sawGUID || !sawParticipant {
		return EndpointInfo{}, fmt.Errorf("discovery: SEDP payload missing endpoint or participant GUID: %w", errs.ErrMalformedPID)
	}
	return ep, nil
}
