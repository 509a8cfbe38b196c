// SPDX-License-Identifier: MIT

package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/config"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/transport/intraproc"
	"github.com/hdds-io/hdds/wire/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParticipant(locators ...hdds.Locator) ParticipantInfo {
	return ParticipantInfo{
		GUID:                hdds.NewParticipantGUID(hdds.NewGUIDPrefix()),
		LeaseDuration:       hdds.DurationFromStd(10 * time.Second),
		MetatrafficLocators: locators,
		VendorID:            hdds.VendorHDDS,
		LastSeen:            time.Now(),
	}
}

func TestParticipantDBExpiresStaleEntries(t *testing.T) {
	db := NewParticipantDB()
	p := newTestParticipant()
	p.LeaseDuration = hdds.DurationFromStd(time.Second)
	p.LastSeen = time.Now().Add(-10 * time.Second)
	db.OnSPDP(p)

	require.Equal(t, 1, db.Count())
	expired := db.ExpireStale(time.Now())
	assert.Len(t, expired, 1)
	assert.Equal(t, 0, db.Count())
}

func TestParticipantDBKeepsFreshEntries(t *testing.T) {
	db := NewParticipantDB()
	p := newTestParticipant()
	db.OnSPDP(p)

	expired := db.ExpireStale(time.Now())
	assert.Empty(t, expired)
	assert.Equal(t, 1, db.Count())
}

func TestParticipantDBOnSPDPReportsNewness(t *testing.T) {
	db := NewParticipantDB()
	p := newTestParticipant()
	assert.True(t, db.OnSPDP(p))
	assert.False(t, db.OnSPDP(p))
}

func TestTypeCompatibleNormalizesVendorConventions(t *testing.T) {
	assert.True(t, typeCompatible("IDL:Sensor", "Sensor"))
	assert.True(t, typeCompatible("pkg::msg::Sensor", "pkg::Sensor"))
	assert.True(t, typeCompatible("pkg/Sensor", "pkg::Sensor"))
	assert.False(t, typeCompatible("Sensor", "Actuator"))
}

func TestEndpointRegistryMatchesCompatibleEndpoints(t *testing.T) {
	var matched []MatchEvent
	reg := NewEndpointRegistry(func(e MatchEvent) { matched = append(matched, e) }, nil)

	writer := EndpointInfo{
		GUID:      hdds.GUID{Entity: hdds.EntityID{1}},
		Role:      RoleWriter,
		TopicName: "temperature",
		TypeName:  "Sensor",
		QoS:       qos.Default(),
	}
	reader := EndpointInfo{
		GUID:      hdds.GUID{Entity: hdds.EntityID{2}},
		Role:      RoleReader,
		TopicName: "temperature",
		TypeName:  "Sensor",
		QoS:       qos.Default(),
	}

	reg.Add(writer)
	reg.Add(reader)

	require.Len(t, matched, 1)
	assert.Equal(t, writer.GUID, matched[0].Writer.GUID)
	assert.Equal(t, reader.GUID, matched[0].Reader.GUID)
}

func TestEndpointRegistryRejectsIncompatibleReliability(t *testing.T) {
	var matched []MatchEvent
	reg := NewEndpointRegistry(func(e MatchEvent) { matched = append(matched, e) }, nil)

	bestEffortQoS := qos.Default()
	reliableQoS := qos.Default()
	reliableQoS.Reliability.Kind = qos.Reliable

	writer := EndpointInfo{GUID: hdds.GUID{Entity: hdds.EntityID{1}}, Role: RoleWriter, TopicName: "t", TypeName: "T", QoS: bestEffortQoS}
	reader := EndpointInfo{GUID: hdds.GUID{Entity: hdds.EntityID{2}}, Role: RoleReader, TopicName: "t", TypeName: "T", QoS: reliableQoS}

	reg.Add(writer)
	reg.Add(reader)

	assert.Empty(t, matched)
}

func TestEndpointRegistryRemoveFiresUnmatch(t *testing.T) {
	var unmatched []MatchEvent
	reg := NewEndpointRegistry(nil, func(e MatchEvent) { unmatched = append(unmatched, e) })

	writer := EndpointInfo{GUID: hdds.GUID{Entity: hdds.EntityID{1}}, Role: RoleWriter, TopicName: "t", TypeName: "T", QoS: qos.Default()}
	reader := EndpointInfo{GUID: hdds.GUID{Entity: hdds.EntityID{2}}, Role: RoleReader, TopicName: "t", TypeName: "T", QoS: qos.Default()}
	reg.Add(writer)
	reg.Add(reader)

	reg.Remove(writer.GUID)
	require.Len(t, unmatched, 1)
	assert.Equal(t, reader.GUID, unmatched[0].Reader.GUID)
}

func TestEncodeDecodeParticipantInfoRoundTrips(t *testing.T) {
	loc := hdds.NewUDPv4Locator(hdds.SPDPMulticastAddress, 7410)
	p := newTestParticipant(loc)

	buf, err := EncodeParticipantInfo(p, 0)
	require.NoError(t, err)

	decoded, err := DecodeParticipantInfo(buf, time.Now())
	require.NoError(t, err)
	assert.Equal(t, p.GUID, decoded.GUID)
	assert.Equal(t, p.VendorID, decoded.VendorID)
	require.Len(t, decoded.MetatrafficLocators, 1)
	assert.Equal(t, loc, decoded.MetatrafficLocators[0])
}

func TestEncodeDecodeEndpointInfoRoundTrips(t *testing.T) {
	ep := EndpointInfo{
		GUID:            hdds.GUID{Entity: hdds.EntityID{9}},
		ParticipantGUID: hdds.NewParticipantGUID(hdds.NewGUIDPrefix()),
		Role:            RoleWriter,
		TopicName:       "temperature",
		TypeName:        "Sensor",
		QoS:             qos.Default(),
	}
	ep.QoS.Partition.Patterns = []string{"lab-*"}

	buf, err := EncodeEndpointInfo(ep, dialect.NewEncoder(dialect.Select(hdds.VendorFastDDS)))
	require.NoError(t, err)

	decoded, err := DecodeEndpointInfo(buf, RoleWriter)
	require.NoError(t, err)
	assert.Equal(t, ep.GUID, decoded.GUID)
	assert.Equal(t, ep.ParticipantGUID, decoded.ParticipantGUID)
	assert.Equal(t, ep.TopicName, decoded.TopicName)
	assert.Equal(t, ep.TypeName, decoded.TypeName)
	assert.Equal(t, ep.QoS.Partition.Patterns, decoded.QoS.Partition.Patterns)
}

func TestTwoParticipantsDiscoverEachOtherOverIntraprocTransport(t *testing.T) {
	reg := intraproc.NewRegistry()
	trA := intraproc.New(reg, "__builtin_discovery__", intraproc.Config{Depth: 16})
	trB := intraproc.New(reg, "__builtin_discovery__", intraproc.Config{Depth: 16})
	defer trA.Close()
	defer trB.Close()

	cfg := config.Defaults()
	cfg.Discovery.SPDPPeriod = 20 * time.Millisecond
	cfg.Discovery.SPDPInitialBursts = 1
	cfg.Discovery.SPDPBurstInterval = 5 * time.Millisecond
	cfg.Discovery.LeaseTickPeriod = time.Hour

	selfA := newTestParticipant()
	selfB := newTestParticipant()

	dA := New(cfg, trA, selfA, nil, nil, nil)
	dB := New(cfg, trB, selfB, nil, nil, nil)
	defer dA.Close()
	defer dB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpReceive(ctx, trA, dA)
	go pumpReceive(ctx, trB, dB)

	require.Eventually(t, func() bool {
		return dA.ParticipantDB().Count() == 1 && dB.ParticipantDB().Count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := dA.ParticipantDB().Get(selfB.GUID.Prefix)
	assert.True(t, ok)
}

func pumpReceive(ctx context.Context, tr *intraproc.Transport, d *Discovery) {
	for {
		msg, _, err := tr.Receive(ctx)
		if err != nil {
			return
		}
		_ = d.OnReceive(msg)
	}
}
