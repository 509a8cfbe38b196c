// SPDX-License-Identifier: MIT

package dds

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/config"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/reliability"
	"github.com/hdds-io/hdds/transport/intraproc"
	"github.com/hdds-io/hdds/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTestConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Discovery.SPDPPeriod = 20 * time.Millisecond
	cfg.Discovery.SPDPInitialBursts = 1
	cfg.Discovery.SPDPBurstInterval = 5 * time.Millisecond
	cfg.Discovery.LeaseTickPeriod = time.Hour
	cfg.Reliability.HeartbeatPeriod = 20 * time.Millisecond
	cfg.Reliability.NackResponseDelay = 5 * time.Millisecond
	return cfg
}

func pumpParticipant(ctx context.Context, tr *intraproc.Transport, p *Participant) {
	for {
		msg, _, err := tr.Receive(ctx)
		if err != nil {
			return
		}
		_ = p.OnReceive(msg)
	}
}

func TestWriterReaderDeliverReliableSamplesEndToEnd(t *testing.T) {
	reg := intraproc.NewRegistry()
	trA := intraproc.New(reg, "domain0", intraproc.Config{Depth: 64})
	trB := intraproc.New(reg, "domain0", intraproc.Config{Depth: 64})
	defer trA.Close()
	defer trB.Close()

	cfg := fastTestConfig()
	pA := NewParticipant(cfg, trA, nil)
	pB := NewParticipant(cfg, trB, nil)
	defer pA.Close()
	defer pB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpParticipant(ctx, trA, pA)
	go pumpParticipant(ctx, trB, pB)

	reliableQoS := qos.Default()
	reliableQoS.Reliability.Kind = qos.Reliable

	writer := pA.CreateWriter("temperature", "Sensor", reliableQoS)
	reader := pB.CreateReader("temperature", "Sensor", reliableQoS, nil)

	for i := 0; i < 20; i++ {
		_, err := writer.Write(context.Background(), []byte("sample"))
		require.NoError(t, err)
	}

	var taken []TakenSample
	require.Eventually(t, func() bool {
		taken = append(taken, reader.Take()...)
		return len(taken) == 20
	}, 2*time.Second, 10*time.Millisecond)

	for _, s := range taken {
		assert.Equal(t, []byte("sample"), s.Payload)
		assert.Equal(t, writer.GUID, s.Info.WriterGUID)
	}
}

func TestWriterReaderBestEffortDeliversSamples(t *testing.T) {
	reg := intraproc.NewRegistry()
	trA := intraproc.New(reg, "domain1", intraproc.Config{Depth: 64})
	trB := intraproc.New(reg, "domain1", intraproc.Config{Depth: 64})
	defer trA.Close()
	defer trB.Close()

	cfg := fastTestConfig()
	pA := NewParticipant(cfg, trA, nil)
	pB := NewParticipant(cfg, trB, nil)
	defer pA.Close()
	defer pB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpParticipant(ctx, trA, pA)
	go pumpParticipant(ctx, trB, pB)

	writer := pA.CreateWriter("altitude", "Sensor", qos.Default())
	reader := pB.CreateReader("altitude", "Sensor", qos.Default(), nil)

	_, err := writer.Write(context.Background(), []byte("up"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(reader.Read()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLateJoiningReaderReceivesBackfillViaHeartbeat(t *testing.T) {
	reg := intraproc.NewRegistry()
	trA := intraproc.New(reg, "domain2", intraproc.Config{Depth: 64})
	trB := intraproc.New(reg, "domain2", intraproc.Config{Depth: 64})
	defer trA.Close()
	defer trB.Close()

	cfg := fastTestConfig()
	pA := NewParticipant(cfg, trA, nil)
	pB := NewParticipant(cfg, trB, nil)
	defer pA.Close()
	defer pB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpParticipant(ctx, trA, pA)
	go pumpParticipant(ctx, trB, pB)

	reliableQoS := qos.Default()
	reliableQoS.Reliability.Kind = qos.Reliable
	reliableQoS.History.Kind = qos.KeepAllKind

	writer := pA.CreateWriter("pressure", "Sensor", reliableQoS)

	// Publish before any reader exists: nothing to unicast to yet, but
	// every sample stays in the writer's history cache.
	for i := 0; i < 5; i++ {
		_, err := writer.Write(context.Background(), []byte("early"))
		require.NoError(t, err)
	}

	// AddMatchedReader seeds the writer's proxy for the late-joining
	// reader with the writer's current [first,last] range as unacked, so
	// the writer resends everything already held once that reader's first
	// ACKNACK arrives.
	reader := pB.CreateReader("pressure", "Sensor", reliableQoS, nil)

	var taken []TakenSample
	require.Eventually(t, func() bool {
		taken = append(taken, reader.Take()...)
		return len(taken) == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWriterFragmentsOversizedSampleAndReaderReassembles(t *testing.T) {
	reg := intraproc.NewRegistry()
	trA := intraproc.New(reg, "domain3", intraproc.Config{Depth: 256})
	trB := intraproc.New(reg, "domain3", intraproc.Config{Depth: 256})
	defer trA.Close()
	defer trB.Close()

	cfg := fastTestConfig()
	require.Equal(t, 1300, cfg.FragmentSize)
	pA := NewParticipant(cfg, trA, nil)
	pB := NewParticipant(cfg, trB, nil)
	defer pA.Close()
	defer pB.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pumpParticipant(ctx, trA, pA)
	go pumpParticipant(ctx, trB, pB)

	reliableQoS := qos.Default()
	reliableQoS.Reliability.Kind = qos.Reliable

	writer := pA.CreateWriter("lidar", "PointCloud", reliableQoS)
	reader := pB.CreateReader("lidar", "PointCloud", reliableQoS, nil)

	payload := make([]byte, 100_000)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.GreaterOrEqual(t, fragmentCount(len(payload), cfg.FragmentSize), uint32(77))

	_, err := writer.Write(context.Background(), payload)
	require.NoError(t, err)

	var taken []TakenSample
	require.Eventually(t, func() bool {
		taken = append(taken, reader.Take()...)
		return len(taken) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, payload, taken[0].Payload)
}

func TestExclusiveOwnershipReaderKeepsStrongestWriter(t *testing.T) {
	exclusiveQoS := qos.Default()
	exclusiveQoS.Ownership.Kind = qos.Exclusive

	reader := NewReader(testGUID(1), "t", exclusiveQoS, noopTransport{}, config.Defaults().Reliability, nil, nil)
	weakWriter := testGUID(2)
	strongWriter := testGUID(3)

	reader.AddMatchedWriter(strongWriter, hdds.Locator{}, false, 10)
	reader.AddMatchedWriter(weakWriter, hdds.Locator{}, false, 1)

	reader.OnData(strongWriter, fakeData(1, "strong"), time.Time{}, time.Now())
	reader.OnData(weakWriter, fakeData(1, "weak"), time.Time{}, time.Now())

	taken := reader.Take()
	require.Len(t, taken, 1)
	assert.Equal(t, []byte("strong"), taken[0].Payload)
}

func TestReaderProxyContentFilterDropsSample(t *testing.T) {
	filter := rejectAll{}
	r := NewReader(testGUID(1), "t", qos.Default(), noopTransport{}, config.Defaults().Reliability, filter, nil)
	r.AddMatchedWriter(testGUID(2), hdds.Locator{}, false, 0)

	r.OnData(testGUID(2), fakeData(1, "x"), time.Time{}, time.Now())
	assert.Empty(t, r.Take())
}

func TestWriterProxyRejectsDuplicateHeartbeatCount(t *testing.T) {
	wp := NewWriterProxy(testGUID(1), hdds.Locator{}, true, 5*time.Millisecond, reliability.DefaultFragmentBufferConfig(), func(reliability.AckNackRequest) {})
	assert.True(t, wp.OnHeartbeat(1))
	assert.True(t, wp.OnHeartbeat(2))
	assert.False(t, wp.OnHeartbeat(2))
	assert.False(t, wp.OnHeartbeat(1))
}

func TestReaderProxyPendingRetransmitsTracksAckNack(t *testing.T) {
	p := NewReaderProxy(testGUID(1), hdds.Locator{}, true, hdds.SeqNumFromParts(0, 1), hdds.SeqNumFromParts(0, 5))
	assert.NotEmpty(t, p.PendingRetransmits())

	ok := p.OnAckNack(1, hdds.SeqNumFromParts(0, 6), nil)
	assert.True(t, ok)
	assert.Empty(t, p.PendingRetransmits())

	ok = p.OnAckNack(1, hdds.SeqNumFromParts(0, 6), nil)
	assert.False(t, ok, "duplicate count must be rejected")
}

func TestOnAckNackSendsGapForEvictedSequenceAndResendsTheRest(t *testing.T) {
	capture := &capturingTransport{}
	reliableQoS := qos.Default()
	reliableQoS.Reliability.Kind = qos.Reliable
	reliableQoS.History.Kind = qos.KeepLastKind
	reliableQoS.History.Depth = 2

	writer := NewWriter(testGUID(1), "t", reliableQoS, capture, config.Defaults().Reliability, 0, nil)
	defer writer.Close()
	readerGUID := testGUID(2)
	writer.AddMatchedReader(readerGUID, hdds.Locator{}, true)

	for i := uint32(1); i <= 3; i++ {
		_, err := writer.Write(context.Background(), []byte("s"))
		require.NoError(t, err)
	}
	// Depth 2 evicted seq 1; it is still unacked from the reader's point
	// of view, so a NACK naming it must produce a GAP rather than silence.

	set := wire.NewSequenceNumberSet(hdds.SeqNumFromParts(0, 1))
	for seq := uint32(1); seq <= 3; seq++ {
		set.Add(hdds.SeqNumFromParts(0, seq))
	}
	ack := wire.AckNack{ReaderEntity: readerGUID.Entity, WriterEntity: writer.GUID.Entity, ReaderSNState: set, Count: 1}
	require.NoError(t, writer.OnAckNack(context.Background(), readerGUID, ack))

	var sawGap, sawData bool
	for _, msg := range capture.sent {
		_, subs, err := wire.ParseMessage(msg)
		require.NoError(t, err)
		for _, sub := range subs {
			switch sub.Kind {
			case wire.KindGap:
				gap, _, err := wire.UnmarshalGap(sub.Body, binary.LittleEndian)
				require.NoError(t, err)
				assert.True(t, gap.GapStart == hdds.SeqNumFromParts(0, 1) || gap.GapList.Contains(hdds.SeqNumFromParts(0, 1)))
				sawGap = true
			case wire.KindData:
				sawData = true
			}
		}
	}
	assert.True(t, sawGap, "expected a GAP for the evicted sequence")
	assert.True(t, sawData, "expected the still-cached sequences to be resent")
}

type rejectAll struct{}

func (rejectAll) Evaluate([]byte) bool { return false }

// capturingTransport records every message handed to Send, for tests
// that need to inspect the wire traffic a Writer/Reader produced.
type capturingTransport struct {
	mu   sync.Mutex
	sent [][]byte
}

func (c *capturingTransport) Send(ctx context.Context, dst hdds.Locator, msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), msg...))
	return nil
}
func (c *capturingTransport) Receive(ctx context.Context) ([]byte, hdds.Locator, error) {
	<-ctx.Done()
	return nil, hdds.Locator{}, ctx.Err()
}
func (c *capturingTransport) LocalLocators() []hdds.Locator { return nil }
func (c *capturingTransport) Close() error                  { return nil }

type noopTransport struct{}

func (noopTransport) Send(ctx context.Context, dst hdds.Locator, msg []byte) error { return nil }
func (noopTransport) Receive(ctx context.Context) ([]byte, hdds.Locator, error) {
	<-ctx.Done()
	return nil, hdds.Locator{}, ctx.Err()
}
func (noopTransport) LocalLocators() []hdds.Locator { return nil }
func (noopTransport) Close() error                  { return nil }

func testGUID(b byte) hdds.GUID {
	return hdds.GUID{Entity: hdds.EntityID{0, 0, 0, b}}
}

func fakeData(seq uint32, payload string) wire.Data {
	return wire.Data{
		WriterSN:          hdds.SeqNumFromParts(0, seq),
		SerializedPayload: []byte(payload),
	}
}
