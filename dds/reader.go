// SPDX-License-Identifier: MIT

package dds

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/config"
	"github.com/hdds-io/hdds/history"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/reliability"
	"github.com/hdds-io/hdds/transport"
	"github.com/hdds-io/hdds/wire"
	"github.com/sirupsen/logrus"
)

// Reader is the application-facing subscribing side of a topic. It
// owns the topic's ReceptionCache, one WriterProxy per matched
// writer, an optional ContentFilter, and a DeadlineMonitor watching
// each matched writer's liveliness.
type Reader struct {
	GUID   hdds.GUID
	Topic  string
	QoS    qos.QoS
	Filter ContentFilter

	transport  transport.Transport
	log        *logrus.Entry
	nackWindow time.Duration
	fragCfg    reliability.FragmentBufferConfig

	cache    *history.ReceptionCache
	deadline *history.DeadlineMonitor

	mu      sync.RWMutex
	writers map[hdds.GUID]*WriterProxy
}

// NewReader builds a Reader for topic under guid, receiving matched
// writers' DATA over tr. The deadline monitor starts immediately, per
// the history package's own-goroutine contract; a Deadline period of
// DurationInfinite (the qos.Default value) disables it.
func NewReader(guid hdds.GUID, topic string, q qos.QoS, tr transport.Transport, rc config.Reliability, filter ContentFilter, log *logrus.Entry) *Reader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if filter == nil {
		filter = AlwaysTrue{}
	}
	fragCfg := reliability.DefaultFragmentBufferConfig()
	if rc.MaxPendingGroups > 0 {
		fragCfg.MaxInFlight = rc.MaxPendingGroups
	}
	if rc.FragmentTimeout > 0 {
		fragCfg.Timeout = rc.FragmentTimeout
	}
	r := &Reader{
		GUID:       guid,
		Topic:      topic,
		QoS:        q,
		Filter:     filter,
		transport:  tr,
		log:        log,
		nackWindow: rc.NackResponseDelay,
		fragCfg:    fragCfg,
		cache:      history.NewReceptionCache(q.DestinationOrder.Kind, q.Ownership.Kind, q.History.Depth*boolToInt(q.History.Kind == qos.KeepLastKind)),
		writers:    make(map[hdds.GUID]*WriterProxy),
	}
	if !q.Deadline.Period.IsInfinite() {
		period := q.Deadline.Period.ToStdDuration()
		checkPeriod := period / 4
		if checkPeriod < 10*time.Millisecond {
			checkPeriod = 10 * time.Millisecond
		}
		r.deadline = history.NewDeadlineMonitor(period, checkPeriod, r.onDeadlineMissed, log.WithField("task", "deadline"))
	}
	return r
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *Reader) onDeadlineMissed(writer hdds.GUID) {
	r.log.WithField("writer", writer).Warn("requested_deadline_missed")
}

// AddMatchedWriter installs a proxy for a newly matched writer.
// strength is the writer's OwnershipStrength, meaningful only under
// Exclusive ownership.
func (r *Reader) AddMatchedWriter(guid hdds.GUID, loc hdds.Locator, reliable bool, strength int32) {
	wp := NewWriterProxy(guid, loc, reliable, r.nackWindow, r.fragCfg, func(req reliability.AckNackRequest) {
		r.sendAckNack(guid, req)
	})
	wp.OwnershipStrength = strength

	r.mu.Lock()
	r.writers[guid] = wp
	r.mu.Unlock()

	if r.deadline != nil {
		r.deadline.Touch(guid, time.Now())
	}
}

// RemoveMatchedWriter tears down a writer proxy, e.g. on SEDP
// disposal or lease expiry.
func (r *Reader) RemoveMatchedWriter(guid hdds.GUID) {
	r.mu.Lock()
	wp, ok := r.writers[guid]
	r.mu.Unlock()
	if !ok {
		return
	}
	if wp.Nack != nil {
		wp.Nack.Close()
	}
	if r.deadline != nil {
		r.deadline.Forget(guid)
	}
	r.mu.Lock()
	delete(r.writers, guid)
	r.mu.Unlock()
}

// OnData processes one received DATA submessage from writer, applying
// the content filter, folding the sequence into the writer's gap
// tracker, and — if it passes — inserting it into the reception
// cache. now is the reception timestamp; sourceTS, if non-zero, came
// from a preceding INFO_TS submessage.
func (r *Reader) OnData(writer hdds.GUID, data wire.Data, sourceTS, now time.Time) {
	r.mu.RLock()
	wp, ok := r.writers[writer]
	r.mu.RUnlock()
	if !ok {
		return
	}

	wp.Gap.OnReceive(data.WriterSN)
	if wp.Nack != nil {
		wp.Nack.Flush()
	}

	if r.deadline != nil {
		r.deadline.Touch(writer, now)
	}

	if !r.Filter.Evaluate(data.SerializedPayload) {
		return
	}

	if sourceTS.IsZero() {
		sourceTS = now
	}
	r.cache.Insert(history.Sample{
		Seq:         data.WriterSN,
		WriterGUID:  writer,
		SourceTS:    sourceTS,
		ReceptionTS: now,
		Payload:     data.SerializedPayload,
		Strength:    wp.OwnershipStrength,
	})
}

// OnDataFrag processes one received DATA_FRAG submessage from writer,
// feeding it into the writer proxy's FragmentBuffer. Once every
// fragment of the sample has arrived it is handled exactly like a
// whole DATA submessage; until then nothing is delivered.
func (r *Reader) OnDataFrag(writer hdds.GUID, frag wire.DataFrag, sourceTS, now time.Time) {
	r.mu.RLock()
	wp, ok := r.writers[writer]
	r.mu.RUnlock()
	if !ok {
		return
	}

	payload := wp.Frag.OnFragment(writer, frag.WriterSN, frag.FragmentStartingNum, frag.FragmentsInSubmessage,
		uint32(frag.FragmentSize), frag.DataSize, frag.Payload, now)
	if payload == nil {
		return
	}

	r.OnData(writer, wire.Data{
		ReaderEntity:      frag.ReaderEntity,
		WriterEntity:      frag.WriterEntity,
		WriterSN:          frag.WriterSN,
		SerializedPayload: payload,
	}, sourceTS, now)
}

// OnHeartbeatFrag processes a HEARTBEAT_FRAG, sending a NACK_FRAG for
// any fragment of the named sample still missing from the writer
// proxy's FragmentBuffer.
func (r *Reader) OnHeartbeatFrag(writer hdds.GUID, hb wire.HeartbeatFrag) {
	r.mu.RLock()
	wp, ok := r.writers[writer]
	r.mu.RUnlock()
	if !ok {
		return
	}

	missing := wp.Frag.MissingFragments(writer, hb.WriterSN)
	if len(missing) == 0 {
		return
	}
	r.sendNackFrag(writer, wp, hb.WriterSN, missing)
}

func (r *Reader) sendNackFrag(writer hdds.GUID, wp *WriterProxy, seq hdds.SequenceNumber, missing []uint32) {
	set := wire.NewSequenceNumberSet(hdds.SequenceNumber(1))
	for _, fragNum := range missing {
		set.Add(hdds.SequenceNumber(fragNum))
	}
	nf := wire.NackFrag{ReaderEntity: r.GUID.Entity, WriterEntity: writer.Entity, WriterSN: seq, FragmentNumberState: set, Count: wp.NextNackFragCount()}

	body := make([]byte, nf.MarshalSize())
	n, err := nf.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return
	}
	msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: r.GUID.Prefix}).
		Add(wire.KindNackFrag, 0, body[:n]).
		Finish()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = r.transport.Send(ctx, wp.Locator, msg)
}

// OnHeartbeat processes a HEARTBEAT from a matched writer, notifying
// its NackScheduler so a coalesced ACKNACK goes out within the
// configured window.
func (r *Reader) OnHeartbeat(writer hdds.GUID, hb wire.Heartbeat) {
	r.mu.RLock()
	wp, ok := r.writers[writer]
	r.mu.RUnlock()
	if !ok || !wp.OnHeartbeat(hb.Count) {
		return
	}
	if wp.Nack != nil {
		wp.Nack.OnHeartbeat(hb.Count)
	}
}

// OnGap processes a GAP from a matched writer, marking the named
// range permanently lost so the gap tracker's contiguous cursor can
// advance across it without waiting for a retransmit that will never
// come.
func (r *Reader) OnGap(writer hdds.GUID, gap wire.Gap) {
	r.mu.RLock()
	wp, ok := r.writers[writer]
	r.mu.RUnlock()
	if !ok {
		return
	}
	wp.Gap.MarkLost(reliability.NewSeqRange(gap.GapStart, gap.GapList.Base))
	for seq := range gap.GapList.Set {
		wp.Gap.MarkLost(reliability.SingleSeqRange(seq))
	}
}

func (r *Reader) sendAckNack(writer hdds.GUID, req reliability.AckNackRequest) {
	r.mu.RLock()
	wp, ok := r.writers[writer]
	r.mu.RUnlock()
	if !ok {
		return
	}

	set := wire.NewSequenceNumberSet(req.Base)
	for _, rg := range req.Missing {
		for seq := rg.Start; seq < rg.End; seq++ {
			set.Add(seq)
		}
	}
	ack := wire.AckNack{ReaderEntity: r.GUID.Entity, WriterEntity: writer.Entity, ReaderSNState: set, Count: req.Count, Final: req.FinalFlag}

	body := make([]byte, ack.MarshalSize())
	n, err := ack.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return
	}
	msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: r.GUID.Prefix}).
		Add(wire.KindAckNack, ack.AckNackFlags(true), body[:n]).
		Finish()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = r.transport.Send(ctx, wp.Locator, msg)
}

// Take drains and returns every sample currently ready for delivery,
// each paired with its SampleInfo.
func (r *Reader) Take() []TakenSample {
	samples := r.cache.Take()
	out := make([]TakenSample, 0, len(samples))
	for _, s := range samples {
		out = append(out, TakenSample{Payload: s.Payload, Info: SampleInfo{
			SourceTimestamp:    s.SourceTS,
			ReceptionTimestamp: s.ReceptionTS,
			WriterGUID:         s.WriterGUID,
			SampleState:        SampleNotRead,
			InstanceState:      InstanceAlive,
		}})
	}
	return out
}

// Read returns every sample currently ready for delivery without
// draining the cache.
func (r *Reader) Read() []TakenSample {
	samples := r.cache.Peek()
	out := make([]TakenSample, 0, len(samples))
	for _, s := range samples {
		out = append(out, TakenSample{Payload: s.Payload, Info: SampleInfo{
			SourceTimestamp:    s.SourceTS,
			ReceptionTimestamp: s.ReceptionTS,
			WriterGUID:         s.WriterGUID,
			SampleState:        SampleRead,
			InstanceState:      InstanceAlive,
		}})
	}
	return out
}

// Close stops the reader's background deadline monitor and any
// matched writer's NACK scheduler.
func (r *Reader) Close() error {
	if r.deadline != nil {
		r.deadline.Stop()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, wp := range r.writers {
		if wp.Nack != nil {
			wp.Nack.Close()
		}
	}
	return nil
}
