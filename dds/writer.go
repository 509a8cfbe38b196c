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
	"github.com/hdds-io/hdds/metrics"
	"github.com/hdds-io/hdds/qos"
	"github.com/hdds-io/hdds/reliability"
	"github.com/hdds-io/hdds/transport"
	"github.com/hdds-io/hdds/wire"
	"github.com/sirupsen/logrus"
)

// Writer is the application-facing publishing side of a topic. It
// owns the topic's HistoryCache, a monotonic sequence generator, one
// ReaderProxy per matched reliable-or-best-effort reader, and a
// HeartbeatScheduler keeping quiet readers shaken loose.
type Writer struct {
	GUID  hdds.GUID
	Topic string
	QoS   qos.QoS

	transport    transport.Transport
	log          *logrus.Entry
	fragmentSize int

	seq       *reliability.SeqGen
	cache     *history.HistoryCache
	heartbeat *reliability.HeartbeatScheduler

	mu      sync.RWMutex
	readers map[hdds.GUID]*ReaderProxy
}

// NewWriter builds a Writer for topic under guid, sending matched
// readers' DATA over tr. The heartbeat scheduler starts immediately,
// per HeartbeatScheduler's always-own-goroutine contract. A payload
// larger than fragmentSize is split into DATA_FRAG submessages rather
// than sent whole; fragmentSize <= 0 falls back to config.Defaults()'s
// 1300.
func NewWriter(guid hdds.GUID, topic string, q qos.QoS, tr transport.Transport, rc config.Reliability, fragmentSize int, log *logrus.Entry) *Writer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if fragmentSize <= 0 {
		fragmentSize = 1300
	}
	w := &Writer{
		GUID:         guid,
		Topic:        topic,
		QoS:          q,
		transport:    tr,
		log:          log,
		fragmentSize: fragmentSize,
		seq:          reliability.NewSeqGen(),
		cache:        history.NewHistoryCache(topic, q.History, q.ResourceLimits),
		readers:      make(map[hdds.GUID]*ReaderProxy),
	}
	w.heartbeat = reliability.NewHeartbeatScheduler(rc.HeartbeatPeriod, w.sendHeartbeat, log.WithField("task", "heartbeat"))
	return w
}

// AddMatchedReader installs a proxy for a newly matched reader,
// seeding its unacked set with everything the writer currently holds.
func (w *Writer) AddMatchedReader(guid hdds.GUID, loc hdds.Locator, reliable bool) {
	first, last := w.cache.Range()
	proxy := NewReaderProxy(guid, loc, reliable, first, last)
	w.mu.Lock()
	w.readers[guid] = proxy
	w.mu.Unlock()
}

// RemoveMatchedReader drops a reader proxy, e.g. on SEDP disposal or
// lease expiry.
func (w *Writer) RemoveMatchedReader(guid hdds.GUID) {
	w.mu.Lock()
	delete(w.readers, guid)
	w.mu.Unlock()
}

// Write takes payload as already-serialized bytes, assigns it the next sequence number,
// inserts it into the history cache, and sends it to every matched
// reader — reliably (tracked as unacked until ACKNACK confirms it) or
// best-effort, per each reader's negotiated reliability. Per spec, a
// Reliable writer whose matched readers can't keep up still accepts
// the write; back-pressure is a future max_blocking_time concern, not
// enforced at this layer yet.
func (w *Writer) Write(ctx context.Context, payload []byte) (hdds.SequenceNumber, error) {
	seq := w.seq.Next()
	if err := w.cache.Insert(seq, history.CacheEntry{Payload: payload, Timestamp: time.Now()}); err != nil {
		return hdds.SeqNumZero, err
	}

	first, last := w.cache.Range()
	w.heartbeat.UpdateRange(first, last)

	w.mu.RLock()
	readers := make([]*ReaderProxy, 0, len(w.readers))
	for _, p := range w.readers {
		readers = append(readers, p)
	}
	w.mu.RUnlock()

	for _, p := range readers {
		if err := w.sendSampleTo(ctx, p, seq, payload); err != nil {
			w.log.WithError(err).WithField("reader", p.GUID).Warn("failed to send sample")
			continue
		}
		if p.Reliable {
			p.OnSend(seq)
		}
	}
	return seq, nil
}

// sendSampleTo sends payload to p as a single DATA submessage, or as a
// run of DATA_FRAG submessages followed by one HEARTBEAT_FRAG when it
// exceeds the writer's fragment size.
func (w *Writer) sendSampleTo(ctx context.Context, p *ReaderProxy, seq hdds.SequenceNumber, payload []byte) error {
	if len(payload) <= w.fragmentSize {
		return w.sendDataTo(ctx, p, seq, payload)
	}
	return w.sendFragmentedTo(ctx, p, seq, payload)
}

func (w *Writer) sendDataTo(ctx context.Context, p *ReaderProxy, seq hdds.SequenceNumber, payload []byte) error {
	data := wire.Data{
		ReaderEntity:      p.GUID.Entity,
		WriterEntity:      w.GUID.Entity,
		WriterSN:          seq,
		Encapsulation:     wire.EncapsulationHeader{Kind: wire.EncapsulationCDRLE},
		SerializedPayload: payload,
	}
	body := make([]byte, data.MarshalSize())
	flags, n, err := data.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return err
	}

	msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: w.GUID.Prefix}).
		Add(wire.KindData, flags, body[:n]).
		Finish()
	if err != nil {
		return err
	}
	return w.transport.Send(ctx, p.Locator, msg)
}

// sendFragmentedTo splits payload into w.fragmentSize chunks, sending
// one DATA_FRAG submessage per chunk followed by a HEARTBEAT_FRAG
// announcing the final fragment number, so a reader missing any of
// them can NACK_FRAG specifically instead of waiting for a full
// ACKNACK/retransmit round.
func (w *Writer) sendFragmentedTo(ctx context.Context, p *ReaderProxy, seq hdds.SequenceNumber, payload []byte) error {
	total := fragmentCount(len(payload), w.fragmentSize)
	for i := uint32(0); i < total; i++ {
		if err := w.sendOneFragment(ctx, p, seq, payload, i+1, total); err != nil {
			return err
		}
	}
	return w.sendHeartbeatFragTo(ctx, p, seq, total)
}

func fragmentCount(payloadLen, fragmentSize int) uint32 {
	return uint32((payloadLen + fragmentSize - 1) / fragmentSize)
}

func (w *Writer) sendOneFragment(ctx context.Context, p *ReaderProxy, seq hdds.SequenceNumber, payload []byte, fragmentNum, total uint32) error {
	start := int(fragmentNum-1) * w.fragmentSize
	end := start + w.fragmentSize
	if end > len(payload) {
		end = len(payload)
	}
	frag := wire.DataFrag{
		ReaderEntity:          p.GUID.Entity,
		WriterEntity:          w.GUID.Entity,
		WriterSN:              seq,
		FragmentStartingNum:   fragmentNum,
		FragmentsInSubmessage: 1,
		FragmentSize:          uint16(w.fragmentSize),
		DataSize:              uint32(len(payload)),
		Payload:               payload[start:end],
	}
	body := make([]byte, frag.MarshalSize())
	n, err := frag.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: w.GUID.Prefix}).
		Add(wire.KindDataFrag, 0, body[:n]).
		Finish()
	if err != nil {
		return err
	}
	return w.transport.Send(ctx, p.Locator, msg)
}

func (w *Writer) sendHeartbeatFragTo(ctx context.Context, p *ReaderProxy, seq hdds.SequenceNumber, lastFragment uint32) error {
	hbf := wire.HeartbeatFrag{
		ReaderEntity:    p.GUID.Entity,
		WriterEntity:    w.GUID.Entity,
		WriterSN:        seq,
		LastFragmentNum: lastFragment,
		Count:           p.NextHeartbeatFragCount(),
	}
	body := make([]byte, heartbeatFragMarshalSize())
	n, err := hbf.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: w.GUID.Prefix}).
		Add(wire.KindHeartbeatFrag, 0, body[:n]).
		Finish()
	if err != nil {
		return err
	}
	return w.transport.Send(ctx, p.Locator, msg)
}

// heartbeatFragMarshalSize is HeartbeatFrag's fixed wire length: it
// has no MarshalSize method of its own since, unlike Data/Gap, it
// carries no variable-length tail.
func heartbeatFragMarshalSize() int {
	return 4 + 4 + 8 + 4 + 4
}

func (w *Writer) sendHeartbeat(r reliability.HeartbeatRange) {
	w.mu.RLock()
	readers := make([]*ReaderProxy, 0, len(w.readers))
	for _, p := range w.readers {
		if p.Reliable {
			readers = append(readers, p)
		}
	}
	w.mu.RUnlock()

	hb := wire.Heartbeat{WriterEntity: w.GUID.Entity, FirstSeq: r.FirstSeq, LastSeq: r.LastSeq, Count: r.Count}
	body := make([]byte, hb.MarshalSize())

	for _, p := range readers {
		hb.ReaderEntity = p.GUID.Entity
		n, err := hb.MarshalTo(body, binary.LittleEndian)
		if err != nil {
			continue
		}
		msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: w.GUID.Prefix}).
			Add(wire.KindHeartbeat, hb.HeartbeatFlags(true), body[:n]).
			Finish()
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_ = w.transport.Send(ctx, p.Locator, msg)
		cancel()
	}
}

// OnAckNack processes an ACKNACK received from a matched reader,
// retransmitting anything it still reports missing from the history
// cache. A requested sequence no longer held — aged out of the cache
// under KeepLast or a byte quota — is folded into a single coalesced
// GAP instead, so the reader can mark it permanently lost and move its
// contiguous cursor past it rather than re-requesting it forever.
func (w *Writer) OnAckNack(ctx context.Context, readerGUID hdds.GUID, ack wire.AckNack) error {
	w.mu.RLock()
	p, ok := w.readers[readerGUID]
	w.mu.RUnlock()
	if !ok {
		return nil
	}

	base := ack.ReaderSNState.Base
	missing := rangesFromBitmap(ack.ReaderSNState)
	if !p.OnAckNack(ack.Count, base, missing) {
		return nil
	}

	var gapRanges []reliability.SeqRange
	for _, r := range p.PendingRetransmits() {
		for seq := r.Start; seq < r.End; seq++ {
			entry, ok := w.cache.Get(seq)
			if !ok {
				gapRanges = append(gapRanges, reliability.SingleSeqRange(seq))
				continue
			}
			if err := w.sendSampleTo(ctx, p, seq, entry.Payload); err != nil {
				return err
			}
			metrics.ReliabilityRetransmits.WithLabelValues(w.Topic).Inc()
		}
	}

	gapRanges = append(gapRanges, w.cache.PendingGaps()...)
	if len(gapRanges) > 0 {
		if err := w.sendGapTo(ctx, p, gapRanges); err != nil {
			return err
		}
	}
	return nil
}

// sendGapTo coalesces ranges into one GAP submessage naming every
// sequence in them, via a bitmap anchored at the lowest one rather
// than relying on GapStart/GapList's own contiguous-prefix shortcut —
// ranges reported across multiple ACKNACK rounds are rarely adjacent.
func (w *Writer) sendGapTo(ctx context.Context, p *ReaderProxy, ranges []reliability.SeqRange) error {
	merged := reliability.NewSeqRangeSet()
	for _, r := range ranges {
		merged.Add(r)
	}
	coalesced := merged.Ranges()
	if len(coalesced) == 0 {
		return nil
	}

	gapStart := coalesced[0].Start
	set := wire.NewSequenceNumberSet(gapStart)
	for _, r := range coalesced {
		for seq := r.Start; seq < r.End; seq++ {
			set.Add(seq)
		}
	}

	gap := wire.Gap{ReaderEntity: p.GUID.Entity, WriterEntity: w.GUID.Entity, GapStart: gapStart, GapList: set}
	body := make([]byte, gap.MarshalSize())
	n, err := gap.MarshalTo(body, binary.LittleEndian)
	if err != nil {
		return err
	}
	msg, err := wire.NewMessageBuilder(wire.Header{Version: wire.ProtocolVersion24, VendorID: hdds.VendorHDDS, GUIDPrefix: w.GUID.Prefix}).
		Add(wire.KindGap, 0, body[:n]).
		Finish()
	if err != nil {
		return err
	}
	return w.transport.Send(ctx, p.Locator, msg)
}

// OnNackFrag processes a NACK_FRAG naming fragments of one in-flight
// sample a reader is still missing, retransmitting just those
// fragments from the history cache rather than the whole sample.
func (w *Writer) OnNackFrag(ctx context.Context, readerGUID hdds.GUID, nf wire.NackFrag) error {
	w.mu.RLock()
	p, ok := w.readers[readerGUID]
	w.mu.RUnlock()
	if !ok {
		return nil
	}

	entry, ok := w.cache.Get(nf.WriterSN)
	if !ok {
		return w.sendGapTo(ctx, p, []reliability.SeqRange{reliability.SingleSeqRange(nf.WriterSN)})
	}

	total := fragmentCount(len(entry.Payload), w.fragmentSize)
	for fragNum := range nf.FragmentNumberState.Set {
		n := uint32(fragNum)
		if n < 1 || n > total {
			continue
		}
		if err := w.sendOneFragment(ctx, p, nf.WriterSN, entry.Payload, n, total); err != nil {
			return err
		}
		metrics.ReliabilityRetransmits.WithLabelValues(w.Topic).Inc()
	}
	return nil
}

// rangesFromBitmap converts an ACKNACK's bitmap — marking sequence
// numbers the reader is requesting retransmission of — into single-
// element ranges the ReaderProxy's unacked set can merge in.
func rangesFromBitmap(set *wire.SequenceNumberSet) []reliability.SeqRange {
	var ranges []reliability.SeqRange
	for seq := range set.Set {
		ranges = append(ranges, reliability.SingleSeqRange(seq))
	}
	return ranges
}

// Close stops the writer's background heartbeat scheduler.
func (w *Writer) Close() error {
	w.heartbeat.Stop()
	return nil
}
