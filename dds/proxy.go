// SPDX-License-Identifier: MIT

package dds

import (
	"sync"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/reliability"
)

// ReaderProxy is a writer's view of one matched remote reader: where
// to send, whether reliably, and what that reader has acked so far.
// Kept as its own type rather than fields inlined into Writer, so a
// writer with many matched readers can track each independently.
type ReaderProxy struct {
	GUID     hdds.GUID
	Locator  hdds.Locator
	Reliable bool

	mu              sync.Mutex
	acnackDup       uint32 // last accepted ACKNACK count, for DupFilter-style rejection
	haveAcnackDup   bool
	unacked         *reliability.SeqRangeSet
	heartbeatFragSeq uint32
}

// NewReaderProxy builds a proxy for a newly matched reader. initial is
// the writer's current [first,last] sequence range, seeded into the
// unacked set so a late-joining reader is asked about everything the
// writer already holds.
func NewReaderProxy(guid hdds.GUID, loc hdds.Locator, reliable bool, first, last hdds.SequenceNumber) *ReaderProxy {
	p := &ReaderProxy{GUID: guid, Locator: loc, Reliable: reliable, unacked: reliability.NewSeqRangeSet()}
	if last.Valid() && last >= first {
		p.unacked.Add(reliability.NewSeqRange(first, last+1))
	}
	return p
}

// OnSend records that seq was just sent to this reader, unacked until
// an ACKNACK confirms it.
func (p *ReaderProxy) OnSend(seq hdds.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unacked.Add(reliability.SingleSeqRange(seq))
}

// OnAckNack folds a received ACKNACK into the proxy's unacked set:
// sequences below base are acked and removed; sequences named in the
// reader's missing-range report remain (or become) pending
// retransmission, and so do unacked sequences at or above base that it
// does not name. Returns false if count is not newer than the last
// ACKNACK processed (duplicate/reordered), in which case the caller
// should ignore it.
func (p *ReaderProxy) OnAckNack(count uint32, base hdds.SequenceNumber, missing []reliability.SeqRange) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.haveAcnackDup && count <= p.acnackDup {
		return false
	}
	p.acnackDup = count
	p.haveAcnackDup = true

	p.unacked.Remove(reliability.NewSeqRange(0, base))
	for _, r := range missing {
		p.unacked.Add(r)
	}
	return true
}

// PendingRetransmits returns the ranges this reader still needs, for
// the writer to resend from its history cache.
func (p *ReaderProxy) PendingRetransmits() []reliability.SeqRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]reliability.SeqRange(nil), p.unacked.Ranges()...)
}

// NextHeartbeatFragCount returns the next monotonic count for a
// HEARTBEAT_FRAG sent to this reader, mirroring the whole-sample
// HeartbeatScheduler's count field.
func (p *ReaderProxy) NextHeartbeatFragCount() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heartbeatFragSeq++
	return p.heartbeatFragSeq
}

// WriterProxy is a reader's view of one matched remote writer: gap
// tracking, NACK coalescing and fragment reassembly, each already its
// own type in the reliability package — WriterProxy just owns one
// instance of each per matched writer.
type WriterProxy struct {
	GUID     hdds.GUID
	Locator  hdds.Locator
	Reliable bool

	Gap  *reliability.GapTracker
	Nack *reliability.NackScheduler
	Frag *reliability.FragmentBuffer

	heartbeatDup    uint32
	haveHeartbeatDup bool
	nackFragSeq     uint32
	mu              sync.Mutex

	OwnershipStrength int32
}

// NewWriterProxy builds a proxy for a newly matched writer, with its
// own GapTracker and FragmentBuffer (bounded by fragCfg). Reliable
// proxies additionally get a NackScheduler coalescing retransmit
// requests via send.
func NewWriterProxy(guid hdds.GUID, loc hdds.Locator, reliable bool, nackWindow time.Duration, fragCfg reliability.FragmentBufferConfig, send func(reliability.AckNackRequest)) *WriterProxy {
	gap := reliability.NewGapTracker()
	wp := &WriterProxy{
		GUID:     guid,
		Locator:  loc,
		Reliable: reliable,
		Gap:      gap,
		Frag:     reliability.NewFragmentBuffer(fragCfg),
	}
	if reliable {
		wp.Nack = reliability.NewNackScheduler(nackWindow, gap, send)
	}
	return wp
}

// OnHeartbeat folds a received HEARTBEAT into the proxy: duplicate
// (non-increasing) counts are rejected per the reliability engine's
// monotonic-count contract.
func (w *WriterProxy) OnHeartbeat(count uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.haveHeartbeatDup && count <= w.heartbeatDup {
		return false
	}
	w.heartbeatDup = count
	w.haveHeartbeatDup = true
	return true
}

// NextNackFragCount returns the next monotonic count for a NACK_FRAG
// sent to this writer.
func (w *WriterProxy) NextNackFragCount() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nackFragSeq++
	return w.nackFragSeq
}
