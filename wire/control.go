package wire

import (
	"fmt"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
)

// Heartbeat carries a writer's advertised sequence range:
// {first_seq, last_seq, count}. If last_seq < first_seq it is a probe
// ("do you have anything?"); the final flag tells readers that no
// further heartbeats are required to keep the liveliness loop going.
type Heartbeat struct {
	ReaderEntity hdds.EntityID
	WriterEntity hdds.EntityID
	FirstSeq     hdds.SequenceNumber
	LastSeq      hdds.SequenceNumber
	Count        uint32
	Final        bool
	Liveliness   bool
}

// IsProbe reports whether this heartbeat is a liveliness probe rather
// than a real advertisement.
func (h Heartbeat) IsProbe() bool {
	return h.LastSeq < h.FirstSeq
}

const heartbeatBodyLength = 4 + 4 + 8 + 8 + 4

// MarshalTo encodes the HEARTBEAT submessage body into buf.
func (h Heartbeat) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	if len(buf) < heartbeatBodyLength {
		return 0, fmt.Errorf("wire: heartbeat body needs %d bytes: %w", heartbeatBodyLength, errs.ErrBufferTooSmall)
	}
	copy(buf[0:4], h.ReaderEntity[:])
	copy(buf[4:8], h.WriterEntity[:])
	order.PutUint32(buf[8:12], uint32(h.FirstSeq.High()))
	order.PutUint32(buf[12:16], h.FirstSeq.Low())
	order.PutUint32(buf[16:20], uint32(h.LastSeq.High()))
	order.PutUint32(buf[20:24], h.LastSeq.Low())
	order.PutUint32(buf[24:28], h.Count)
	return heartbeatBodyLength, nil
}

// UnmarshalHeartbeat parses a HEARTBEAT submessage body.
func UnmarshalHeartbeat(buf []byte, order byteOrderer, flags uint8) (Heartbeat, int, error) {
	if len(buf) < heartbeatBodyLength {
		return Heartbeat{}, 0, fmt.Errorf("wire: heartbeat body needs %d bytes, got %d: %w",
			heartbeatBodyLength, len(buf), errs.ErrBadSubmessage)
	}
	var h Heartbeat
	copy(h.ReaderEntity[:], buf[0:4])
	copy(h.WriterEntity[:], buf[4:8])
	h.FirstSeq = hdds.SeqNumFromParts(int32(order.Uint32(buf[8:12])), order.Uint32(buf[12:16]))
	h.LastSeq = hdds.SeqNumFromParts(int32(order.Uint32(buf[16:20])), order.Uint32(buf[20:24]))
	h.Count = order.Uint32(buf[24:28])
	h.Final = flags&heartbeatFlagFinal != 0
	h.Liveliness = flags&heartbeatFlagLiveliness != 0
	return h, heartbeatBodyLength, nil
}

// HEARTBEAT-specific flag bits (beyond FlagEndianness).
const (
	heartbeatFlagFinal      uint8 = 1 << 1
	heartbeatFlagLiveliness uint8 = 1 << 2
)

// HeartbeatFlags packs h's Final/Liveliness bits alongside the
// endianness bit for the submessage header.
func (h Heartbeat) HeartbeatFlags(littleEndian bool) uint8 {
	var f uint8
	if littleEndian {
		f |= FlagEndianness
	}
	if h.Final {
		f |= heartbeatFlagFinal
	}
	if h.Liveliness {
		f |= heartbeatFlagLiveliness
	}
	return f
}

// AckNack coalesces a reader's missing-range report:
// {bitmap_base, num_bits, bitmap, count, final_flag}.
type AckNack struct {
	ReaderEntity hdds.EntityID
	WriterEntity hdds.EntityID
	ReaderSNState *SequenceNumberSet
	Count         uint32
	Final         bool
}

// MarshalSize returns the wire length of the ACKNACK body.
func (a AckNack) MarshalSize() int {
	return 4 + 4 + a.ReaderSNState.MarshalSize() + 4
}

// MarshalTo encodes the ACKNACK submessage body into buf.
func (a AckNack) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	need := a.MarshalSize()
	if len(buf) < need {
		return 0, fmt.Errorf("wire: acknack body needs %d bytes: %w", need, errs.ErrBufferTooSmall)
	}
	copy(buf[0:4], a.ReaderEntity[:])
	copy(buf[4:8], a.WriterEntity[:])
	n, err := a.ReaderSNState.MarshalTo(buf[8:], order)
	if err != nil {
		return 0, err
	}
	order.PutUint32(buf[8+n:12+n], a.Count)
	return 8 + n + 4, nil
}

// UnmarshalAckNack parses an ACKNACK submessage body.
func UnmarshalAckNack(buf []byte, order byteOrderer, flags uint8) (AckNack, int, error) {
	if len(buf) < 8 {
		return AckNack{}, 0, fmt.Errorf("wire: acknack body needs at least 8 bytes: %w", errs.ErrBadSubmessage)
	}
	var a AckNack
	copy(a.ReaderEntity[:], buf[0:4])
	copy(a.WriterEntity[:], buf[4:8])
	set, n, err := UnmarshalSequenceNumberSet(buf[8:], order)
	if err != nil {
		return AckNack{}, 0, err
	}
	a.ReaderSNState = set
	off := 8 + n
	if len(buf) < off+4 {
		return AckNack{}, 0, fmt.Errorf("wire: acknack missing count field: %w", errs.ErrBadSubmessage)
	}
	a.Count = order.Uint32(buf[off : off+4])
	a.Final = flags&ackNackFlagFinal != 0
	return a, off + 4, nil
}

const ackNackFlagFinal uint8 = 1 << 1

// AckNackFlags packs the Final bit alongside endianness.
func (a AckNack) AckNackFlags(littleEndian bool) uint8 {
	var f uint8
	if littleEndian {
		f |= FlagEndianness
	}
	if a.Final {
		f |= ackNackFlagFinal
	}
	return f
}

// Gap marks a range of sequences as permanently unavailable: the
// range is exclusive [gap_start, gap_list_base) plus a bitmap
// extending it; every listed sequence is irrecoverable.
type Gap struct {
	ReaderEntity hdds.EntityID
	WriterEntity hdds.EntityID
	GapStart     hdds.SequenceNumber
	GapList      *SequenceNumberSet
}

// MarshalSize returns the wire length of the GAP body.
func (g Gap) MarshalSize() int {
	return 4 + 4 + 8 + g.GapList.MarshalSize()
}

// MarshalTo encodes the GAP submessage body into buf.
func (g Gap) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	need := g.MarshalSize()
	if len(buf) < need {
		return 0, fmt.Errorf("wire: gap body needs %d bytes: %w", need, errs.ErrBufferTooSmall)
	}
	copy(buf[0:4], g.ReaderEntity[:])
	copy(buf[4:8], g.WriterEntity[:])
	order.PutUint32(buf[8:12], uint32(g.GapStart.High()))
	order.PutUint32(buf[12:16], g.GapStart.Low())
	n, err := g.GapList.MarshalTo(buf[16:], order)
	if err != nil {
		return 0, err
	}
	return 16 + n, nil
}

// UnmarshalGap parses a GAP submessage body.
func UnmarshalGap(buf []byte, order byteOrderer) (Gap, int, error) {
	if len(buf) < 16 {
		return Gap{}, 0, fmt.Errorf("wire: gap body needs at least 16 bytes: %w", errs.ErrBadSubmessage)
	}
	var g Gap
	copy(g.ReaderEntity[:], buf[0:4])
	copy(g.WriterEntity[:], buf[4:8])
	g.GapStart = hdds.SeqNumFromParts(int32(order.Uint32(buf[8:12])), order.Uint32(buf[12:16]))
	set, n, err := UnmarshalSequenceNumberSet(buf[16:], order)
	if err != nil {
		return Gap{}, 0, err
	}
	g.GapList = set
	return g, 16 + n, nil
}

// HeartbeatFrag announces fragment-reassembly progress:
// {writer_sn, last_fragment_num, count}.
type HeartbeatFrag struct {
	ReaderEntity     hdds.EntityID
	WriterEntity     hdds.EntityID
	WriterSN         hdds.SequenceNumber
	LastFragmentNum  uint32
	Count            uint32
}

const heartbeatFragBodyLength = 4 + 4 + 8 + 4 + 4

// MarshalTo encodes the HEARTBEAT_FRAG submessage body into buf.
func (h HeartbeatFrag) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	if len(buf) < heartbeatFragBodyLength {
		return 0, fmt.Errorf("wire: heartbeat_frag body needs %d bytes: %w", heartbeatFragBodyLength, errs.ErrBufferTooSmall)
	}
	copy(buf[0:4], h.ReaderEntity[:])
	copy(buf[4:8], h.WriterEntity[:])
	order.PutUint32(buf[8:12], uint32(h.WriterSN.High()))
	order.PutUint32(buf[12:16], h.WriterSN.Low())
	order.PutUint32(buf[16:20], h.LastFragmentNum)
	order.PutUint32(buf[20:24], h.Count)
	return heartbeatFragBodyLength, nil
}

// UnmarshalHeartbeatFrag parses a HEARTBEAT_FRAG submessage body.
func UnmarshalHeartbeatFrag(buf []byte, order byteOrderer) (HeartbeatFrag, int, error) {
	if len(buf) < heartbeatFragBodyLength {
		return HeartbeatFrag{}, 0, fmt.Errorf("wire: heartbeat_frag body needs %d bytes, got %d: %w",
			heartbeatFragBodyLength, len(buf), errs.ErrBadSubmessage)
	}
	var h HeartbeatFrag
	copy(h.ReaderEntity[:], buf[0:4])
	copy(h.WriterEntity[:], buf[4:8])
	h.WriterSN = hdds.SeqNumFromParts(int32(order.Uint32(buf[8:12])), order.Uint32(buf[12:16]))
	h.LastFragmentNum = order.Uint32(buf[16:20])
	h.Count = order.Uint32(buf[20:24])
	return h, heartbeatFragBodyLength, nil
}

// NackFrag requests retransmission of specific fragments:
// {writer_sn, bitmap_base, bitmap, count}, same MSB-first
// bitmap convention as SequenceNumberSet but over fragment numbers.
type NackFrag struct {
	ReaderEntity hdds.EntityID
	WriterEntity hdds.EntityID
	WriterSN     hdds.SequenceNumber
	FragmentNumberState *SequenceNumberSet
	Count        uint32
}

// MarshalSize returns the wire length of the NACK_FRAG body.
func (n NackFrag) MarshalSize() int {
	return 4 + 4 + 8 + n.FragmentNumberState.MarshalSize() + 4
}

// MarshalTo encodes the NACK_FRAG submessage body into buf.
func (n NackFrag) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	need := n.MarshalSize()
	if len(buf) < need {
		return 0, fmt.Errorf("wire: nack_frag body needs %d bytes: %w", need, errs.ErrBufferTooSmall)
	}
	copy(buf[0:4], n.ReaderEntity[:])
	copy(buf[4:8], n.WriterEntity[:])
	order.PutUint32(buf[8:12], uint32(n.WriterSN.High()))
	order.PutUint32(buf[12:16], n.WriterSN.Low())
	m, err := n.FragmentNumberState.MarshalTo(buf[16:], order)
	if err != nil {
		return 0, err
	}
	order.PutUint32(buf[16+m:20+m], n.Count)
	return 16 + m + 4, nil
}

// UnmarshalNackFrag parses a NACK_FRAG submessage body.
func UnmarshalNackFrag(buf []byte, order byteOrderer) (NackFrag, int, error) {
	if len(buf) < 16 {
		return NackFrag{}, 0, fmt.Errorf("wire: nack_frag body needs at least 16 bytes: %w", errs.ErrBadSubmessage)
	}
	var n NackFrag
	copy(n.ReaderEntity[:], buf[0:4])
	copy(n.WriterEntity[:], buf[4:8])
	n.WriterSN = hdds.SeqNumFromParts(int32(order.Uint32(buf[8:12])), order.Uint32(buf[12:16]))
	set, m, err := UnmarshalSequenceNumberSet(buf[16:], order)
	if err != nil {
		return NackFrag{}, 0, err
	}
	n.FragmentNumberState = set
	off := 16 + m
	if len(buf) < off+4 {
		return NackFrag{}, 0, fmt.Errorf("wire: nack_frag missing count field: %w", errs.ErrBadSubmessage)
	}
	n.Count = order.Uint32(buf[off : off+4])
	return n, off + 4, nil
}

// InfoTimestamp carries the source timestamp for the DATA submessages
// that follow it until the next INFO_TS, consumed by readers with
// DestinationOrder BY_SOURCE_TIMESTAMP.
type InfoTimestamp struct {
	Seconds  int32
	Fraction uint32
	Invalidate bool
}

const infoTimestampBodyLength = 8

// MarshalTo encodes the INFO_TS submessage body. When Invalidate is
// set the body is empty (the INFO_TS_FLAG_INVALIDATE convention).
func (t InfoTimestamp) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	if t.Invalidate {
		return 0, nil
	}
	if len(buf) < infoTimestampBodyLength {
		return 0, fmt.Errorf("wire: info_ts body needs %d bytes: %w", infoTimestampBodyLength, errs.ErrBufferTooSmall)
	}
	order.PutUint32(buf[0:4], uint32(t.Seconds))
	order.PutUint32(buf[4:8], t.Fraction)
	return infoTimestampBodyLength, nil
}
