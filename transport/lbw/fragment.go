// SPDX-License-Identifier: MIT

package lbw

import (
	"fmt"
	"time"

	"github.com/hdds-io/hdds/errs"
)

// FragHeader precedes a fragment's payload inside its record:
//
//	group_id(varint) | frag_idx(varint) | frag_cnt(varint) | orig_len(varint)
type FragHeader struct {
	GroupID  uint32
	FragIdx  uint16
	FragCnt  uint16
	OrigLen  uint32
}

// Encode appends h's wire form to buf.
func (h FragHeader) Encode(buf []byte) []byte {
	buf = EncodeVarint(buf, uint64(h.GroupID))
	buf = EncodeVarint(buf, uint64(h.FragIdx))
	buf = EncodeVarint(buf, uint64(h.FragCnt))
	buf = EncodeVarint(buf, uint64(h.OrigLen))
	return buf
}

// DecodeFragHeader parses a FragHeader from the front of buf.
func DecodeFragHeader(buf []byte) (FragHeader, int, error) {
	var h FragHeader
	cursor := 0

	v, n, err := DecodeVarint(buf[cursor:])
	if err != nil {
		return FragHeader{}, 0, fmt.Errorf("lbw: frag group_id: %w", errs.ErrBadSubmessage)
	}
	h.GroupID = uint32(v)
	cursor += n

	v, n, err = DecodeVarint(buf[cursor:])
	if err != nil {
		return FragHeader{}, 0, fmt.Errorf("lbw: frag_idx: %w", errs.ErrBadSubmessage)
	}
	h.FragIdx = uint16(v)
	cursor += n

	v, n, err = DecodeVarint(buf[cursor:])
	if err != nil {
		return FragHeader{}, 0, fmt.Errorf("lbw: frag_cnt: %w", errs.ErrBadSubmessage)
	}
	h.FragCnt = uint16(v)
	cursor += n

	v, n, err = DecodeVarint(buf[cursor:])
	if err != nil {
		return FragHeader{}, 0, fmt.Errorf("lbw: orig_len: %w", errs.ErrBadSubmessage)
	}
	h.OrigLen = uint32(v)
	cursor += n

	return h, cursor, nil
}

// Fragmenter splits a payload that would exceed mtu into a series of
// records, each carrying a FragHeader ahead of its share of the data.
type Fragmenter struct {
	MTU int
}

// NewFragmenter builds a Fragmenter targeting mtu-sized fragments.
func NewFragmenter(mtu int) Fragmenter {
	return Fragmenter{MTU: mtu}
}

// Fragment splits payload into records for groupID on streamID, each
// tagged with msgSeq as the record's msg_seq and carrying a FragHeader
// ahead of its data slice.
func (f Fragmenter) Fragment(streamID byte, msgSeq uint64, groupID uint32, payload []byte) []Record {
	if len(payload) <= f.MTU {
		return []Record{{StreamID: streamID, Priority: PriorityP1, MsgSeq: msgSeq, Payload: payload}}
	}

	headerOverhead := VarintLen(uint64(groupID)) + 3 + 3 + VarintLen(uint64(len(payload))) // upper bound: frag_idx/frag_cnt are u16, at most 3 varint bytes each
	chunkSize := f.MTU - headerOverhead
	if chunkSize <= 0 {
		chunkSize = f.MTU
	}
	fragCnt := (len(payload) + chunkSize - 1) / chunkSize

	records := make([]Record, 0, fragCnt)
	for idx := 0; idx < fragCnt; idx++ {
		start := idx * chunkSize
		end := start + chunkSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[start:end]

		h := FragHeader{
			GroupID: groupID,
			FragIdx: uint16(idx),
			FragCnt: uint16(fragCnt),
			OrigLen: uint32(len(payload)),
		}
		buf := h.Encode(nil)
		buf = append(buf, chunk...)

		records = append(records, Record{
			StreamID: streamID,
			Priority:  PriorityP1,
			Fragment:  true,
			MsgSeq:    msgSeq,
			Payload:   buf,
		})
	}
	return records
}

// ReassemblerConfig bounds a Reassembler's resource usage.
type ReassemblerConfig struct {
	// GroupTimeout is how long an incomplete group may sit idle before
	// Tick discards it.
	GroupTimeout time.Duration
	// MaxPendingGroups bounds concurrent in-flight reassembly groups
	// across all streams; the oldest is evicted to make room for a new one.
	MaxPendingGroups int
}

// DefaultReassemblerConfig matches the original transport's tuning:
// a 5 second per-group timeout and 16 concurrent groups.
func DefaultReassemblerConfig() ReassemblerConfig {
	return ReassemblerConfig{GroupTimeout: 5 * time.Second, MaxPendingGroups: 16}
}

type pendingGroup struct {
	streamID   byte
	groupID    uint32
	fragCnt    uint16
	origLen    uint32
	have       map[uint16][]byte
	lastTouch  time.Time
}

func (g *pendingGroup) complete() bool {
	return len(g.have) == int(g.fragCnt)
}

func (g *pendingGroup) assemble() []byte {
	out := make([]byte, 0, g.origLen)
	for i := uint16(0); i < g.fragCnt; i++ {
		out = append(out, g.have[i]...)
	}
	return out
}

type groupKey struct {
	streamID byte
	groupID  uint32
}

// Reassembler reconstructs fragmented payloads from their component
// records, keyed by (stream_id, group_id), bounding memory per
// ReassemblerConfig.
type Reassembler struct {
	cfg     ReassemblerConfig
	pending map[groupKey]*pendingGroup
	order   []groupKey
}

// NewReassembler builds a Reassembler with the given config.
func NewReassembler(cfg ReassemblerConfig) *Reassembler {
	return &Reassembler{cfg: cfg, pending: make(map[groupKey]*pendingGroup)}
}

// OnFragment feeds one fragment record's payload (header + data) into
// the reassembler. It returns the reconstructed payload once every
// fragment in the group has arrived.
func (r *Reassembler) OnFragment(streamID byte, payload []byte, now time.Time) ([]byte, error) {
	h, n, err := DecodeFragHeader(payload)
	if err != nil {
		return nil, err
	}
	data := payload[n:]

	key := groupKey{streamID: streamID, groupID: h.GroupID}
	g, ok := r.pending[key]
	if !ok {
		if len(r.pending) >= r.cfg.MaxPendingGroups {
			r.evictOldest()
		}
		g = &pendingGroup{streamID: streamID, groupID: h.GroupID, fragCnt: h.FragCnt, origLen: h.OrigLen, have: make(map[uint16][]byte)}
		r.pending[key] = g
		r.order = append(r.order, key)
	}
	g.lastTouch = now
	g.have[h.FragIdx] = data

	if !g.complete() {
		return nil, nil
	}
	out := g.assemble()
	delete(r.pending, key)
	return out, nil
}

func (r *Reassembler) evictOldest() {
	// order can still hold keys of groups that already completed; skip
	// those so an open group is actually evicted.
	for len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		if _, ok := r.pending[oldest]; ok {
			delete(r.pending, oldest)
			return
		}
	}
}

// Tick discards any group idle longer than GroupTimeout, returning the
// number of groups dropped.
func (r *Reassembler) Tick(now time.Time) int {
	dropped := 0
	kept := r.order[:0]
	for _, key := range r.order {
		g, ok := r.pending[key]
		if !ok {
			continue
		}
		if now.Sub(g.lastTouch) > r.cfg.GroupTimeout {
			delete(r.pending, key)
			dropped++
			continue
		}
		kept = append(kept, key)
	}
	r.order = kept
	return dropped
}

// PendingGroups reports how many reassembly groups are currently open.
func (r *Reassembler) PendingGroups() int {
	return len(r.pending)
}
