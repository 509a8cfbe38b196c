// SPDX-License-Identifier: MIT

package reliability

import "github.com/hdds-io/hdds"

// GapTracker is the reader-side record of sequence numbers known
// missing from a matched writer's stream. Ranges are maintained
// disjoint, sorted and merged via the embedded SeqRangeSet.
type GapTracker struct {
	highestSeen hdds.SequenceNumber
	missing     *SeqRangeSet
}

// NewGapTracker builds a tracker with nothing yet received.
func NewGapTracker() *GapTracker {
	return &GapTracker{highestSeen: hdds.SeqNumZero, missing: NewSeqRangeSet()}
}

// LastContiguous returns the highest sequence number with no holes
// below it: the highest sequence seen if there are no gaps, otherwise
// one less than the earliest known-missing range's start.
func (g *GapTracker) LastContiguous() hdds.SequenceNumber {
	if g.missing.Empty() {
		return g.highestSeen
	}
	return g.missing.Ranges()[0].Start - 1
}

// OnReceive records that seq has arrived: a seq beyond the highest
// seen so far opens a gap over the skipped range; a seq at or below
// the highest seen repairs a single element of an existing gap (or is
// a harmless duplicate of an already-contiguous sequence).
func (g *GapTracker) OnReceive(seq hdds.SequenceNumber) {
	switch {
	case seq > g.highestSeen+1:
		g.missing.Add(NewSeqRange(g.highestSeen+1, seq))
		g.highestSeen = seq
	case seq == g.highestSeen+1:
		g.highestSeen = seq
	default:
		g.missing.Remove(SingleSeqRange(seq))
	}
}

// MarkLost marks r as permanently lost (from a received GAP
// submessage) and removes it from the missing set, allowing the
// contiguous cursor to advance across it.
func (g *GapTracker) MarkLost(r SeqRange) {
	g.missing.Remove(r)
	if r.End-1 > g.highestSeen {
		g.highestSeen = r.End - 1
	}
}

// Missing returns the current set of known-missing ranges.
func (g *GapTracker) Missing() []SeqRange {
	return g.missing.Ranges()
}

// Empty reports whether the tracker currently has no known gaps —
// the trigger for an ACKNACK's final_flag.
func (g *GapTracker) Empty() bool {
	return g.missing.Empty()
}
