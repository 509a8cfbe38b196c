// SPDX-License-Identifier: MIT

// Package reliability implements the reliable RTPS protocol engine:
// sequence-number range bookkeeping, writer-side heartbeat scheduling,
// reader-side gap tracking and NACK coalescing, and fragment
// reassembly.
package reliability

import (
	"sort"

	"github.com/hdds-io/hdds"
)

// SeqRange is a half-open sequence number range [Start, End): Start is
// included, End is not. Two ranges are adjacent, and therefore
// mergeable, when A.End == B.Start.
type SeqRange struct {
	Start hdds.SequenceNumber
	End   hdds.SequenceNumber
}

// NewSeqRange builds the half-open range [start, end).
func NewSeqRange(start, end hdds.SequenceNumber) SeqRange {
	return SeqRange{Start: start, End: end}
}

// SingleSeqRange builds the single-element range [seq, seq+1).
func SingleSeqRange(seq hdds.SequenceNumber) SeqRange {
	return SeqRange{Start: seq, End: seq + 1}
}

// Empty reports whether the range contains no sequence numbers.
func (r SeqRange) Empty() bool {
	return r.Start >= r.End
}

// Len returns the count of sequence numbers the range covers.
func (r SeqRange) Len() int64 {
	if r.Empty() {
		return 0
	}
	return int64(r.End - r.Start)
}

// Contains reports whether seq falls within the range.
func (r SeqRange) Contains(seq hdds.SequenceNumber) bool {
	return seq >= r.Start && seq < r.End
}

// AdjacentOrOverlapping reports whether r and other touch or overlap,
// and are therefore candidates for merging into one range.
func (r SeqRange) AdjacentOrOverlapping(other SeqRange) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Merge combines r and an adjacent or overlapping other into their
// union. Callers must check AdjacentOrOverlapping first.
func (r SeqRange) Merge(other SeqRange) SeqRange {
	start := r.Start
	if other.Start < start {
		start = other.Start
	}
	end := r.End
	if other.End > end {
		end = other.End
	}
	return SeqRange{Start: start, End: end}
}

// SeqRangeSet is a sorted collection of disjoint, non-adjacent
// SeqRanges, used by GapTracker to name sequences known missing and by
// HistoryCache to name evicted spans.
type SeqRangeSet struct {
	ranges []SeqRange
}

// NewSeqRangeSet builds an empty set.
func NewSeqRangeSet() *SeqRangeSet {
	return &SeqRangeSet{}
}

// Add inserts r into the set, merging with any overlapping or
// adjacent ranges so the invariant (disjoint, sorted, merged) holds
// after every call.
func (s *SeqRangeSet) Add(r SeqRange) {
	if r.Empty() {
		return
	}

	merged := []SeqRange{r}
	var kept []SeqRange
	for _, existing := range s.ranges {
		if existing.AdjacentOrOverlapping(merged[0]) {
			merged[0] = merged[0].Merge(existing)
		} else {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, merged[0])
	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	s.ranges = kept
}

// Remove deletes the sequence numbers in r from the set, splitting or
// shrinking existing ranges as needed.
func (s *SeqRangeSet) Remove(r SeqRange) {
	if r.Empty() {
		return
	}
	var kept []SeqRange
	for _, existing := range s.ranges {
		if existing.End <= r.Start || existing.Start >= r.End {
			kept = append(kept, existing)
			continue
		}
		if existing.Start < r.Start {
			kept = append(kept, SeqRange{Start: existing.Start, End: r.Start})
		}
		if existing.End > r.End {
			kept = append(kept, SeqRange{Start: r.End, End: existing.End})
		}
	}
	s.ranges = kept
}

// Contains reports whether seq is covered by any range in the set.
func (s *SeqRangeSet) Contains(seq hdds.SequenceNumber) bool {
	for _, r := range s.ranges {
		if r.Contains(seq) {
			return true
		}
	}
	return false
}

// Ranges returns the set's ranges in ascending order. The slice must
// not be mutated by the caller.
func (s *SeqRangeSet) Ranges() []SeqRange {
	return s.ranges
}

// Empty reports whether the set has no ranges.
func (s *SeqRangeSet) Empty() bool {
	return len(s.ranges) == 0
}

// Total returns the sum of sequence numbers covered across all ranges.
func (s *SeqRangeSet) Total() int64 {
	var total int64
	for _, r := range s.ranges {
		total += r.Len()
	}
	return total
}
