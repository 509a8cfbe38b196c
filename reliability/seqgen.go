// SPDX-License-Identifier: MIT

package reliability

import (
	"sync/atomic"

	"github.com/hdds-io/hdds"
)

// SeqGen generates the monotonic per-writer sequence numbers a
// history cache indexes samples by. Sequence wrap is not supported —
// i64 capacity is assumed infinite, so no rollover bookkeeping is
// needed the way a 16-bit RTP sequence number requires it.
type SeqGen struct {
	// state holds the last-issued sequence number; Next always returns
	// state+1, matching RTPS's "first sample is SequenceNumber(1)" rule
	// when state starts at zero.
	state atomic.Int64
}

// NewSeqGen returns a SeqGen whose first Next() call yields 1.
func NewSeqGen() *SeqGen {
	return &SeqGen{}
}

// Next atomically advances and returns the next sequence number.
func (g *SeqGen) Next() hdds.SequenceNumber {
	return hdds.SequenceNumber(g.state.Add(1))
}

// Last returns the most recently issued sequence number without
// advancing, or SeqNumZero if Next has never been called.
func (g *SeqGen) Last() hdds.SequenceNumber {
	return hdds.SequenceNumber(g.state.Load())
}
