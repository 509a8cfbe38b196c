// SPDX-License-Identifier: MIT

package reliability

import "sync"

// DupFilter rejects HEARTBEAT/ACKNACK/NACK_FRAG messages whose
// monotonic count is not strictly greater than the last seen count
// from the same source, protecting against both retransmission and
// reordering duplicating a handler's effect.
type DupFilter struct {
	mu   sync.Mutex
	last map[string]uint32
}

// NewDupFilter builds an empty filter.
func NewDupFilter() *DupFilter {
	return &DupFilter{last: make(map[string]uint32)}
}

// Accept reports whether count is newer than the last count seen for
// source, recording it if so. A count ≤ the last seen is rejected
// (returns false) and left unrecorded.
func (f *DupFilter) Accept(source string, count uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	last, ok := f.last[source]
	if ok && count <= last {
		return false
	}
	f.last[source] = count
	return true
}
