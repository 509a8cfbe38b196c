// SPDX-License-Identifier: MIT

package reliability

import (
	"sync"
	"testing"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeqRangeSetMergesAdjacent(t *testing.T) {
	s := NewSeqRangeSet()
	s.Add(NewSeqRange(1, 3))
	s.Add(NewSeqRange(3, 5))
	require.Len(t, s.Ranges(), 1)
	assert.Equal(t, SeqRange{Start: 1, End: 5}, s.Ranges()[0])
}

func TestSeqRangeSetKeepsDisjointRangesSeparate(t *testing.T) {
	s := NewSeqRangeSet()
	s.Add(NewSeqRange(1, 3))
	s.Add(NewSeqRange(10, 12))
	assert.Len(t, s.Ranges(), 2)
}

func TestSeqRangeSetRemoveSplits(t *testing.T) {
	s := NewSeqRangeSet()
	s.Add(NewSeqRange(1, 10))
	s.Remove(NewSeqRange(4, 6))
	require.Len(t, s.Ranges(), 2)
	assert.Equal(t, SeqRange{Start: 1, End: 4}, s.Ranges()[0])
	assert.Equal(t, SeqRange{Start: 6, End: 10}, s.Ranges()[1])
}

func TestSeqGenStartsAtOne(t *testing.T) {
	g := NewSeqGen()
	assert.Equal(t, hdds.SequenceNumber(1), g.Next())
	assert.Equal(t, hdds.SequenceNumber(2), g.Next())
	assert.Equal(t, hdds.SequenceNumber(2), g.Last())
}

func TestGapTrackerOpensGapOnSkippedSeq(t *testing.T) {
	g := NewGapTracker()
	g.OnReceive(1)
	g.OnReceive(2)
	g.OnReceive(3)
	g.OnReceive(8) // skip 4..7
	assert.Equal(t, hdds.SequenceNumber(3), g.LastContiguous())
	assert.Equal(t, []SeqRange{{Start: 4, End: 8}}, g.Missing())
	assert.False(t, g.Empty())
}

func TestGapTrackerRepairAdvancesContiguous(t *testing.T) {
	g := NewGapTracker()
	g.OnReceive(1)
	g.OnReceive(5) // gap [2,5)
	g.OnReceive(2)
	g.OnReceive(3)
	g.OnReceive(4)
	assert.Equal(t, hdds.SequenceNumber(5), g.LastContiguous())
	assert.True(t, g.Empty())
}

func TestGapTrackerMarkLostAdvancesPastPermanentGap(t *testing.T) {
	g := NewGapTracker()
	g.OnReceive(1)
	g.OnReceive(8) // gap [2,8)
	g.MarkLost(NewSeqRange(2, 8))
	assert.True(t, g.Empty())
	assert.Equal(t, hdds.SequenceNumber(8), g.LastContiguous())
}

func TestHeartbeatSchedulerFiresOnlyWhileDataPresent(t *testing.T) {
	var sent []HeartbeatRange
	var mu sync.Mutex
	h := NewHeartbeatScheduler(10*time.Millisecond, func(r HeartbeatRange) {
		mu.Lock()
		sent = append(sent, r)
		mu.Unlock()
	}, nil)
	defer h.Stop()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	beforeData := len(sent)
	mu.Unlock()
	assert.Equal(t, 0, beforeData)

	h.UpdateRange(1, 5)
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	afterData := len(sent)
	mu.Unlock()
	assert.Greater(t, afterData, 0)
}

func TestNackSchedulerCoalescesWithinWindow(t *testing.T) {
	tracker := NewGapTracker()
	tracker.OnReceive(1)
	tracker.OnReceive(5)

	var requests []AckNackRequest
	var mu sync.Mutex
	n := NewNackScheduler(20*time.Millisecond, tracker, func(r AckNackRequest) {
		mu.Lock()
		requests = append(requests, r)
		mu.Unlock()
	})
	defer n.Close()

	n.OnHeartbeat(1)
	n.OnHeartbeat(2) // same window, should not add a second flush
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, requests, 1)
	assert.Equal(t, hdds.SequenceNumber(2), requests[0].Base)
	assert.False(t, requests[0].FinalFlag)
}

func TestFragmentBufferReassemblesCompleteMessage(t *testing.T) {
	writer := hdds.NewParticipantGUID(hdds.NewGUIDPrefix())
	buf := NewFragmentBuffer(DefaultFragmentBufferConfig())

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	fragSize := uint32(30)

	var got []byte
	for i := uint32(0); i*fragSize < uint32(len(data)); i++ {
		start := i * fragSize
		end := start + fragSize
		if end > uint32(len(data)) {
			end = uint32(len(data))
		}
		result := buf.OnFragment(writer, 1, i+1, 1, fragSize, uint32(len(data)), data[start:end], time.Now())
		if result != nil {
			got = result
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, data, got)
	assert.Equal(t, 0, buf.InFlight())
}

func TestFragmentBufferMissingFragments(t *testing.T) {
	writer := hdds.NewParticipantGUID(hdds.NewGUIDPrefix())
	buf := NewFragmentBuffer(DefaultFragmentBufferConfig())

	data := make([]byte, 90)
	buf.OnFragment(writer, 1, 1, 1, 30, uint32(len(data)), data[:30], time.Now())

	missing := buf.MissingFragments(writer, 1)
	assert.Equal(t, []uint32{2, 3}, missing)
}

func TestFragmentBufferTickEvictsStale(t *testing.T) {
	writer := hdds.NewParticipantGUID(hdds.NewGUIDPrefix())
	buf := NewFragmentBuffer(FragmentBufferConfig{MaxInFlight: 4, Timeout: time.Millisecond})
	buf.OnFragment(writer, 1, 1, 1, 30, 90, make([]byte, 30), time.Now())

	dropped := buf.Tick(time.Now().Add(time.Second))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 0, buf.InFlight())
}

func TestDupFilterRejectsNonIncreasingCount(t *testing.T) {
	f := NewDupFilter()
	assert.True(t, f.Accept("writer-1", 1))
	assert.True(t, f.Accept("writer-1", 2))
	assert.False(t, f.Accept("writer-1", 2))
	assert.False(t, f.Accept("writer-1", 1))
	assert.True(t, f.Accept("writer-1", 3))
}
