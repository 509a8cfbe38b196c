// SPDX-License-Identifier: MIT

package lbw

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRC16CCITTStandardVector(t *testing.T) {
	assert.Equal(t, uint16(0x29B1), CRC16CCITT([]byte("123456789")))
}

func TestCRC16CCITTEmpty(t *testing.T) {
	assert.Equal(t, uint16(0xFFFF), CRC16CCITT(nil))
}

func TestCRC16CCITTIncremental(t *testing.T) {
	data := []byte("123456789")
	want := CRC16CCITT(data)

	got := crcInit
	for i := 0; i < len(data); i += 3 {
		end := i + 3
		if end > len(data) {
			end = len(data)
		}
		got = UpdateCRC16CCITT(got, data[i:end])
	}
	assert.Equal(t, want, got)
}

func TestVerifyAndStripCRC16(t *testing.T) {
	data := []byte("Test data")
	buf := AppendCRC16(append([]byte{}, data...), data)

	got, ok := VerifyAndStripCRC16(buf)
	require.True(t, ok)
	assert.Equal(t, data, got)

	corrupted := append([]byte{}, buf...)
	corrupted[len(corrupted)-1] ^= 0xFF
	_, ok = VerifyAndStripCRC16(corrupted)
	assert.False(t, ok)

	_, ok = VerifyAndStripCRC16([]byte{0x00})
	assert.False(t, ok)
}

func TestVarintRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 300, 1 << 20, 1 << 40} {
		buf := EncodeVarint(nil, v)
		assert.Equal(t, VarintLen(v), len(buf))
		got, n, err := DecodeVarint(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.Equal(t, v, got)
	}
}

func TestDecodeVarintTruncated(t *testing.T) {
	_, _, err := DecodeVarint([]byte{0x80, 0x80})
	assert.Error(t, err)
}

func TestRecordRoundTrip(t *testing.T) {
	r := Record{StreamID: 3, Priority: PriorityP2, Fragment: true, MsgSeq: 99, Payload: []byte("hi")}
	buf := EncodeRecord(nil, r)
	got, n, err := DecodeRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	assert.Equal(t, r, got)
}

func TestFrameRoundTrip(t *testing.T) {
	f := Frame{
		SessionID: 7,
		FrameSeq:  42,
		Records: []Record{
			{StreamID: 1, Priority: PriorityP0, MsgSeq: 1, Payload: []byte("alpha")},
			{StreamID: 1, Priority: PriorityP1, MsgSeq: 2, Payload: []byte("beta")},
		},
	}
	wire := EncodeFrame(f)
	got, n, err := DecodeFrame(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	assert.Equal(t, f.SessionID, got.SessionID)
	assert.Equal(t, f.FrameSeq, got.FrameSeq)
	assert.Equal(t, f.Records, got.Records)
}

func TestDecodeFrameRejectsBadSync(t *testing.T) {
	_, _, err := DecodeFrame([]byte{0x00, FrameVersion})
	assert.Error(t, err)
}

func TestDecodeFrameRejectsCorruptCRC(t *testing.T) {
	f := Frame{SessionID: 1, FrameSeq: 1, Records: []Record{{StreamID: 1, MsgSeq: 1, Payload: []byte("x")}}}
	wire := EncodeFrame(f)
	wire[len(wire)-1] ^= 0xFF
	_, _, err := DecodeFrame(wire)
	assert.Error(t, err)
}

func TestFragmentReassembly(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}

	records := NewFragmenter(64).Fragment(streamRTPS, 1, 77, payload)
	assert.GreaterOrEqual(t, len(records), 16)

	reassembler := NewReassembler(DefaultReassemblerConfig())
	var got []byte
	for _, r := range records {
		msg, err := reassembler.OnFragment(r.StreamID, r.Payload, time.Now())
		require.NoError(t, err)
		if msg != nil {
			got = msg
		}
	}
	assert.Equal(t, payload, got)
}

func TestReassemblerTickEvictsStaleGroups(t *testing.T) {
	reassembler := NewReassembler(ReassemblerConfig{GroupTimeout: time.Millisecond, MaxPendingGroups: 4})
	records := NewFragmenter(8).Fragment(streamRTPS, 1, 1, make([]byte, 100))
	require.Greater(t, len(records), 1)

	_, err := reassembler.OnFragment(records[0].StreamID, records[0].Payload, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, reassembler.PendingGroups())

	dropped := reassembler.Tick(time.Now().Add(time.Second))
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 0, reassembler.PendingGroups())
}

func TestSchedulerP0FlushesImmediately(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	batch := s.Enqueue(Record{Priority: PriorityP0, Payload: []byte("urgent")})
	require.Len(t, batch, 1)
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerBatchesUntilSizeThreshold(t *testing.T) {
	s := NewScheduler(SchedulerConfig{MaxFrameBytes: 10})
	batch := s.Enqueue(Record{Priority: PriorityP2, Payload: []byte("12345")})
	assert.Nil(t, batch)
	assert.Equal(t, 1, s.Pending())

	batch = s.Enqueue(Record{Priority: PriorityP2, Payload: []byte("678901")})
	require.Len(t, batch, 2)
	assert.Equal(t, 0, s.Pending())
}
