package wire

import (
	"encoding/binary"
	"testing"

	"github.com/hdds-io/hdds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	prefix := hdds.GUIDPrefix{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	h := Header{
		Version:    ProtocolVersion24,
		VendorID:   0x0102,
		GUIDPrefix: prefix,
	}

	buf := make([]byte, h.MarshalSize())
	n, err := h.MarshalTo(buf)
	require.NoError(t, err)
	assert.Equal(t, h.MarshalSize(), n)

	var got Header
	n2, err := got.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, n, n2)
	assert.Equal(t, h, got)
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 20)
	copy(buf, []byte("XXXX"))
	var h Header
	_, err := h.Unmarshal(buf)
	assert.Error(t, err)
}

func TestSubmessageHeaderRoundTrip(t *testing.T) {
	for _, le := range []bool{true, false} {
		h := SubmessageHeader{Kind: KindData, OctetsToNextHeader: 64}
		if le {
			h.Flags |= FlagEndianness
		}
		buf := make([]byte, h.MarshalSize())
		_, err := h.MarshalTo(buf)
		require.NoError(t, err)

		var got SubmessageHeader
		_, err = got.Unmarshal(buf)
		require.NoError(t, err)
		assert.Equal(t, h, got)
		assert.Equal(t, le, got.LittleEndian())
	}
}

func TestSequenceNumberSetRoundTrip(t *testing.T) {
	base := hdds.SeqNumFromParts(0, 100)
	set := NewSequenceNumberSet(base)
	missing := []hdds.SequenceNumber{base, base + 2, base + 5, base + 31}
	for _, s := range missing {
		set.Add(s)
	}

	buf := make([]byte, set.MarshalSize())
	n, err := set.MarshalTo(buf, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, set.MarshalSize(), n)

	got, n2, err := UnmarshalSequenceNumberSet(buf, binary.BigEndian)
	require.NoError(t, err)
	assert.Equal(t, n, n2)
	assert.Equal(t, set.Base, got.Base)
	assert.Equal(t, set.NumBits, got.NumBits)
	for _, s := range missing {
		assert.True(t, got.Contains(s), "expected %s to be contained", s)
	}
	assert.False(t, got.Contains(base+1))
}

func TestSequenceNumberSetRejectsOversizedBitmap(t *testing.T) {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint32(buf[8:12], MaxSeqNumSetBits+1)
	_, _, err := UnmarshalSequenceNumberSet(buf, binary.BigEndian)
	assert.Error(t, err)
}

func TestParameterListRoundTrip(t *testing.T) {
	entries := []Parameter{
		{ID: PIDDomainID, Payload: []byte{0, 0, 0, 7}},
		{ID: PIDTopicName, Payload: MarshalPIDString("square", binary.LittleEndian)},
	}

	encoded, err := MarshalParameterList(entries, binary.LittleEndian)
	require.NoError(t, err)

	got, err := ParseParameterList(encoded, binary.LittleEndian)
	require.NoError(t, err)
	require.Len(t, got, len(entries))
	for i := range entries {
		assert.Equal(t, entries[i].ID, got[i].ID)
		assert.Equal(t, entries[i].Payload, got[i].Payload)
	}
}

func TestParameterListTruncatedErrors(t *testing.T) {
	_, err := ParseParameterList([]byte{0x01, 0x00}, binary.LittleEndian)
	assert.Error(t, err)
}

func TestPIDStringRoundTrip(t *testing.T) {
	encoded := MarshalPIDString("my_topic", binary.LittleEndian)
	got, err := ParsePIDString(encoded, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, "my_topic", got)
}

func TestEncapsulationHeaderRoundTrip(t *testing.T) {
	h := EncapsulationHeader{Kind: EncapsulationPLCDRLE, Options: 0}
	buf := make([]byte, h.MarshalSize())
	_, err := h.MarshalTo(buf)
	require.NoError(t, err)

	var got EncapsulationHeader
	_, err = got.Unmarshal(buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.Equal(t, "PL_CDR_LE", got.Kind.String())
}

func TestHeartbeatIsProbe(t *testing.T) {
	probe := Heartbeat{FirstSeq: hdds.SeqNumFromParts(0, 10), LastSeq: hdds.SeqNumFromParts(0, 5)}
	assert.True(t, probe.IsProbe())

	real := Heartbeat{FirstSeq: hdds.SeqNumFromParts(0, 1), LastSeq: hdds.SeqNumFromParts(0, 10)}
	assert.False(t, real.IsProbe())
}

func TestHeartbeatRoundTrip(t *testing.T) {
	h := Heartbeat{
		ReaderEntity: hdds.EntityIDSPDPWriter,
		WriterEntity: hdds.EntityIDSPDPWriter,
		FirstSeq:     hdds.SeqNumFromParts(0, 1),
		LastSeq:      hdds.SeqNumFromParts(0, 20),
		Count:        3,
		Final:        true,
	}
	buf := make([]byte, heartbeatBodyLength)
	_, err := h.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)

	got, _, err := UnmarshalHeartbeat(buf, binary.LittleEndian, h.HeartbeatFlags(true))
	require.NoError(t, err)
	assert.Equal(t, h.FirstSeq, got.FirstSeq)
	assert.Equal(t, h.LastSeq, got.LastSeq)
	assert.Equal(t, h.Count, got.Count)
	assert.True(t, got.Final)
}

func TestAckNackRoundTrip(t *testing.T) {
	a := BuildAckNack(hdds.EntityIDSPDPWriter, hdds.EntityIDSPDPWriter, hdds.SeqNumFromParts(0, 1),
		[]hdds.SequenceNumber{hdds.SeqNumFromParts(0, 1), hdds.SeqNumFromParts(0, 3)}, 9, false)

	buf := make([]byte, a.MarshalSize())
	_, err := a.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)

	got, _, err := UnmarshalAckNack(buf, binary.LittleEndian, a.AckNackFlags(true))
	require.NoError(t, err)
	assert.Equal(t, a.Count, got.Count)
	assert.True(t, got.ReaderSNState.Contains(hdds.SeqNumFromParts(0, 1)))
	assert.True(t, got.ReaderSNState.Contains(hdds.SeqNumFromParts(0, 3)))
}

func TestGapRoundTrip(t *testing.T) {
	g := Gap{
		ReaderEntity: hdds.EntityIDSPDPWriter,
		WriterEntity: hdds.EntityIDSPDPWriter,
		GapStart:     hdds.SeqNumFromParts(0, 5),
		GapList:      NewSequenceNumberSet(hdds.SeqNumFromParts(0, 5)),
	}
	g.GapList.Add(hdds.SeqNumFromParts(0, 5))
	g.GapList.Add(hdds.SeqNumFromParts(0, 6))

	buf := make([]byte, g.MarshalSize())
	_, err := g.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)

	got, _, err := UnmarshalGap(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, g.GapStart, got.GapStart)
	assert.True(t, got.GapList.Contains(hdds.SeqNumFromParts(0, 6)))
}

func TestHeartbeatFragRoundTrip(t *testing.T) {
	h := BuildHeartbeatFrag(hdds.EntityIDSPDPWriter, hdds.EntityIDSPDPWriter, hdds.SeqNumFromParts(0, 1), 4, 1)
	buf := make([]byte, heartbeatFragBodyLength)
	_, err := h.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)

	got, _, err := UnmarshalHeartbeatFrag(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, h.LastFragmentNum, got.LastFragmentNum)
	assert.Equal(t, h.Count, got.Count)
}

func TestNackFragRoundTrip(t *testing.T) {
	n := BuildNackFrag(hdds.EntityIDSPDPWriter, hdds.EntityIDSPDPWriter, hdds.SeqNumFromParts(0, 1),
		hdds.SeqNumFromParts(0, 1), []hdds.SequenceNumber{hdds.SeqNumFromParts(0, 1), hdds.SeqNumFromParts(0, 2)}, 2)

	buf := make([]byte, n.MarshalSize())
	_, err := n.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)

	got, _, err := UnmarshalNackFrag(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.True(t, got.FragmentNumberState.Contains(hdds.SeqNumFromParts(0, 2)))
	assert.Equal(t, n.Count, got.Count)
}

func TestDataRoundTripWithPayload(t *testing.T) {
	d := Data{
		ReaderEntity:      hdds.EntityIDSPDPWriter,
		WriterEntity:      hdds.EntityIDSPDPWriter,
		WriterSN:          hdds.SeqNumFromParts(0, 1),
		Encapsulation:     EncapsulationHeader{Kind: EncapsulationCDRLE},
		SerializedPayload: []byte{1, 2, 3, 4, 5, 6, 7, 8},
	}
	buf := make([]byte, d.MarshalSize())
	flags, n, err := d.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, DataFlagData, flags)

	got, n2, err := UnmarshalData(buf[:n], binary.LittleEndian, flags)
	require.NoError(t, err)
	assert.Equal(t, n, n2)
	assert.Equal(t, d.WriterSN, got.WriterSN)
	assert.Equal(t, d.SerializedPayload, got.SerializedPayload)
}

func TestDataFragRoundTrip(t *testing.T) {
	d := DataFrag{
		ReaderEntity:          hdds.EntityIDSPDPWriter,
		WriterEntity:          hdds.EntityIDSPDPWriter,
		WriterSN:              hdds.SeqNumFromParts(0, 1),
		FragmentStartingNum:   1,
		FragmentsInSubmessage: 1,
		FragmentSize:          1300,
		DataSize:              5000,
		Payload:               make([]byte, 1300),
	}
	buf := make([]byte, d.MarshalSize())
	n, err := d.MarshalTo(buf, binary.LittleEndian)
	require.NoError(t, err)

	got, n2, err := UnmarshalDataFrag(buf[:n], binary.LittleEndian)
	require.NoError(t, err)
	assert.Equal(t, n, n2)
	assert.Equal(t, d.FragmentStartingNum, got.FragmentStartingNum)
	assert.Equal(t, d.DataSize, got.DataSize)
	assert.Len(t, got.Payload, 1300)
}
