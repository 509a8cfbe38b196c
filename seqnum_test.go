package hdds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequenceNumberParts(t *testing.T) {
	cases := []struct {
		name string
		seq  SequenceNumber
	}{
		{"zero", SeqNumZero},
		{"unknown", SeqNumUnknown},
		{"one", SequenceNumber(1)},
		{"large", SequenceNumber(1 << 40)},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := SeqNumFromParts(c.seq.High(), c.seq.Low())
			assert.Equal(t, c.seq, got)
		})
	}
}

func TestSequenceNumberValid(t *testing.T) {
	assert.False(t, SeqNumZero.Valid())
	assert.False(t, SeqNumUnknown.Valid())
	assert.True(t, SequenceNumber(1).Valid())
}

func TestDurationRoundTrip(t *testing.T) {
	assert.True(t, DurationInfinite.IsInfinite())
	d := DurationFromStd(1500 * 1000000) // 1.5s in ns
	assert.EqualValues(t, 1500*1000000, d.ToStdDuration())

	std := 3 * 1000000000 // 3s in ns
	converted := DurationFromStd(3000000000)
	assert.Equal(t, int32(3), converted.Seconds)
	assert.EqualValues(t, 0, converted.Fraction)
	_ = std
}

func TestGUIDBytesRoundTrip(t *testing.T) {
	prefix := NewGUIDPrefix()
	g := GUID{Prefix: prefix, Entity: EntityIDSPDPWriter}
	b := g.Bytes()
	parsed, err := GUIDFromBytes(b[:])
	assert.NoError(t, err)
	assert.Equal(t, g, parsed)
}

func TestGUIDPrefixLess(t *testing.T) {
	a := GUIDPrefix{1, 2, 3}
	b := GUIDPrefix{1, 2, 4}
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
