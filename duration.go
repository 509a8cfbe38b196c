package hdds

import (
	"math"
	"time"
)

// Duration is the wire representation of an RTPS duration field:
// seconds (i32) | fraction (u32).
type Duration struct {
	Seconds  int32
	Fraction uint32
}

// DurationInfinite is the reserved "infinite" duration, used for
// lease durations and deadlines that never expire.
var DurationInfinite = Duration{Seconds: 0x7FFFFFFF, Fraction: 0xFFFFFFFF}

// DurationZero is the zero duration.
var DurationZero = Duration{}

// IsInfinite reports whether d is the reserved infinite sentinel.
func (d Duration) IsInfinite() bool {
	return d == DurationInfinite
}

// ToStdDuration converts to a time.Duration, saturating to the
// largest representable value for the infinite sentinel.
func (d Duration) ToStdDuration() time.Duration {
	if d.IsInfinite() {
		return time.Duration(math.MaxInt64)
	}
	frac := time.Duration(d.Fraction) * time.Second / (1 << 32)
	return time.Duration(d.Seconds)*time.Second + frac
}

// DurationFromStd converts a time.Duration into its wire form.
func DurationFromStd(d time.Duration) Duration {
	secs := int64(d / time.Second)
	rem := d % time.Second
	frac := uint64(rem) * (1 << 32) / uint64(time.Second)
	return Duration{Seconds: int32(secs), Fraction: uint32(frac)}
}
