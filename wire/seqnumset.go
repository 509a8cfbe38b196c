package wire

import (
	"fmt"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
)

// MaxSeqNumSetBits is the maximum number of bits a SequenceNumberSet
// may carry.
const MaxSeqNumSetBits = 256

// SequenceNumberSet is the bitmap encoding used by ACKNACK, GAP and
// NACK_FRAG to name a run of sequence numbers relative to a base:
//
//	bitmapBase (SequenceNumber) | numBits (u32) | bitmap (ceil(numBits/32) * u32)
//
// Bit N in word M is MSB-first: word[M] |= 1 << (31 - N). numBits is
// always the true significant bit count, never bitmap-word-count*32.
type SequenceNumberSet struct {
	Base    hdds.SequenceNumber
	NumBits uint32
	// Set holds the sequence numbers present in the set, each in
	// [Base, Base+NumBits).
	Set map[hdds.SequenceNumber]struct{}
}

// NewSequenceNumberSet builds an empty set anchored at base.
func NewSequenceNumberSet(base hdds.SequenceNumber) *SequenceNumberSet {
	return &SequenceNumberSet{Base: base, Set: make(map[hdds.SequenceNumber]struct{})}
}

// Add marks seq present in the set, extending NumBits if needed.
func (s *SequenceNumberSet) Add(seq hdds.SequenceNumber) {
	if seq < s.Base {
		return
	}
	offset := uint32(seq - s.Base)
	if offset >= MaxSeqNumSetBits {
		return
	}
	if offset+1 > s.NumBits {
		s.NumBits = offset + 1
	}
	s.Set[seq] = struct{}{}
}

// Contains reports whether seq is marked present in the set.
func (s *SequenceNumberSet) Contains(seq hdds.SequenceNumber) bool {
	_, ok := s.Set[seq]
	return ok
}

func numWords(numBits uint32) int {
	return int((numBits + 31) / 32)
}

// MarshalSize returns the wire length of the set.
func (s *SequenceNumberSet) MarshalSize() int {
	return 8 + numWords(s.NumBits)*4
}

// MarshalTo encodes s into buf using the given byte order, returning
// bytes written.
func (s *SequenceNumberSet) MarshalTo(buf []byte, order byteOrderer) (int, error) {
	need := s.MarshalSize()
	if len(buf) < need {
		return 0, fmt.Errorf("wire: seqnumset needs %d bytes, got %d: %w", need, len(buf), errs.ErrBufferTooSmall)
	}
	order.PutUint32(buf[0:4], uint32(s.Base.High()))
	order.PutUint32(buf[4:8], s.Base.Low())
	order.PutUint32(buf[8:12], s.NumBits)

	words := make([]uint32, numWords(s.NumBits))
	for seq := range s.Set {
		offset := uint32(seq - s.Base)
		if offset >= s.NumBits {
			continue
		}
		word := offset / 32
		bit := offset % 32
		words[word] |= 1 << (31 - bit)
	}
	for i, w := range words {
		order.PutUint32(buf[12+i*4:16+i*4], w)
	}
	return need, nil
}

// UnmarshalSequenceNumberSet decodes a SequenceNumberSet from buf
// using the given byte order, returning the set and bytes consumed.
func UnmarshalSequenceNumberSet(buf []byte, order byteOrderer) (*SequenceNumberSet, int, error) {
	if len(buf) < 12 {
		return nil, 0, fmt.Errorf("wire: seqnumset header needs 12 bytes, got %d: %w", len(buf), errs.ErrBadSubmessage)
	}
	high := int32(order.Uint32(buf[0:4]))
	low := order.Uint32(buf[4:8])
	numBits := order.Uint32(buf[8:12])
	if numBits > MaxSeqNumSetBits {
		return nil, 0, fmt.Errorf("wire: seqnumset numBits %d exceeds %d: %w", numBits, MaxSeqNumSetBits, errs.ErrBadSubmessage)
	}

	n := numWords(numBits)
	need := 12 + n*4
	if len(buf) < need {
		return nil, 0, fmt.Errorf("wire: seqnumset bitmap needs %d bytes, got %d: %w", need, len(buf), errs.ErrBadSubmessage)
	}

	base := hdds.SeqNumFromParts(high, low)
	s := &SequenceNumberSet{Base: base, NumBits: numBits, Set: make(map[hdds.SequenceNumber]struct{})}
	for i := 0; i < n; i++ {
		word := order.Uint32(buf[12+i*4 : 16+i*4])
		for bit := 0; bit < 32; bit++ {
			offset := uint32(i*32 + bit)
			if offset >= numBits {
				break
			}
			if word&(1<<(31-uint(bit))) != 0 {
				s.Set[base+hdds.SequenceNumber(offset)] = struct{}{}
			}
		}
	}
	return s, need, nil
}

// byteOrderer is the minimal interface MarshalTo/UnmarshalSequenceNumberSet
// need from binary.ByteOrder; kept narrow so callers can pass either
// binary.BigEndian or binary.LittleEndian directly.
type byteOrderer interface {
	PutUint32([]byte, uint32)
	Uint32([]byte) uint32
}
