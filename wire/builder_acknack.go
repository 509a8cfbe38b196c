package wire

import "github.com/hdds-io/hdds"

// BuildAckNack constructs an ACKNACK reporting missing sequences in
// [base, base+len(missing bits)) to writer from reader. count must be
// the reader's local ACKNACK counter, incremented on every send;
// final tells the writer no response is expected if it already has
// everything.
func BuildAckNack(reader, writer hdds.EntityID, base hdds.SequenceNumber, missing []hdds.SequenceNumber, count uint32, final bool) AckNack {
	set := NewSequenceNumberSet(base)
	for _, seq := range missing {
		set.Add(seq)
	}
	return AckNack{
		ReaderEntity:  reader,
		WriterEntity:  writer,
		ReaderSNState: set,
		Count:         count,
		Final:         final,
	}
}

// BuildAckNackAck constructs the degenerate ACKNACK a reader sends
// once it holds everything up to nextExpected: an empty set anchored
// at nextExpected, final set, telling the writer there is nothing to
// retransmit.
func BuildAckNackAck(reader, writer hdds.EntityID, nextExpected hdds.SequenceNumber, count uint32) AckNack {
	return AckNack{
		ReaderEntity:  reader,
		WriterEntity:  writer,
		ReaderSNState: NewSequenceNumberSet(nextExpected),
		Count:         count,
		Final:         true,
	}
}
