package wire

import "github.com/hdds-io/hdds"

// BuildNackFrag constructs a NACK_FRAG requesting the given missing
// fragment numbers of writerSN, relative to base, with count the
// reader's monotonic NACK_FRAG counter for this sample.
func BuildNackFrag(reader, writer hdds.EntityID, writerSN hdds.SequenceNumber, base hdds.SequenceNumber, missingFragments []hdds.SequenceNumber, count uint32) NackFrag {
	set := NewSequenceNumberSet(base)
	for _, frag := range missingFragments {
		set.Add(frag)
	}
	return NackFrag{
		ReaderEntity:        reader,
		WriterEntity:        writer,
		WriterSN:            writerSN,
		FragmentNumberState: set,
		Count:               count,
	}
}
