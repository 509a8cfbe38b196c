package wire

import "github.com/hdds-io/hdds"

// BuildHeartbeatFrag constructs a HEARTBEAT_FRAG announcing that
// fragments 1..lastFragment of writerSN are available for retransmit
// requests, with count the writer's monotonic HEARTBEAT_FRAG counter
// for this sample.
func BuildHeartbeatFrag(reader, writer hdds.EntityID, writerSN hdds.SequenceNumber, lastFragment, count uint32) HeartbeatFrag {
	return HeartbeatFrag{
		ReaderEntity:    reader,
		WriterEntity:    writer,
		WriterSN:        writerSN,
		LastFragmentNum: lastFragment,
		Count:           count,
	}
}
