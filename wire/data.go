package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/errs"
)

// Data submessage flag bits (beyond FlagEndianness).
const (
	DataFlagInlineQoS uint8 = 1 << 1
	DataFlagData      uint8 = 1 << 2
	DataFlagKey       uint8 = 1 << 3
)

// Data carries a single sample.
type Data struct {
	ReaderEntity    hdds.EntityID
	WriterEntity    hdds.EntityID
	WriterSN        hdds.SequenceNumber
	InlineQoS       []byte // raw parameter-list bytes, parsed by wire.ParseParameterList
	Encapsulation   EncapsulationHeader
	SerializedPayload []byte
}

const dataFixedHeaderLength = 2 + 2 + 4 + 4 + 8 // extraFlags + octetsToInlineQoS + reader + writer + seq

// MarshalSize returns the wire length of the DATA body given the
// current InlineQoS/SerializedPayload contents.
func (d Data) MarshalSize() int {
	size := dataFixedHeaderLength + len(d.InlineQoS)
	if len(d.SerializedPayload) > 0 {
		size += EncapsulationHeader{}.MarshalSize() + len(d.SerializedPayload)
	}
	return size
}

// MarshalTo encodes the DATA submessage body into buf, returning the
// flags the submessage header should carry (beyond endianness) and
// bytes written.
func (d Data) MarshalTo(buf []byte, order binary.ByteOrder) (flags uint8, n int, err error) {
	need := d.MarshalSize()
	if len(buf) < need {
		return 0, 0, fmt.Errorf("wire: data body needs %d bytes, got %d: %w", need, len(buf), errs.ErrBufferTooSmall)
	}
	// extraFlags reserved, always zero.
	order.PutUint16(buf[0:2], 0)
	octetsToInlineQoS := uint16(dataFixedHeaderLength - 4)
	order.PutUint16(buf[2:4], octetsToInlineQoS)
	copy(buf[4:8], d.ReaderEntity[:])
	copy(buf[8:12], d.WriterEntity[:])
	order.PutUint32(buf[12:16], uint32(d.WriterSN.High()))
	order.PutUint32(buf[16:20], d.WriterSN.Low())

	off := dataFixedHeaderLength
	if len(d.InlineQoS) > 0 {
		flags |= DataFlagInlineQoS
		copy(buf[off:off+len(d.InlineQoS)], d.InlineQoS)
		off += len(d.InlineQoS)
	}
	if len(d.SerializedPayload) > 0 {
		flags |= DataFlagData
		hn, herr := d.Encapsulation.MarshalTo(buf[off:])
		if herr != nil {
			return 0, 0, herr
		}
		off += hn
		copy(buf[off:off+len(d.SerializedPayload)], d.SerializedPayload)
		off += len(d.SerializedPayload)
	}
	return flags, off, nil
}

// UnmarshalData parses a DATA submessage body. flags is the
// submessage header's flag byte, used to know whether inline QoS or a
// serialized payload follows.
func UnmarshalData(buf []byte, order binary.ByteOrder, flags uint8) (Data, int, error) {
	if len(buf) < dataFixedHeaderLength {
		return Data{}, 0, fmt.Errorf("wire: data body needs %d bytes, got %d: %w",
			dataFixedHeaderLength, len(buf), errs.ErrBadSubmessage)
	}
	var d Data
	octetsToInlineQoS := int(order.Uint16(buf[2:4]))
	copy(d.ReaderEntity[:], buf[4:8])
	copy(d.WriterEntity[:], buf[8:12])
	d.WriterSN = hdds.SeqNumFromParts(int32(order.Uint32(buf[12:16])), order.Uint32(buf[16:20]))

	off := 4 + octetsToInlineQoS
	if off > len(buf) {
		return Data{}, 0, fmt.Errorf("wire: data octetsToInlineQoS %d past end: %w", octetsToInlineQoS, errs.ErrBadSubmessage)
	}

	if flags&DataFlagInlineQoS != 0 {
		// The inline QoS parameter list is itself sentinel-terminated;
		// scan it to find its own length.
		entries, perr := ParseParameterList(buf[off:], order)
		if perr != nil {
			return Data{}, 0, perr
		}
		listLen, lerr := parameterListEncodedLength(entries, order)
		if lerr != nil {
			return Data{}, 0, lerr
		}
		d.InlineQoS = append([]byte(nil), buf[off:off+listLen]...)
		off += listLen
	}

	if flags&DataFlagData != 0 {
		if off+d.Encapsulation.MarshalSize() > len(buf) {
			return Data{}, 0, fmt.Errorf("wire: data missing cdr header: %w", errs.ErrBadSubmessage)
		}
		hn, herr := d.Encapsulation.Unmarshal(buf[off:])
		if herr != nil {
			return Data{}, 0, herr
		}
		off += hn
		d.SerializedPayload = append([]byte(nil), buf[off:]...)
		off = len(buf)
	}

	return d, off, nil
}

// parameterListEncodedLength recomputes how many bytes the already-
// parsed entries occupy on the wire, including the trailing sentinel,
// so the caller can advance past an inline-QoS block without
// re-scanning it.
func parameterListEncodedLength(entries []Parameter, order byteOrderer16) (int, error) {
	encoded, err := MarshalParameterList(entries, order)
	if err != nil {
		return 0, err
	}
	return len(encoded), nil
}

// DataFrag carries one fragment of an oversized sample:
// {writer_sn, fragment_starting_num (1-based), fragments_in_submessage,
// data_size, fragment_size, payload}.
type DataFrag struct {
	ReaderEntity           hdds.EntityID
	WriterEntity           hdds.EntityID
	WriterSN               hdds.SequenceNumber
	FragmentStartingNum    uint32
	FragmentsInSubmessage  uint16
	FragmentSize           uint16
	DataSize               uint32
	Payload                []byte
}

const dataFragFixedHeaderLength = 2 + 2 + 4 + 4 + 8 + 4 + 2 + 2 + 4

// MarshalSize returns the wire length of the DATA_FRAG body.
func (d DataFrag) MarshalSize() int {
	return dataFragFixedHeaderLength + len(d.Payload)
}

// MarshalTo encodes the DATA_FRAG submessage body into buf.
func (d DataFrag) MarshalTo(buf []byte, order binary.ByteOrder) (int, error) {
	need := d.MarshalSize()
	if len(buf) < need {
		return 0, fmt.Errorf("wire: data_frag body needs %d bytes, got %d: %w", need, len(buf), errs.ErrBufferTooSmall)
	}
	order.PutUint16(buf[0:2], 0) // extraFlags
	order.PutUint16(buf[2:4], uint16(dataFragFixedHeaderLength-4))
	copy(buf[4:8], d.ReaderEntity[:])
	copy(buf[8:12], d.WriterEntity[:])
	order.PutUint32(buf[12:16], uint32(d.WriterSN.High()))
	order.PutUint32(buf[16:20], d.WriterSN.Low())
	order.PutUint32(buf[20:24], d.FragmentStartingNum)
	order.PutUint16(buf[24:26], d.FragmentsInSubmessage)
	order.PutUint16(buf[26:28], d.FragmentSize)
	order.PutUint32(buf[28:32], d.DataSize)
	copy(buf[32:], d.Payload)
	return need, nil
}

// UnmarshalDataFrag parses a DATA_FRAG submessage body.
func UnmarshalDataFrag(buf []byte, order binary.ByteOrder) (DataFrag, int, error) {
	if len(buf) < dataFragFixedHeaderLength {
		return DataFrag{}, 0, fmt.Errorf("wire: data_frag body needs %d bytes, got %d: %w",
			dataFragFixedHeaderLength, len(buf), errs.ErrBadSubmessage)
	}
	var d DataFrag
	copy(d.ReaderEntity[:], buf[4:8])
	copy(d.WriterEntity[:], buf[8:12])
	d.WriterSN = hdds.SeqNumFromParts(int32(order.Uint32(buf[12:16])), order.Uint32(buf[16:20]))
	d.FragmentStartingNum = order.Uint32(buf[20:24])
	d.FragmentsInSubmessage = order.Uint16(buf[24:26])
	d.FragmentSize = order.Uint16(buf[26:28])
	d.DataSize = order.Uint32(buf[28:32])
	d.Payload = append([]byte(nil), buf[32:]...)
	return d, len(buf), nil
}
