// SPDX-License-Identifier: MIT

package lbw

import (
	"encoding/binary"
	"fmt"

	"github.com/hdds-io/hdds/errs"
)

// FrameSync is the fixed sync byte every frame begins with.
const FrameSync byte = 0xA5

// FrameVersion is the wire version this package produces and accepts.
const FrameVersion byte = 1

// Frame is the outermost container on an LBW link:
//
//	sync(0xA5) | version | flags | frame_len(varint) | session_id(u16) | frame_seq(u16) | records... | crc16
//
// crc16 covers every byte of the frame after the sync byte, including
// the record payload.
type Frame struct {
	Flags     byte
	SessionID uint16
	FrameSeq  uint16
	Records   []Record
}

// EncodeFrame renders f as wire bytes, including its trailing CRC.
func EncodeFrame(f Frame) []byte {
	var body []byte
	for _, r := range f.Records {
		body = EncodeRecord(body, r)
	}

	header := make([]byte, 0, 1+1+10+2+2)
	header = append(header, f.Flags)
	header = EncodeVarint(header, uint64(len(body)))
	var idBuf [2]byte
	binary.BigEndian.PutUint16(idBuf[:], f.SessionID)
	header = append(header, idBuf[:]...)
	binary.BigEndian.PutUint16(idBuf[:], f.FrameSeq)
	header = append(header, idBuf[:]...)

	out := make([]byte, 0, 1+len(header)+len(body)+2)
	out = append(out, FrameSync, FrameVersion)
	out = append(out, header...)
	out = append(out, body...)
	return AppendCRC16(out, out[1:])
}

// DecodeFrame parses one frame from the front of buf, validating sync,
// version, and trailing CRC. Returns the frame and total bytes
// consumed (including the CRC).
func DecodeFrame(buf []byte) (Frame, int, error) {
	if len(buf) < 1 || buf[0] != FrameSync {
		return Frame{}, 0, fmt.Errorf("lbw: bad frame sync: %w", errs.ErrInvalidMagic)
	}
	if len(buf) < 2 {
		return Frame{}, 0, fmt.Errorf("lbw: truncated frame header: %w", errs.ErrBadSubmessage)
	}
	if buf[1] != FrameVersion {
		return Frame{}, 0, fmt.Errorf("lbw: unsupported frame version %d: %w", buf[1], errs.ErrBadSubmessage)
	}

	cursor := 2
	if cursor >= len(buf) {
		return Frame{}, 0, fmt.Errorf("lbw: truncated frame header: %w", errs.ErrBadSubmessage)
	}
	flags := buf[cursor]
	cursor++

	bodyLen, n, err := DecodeVarint(buf[cursor:])
	if err != nil {
		return Frame{}, 0, fmt.Errorf("lbw: frame_len: %w", errs.ErrBadSubmessage)
	}
	cursor += n

	if cursor+4 > len(buf) {
		return Frame{}, 0, fmt.Errorf("lbw: truncated session/seq: %w", errs.ErrBadSubmessage)
	}
	sessionID := binary.BigEndian.Uint16(buf[cursor : cursor+2])
	cursor += 2
	frameSeq := binary.BigEndian.Uint16(buf[cursor : cursor+2])
	cursor += 2

	bodyStart := cursor
	bodyEnd := bodyStart + int(bodyLen)
	if bodyEnd+2 > len(buf) {
		return Frame{}, 0, fmt.Errorf("lbw: frame_len %d exceeds buffer: %w", bodyLen, errs.ErrBadSubmessage)
	}

	total := bodyEnd + 2
	data, ok := VerifyAndStripCRC16(buf[1:total])
	if !ok {
		return Frame{}, 0, fmt.Errorf("lbw: crc mismatch: %w", errs.ErrCorrupt)
	}
	_ = data

	records, err := decodeRecords(buf[bodyStart:bodyEnd])
	if err != nil {
		return Frame{}, 0, err
	}

	return Frame{Flags: flags, SessionID: sessionID, FrameSeq: frameSeq, Records: records}, total, nil
}

func decodeRecords(buf []byte) ([]Record, error) {
	var records []Record
	for len(buf) > 0 {
		r, n, err := DecodeRecord(buf)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		buf = buf[n:]
	}
	return records, nil
}
