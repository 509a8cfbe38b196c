// SPDX-License-Identifier: MIT

package dds

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/hdds-io/hdds"
	"github.com/hdds-io/hdds/wire"
)

// OnReceive dispatches one received RTPS message to the builtin
// discovery handler (SPDP/SEDP traffic, addressed to the well-known
// discovery entity ids) or, for anything else, decodes its submessage
// stream and routes each DATA/HEARTBEAT/GAP/ACKNACK to the matching
// local Reader or Writer by entity id. INFO_TS submessages set the
// source timestamp applied to the DATA submessages that follow them,
// per the RTPS convention.
func (p *Participant) OnReceive(msg []byte) error {
	header, subs, err := wire.ParseMessage(msg)
	if err != nil {
		return err
	}

	now := time.Now()
	sourceTS := time.Time{}

	for _, sub := range subs {
		order := byteOrderFor(sub)

		switch sub.Kind {
		case wire.KindInfoTS:
			sourceTS = decodeInfoTS(sub.Body, order)

		case wire.KindData:
			data, _, err := wire.UnmarshalData(sub.Body, order, sub.Flags)
			if err != nil {
				continue
			}
			if isDiscoveryEntity(data.WriterEntity) {
				_ = p.discovery.OnReceive(msg)
				return nil
			}
			if r := p.readerByEntity(data.ReaderEntity); r != nil {
				r.OnData(hdds.GUID{Prefix: header.GUIDPrefix, Entity: data.WriterEntity}, data, sourceTS, now)
			}

		case wire.KindHeartbeat:
			hb, _, err := wire.UnmarshalHeartbeat(sub.Body, order, sub.Flags)
			if err != nil {
				continue
			}
			if r := p.readerByEntity(hb.ReaderEntity); r != nil {
				r.OnHeartbeat(hdds.GUID{Prefix: header.GUIDPrefix, Entity: hb.WriterEntity}, hb)
			}

		case wire.KindAckNack:
			ack, _, err := wire.UnmarshalAckNack(sub.Body, order, sub.Flags)
			if err != nil {
				continue
			}
			if w := p.writerByEntity(ack.WriterEntity); w != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = w.OnAckNack(ctx, hdds.GUID{Prefix: header.GUIDPrefix, Entity: ack.ReaderEntity}, ack)
				cancel()
			}

		case wire.KindGap:
			gap, _, err := wire.UnmarshalGap(sub.Body, order)
			if err != nil {
				continue
			}
			if r := p.readerByEntity(gap.ReaderEntity); r != nil {
				r.OnGap(hdds.GUID{Prefix: header.GUIDPrefix, Entity: gap.WriterEntity}, gap)
			}

		case wire.KindDataFrag:
			frag, _, err := wire.UnmarshalDataFrag(sub.Body, order)
			if err != nil {
				continue
			}
			if isDiscoveryEntity(frag.WriterEntity) {
				continue
			}
			if r := p.readerByEntity(frag.ReaderEntity); r != nil {
				r.OnDataFrag(hdds.GUID{Prefix: header.GUIDPrefix, Entity: frag.WriterEntity}, frag, sourceTS, now)
			}

		case wire.KindHeartbeatFrag:
			hbf, _, err := wire.UnmarshalHeartbeatFrag(sub.Body, order)
			if err != nil {
				continue
			}
			if r := p.readerByEntity(hbf.ReaderEntity); r != nil {
				r.OnHeartbeatFrag(hdds.GUID{Prefix: header.GUIDPrefix, Entity: hbf.WriterEntity}, hbf)
			}

		case wire.KindNackFrag:
			nf, _, err := wire.UnmarshalNackFrag(sub.Body, order)
			if err != nil {
				continue
			}
			if w := p.writerByEntity(nf.WriterEntity); w != nil {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				_ = w.OnNackFrag(ctx, hdds.GUID{Prefix: header.GUIDPrefix, Entity: nf.ReaderEntity}, nf)
				cancel()
			}
		}
	}
	return nil
}

func (p *Participant) readerByEntity(entity hdds.EntityID) *Reader {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.readers[hdds.GUID{Prefix: p.GUID.Prefix, Entity: entity}]
}

func (p *Participant) writerByEntity(entity hdds.EntityID) *Writer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writers[hdds.GUID{Prefix: p.GUID.Prefix, Entity: entity}]
}

func isDiscoveryEntity(entity hdds.EntityID) bool {
	switch entity {
	case hdds.EntityIDSPDPWriter, hdds.EntityIDSEDPPubWriter, hdds.EntityIDSEDPSubWriter, hdds.EntityIDParticipantMsgWriter:
		return true
	default:
		return false
	}
}

func byteOrderFor(sub wire.RawSubmessage) binary.ByteOrder {
	if sub.LittleEndian() {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func decodeInfoTS(body []byte, order binary.ByteOrder) time.Time {
	if len(body) < 8 {
		return time.Time{}
	}
	seconds := int32(order.Uint32(body[0:4]))
	fraction := order.Uint32(body[4:8])
	nanos := int64(fraction) * int64(time.Second) / (1 << 32)
	return time.Unix(int64(seconds), nanos).UTC()
}
