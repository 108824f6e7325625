package store

import (
	"encoding/binary"
	"hash/crc32"
)

// Record encoding shared by event and handle rows: a varint-prefixed
// header, the raw payload, then a trailing CRC32C over header+payload.
// Adapted from the append-only log's record codec.

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func encodeRecord(header, payload []byte) []byte {
	out := make([]byte, 0, 10+len(header)+len(payload)+4)
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(header)))
	out = append(out, tmp[:n]...)
	out = append(out, header...)
	out = append(out, payload...)

	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	var crcb [4]byte
	binary.BigEndian.PutUint32(crcb[:], crc)
	return append(out, crcb[:]...)
}

type decodedRecord struct {
	Header  []byte
	Payload []byte
}

func decodeRecord(b []byte) (decodedRecord, bool) {
	if len(b) < 1+4 {
		return decodedRecord{}, false
	}
	hlen, n := binary.Uvarint(b)
	if n <= 0 {
		return decodedRecord{}, false
	}
	if int(n)+int(hlen)+4 > len(b) {
		return decodedRecord{}, false
	}
	header := b[n : n+int(hlen)]
	payload := b[n+int(hlen) : len(b)-4]
	expect := binary.BigEndian.Uint32(b[len(b)-4:])
	crc := crc32.Update(0, castagnoli, header)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != expect {
		return decodedRecord{}, false
	}
	return decodedRecord{
		Header:  append([]byte(nil), header...),
		Payload: append([]byte(nil), payload...),
	}, true
}

// encodeEventHeader packs an event's non-payload fields: position (8B
// BE), then length-prefixed stream id, topic, and type strings.
func encodeEventHeader(e Event) []byte {
	h := make([]byte, 0, 8+len(e.StreamID)+len(e.Topic)+len(e.Type)+24)
	h = appendBE8(h, e.Position)
	h = appendLenPrefixedString(h, e.StreamID)
	h = appendLenPrefixedString(h, e.Topic)
	h = appendLenPrefixedString(h, e.Type)
	return h
}

func appendLenPrefixedString(dst []byte, s string) []byte {
	var tmp [10]byte
	n := binary.PutUvarint(tmp[:], uint64(len(s)))
	dst = append(dst, tmp[:n]...)
	return append(dst, s...)
}

func readLenPrefixedString(b []byte) (string, []byte, bool) {
	n, w := binary.Uvarint(b)
	if w <= 0 || int(n)+w > len(b) {
		return "", nil, false
	}
	return string(b[w : w+int(n)]), b[w+int(n):], true
}

// decodeEventHeader unpacks the fields packed by encodeEventHeader.
func decodeEventHeader(number uint64, header, payload []byte) (Event, bool) {
	if len(header) < 8 {
		return Event{}, false
	}
	position := binary.BigEndian.Uint64(header[:8])
	rest := header[8:]
	streamID, rest, ok := readLenPrefixedString(rest)
	if !ok {
		return Event{}, false
	}
	topic, rest, ok := readLenPrefixedString(rest)
	if !ok {
		return Event{}, false
	}
	typ, _, ok := readLenPrefixedString(rest)
	if !ok {
		return Event{}, false
	}
	return Event{
		Number:   number,
		Position: position,
		StreamID: streamID,
		Topic:    topic,
		Type:     typ,
		Payload:  payload,
	}, true
}

// encodeHandle packs a handle's durable position and update timestamp.
func encodeHandle(position uint64, updatedAtUnixNano int64) []byte {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint64(payload[:8], position)
	binary.BigEndian.PutUint64(payload[8:], uint64(updatedAtUnixNano))
	return encodeRecord(nil, payload)
}

func decodeHandle(b []byte) (position uint64, updatedAtUnixNano int64, ok bool) {
	dec, ok := decodeRecord(b)
	if !ok || len(dec.Payload) < 16 {
		return 0, 0, false
	}
	position = binary.BigEndian.Uint64(dec.Payload[:8])
	updatedAtUnixNano = int64(binary.BigEndian.Uint64(dec.Payload[8:]))
	return position, updatedAtUnixNano, true
}
