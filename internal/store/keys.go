package store

import "encoding/binary"

// Keyspace layout, lexicographically sortable:
//   evt/{number_be8}   event rows, ordered by global event number
//   meta/index         last assigned event number (8 bytes BE)
//   hdl/{id}           durable handle cursor rows

var (
	evtPrefix = []byte("evt/")
	hdlPrefix = []byte("hdl/")
	indexKey  = []byte("meta/index")
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

// keyEvent builds the key for a single event row.
func keyEvent(number uint64) []byte {
	k := make([]byte, 0, len(evtPrefix)+8)
	k = append(k, evtPrefix...)
	return appendBE8(k, number)
}

// keyEventLowerBound and keyEventUpperBound bound the full event range.
func keyEventLowerBound() []byte {
	return keyEvent(0)
}

func keyEventUpperBound() []byte {
	return append(keyEvent(^uint64(0)), 0x00)
}

// keyHandle builds the key for a handle's durable cursor row.
func keyHandle(id string) []byte {
	k := make([]byte, 0, len(hdlPrefix)+len(id))
	k = append(k, hdlPrefix...)
	k = append(k, id...)
	return k
}
