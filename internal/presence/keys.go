package presence

import "encoding/binary"

// Key layout:
//   pres/entry/{handleID}/{consumerID}           -> json Entry
//   pres/expiry/{handleID}/{expiresAt_be8}{consumerID} -> consumerID
//
// The expiry index sorts ascending by expiry time within a handle, so
// Expired can stop at the first unexpired entry.

func entryKey(handleID, consumerID string) []byte {
	return []byte("pres/entry/" + handleID + "/" + consumerID)
}

func indexPrefix(handleID string) []byte {
	return []byte("pres/expiry/" + handleID + "/")
}

func indexKey(expiresAt int64, handleID, consumerID string) []byte {
	key := indexPrefix(handleID)
	var be [8]byte
	binary.BigEndian.PutUint64(be[:], uint64(expiresAt))
	key = append(key, be[:]...)
	key = append(key, []byte(consumerID)...)
	return key
}
