// Package store implements the broker's persistence seam: an
// append-only, densely-numbered event log and a durable per-handle
// cursor table, both backed by Pebble.
//
// Keys are lexicographically ordered for efficient range scans:
//
//	evt/{number_be8}   event rows, ascending by global event number
//	meta/index         last assigned event number
//	hdl/{id}           durable handle cursor rows
//
// Rows are encoded as a varint-prefixed header, the raw payload, and a
// trailing CRC32C checksum over both.
//
// QueryEvents returns a streaming EventCursor backed by a Pebble
// snapshot taken at call time, so a long-running catch-up scan is
// immune to concurrent appends. Decoded events are buffered in small
// batches to bound memory on large scans.
package store
