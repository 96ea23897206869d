package boltstore

import "encoding/binary"

// Bucket name constants for bbolt storage.
var (
	bucketMeta    = []byte("meta")
	bucketObjects = []byte("objects")
	bucketPlayers = []byte("players")
)

// Meta key constants.
var (
	keyFormat = []byte("format")
)

// storeFormat is bumped whenever the gob layout changes incompatibly.
const storeFormat = 1

// numToKey converts an object number to an 8-byte big-endian key so the
// objects bucket iterates in dbref order.
func numToKey(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// keyToNum converts an 8-byte big-endian key back to an object number.
func keyToNum(b []byte) int {
	return int(binary.BigEndian.Uint64(b))
}
