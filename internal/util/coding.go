package util

import "encoding/binary"

// Fixed-width integer coding for the tag suffix of internal keys.
// Layout is little-endian, matching the LSM host's on-disk format.

// EncodeFixed64 writes v into the first 8 bytes of dst
func EncodeFixed64(dst []byte, v uint64) {
	binary.LittleEndian.PutUint64(dst, v)
}

// DecodeFixed64 reads a little-endian uint64 from the first 8 bytes of b
func DecodeFixed64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// AppendFixed64 appends the 8-byte little-endian encoding of v to dst
func AppendFixed64(dst []byte, v uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, v)
}
