package encode

import (
	"encoding/binary"
	"github.com/davejbax/go-umdreplace/internal/spec"
)

// AsUInt16BothByte creates a [spec.UInt16BothByte] from a unsigned 16-bit integer
func AsUInt16BothByte(value uint16) spec.UInt16BothByte {
	// Both byte representation of MS LS is LS MS MS LS
	value32 := uint32(value)
	return spec.UInt16BothByte{
		Value: ((value32 & 0xFF) << 24) |
			((value32 & 0xFF00) << 8) |
			value32,
	}
}

// AsUInt32BothByte creates a [spec.UInt32BothByte] from a unsigned 32-bit integer
func AsUInt32BothByte(value uint32) spec.UInt32BothByte {
	// Both representation of ST UV WX YZ is YZ WX UV ST ST UV WX YZ
	return spec.UInt32BothByte{
		Value: uint64(spec.ReverseBytes32(value))<<32 | uint64(value),
	}
}

// PutUInt32BothByte overwrites the 8-byte both-byte field at the start of p with value. Both halves are always
// written together so that they cannot drift apart.
func PutUInt32BothByte(p []byte, value uint32) {
	binary.BigEndian.PutUint64(p, AsUInt32BothByte(value).Value)
}
