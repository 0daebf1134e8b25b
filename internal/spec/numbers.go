package spec

// UInt16BothByte is an unsigned 16-bit integer represented in both big endian and little endian, in a 32-bit
// integer container.
//
// The encoding is [ <little endian unsigned 16-bit integer>, <big endian unsigned 16-bit integer> ]
//
// UInt16BothByte can be encoded by the [struc] library.
type UInt16BothByte struct {
	Value uint32 `struc:"uint32,big"`
}

func (u UInt16BothByte) RealValue() uint16 {
	return uint16(u.Value & 0xFFFF)
}

// UInt32BothByte is an unsigned 32-bit integer represented in both big endian and little endian, in a 64-bit
// integer container.
//
// The encoding is [ <little endian unsigned 32-bit integer>, <big endian unsigned 32-bit integer> ]
//
// UInt32BothByte can be encoded and decoded by the [struc] library.
type UInt32BothByte struct {
	Value uint64 `struc:"uint64,big"`
}

// RealValue is the value held by the big endian half of the field.
func (u UInt32BothByte) RealValue() uint32 {
	return uint32(u.Value & 0xFFFFFFFF)
}

// LittleValue is the value held by the little endian half of the field. On a well-formed disc this is equal to
// [UInt32BothByte.RealValue]; mastering tools for PSP and PS2 discs only ever read this half, so it is the one we
// trust when the two disagree.
func (u UInt32BothByte) LittleValue() uint32 {
	return ReverseBytes32(uint32(u.Value >> 32))
}

// Consistent reports whether both halves of the field hold the same value.
func (u UInt32BothByte) Consistent() bool {
	return u.RealValue() == u.LittleValue()
}

// ReverseBytes32 swaps the byte order of a 32-bit value, converting between the little and big endian halves of a
// both-byte field.
func ReverseBytes32(value uint32) uint32 {
	return (value&0xFF)<<24 |
		(value&0xFF00)<<8 |
		(value&0xFF0000)>>8 |
		(value&0xFF000000)>>24
}
