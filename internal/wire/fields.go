package wire

import "encoding/binary"

// Fixed-width string field sizes the protocol assumes, per the NUL-padded
// layout used in nickname, token and stream-name payload fields.
const (
	NicknameFieldSize = 20
	TokenFieldSize    = 60
)

// PutFixedString writes s into dst, NUL-padding or truncating it to
// exactly len(dst) bytes.
func PutFixedString(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	n := copy(dst, s)
	_ = n
}

// FixedString reads a NUL-padded fixed-width field back into a Go
// string, stopping at the first NUL byte.
func FixedString(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

// PutUint32LE writes v into the first four bytes of dst in little-endian
// order.
func PutUint32LE(dst []byte, v uint32) {
	binary.LittleEndian.PutUint32(dst, v)
}

// Uint32LE reads a little-endian uint32 from the front of src.
func Uint32LE(src []byte) uint32 {
	return binary.LittleEndian.Uint32(src)
}

// Float32LE reads a little-endian IEEE-754 float32 from the front of src.
func Float32LE(src []byte) float32 {
	return float32FromBits(binary.LittleEndian.Uint32(src))
}

// PutFloat32LE writes v into dst in little-endian IEEE-754 order.
func PutFloat32LE(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, float32ToBits(v))
}
