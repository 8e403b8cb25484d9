package wire

import "math"

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}

func float32ToBits(v float32) uint32 {
	return math.Float32bits(v)
}
