// Package bitutil provides shared per-byte bit helpers for the stage operators.
package bitutil

import "math/bits"

// BitsPerByte is the rotation period of a color component.
const BitsPerByte = 8

// Normalize reduces a rotation amount into [0,7]. Negative amounts rotate
// the other way, so -1 normalizes to 7.
func Normalize(n int) int {
	n %= BitsPerByte
	if n < 0 {
		n += BitsPerByte
	}
	return n
}

// RotateLeft8 rotates b left by n bits (n taken mod 8).
func RotateLeft8(b byte, n int) byte {
	return bits.RotateLeft8(b, Normalize(n))
}

// RotateRight8 rotates b right by n bits (n taken mod 8).
func RotateRight8(b byte, n int) byte {
	return bits.RotateLeft8(b, -Normalize(n))
}

// Complement returns the rotation amount that undoes n in the same direction:
// RotateLeft8(RotateLeft8(b, n), Complement(n)) == b.
func Complement(n int) int {
	return Normalize(BitsPerByte - Normalize(n))
}
