// Package transform provides the invertible byte-level stage operators.
//
// Every operator is pure: it returns a new buffer of the same length and
// never writes to its input, so the classifier can try many candidates on
// one untouched snapshot.
package transform

import (
	"errors"
	"fmt"

	"bitrevert/internal/evidence"
	"bitrevert/internal/pixel"
	"bitrevert/pkg/bitutil"
)

// ErrLengthMismatch is returned when two operands differ in length.
var ErrLengthMismatch = errors.New("transform: operand length mismatch")

// XOR returns a[i] ^ b[i]. It is its own inverse.
func XOR(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d vs %d bytes", ErrLengthMismatch, len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out, nil
}

// RotateLeft rotates every byte left by n bits (n taken mod 8).
func RotateLeft(b []byte, n int) []byte {
	n = bitutil.Normalize(n)
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = bitutil.RotateLeft8(v, n)
	}
	return out
}

// RotateRight rotates every byte right by n bits (n taken mod 8).
func RotateRight(b []byte, n int) []byte {
	n = bitutil.Normalize(n)
	out := make([]byte, len(b))
	for i, v := range b {
		out[i] = bitutil.RotateRight8(v, n)
	}
	return out
}

// maskRange returns the byte range [start, end) covered by count triplets
// from seed, clipped to the last triplet fully addressable in b and mask.
func maskRange(bLen, maskLen, seed, count int) (start, end int) {
	if seed < 0 || count <= 0 {
		return 0, 0
	}
	limit := min(bLen, maskLen)
	if seed >= limit {
		return seed, seed
	}
	n := min(count, (limit-seed)/pixel.Channels)
	return seed, seed + n*pixel.Channels
}

// AdditiveMask adds mask[pos] to b[pos] (mod 256) for the count triplets
// starting at seed. Triplets past either buffer end are skipped.
func AdditiveMask(b, mask []byte, seed, count int) []byte {
	out := append([]byte(nil), b...)
	start, end := maskRange(len(b), len(mask), seed, count)
	for pos := start; pos < end; pos++ {
		out[pos] += mask[pos]
	}
	return out
}

// SubtractiveMask subtracts mask[pos] from b[pos] (mod 256) over the same
// range as AdditiveMask. The two are exact inverses.
func SubtractiveMask(b, mask []byte, seed, count int) []byte {
	out := append([]byte(nil), b...)
	start, end := maskRange(len(b), len(mask), seed, count)
	for pos := start; pos < end; pos++ {
		out[pos] -= mask[pos]
	}
	return out
}

// Restore rewrites the bytes covered by ev with the values the evidence
// implies: direct components overwrite the byte with their value, derived
// components write v - mask (mod 256), the byte that satisfies
// byte + mask == v. Bytes outside the evidence range are copied unchanged.
func Restore(b, mask []byte, ev evidence.Evidence) []byte {
	out := append([]byte(nil), b...)
	n := ev.InRange(len(b))
	for k := 0; k < n; k++ {
		for c, v := range ev.Triplets[k] {
			pos := ev.Pos(k, c)
			if !evidence.IsDerived(v) {
				out[pos] = evidence.Byte(v)
				continue
			}
			if pos < len(mask) {
				out[pos] = evidence.Byte(v) - mask[pos]
			}
		}
	}
	return out
}
