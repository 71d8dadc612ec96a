// Package classify identifies which operator and parameter produced a stage
// by trying every candidate inverse and validating it against the stage's
// evidence.
package classify

import (
	"errors"
	"fmt"

	"bitrevert/internal/evidence"
	"bitrevert/internal/transform"
)

// Kind is the forward operator family of a stage.
type Kind int

const (
	// KindUnknown marks an undetermined stage.
	KindUnknown Kind = iota
	// KindXOR is a byte-wise XOR against the reference image.
	KindXOR
	// KindRotateLeft is a circular left rotation of every byte.
	KindRotateLeft
	// KindRotateRight is a circular right rotation of every byte.
	KindRotateRight
	// KindAdditiveMask adds the mask source over the evidence range.
	KindAdditiveMask
	// KindSubtractiveMask subtracts the mask source over the evidence range.
	KindSubtractiveMask
	// KindXORRotate is XOR against the reference followed by a right rotation.
	KindXORRotate
)

func (k Kind) String() string {
	switch k {
	case KindXOR:
		return "XOR"
	case KindRotateLeft:
		return "RotateLeft"
	case KindRotateRight:
		return "RotateRight"
	case KindAdditiveMask:
		return "AdditiveMask"
	case KindSubtractiveMask:
		return "SubtractiveMask"
	case KindXORRotate:
		return "XOR+RotateRight"
	default:
		return "Unknown"
	}
}

// HasBits reports whether the family carries a rotation amount.
func (k Kind) HasBits() bool {
	return k == KindRotateLeft || k == KindRotateRight || k == KindXORRotate
}

// CodeUndetermined is the compact code of an undetermined stage.
const CodeUndetermined = -1

var (
	ErrUndetermined = errors.New("classify: no operator matches the evidence")
	ErrInvalidCode  = errors.New("classify: invalid operation code")
)

// Classification is the inferred forward operator of one stage.
type Classification struct {
	Kind Kind `json:"kind"`
	Bits int  `json:"bits,omitempty"` // rotation amount 1-7 for rotating families
}

// Undetermined is the zero classification.
var Undetermined = Classification{}

// Determined reports whether the classification names a real operator.
func (c Classification) Determined() bool {
	if c.Kind == KindUnknown {
		return false
	}
	if c.Kind.HasBits() {
		return c.Bits >= 1 && c.Bits <= 7
	}
	return true
}

// Code packs the classification into the compact integer signal:
//
//	1      XOR
//	10+n   XOR then RotateRight(n)
//	20+n   RotateRight(n), undone by RotateLeft(n)
//	30+n   RotateLeft(n), undone by RotateRight(n)
//	4      AdditiveMask
//	5      SubtractiveMask
//	-1     undetermined
func (c Classification) Code() int {
	if !c.Determined() {
		return CodeUndetermined
	}
	switch c.Kind {
	case KindXOR:
		return 1
	case KindXORRotate:
		return 10 + c.Bits
	case KindRotateRight:
		return 20 + c.Bits
	case KindRotateLeft:
		return 30 + c.Bits
	case KindAdditiveMask:
		return 4
	case KindSubtractiveMask:
		return 5
	}
	return CodeUndetermined
}

// ParseCode is the inverse of Code.
func ParseCode(code int) (Classification, error) {
	switch {
	case code == CodeUndetermined:
		return Undetermined, nil
	case code == 1:
		return Classification{Kind: KindXOR}, nil
	case code == 4:
		return Classification{Kind: KindAdditiveMask}, nil
	case code == 5:
		return Classification{Kind: KindSubtractiveMask}, nil
	case code >= 11 && code <= 17:
		return Classification{Kind: KindXORRotate, Bits: code - 10}, nil
	case code >= 21 && code <= 27:
		return Classification{Kind: KindRotateRight, Bits: code - 20}, nil
	case code >= 31 && code <= 37:
		return Classification{Kind: KindRotateLeft, Bits: code - 30}, nil
	}
	return Undetermined, fmt.Errorf("%w: %d", ErrInvalidCode, code)
}

func (c Classification) String() string {
	if !c.Determined() {
		return "Unknown"
	}
	if c.Kind.HasBits() {
		return fmt.Sprintf("%s(%d)", c.Kind, c.Bits)
	}
	return c.Kind.String()
}

// InverseString describes the operation that undoes the stage.
func (c Classification) InverseString() string {
	switch c.Kind {
	case KindXOR:
		return "XOR with reference"
	case KindRotateRight:
		return fmt.Sprintf("RotateLeft(%d)", c.Bits)
	case KindRotateLeft:
		return fmt.Sprintf("RotateRight(%d)", c.Bits)
	case KindAdditiveMask:
		return "SubtractiveMask"
	case KindSubtractiveMask:
		return "AdditiveMask"
	case KindXORRotate:
		return fmt.Sprintf("RotateLeft(%d) then XOR with reference", c.Bits)
	}
	return "none"
}

// Equivalent reports whether two classifications transform every buffer the
// same way. RotateLeft(n) and RotateRight(8-n) are the same permutation.
func (c Classification) Equivalent(o Classification) bool {
	if c == o {
		return true
	}
	if !c.Determined() || !o.Determined() {
		return false
	}
	rot := func(x Classification) (int, bool) {
		switch x.Kind {
		case KindRotateRight:
			return x.Bits, true
		case KindRotateLeft:
			return 8 - x.Bits, true
		}
		return 0, false
	}
	a, okA := rot(c)
	b, okB := rot(o)
	return okA && okB && a == b
}

// Operator builds the forward/inverse pair for c. ref is the XOR operand,
// mask the masking source, and ev bounds the masked range.
func (c Classification) Operator(ref, mask []byte, ev evidence.Evidence) (transform.Operator, error) {
	if !c.Determined() {
		return transform.Operator{}, fmt.Errorf("%w: %v", ErrUndetermined, c)
	}
	switch c.Kind {
	case KindXOR:
		return transform.XORWith(ref), nil
	case KindRotateLeft:
		return transform.RotateLeftBy(c.Bits), nil
	case KindRotateRight:
		return transform.RotateRightBy(c.Bits), nil
	case KindAdditiveMask:
		return transform.AddMask(mask, ev.Seed, ev.Len()), nil
	case KindSubtractiveMask:
		return transform.SubMask(mask, ev.Seed, ev.Len()), nil
	case KindXORRotate:
		return transform.Then(transform.XORWith(ref), transform.RotateRightBy(c.Bits)), nil
	}
	return transform.Operator{}, fmt.Errorf("%w: kind %d", ErrInvalidCode, int(c.Kind))
}
