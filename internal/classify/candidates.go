package classify

import (
	"bitrevert/internal/evidence"
	"bitrevert/internal/transform"
)

// Candidate is one entry of the search space bound to concrete operands.
type Candidate struct {
	Class Classification
	Op    transform.Operator
}

// Space enumerates the search space in trial order:
//
//  1. XOR
//  2. RotateRight(1..MaxBits) (tried by rotating left)
//  3. RotateLeft(1..MaxBits) (tried by rotating right)
//  4. AdditiveMask, then SubtractiveMask
//  5. XOR+RotateRight(1..MaxBits) when Combinations is set
//
// Order is the tie-break when several candidates fit the evidence.
func Space(p Params) []Classification {
	p = p.normalized()
	out := []Classification{{Kind: KindXOR}}
	for n := 1; n <= p.MaxBits; n++ {
		out = append(out, Classification{Kind: KindRotateRight, Bits: n})
	}
	for n := 1; n <= p.MaxBits; n++ {
		out = append(out, Classification{Kind: KindRotateLeft, Bits: n})
	}
	out = append(out,
		Classification{Kind: KindAdditiveMask},
		Classification{Kind: KindSubtractiveMask},
	)
	if p.Combinations {
		for n := 1; n <= p.MaxBits; n++ {
			out = append(out, Classification{Kind: KindXORRotate, Bits: n})
		}
	}
	return out
}

// Candidates binds Space(p) to the reference, mask source and evidence.
func Candidates(ref, mask []byte, ev evidence.Evidence, p Params) ([]Candidate, error) {
	space := Space(p)
	out := make([]Candidate, 0, len(space))
	for _, c := range space {
		op, err := c.Operator(ref, mask, ev)
		if err != nil {
			return nil, err
		}
		out = append(out, Candidate{Class: c, Op: op})
	}
	return out, nil
}
