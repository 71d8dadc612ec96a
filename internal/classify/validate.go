package classify

import (
	"fmt"

	"bitrevert/internal/evidence"
	"bitrevert/internal/pixel"
)

// Verdict is the outcome of checking one candidate buffer against evidence.
type Verdict struct {
	OK       bool // every in-range triplet matched
	InRange  int  // triplets addressable from the seed
	Checked  int  // triplets that matched before the first failure
	FailedAt int  // triplet index of the first mismatch, -1 if none

	// Details of the first mismatch.
	Component int
	Expected  int
	Observed  byte
}

func (v Verdict) String() string {
	if v.OK {
		return fmt.Sprintf("ok (%d/%d triplets)", v.Checked, v.InRange)
	}
	if v.FailedAt < 0 {
		return "no triplets in range"
	}
	return fmt.Sprintf("mismatch at triplet %d component %d: expected %d, observed %d (%d/%d matched)",
		v.FailedAt, v.Component, v.Expected, v.Observed, v.Checked, v.InRange)
}

// Validate checks candidate against ev starting at the seed. Direct
// components must equal the candidate byte; derived components must satisfy
// (candidate + mask) mod 256 == value mod 256, with the mask byte read at
// the same offset. Checking stops at the first mismatch. The range covers
// only triplets fully inside candidate (and inside mask when one is given).
// A nil mask reads as zeros.
func Validate(candidate, mask []byte, ev evidence.Evidence) Verdict {
	n := ev.InRange(len(candidate))
	if mask != nil && len(mask) < len(candidate) {
		n = min(n, ev.InRange(len(mask)))
	}

	v := Verdict{InRange: n, FailedAt: -1}
	for k := 0; k < n; k++ {
		base := ev.Seed + k*pixel.Channels
		for c := 0; c < pixel.Channels; c++ {
			pos := base + c
			var m byte
			if mask != nil {
				m = mask[pos]
			}
			want := ev.Triplets[k][c]
			if !evidence.Matches(want, candidate[pos], m) {
				v.FailedAt = k
				v.Component = c
				v.Expected = want
				v.Observed = candidate[pos]
				return v
			}
		}
		v.Checked++
	}
	v.OK = n > 0
	return v
}

// Confirmed applies the confirmation-run rule on top of a verdict. total is
// the number of triplets that could be checked, normally v.InRange.
func (v Verdict) Confirmed(total, minConfirm int) bool {
	if !v.OK || v.Checked == 0 {
		return false
	}
	return v.Checked >= min(minConfirm, total)
}
