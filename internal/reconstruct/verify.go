package reconstruct

import (
	"fmt"

	"bitrevert/internal/pixel"
)

// Verify compares the recovered image with an independently known original.
// The comparison only characterizes the discrepancy; it does not change
// whether the run succeeded.
func Verify(recovered, expected *pixel.Image) (pixel.Comparison, error) {
	if recovered == nil {
		return pixel.Comparison{}, fmt.Errorf("%w: nothing recovered", ErrNoInput)
	}
	if expected == nil {
		return pixel.Comparison{}, fmt.Errorf("%w: expected", ErrNoInput)
	}
	cmp, err := pixel.Compare(recovered, expected)
	if err != nil {
		return pixel.Comparison{}, fmt.Errorf("verify: %w", err)
	}
	return cmp, nil
}
