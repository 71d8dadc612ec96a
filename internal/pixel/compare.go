package pixel

import "gonum.org/v1/gonum/stat"

// Comparison characterizes how far one image is from another.
type Comparison struct {
	Match       bool    `json:"match"`
	DiffBytes   int     `json:"diff_bytes"`
	TotalBytes  int     `json:"total_bytes"`
	MSE         float64 `json:"mse"`
	DiffPercent float64 `json:"diff_percent"`
	MaxAbsDiff  int     `json:"max_abs_diff"`
}

// Compare computes byte equality, mean-squared error and the share of
// differing bytes between got and want. Both images must have the same size.
func Compare(got, want *Image) (Comparison, error) {
	if err := got.CheckSameSize(want); err != nil {
		return Comparison{}, err
	}

	n := len(got.Pix)
	sq := make([]float64, n)
	cmp := Comparison{TotalBytes: n}
	for i := 0; i < n; i++ {
		d := int(got.Pix[i]) - int(want.Pix[i])
		if d == 0 {
			continue
		}
		cmp.DiffBytes++
		if d < 0 {
			d = -d
		}
		if d > cmp.MaxAbsDiff {
			cmp.MaxAbsDiff = d
		}
		sq[i] = float64(d * d)
	}

	cmp.Match = cmp.DiffBytes == 0
	if n > 0 {
		cmp.MSE = stat.Mean(sq, nil)
		cmp.DiffPercent = float64(cmp.DiffBytes) * 100 / float64(n)
	}
	return cmp, nil
}
