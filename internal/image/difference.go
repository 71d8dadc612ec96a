package image

import (
	"bitrevert/internal/pixel"
)

// DiffMode specifies how two buffers are combined into a difference image.
type DiffMode int

const (
	DiffAbsolute DiffMode = iota // |a - b| per component
	DiffXOR                      // a ^ b per component
	DiffMask                     // 255 where any component of a pixel differs
)

func (m DiffMode) String() string {
	switch m {
	case DiffAbsolute:
		return "Absolute"
	case DiffXOR:
		return "XOR"
	case DiffMask:
		return "Mask"
	default:
		return "Unknown"
	}
}

// Difference renders the per-byte difference between a and b. Identical
// inputs produce an all-black image.
func Difference(a, b *pixel.Image, mode DiffMode) (*pixel.Image, error) {
	if err := a.CheckSameSize(b); err != nil {
		return nil, err
	}
	out, err := pixel.New(a.Width, a.Height)
	if err != nil {
		return nil, err
	}

	switch mode {
	case DiffXOR:
		for i := range out.Pix {
			out.Pix[i] = a.Pix[i] ^ b.Pix[i]
		}
	case DiffMask:
		for i := 0; i+pixel.Channels <= len(out.Pix); i += pixel.Channels {
			if a.Pix[i] != b.Pix[i] || a.Pix[i+1] != b.Pix[i+1] || a.Pix[i+2] != b.Pix[i+2] {
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = 255, 255, 255
			}
		}
	default:
		for i := range out.Pix {
			d := int(a.Pix[i]) - int(b.Pix[i])
			if d < 0 {
				d = -d
			}
			out.Pix[i] = byte(d)
		}
	}
	return out, nil
}
