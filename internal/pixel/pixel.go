// Package pixel provides the flat RGB buffer model shared by every stage.
package pixel

import (
	"bytes"
	"errors"
	"fmt"
)

// Channels is the number of bytes per pixel (R, G, B).
const Channels = 3

var (
	ErrInvalidSize    = errors.New("pixel: width and height must be positive")
	ErrLengthMismatch = errors.New("pixel: buffer length does not match dimensions")
	ErrSizeMismatch   = errors.New("pixel: image dimensions differ")
)

// Image is a row-major, RGB-interleaved byte buffer.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// New allocates a zeroed image of the given size.
func New(width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	return &Image{
		Width:  width,
		Height: height,
		Pix:    make([]byte, width*height*Channels),
	}, nil
}

// FromBytes builds an image over a copy of pix.
func FromBytes(width, height int, pix []byte) (*Image, error) {
	img := &Image{Width: width, Height: height, Pix: append([]byte(nil), pix...)}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}

// Validate checks that the dimensions are positive and match the buffer.
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidSize)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, m.Width, m.Height)
	}
	if want := m.Width * m.Height * Channels; len(m.Pix) != want {
		return fmt.Errorf("%w: %dx%d needs %d bytes, have %d",
			ErrLengthMismatch, m.Width, m.Height, want, len(m.Pix))
	}
	return nil
}

// Len returns the buffer length in bytes.
func (m *Image) Len() int { return len(m.Pix) }

// Pixels returns the pixel count.
func (m *Image) Pixels() int { return m.Width * m.Height }

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	return &Image{Width: m.Width, Height: m.Height, Pix: append([]byte(nil), m.Pix...)}
}

// WithPix returns an image of the same size over pix (not copied).
func (m *Image) WithPix(pix []byte) (*Image, error) {
	out := &Image{Width: m.Width, Height: m.Height, Pix: pix}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// SameSize reports whether both images share dimensions.
func (m *Image) SameSize(o *Image) bool {
	return m != nil && o != nil && m.Width == o.Width && m.Height == o.Height
}

// CheckSameSize returns ErrSizeMismatch when the dimensions differ.
func (m *Image) CheckSameSize(o *Image) error {
	if !m.SameSize(o) {
		return fmt.Errorf("%w: %s vs %s", ErrSizeMismatch, m.dims(), o.dims())
	}
	return nil
}

// Equal reports byte-for-byte equality including dimensions.
func (m *Image) Equal(o *Image) bool {
	return m.SameSize(o) && bytes.Equal(m.Pix, o.Pix)
}

// Offset returns the byte offset of pixel (x, y).
func (m *Image) Offset(x, y int) int {
	return (y*m.Width + x) * Channels
}

// At returns the RGB triplet of pixel (x, y).
func (m *Image) At(x, y int) (r, g, b byte) {
	i := m.Offset(x, y)
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

// Set writes the RGB triplet of pixel (x, y).
func (m *Image) Set(x, y int, r, g, b byte) {
	i := m.Offset(x, y)
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

func (m *Image) dims() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%dx%d", m.Width, m.Height)
}
