// Package image converts between image files and raw RGB pixel buffers.
package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"bitrevert/internal/pixel"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

var (
	ErrCannotOpen        = errors.New("image: cannot open")
	ErrUnsupportedFormat = errors.New("image: unsupported format")
	ErrCannotWrite       = errors.New("image: cannot write")
)

// Role indicates what part an image file plays in a case directory.
type Role int

const (
	RoleUnknown   Role = iota
	RoleReference      // XOR operand (I_M)
	RoleOriginal       // known original (I_O)
	RoleProcessed      // stage output (P<n>)
	RolePartial        // intermediate reconstruction
)

func (r Role) String() string {
	switch r {
	case RoleReference:
		return "Reference"
	case RoleOriginal:
		return "Original"
	case RoleProcessed:
		return "Processed"
	case RolePartial:
		return "Partial"
	default:
		return "Unknown"
	}
}

// Load decodes the file at path into an RGB buffer. Alpha is discarded.
func Load(path string) (*pixel.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrCannotOpen, path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnsupportedFormat, path, err)
	}

	out, err := FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert %s image %s: %w", format, path, err)
	}
	return out, nil
}

// FromImage flattens img into a row-major RGB buffer.
func FromImage(img image.Image) (*pixel.Image, error) {
	b := img.Bounds()
	out, err := pixel.New(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Bounds().Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	i := 0
	for y := 0; y < out.Height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < out.Width; x++ {
			copy(out.Pix[i:i+pixel.Channels], row[x*4:x*4+pixel.Channels])
			i += pixel.Channels
		}
	}
	return out, nil
}

// ToImage wraps the buffer in an opaque image.RGBA.
func ToImage(m *pixel.Image) *image.RGBA {
	rgba := image.NewRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.At(x, y)
			rgba.SetRGBA(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return rgba
}

var processedName = regexp.MustCompile(`^p(\d+)$`)

// GuessRole attempts to determine an image's role from its file name.
func GuessRole(path string) Role {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))

	switch {
	case strings.Contains(base, "partial"):
		return RolePartial
	case base == "i_m" || strings.Contains(base, "reference"):
		return RoleReference
	case base == "i_o" || strings.Contains(base, "original"):
		return RoleOriginal
	case processedName.MatchString(base):
		return RoleProcessed
	}
	return RoleUnknown
}

// ProcessedIndex returns n for a "P<n>" file name, or 0.
func ProcessedIndex(path string) int {
	base := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	m := processedName.FindStringSubmatch(base)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
