package image

import (
	"fmt"
	"os"
	"path/filepath"

	"bitrevert/internal/pixel"

	"golang.org/x/image/bmp"
)

// Save writes m as an uncompressed 24-bit BMP. Parent directories are
// created as needed.
func Save(m *pixel.Image, path string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w %s: %v", ErrCannotWrite, path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w %s: %v", ErrCannotWrite, path, err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrCannotWrite, path, err)
	}
	if err := bmp.Encode(f, ToImage(m)); err != nil {
		f.Close()
		return fmt.Errorf("%w %s: %v", ErrCannotWrite, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w %s: %v", ErrCannotWrite, path, err)
	}
	return nil
}

// DirSink saves images below a root directory. Relative paths passed to Save
// are joined onto Root; absolute paths are used as is.
type DirSink struct {
	Root string
}

// Save implements reconstruct.Sink.
func (s DirSink) Save(m *pixel.Image, path string) error {
	if s.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.Root, path)
	}
	return Save(m, path)
}
