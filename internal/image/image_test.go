package image

import (
	"errors"
	stdimage "image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"bitrevert/internal/pixel"
)

func testImage(t *testing.T) *pixel.Image {
	t.Helper()
	m, err := pixel.New(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	for i := range m.Pix {
		m.Pix[i] = byte(i*37 + 5)
	}
	return m
}

func TestSaveLoadBMP(t *testing.T) {
	m := testImage(t)
	path := filepath.Join(t.TempDir(), "sub", "P2.bmp")
	if err := Save(m, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(m) {
		t.Errorf("round trip: got %v, want %v", got.Pix, m.Pix)
	}
}

func TestSaveWrites24Bit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bmp")
	if err := Save(testImage(t), path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 30 || data[0] != 'B' || data[1] != 'M' {
		t.Fatal("not a BMP file")
	}
	if bpp := int(data[28]) | int(data[29])<<8; bpp != 24 {
		t.Errorf("bits per pixel = %d, want 24", bpp)
	}
}

func TestLoadPNG(t *testing.T) {
	src := stdimage.NewNRGBA(stdimage.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{10, 20, 30, 255})
	src.Set(1, 0, color.NRGBA{40, 50, 60, 255})

	path := filepath.Join(t.TempDir(), "I_M.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 30, 40, 50, 60}
	if got.Width != 2 || got.Height != 1 || string(got.Pix) != string(want) {
		t.Errorf("got %dx%d %v", got.Width, got.Height, got.Pix)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.bmp")); !errors.Is(err, ErrCannotOpen) {
		t.Errorf("missing file: err = %v", err)
	}

	junk := filepath.Join(dir, "junk.bmp")
	if err := os.WriteFile(junk, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(junk); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("junk file: err = %v", err)
	}
}

func TestSaveInvalid(t *testing.T) {
	bad := &pixel.Image{Width: 2, Height: 2, Pix: make([]byte, 5)}
	if err := Save(bad, filepath.Join(t.TempDir(), "bad.bmp")); !errors.Is(err, ErrCannotWrite) {
		t.Errorf("err = %v", err)
	}
}

func TestDirSink(t *testing.T) {
	root := t.TempDir()
	s := DirSink{Root: root}
	if err := s.Save(testImage(t), "stage_1_partial.bmp"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "stage_1_partial.bmp")); err != nil {
		t.Error(err)
	}
}

func TestDifference(t *testing.T) {
	a := testImage(t)
	b := a.Clone()
	b.Pix[4] += 10

	tests := []struct {
		mode DiffMode
		want func(out *pixel.Image) bool
	}{
		{DiffAbsolute, func(out *pixel.Image) bool { return out.Pix[4] == 10 && out.Pix[0] == 0 }},
		{DiffXOR, func(out *pixel.Image) bool { return out.Pix[4] == a.Pix[4]^b.Pix[4] && out.Pix[5] == 0 }},
		{DiffMask, func(out *pixel.Image) bool {
			return out.Pix[3] == 255 && out.Pix[5] == 255 && out.Pix[0] == 0 && out.Pix[6] == 0
		}},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			out, err := Difference(a, b, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if !tt.want(out) {
				t.Errorf("unexpected output %v", out.Pix)
			}
		})
	}

	other, _ := pixel.New(1, 1)
	if _, err := Difference(a, other, DiffAbsolute); !errors.Is(err, pixel.ErrSizeMismatch) {
		t.Errorf("err = %v", err)
	}
}

func TestGuessRole(t *testing.T) {
	tests := map[string]Role{
		"I_M.bmp":             RoleReference,
		"/case/I_O.bmp":       RoleOriginal,
		"P3.bmp":              RoleProcessed,
		"stage_2_partial.bmp": RolePartial,
		"holiday.jpg":         RoleUnknown,
		"reference_scan.png":  RoleReference,
	}
	for path, want := range tests {
		if got := GuessRole(path); got != want {
			t.Errorf("GuessRole(%q) = %s, want %s", path, got, want)
		}
	}
	if n := ProcessedIndex("data/P12.bmp"); n != 12 {
		t.Errorf("ProcessedIndex = %d", n)
	}
	if n := ProcessedIndex("I_M.bmp"); n != 0 {
		t.Errorf("ProcessedIndex = %d", n)
	}
}
