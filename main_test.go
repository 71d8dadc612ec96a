package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bitrevert/internal/audit"
	"bitrevert/internal/evidence"
	"bitrevert/internal/image"
	"bitrevert/internal/pixel"
	"bitrevert/internal/transform"
)

// writeCase lays out a two-stage case: XOR with the reference, then
// RotateRight(3).
func writeCase(t *testing.T) (string, *pixel.Image) {
	t.Helper()
	dir := t.TempDir()

	orig, err := pixel.New(4, 4)
	if err != nil {
		t.Fatal(err)
	}
	ref, _ := pixel.New(4, 4)
	for i := range orig.Pix {
		orig.Pix[i] = byte(i*53 + 11)
		ref.Pix[i] = byte(i*29 + 200)
	}
	x, err := transform.XOR(orig.Pix, ref.Pix)
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := orig.WithPix(x)
	p2, _ := orig.WithPix(transform.RotateRight(x, 3))

	for name, img := range map[string]*pixel.Image{"I_M.bmp": ref, "I_O.bmp": orig, "P1.bmp": p1, "P2.bmp": p2} {
		if err := image.Save(img, filepath.Join(dir, name)); err != nil {
			t.Fatal(err)
		}
	}
	evs := []evidence.Evidence{
		evidence.FromBuffer(orig.Pix, nil, 3, 8, false),
		evidence.FromBuffer(x, ref.Pix, 0, 8, true),
	}
	for i, ev := range evs {
		if err := evidence.Save(ev, filepath.Join(dir, fmt.Sprintf("M%d.txt", i+1))); err != nil {
			t.Fatal(err)
		}
	}
	return dir, orig
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestReconstructCommand(t *testing.T) {
	dir, orig := writeCase(t)
	db := filepath.Join(t.TempDir(), "audit.db")

	out, err := execute(t, "reconstruct", dir, "--audit", db)
	if err != nil {
		t.Fatalf("reconstruct: %v\n%s", err, out)
	}
	if !strings.Contains(out, "exact match") {
		t.Errorf("summary:\n%s", out)
	}

	got, err := image.Load(filepath.Join(dir, recoveredName))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(orig) {
		t.Error("reconstructed image differs from the original")
	}
	for _, name := range []string{"stage_1_partial.bmp", "stage_2_partial.bmp"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("partial %s: %v", name, err)
		}
	}

	store, err := audit.Open(db)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	runs, err := store.Runs(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != audit.StatusSuccess || runs[0].Verified == nil || !*runs[0].Verified {
		t.Errorf("runs = %+v", runs)
	}
}

func TestStagesCommand(t *testing.T) {
	dir, _ := writeCase(t)
	out, err := execute(t, "stages", dir)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "2 stages") {
		t.Errorf("output:\n%s", out)
	}
}

func TestClassifyCommand(t *testing.T) {
	dir, _ := writeCase(t)
	out, err := execute(t, "classify", dir, "--stage", "2")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "RotateRight(3)") {
		t.Errorf("output:\n%s", out)
	}
}
