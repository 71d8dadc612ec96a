package reconstruct

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"bitrevert/internal/classify"
	"bitrevert/internal/evidence"
	"bitrevert/internal/pixel"
	"bitrevert/internal/transform"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func image2x2(t *testing.T, pix ...byte) *pixel.Image {
	t.Helper()
	img, err := pixel.FromBytes(2, 2, pix)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

// twoStage builds original -> XOR(reference) -> RotateRight(3) and the
// evidence a processing run would have left behind for each stage input.
func twoStage(t *testing.T) (*Pipeline, *pixel.Image) {
	t.Helper()
	orig := image2x2(t, 12, 200, 7, 99, 143, 250, 1, 64, 180, 33, 77, 128)
	ref := image2x2(t, 91, 4, 230, 17, 66, 205, 120, 9, 48, 170, 222, 3)

	x, err := transform.XOR(orig.Pix, ref.Pix)
	if err != nil {
		t.Fatal(err)
	}
	out := transform.RotateRight(x, 3)

	processed := image2x2(t, out...)
	p := &Pipeline{
		Reference: ref,
		Processed: processed,
		Evidence: []evidence.Evidence{
			evidence.FromBuffer(orig.Pix, nil, 0, 4, false),
			evidence.FromBuffer(x, nil, 0, 4, false),
		},
		Expected: orig,
	}
	return p, orig
}

type memSink struct {
	paths []string
	fail  bool
}

func (s *memSink) Save(img *pixel.Image, path string) error {
	if s.fail {
		return errors.New("disk full")
	}
	s.paths = append(s.paths, path)
	return nil
}

type memRecorder struct {
	stages []Stage
}

func (r *memRecorder) RecordStage(_ context.Context, st Stage, _ *pixel.Image) error {
	r.stages = append(r.stages, st)
	return nil
}

func TestRunTwoStage(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		p, orig := twoStage(t)
		c := classify.New(classify.DefaultParams().WithParallel(parallel, 0), quietLogger())
		sink := &memSink{}
		rec := &memRecorder{}
		d := NewDriver(c, WithLogger(quietLogger()), WithSink(sink, "out"), WithRecorder(rec))

		res, err := d.Run(context.Background(), p)
		if err != nil {
			t.Fatalf("parallel=%v: %v", parallel, err)
		}
		if !res.OK() {
			t.Fatalf("parallel=%v: result not ok, failed stage %d", parallel, res.FailedStage)
		}
		if !res.Recovered.Equal(orig) {
			t.Errorf("parallel=%v: recovered %v, want %v", parallel, res.Recovered.Pix, orig.Pix)
		}
		if got := res.Stages[0].Class; got.Kind != classify.KindXOR {
			t.Errorf("stage 1 = %s, want XOR", got)
		}
		if got := res.Stages[1].Class; got.Kind != classify.KindRotateRight || got.Bits != 3 {
			t.Errorf("stage 2 = %s, want RotateRight(3)", got)
		}
		if codes := res.Codes(); len(codes) != 2 || codes[0] != 23 || codes[1] != 1 {
			t.Errorf("codes = %v, want [23 1]", codes)
		}
		if len(sink.paths) != 2 || sink.paths[0] != "out/stage_2_partial.bmp" || sink.paths[1] != "out/stage_1_partial.bmp" {
			t.Errorf("partials = %v", sink.paths)
		}
		if len(rec.stages) != 2 || rec.stages[0].Index != 1 || rec.stages[1].Index != 0 {
			t.Errorf("recorded = %+v", rec.stages)
		}

		cmp, err := Verify(res.Recovered, p.Expected)
		if err != nil {
			t.Fatal(err)
		}
		if !cmp.Match || cmp.DiffBytes != 0 || cmp.MSE != 0 {
			t.Errorf("verify = %+v", cmp)
		}
	}
}

func TestRunDoesNotMutateInputs(t *testing.T) {
	p, _ := twoStage(t)
	before := p.Processed.Clone()
	if _, err := NewDriver(nil, WithLogger(quietLogger())).Run(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if !p.Processed.Equal(before) {
		t.Error("processed image was modified")
	}
}

func TestRunHaltsOnCorruptedEvidence(t *testing.T) {
	p, _ := twoStage(t)
	// Corrupt one byte of the oldest stage's evidence.
	p.Evidence[0].Triplets[1][2] = (p.Evidence[0].Triplets[1][2] + 1) % 256

	rec := &memRecorder{}
	d := NewDriver(classify.New(classify.DefaultParams(), quietLogger()),
		WithLogger(quietLogger()), WithRecorder(rec))
	res, err := d.Run(context.Background(), p)
	if err == nil {
		t.Fatal("expected an error")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("error %T is not a *StageError", err)
	}
	if se.Stage != 0 {
		t.Errorf("failed at stage %d, want 0", se.Stage)
	}
	if !errors.Is(err, classify.ErrUndetermined) {
		t.Errorf("error %v does not wrap ErrUndetermined", err)
	}
	if res == nil || res.Recovered != nil || res.FailedStage != 0 || res.OK() {
		t.Fatalf("result = %+v", res)
	}
	// The newer stage was still inverted and recorded before the halt.
	if res.Stages[1].Class.Kind != classify.KindRotateRight {
		t.Errorf("stage 2 = %s", res.Stages[1].Class)
	}
	if res.Stages[0].Class.Determined() {
		t.Errorf("stage 1 should be undetermined, got %s", res.Stages[0].Class)
	}
	if len(rec.stages) != 1 {
		t.Errorf("recorded %d stages, want 1", len(rec.stages))
	}
}

func TestRunPreconditions(t *testing.T) {
	p, _ := twoStage(t)
	wide, err := pixel.New(4, 1)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		want   error
	}{
		{"no stages", func(p *Pipeline) { p.Evidence = nil }, ErrNoStages},
		{"no reference", func(p *Pipeline) { p.Reference = nil }, ErrNoInput},
		{"no processed", func(p *Pipeline) { p.Processed = nil }, ErrNoInput},
		{"size mismatch", func(p *Pipeline) { p.Reference = wide }, pixel.ErrSizeMismatch},
		{"mask mismatch", func(p *Pipeline) { p.Mask = wide }, pixel.ErrSizeMismatch},
		{"negative seed", func(p *Pipeline) { p.Evidence[1].Seed = -1 }, evidence.ErrNegativeSeed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := *p
			cp.Evidence = []evidence.Evidence{p.Evidence[0].Clone(), p.Evidence[1].Clone()}
			tt.mutate(&cp)
			rec := &memRecorder{}
			res, err := NewDriver(nil, WithLogger(quietLogger()), WithRecorder(rec)).Run(context.Background(), &cp)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if res != nil {
				t.Error("result returned for a rejected pipeline")
			}
			if len(rec.stages) != 0 {
				t.Error("stages processed before precondition failure")
			}
		})
	}
}

func TestRunCancelled(t *testing.T) {
	p, _ := twoStage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := NewDriver(nil, WithLogger(quietLogger())).Run(ctx, p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if res.Recovered != nil || res.FailedStage != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunSinkFailureIsNotFatal(t *testing.T) {
	p, orig := twoStage(t)
	sink := &memSink{fail: true}
	res, err := NewDriver(nil, WithLogger(quietLogger()), WithSink(sink, t.TempDir())).Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Recovered.Equal(orig) {
		t.Error("recovered image differs")
	}
	if len(res.Partials) != 0 {
		t.Errorf("partials = %v", res.Partials)
	}
}

func TestRunEvidencePastBufferEnd(t *testing.T) {
	orig := image2x2(t, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16)
	ref := image2x2(t, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	x, err := transform.XOR(orig.Pix, ref.Pix)
	if err != nil {
		t.Fatal(err)
	}
	ev := evidence.FromBuffer(orig.Pix, nil, 6, 2, false)
	// Two further triplets that fall past the 12-byte buffer.
	ev.Triplets = append(ev.Triplets, evidence.Triplet{1, 2, 3}, evidence.Triplet{4, 5, 6})

	p := &Pipeline{Reference: ref, Processed: image2x2(t, x...), Evidence: []evidence.Evidence{ev}}
	// Two in-range triplets confirm even though MinConfirm is 5.
	c := classify.New(classify.DefaultParams(), quietLogger())
	res, err := NewDriver(c, WithLogger(quietLogger())).Run(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Recovered.Equal(orig) {
		t.Errorf("recovered %v", res.Recovered.Pix)
	}
	if res.Stages[0].Checked != 2 {
		t.Errorf("checked = %d, want 2", res.Stages[0].Checked)
	}
}

func TestRunOverlay(t *testing.T) {
	for _, derived := range []bool{false, true} {
		p, orig := twoStage(t)
		if derived {
			x, err := transform.XOR(orig.Pix, p.Reference.Pix)
			if err != nil {
				t.Fatal(err)
			}
			p.Evidence[0] = evidence.FromBuffer(orig.Pix, p.Reference.Pix, 0, 4, true)
			p.Evidence[1] = evidence.FromBuffer(x, p.Reference.Pix, 0, 4, true)
		}
		res, err := NewDriver(nil, WithLogger(quietLogger()), WithOverlay(true)).Run(context.Background(), p)
		if err != nil {
			t.Fatalf("derived=%v: %v", derived, err)
		}
		if !res.Recovered.Equal(orig) {
			t.Errorf("derived=%v: overlay changed a correctly recovered image", derived)
		}
	}
}

func TestVerifyMismatch(t *testing.T) {
	a := image2x2(t, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	b := image2x2(t, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4)
	cmp, err := Verify(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if cmp.Match || cmp.DiffBytes != 1 {
		t.Errorf("cmp = %+v", cmp)
	}
	if _, err := Verify(nil, b); !errors.Is(err, ErrNoInput) {
		t.Errorf("err = %v", err)
	}
}
