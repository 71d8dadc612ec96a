package reconstruct

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"bitrevert/internal/classify"
	"bitrevert/internal/pixel"
	"bitrevert/internal/transform"
)

// Sink persists an image. It is the boundary to the image encoder.
type Sink interface {
	Save(img *pixel.Image, path string) error
}

// Recorder receives each inverted stage, e.g. for an audit trail.
type Recorder interface {
	RecordStage(ctx context.Context, st Stage, out *pixel.Image) error
}

// Result is the outcome of a run.
type Result struct {
	// Recovered is the reconstructed original; nil unless every stage inverted.
	Recovered *pixel.Image
	// Stages lists inferred stages by index (oldest first). Entries past a
	// failure keep KindUnknown.
	Stages []Stage
	// FailedStage is the 0-based stage that halted the run, or -1.
	FailedStage int
	// Partials lists intermediate images written to the sink.
	Partials []string
	Elapsed  time.Duration
}

// OK reports whether every stage was inverted.
func (r *Result) OK() bool { return r.FailedStage < 0 && r.Recovered != nil }

// Codes returns the compact operation codes newest stage first, the order in
// which they were undone.
func (r *Result) Codes() []int {
	out := make([]int, 0, len(r.Stages))
	for i := len(r.Stages) - 1; i >= 0; i-- {
		out = append(out, r.Stages[i].Class.Code())
	}
	return out
}

// Driver orchestrates the backward walk.
type Driver struct {
	classifier *classify.Classifier
	logger     *slog.Logger
	sink       Sink
	sinkDir    string
	recorders  []Recorder
	overlay    bool
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(d *Driver) { d.logger = l } }

// WithSink writes each intermediate image to dir as stage_<k>_partial.bmp.
func WithSink(s Sink, dir string) Option {
	return func(d *Driver) { d.sink, d.sinkDir = s, dir }
}

// WithRecorder adds a stage recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Driver) { d.recorders = append(d.recorders, r) }
}

// WithOverlay rewrites the evidence-covered bytes of each inverted stage
// with the values the evidence carries before the next stage is classified.
func WithOverlay(on bool) Option { return func(d *Driver) { d.overlay = on } }

// NewDriver creates a driver around c.
func NewDriver(c *classify.Classifier, opts ...Option) *Driver {
	d := &Driver{classifier: c}
	for _, o := range opts {
		o(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.classifier == nil {
		d.classifier = classify.New(classify.DefaultParams(), d.logger)
	}
	return d
}

// PartialName is the file name of the image left after undoing stage index.
func PartialName(index int) string {
	return fmt.Sprintf("stage_%d_partial.bmp", index+1)
}

// Run reconstructs the original from p. Preconditions are checked before
// any stage is touched. On a stage failure the run halts, the returned
// Result has FailedStage set and no Recovered image, and the error is a
// *StageError.
func (d *Driver) Run(ctx context.Context, p *Pipeline) (*Result, error) {
	start := time.Now()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.Stages()
	res := &Result{Stages: make([]Stage, n), FailedStage: -1}
	for i := range res.Stages {
		res.Stages[i].Index = i
	}

	ref := p.Reference
	mask := p.MaskSource()
	cur := p.Processed.Clone()

	d.logger.Info("reconstruction started", "stages", n, "width", cur.Width, "height", cur.Height)

	for k := n - 1; k >= 0; k-- {
		if err := ctx.Err(); err != nil {
			res.FailedStage = k
			res.Elapsed = time.Since(start)
			return res, &StageError{Stage: k, Reason: "cancelled", Evidence: p.Evidence[k], Err: err}
		}

		ev := p.Evidence[k]
		cr, err := d.classifier.Classify(cur, ref, mask, ev)
		if cr != nil {
			res.Stages[k].Tried = cr.Tried()
		}
		if err != nil {
			res.FailedStage = k
			res.Elapsed = time.Since(start)
			d.logger.Error("stage failed", "stage", k+1, "evidence", ev.String(), "error", err)
			return res, &StageError{Stage: k, Reason: "classification failed", Evidence: ev, Err: err}
		}

		out := cr.Output
		if d.overlay {
			out = transform.Restore(out, mask.Pix, ev)
		}
		next, err := cur.WithPix(out)
		if err != nil {
			res.FailedStage = k
			res.Elapsed = time.Since(start)
			return res, &StageError{Stage: k, Reason: "inverse produced an invalid buffer", Evidence: ev, Err: err}
		}

		st := Stage{Index: k, Class: cr.Class, Checked: cr.Verdict.Checked, Tried: cr.Tried()}
		res.Stages[k] = st
		d.logger.Info("stage classified",
			"stage", k+1,
			"operation", st.Class.String(),
			"code", st.Class.Code(),
			"inverse", st.Class.InverseString(),
			"checked", st.Checked,
			"tried", st.Tried)

		d.emit(ctx, res, st, next)
		cur = next
	}

	res.Recovered = cur
	res.Elapsed = time.Since(start)
	d.logger.Info("reconstruction complete", "stages", n, "elapsed", res.Elapsed)
	return res, nil
}

// emit hands the intermediate image to the sink and recorders. Failures are
// logged; they never change the reconstruction verdict.
func (d *Driver) emit(ctx context.Context, res *Result, st Stage, img *pixel.Image) {
	if d.sink != nil {
		path := filepath.Join(d.sinkDir, PartialName(st.Index))
		if err := d.sink.Save(img, path); err != nil {
			d.logger.Warn("partial image not saved", "stage", st.Index+1, "path", path, "error", err)
		} else {
			res.Partials = append(res.Partials, path)
			d.logger.Debug("partial image saved", "stage", st.Index+1, "path", path)
		}
	}
	for _, r := range d.recorders {
		if err := r.RecordStage(ctx, st, img); err != nil {
			d.logger.Warn("stage not recorded", "stage", st.Index+1, "error", err)
		}
	}
}
