package classify

import (
	"fmt"
	"log/slog"

	"bitrevert/internal/evidence"
	"bitrevert/internal/pixel"

	"golang.org/x/sync/errgroup"
)

// Trial records how one candidate fared.
type Trial struct {
	Class     Classification
	Verdict   Verdict
	Confirmed bool
	Output    []byte // inverse of the candidate applied to the input
	Err       error
}

// Result is the outcome of classifying one stage.
type Result struct {
	Class   Classification
	Verdict Verdict // verdict of the accepted candidate
	Output  []byte  // input with the accepted inverse applied; nil if undetermined
	Trials  []Trial // trials in candidate order, up to and including the accepted one
}

// Tried returns how many candidates were evaluated.
func (r *Result) Tried() int { return len(r.Trials) }

// Classifier runs the bounded trial-and-validate search.
type Classifier struct {
	params Params
	logger *slog.Logger
}

// New creates a classifier. A nil logger falls back to slog.Default().
func New(p Params, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{params: p.normalized(), logger: logger}
}

// Params returns the effective search parameters.
func (c *Classifier) Params() Params { return c.params }

// checkInputs enforces the size preconditions shared by Classify and Evaluate.
func checkInputs(cur, ref, mask *pixel.Image, ev evidence.Evidence) (*pixel.Image, error) {
	if err := cur.Validate(); err != nil {
		return nil, fmt.Errorf("current image: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}
	if err := cur.CheckSameSize(ref); err != nil {
		return nil, fmt.Errorf("current vs reference: %w", err)
	}
	if mask == nil {
		mask = ref
	} else {
		if err := mask.Validate(); err != nil {
			return nil, fmt.Errorf("mask image: %w", err)
		}
		if err := cur.CheckSameSize(mask); err != nil {
			return nil, fmt.Errorf("current vs mask: %w", err)
		}
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return mask, nil
}

func (c *Classifier) try(cand Candidate, cur []byte, mask []byte, ev evidence.Evidence) Trial {
	t := Trial{Class: cand.Class}
	out, err := cand.Op.Inverse(cur)
	if err != nil {
		t.Err = err
		return t
	}
	t.Output = out
	t.Verdict = Validate(out, mask, ev)
	// Triplets past the buffer end are not counted against the run.
	t.Confirmed = t.Verdict.Confirmed(t.Verdict.InRange, c.params.MinConfirm)
	return t
}

// Classify finds the first candidate, in Space order, whose inverse turns
// cur into a buffer consistent with ev. mask is the masking source; nil
// means the reference doubles as the mask. When nothing matches the result
// carries Undetermined and the error wraps ErrUndetermined.
func (c *Classifier) Classify(cur, ref, mask *pixel.Image, ev evidence.Evidence) (*Result, error) {
	mask, err := checkInputs(cur, ref, mask, ev)
	if err != nil {
		return nil, err
	}
	cands, err := Candidates(ref.Pix, mask.Pix, ev, c.params)
	if err != nil {
		return nil, err
	}

	var trials []Trial
	if c.params.Parallel {
		trials = c.runParallel(cands, cur.Pix, mask.Pix, ev)
	} else {
		trials = make([]Trial, 0, len(cands))
		for _, cand := range cands {
			t := c.try(cand, cur.Pix, mask.Pix, ev)
			trials = append(trials, t)
			if t.Confirmed {
				break
			}
		}
	}

	res := &Result{Class: Undetermined}
	for i, t := range trials {
		c.logger.Debug("candidate tried", "candidate", t.Class.String(), "verdict", t.Verdict.String(), "confirmed", t.Confirmed)
		if t.Confirmed {
			res.Class = t.Class
			res.Verdict = t.Verdict
			res.Output = t.Output
			res.Trials = trials[:i+1]
			return res, nil
		}
	}
	res.Trials = trials
	return res, fmt.Errorf("%w (%s, %d candidates tried)", ErrUndetermined, ev, len(trials))
}

// Evaluate runs every candidate without short-circuiting and returns all
// trials in candidate order. It is meant for diagnostics.
func (c *Classifier) Evaluate(cur, ref, mask *pixel.Image, ev evidence.Evidence) ([]Trial, error) {
	mask, err := checkInputs(cur, ref, mask, ev)
	if err != nil {
		return nil, err
	}
	cands, err := Candidates(ref.Pix, mask.Pix, ev, c.params)
	if err != nil {
		return nil, err
	}
	return c.runParallel(cands, cur.Pix, mask.Pix, ev), nil
}

// runParallel evaluates every candidate against the same read-only input.
// Each goroutine writes only its own slot, so result order is candidate order.
func (c *Classifier) runParallel(cands []Candidate, cur, mask []byte, ev evidence.Evidence) []Trial {
	trials := make([]Trial, len(cands))
	var g errgroup.Group
	if c.params.Workers > 0 {
		g.SetLimit(c.params.Workers)
	}
	for i, cand := range cands {
		g.Go(func() error {
			trials[i] = c.try(cand, cur, mask, ev)
			return nil
		})
	}
	g.Wait()
	return trials
}
