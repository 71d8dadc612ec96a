// Package reconstruct walks a chain of processing stages backward,
// classifying and inverting each one until the original image is recovered.
package reconstruct

import (
	"errors"
	"fmt"

	"bitrevert/internal/classify"
	"bitrevert/internal/evidence"
	"bitrevert/internal/pixel"
)

var (
	ErrNoStages   = errors.New("reconstruct: pipeline has no stages")
	ErrNoInput    = errors.New("reconstruct: missing input image")
	ErrInvalidRun = errors.New("reconstruct: invalid pipeline")
)

// Stage is one inferred processing step. Index is 0-based, oldest first.
type Stage struct {
	Index   int                     `json:"index"`
	Class   classify.Classification `json:"class"`
	Checked int                     `json:"checked"` // evidence triplets validated
	Tried   int                     `json:"tried"`   // candidates evaluated
}

// Name is the 1-based label used in file names and reports.
func (s Stage) Name() string { return fmt.Sprintf("stage %d", s.Index+1) }

// Pipeline holds the inputs of one reconstruction run.
type Pipeline struct {
	// Reference is the XOR operand (I_M).
	Reference *pixel.Image
	// Mask is the masking source; nil means Reference.
	Mask *pixel.Image
	// Processed is the output of the last stage.
	Processed *pixel.Image
	// Evidence holds one record per stage, index 0 for the oldest stage.
	Evidence []evidence.Evidence
	// Expected is the known original, used only for final verification.
	Expected *pixel.Image
}

// Stages returns the number of stages.
func (p *Pipeline) Stages() int { return len(p.Evidence) }

// MaskSource returns the effective mask image.
func (p *Pipeline) MaskSource() *pixel.Image {
	if p.Mask != nil {
		return p.Mask
	}
	return p.Reference
}

// Validate checks every precondition that must hold before the first stage.
func (p *Pipeline) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil pipeline", ErrInvalidRun)
	}
	if p.Reference == nil {
		return fmt.Errorf("%w: reference", ErrNoInput)
	}
	if p.Processed == nil {
		return fmt.Errorf("%w: processed", ErrNoInput)
	}
	if err := p.Reference.Validate(); err != nil {
		return fmt.Errorf("reference image: %w", err)
	}
	if err := p.Processed.Validate(); err != nil {
		return fmt.Errorf("processed image: %w", err)
	}
	if err := p.Processed.CheckSameSize(p.Reference); err != nil {
		return fmt.Errorf("processed vs reference: %w", err)
	}
	if p.Mask != nil {
		if err := p.Mask.Validate(); err != nil {
			return fmt.Errorf("mask image: %w", err)
		}
		if err := p.Processed.CheckSameSize(p.Mask); err != nil {
			return fmt.Errorf("processed vs mask: %w", err)
		}
	}
	if p.Expected != nil {
		if err := p.Expected.Validate(); err != nil {
			return fmt.Errorf("expected image: %w", err)
		}
	}
	if len(p.Evidence) == 0 {
		return ErrNoStages
	}
	for i, ev := range p.Evidence {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("stage %d evidence: %w", i+1, err)
		}
	}
	return nil
}

// StageError reports the stage at which reconstruction halted.
type StageError struct {
	Stage    int // 0-based
	Reason   string
	Evidence evidence.Evidence
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %d: %s (%s): %v", e.Stage+1, e.Reason, e.Evidence, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
