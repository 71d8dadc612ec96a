package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"bitrevert/internal/classify"
	"bitrevert/internal/config"
	"bitrevert/internal/evidence"
	"bitrevert/internal/image"
	"bitrevert/internal/pixel"
	"bitrevert/internal/reconstruct"
)

// caseFiles is everything loaded from a case directory.
type caseFiles struct {
	Dir      string
	Config   *config.File
	Stages   int
	Pipeline *reconstruct.Pipeline
}

// loadConfig reads the case file at path, or dir/case.yaml when path is empty.
func loadConfig(dir, path string) (*config.File, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadDir(dir)
}

// stageCount resolves the number of stages: flag, then case file, then the
// evidence files present in dir.
func stageCount(dir string, cfg *config.File, flagStages int) (int, error) {
	n := flagStages
	if n == 0 {
		n = cfg.Stages
	}
	if n == 0 {
		counted, err := evidence.CountStages(dir, cfg.Pattern())
		if err != nil {
			return 0, err
		}
		n = counted
	}
	if n <= 0 {
		return 0, fmt.Errorf("no evidence files matching %q in %s", cfg.Pattern(), dir)
	}
	return n, nil
}

// loadOptional loads path when it exists. A missing file yields nil.
func loadOptional(path string) (*pixel.Image, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return image.Load(path)
}

// loadCase reads the images and evidence of an n-stage case.
func loadCase(dir string, cfg *config.File, n int) (*caseFiles, error) {
	ref, err := image.Load(cfg.ReferencePath(dir))
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}
	mask, err := loadOptional(cfg.MaskPath(dir))
	if err != nil {
		return nil, fmt.Errorf("mask: %w", err)
	}
	processed, err := image.Load(cfg.ProcessedPath(dir, n))
	if err != nil {
		return nil, fmt.Errorf("processed: %w", err)
	}
	orig, err := loadOptional(cfg.OriginalPath(dir))
	if err != nil {
		return nil, fmt.Errorf("original: %w", err)
	}
	evs, err := evidence.LoadAll(dir, cfg.Pattern(), n)
	if err != nil {
		return nil, err
	}

	return &caseFiles{
		Dir:    dir,
		Config: cfg,
		Stages: n,
		Pipeline: &reconstruct.Pipeline{
			Reference: ref,
			Mask:      mask,
			Processed: processed,
			Evidence:  evs,
			Expected:  orig,
		},
	}, nil
}

// classifierParams maps the case file onto classifier parameters.
func classifierParams(cfg *config.File) classify.Params {
	c := cfg.Classifier
	return classify.DefaultParams().
		WithMinConfirm(c.MinConfirm).
		WithCombinations(c.Combinations).
		WithParallel(c.Parallel, c.Workers)
}
