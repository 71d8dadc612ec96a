// Package config handles the case file that describes one reconstruction:
// which images and evidence files to use and how the classifier searches.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bitrevert/internal/evidence"

	"gopkg.in/yaml.v3"
)

// FileName is the case file looked up in a case directory.
const FileName = "case.yaml"

var ErrInvalid = errors.New("config: invalid")

// ClassifierConfig mirrors classify.Params.
type ClassifierConfig struct {
	MinConfirm   int  `yaml:"min_confirm"`
	Parallel     bool `yaml:"parallel"`
	Workers      int  `yaml:"workers,omitempty"`
	Combinations bool `yaml:"combinations"`
}

// AuditConfig controls the SQLite audit trail.
type AuditConfig struct {
	Database  string `yaml:"database,omitempty"` // empty disables auditing
	Snapshots bool   `yaml:"snapshots"`
}

// File models case.yaml. Paths are relative to the case directory unless
// absolute.
type File struct {
	Version int `yaml:"version"`

	// Image paths
	Reference string `yaml:"reference"`
	Processed string `yaml:"processed,omitempty"` // default P<stages>.bmp
	Original  string `yaml:"original,omitempty"`
	Mask      string `yaml:"mask,omitempty"` // default: the reference

	// Stage layout
	Stages          int    `yaml:"stages"` // 0 infers from evidence files
	EvidencePattern string `yaml:"evidence_pattern"`

	// Output
	OutputDir       string `yaml:"output_dir"`
	SavePartials    bool   `yaml:"save_partials"`
	OverlayEvidence bool   `yaml:"overlay_evidence"`

	Classifier ClassifierConfig `yaml:"classifier"`
	Audit      AuditConfig      `yaml:"audit"`
	LogLevel   string           `yaml:"log_level"`
}

// Default returns the settings used when no case file exists.
func Default() *File {
	return &File{
		Version:         1,
		Reference:       "I_M.bmp",
		Original:        "I_O.bmp",
		EvidencePattern: evidence.DefaultPattern,
		OutputDir:       ".",
		SavePartials:    true,
		Classifier: ClassifierConfig{
			MinConfirm:   5,
			Combinations: true,
		},
		Audit:    AuditConfig{Snapshots: true},
		LogLevel: "info",
	}
}

// Load reads a case file. Unset fields keep their defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read case file: %w", err)
	}

	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse case file %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LoadDir reads dir/case.yaml, falling back to defaults when it is absent.
func LoadDir(dir string) (*File, error) {
	f, err := Load(filepath.Join(dir, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return f, err
}

// Validate rejects settings no run could use.
func (f *File) Validate() error {
	if strings.TrimSpace(f.Reference) == "" {
		return fmt.Errorf("%w: reference image is required", ErrInvalid)
	}
	if f.Stages < 0 {
		return fmt.Errorf("%w: stages must not be negative, got %d", ErrInvalid, f.Stages)
	}
	if f.Classifier.MinConfirm < 1 {
		return fmt.Errorf("%w: classifier.min_confirm must be at least 1, got %d", ErrInvalid, f.Classifier.MinConfirm)
	}
	if f.Classifier.Workers < 0 {
		return fmt.Errorf("%w: classifier.workers must not be negative", ErrInvalid)
	}
	if f.EvidencePattern != "" && strings.Count(f.EvidencePattern, "%d") != 1 {
		return fmt.Errorf("%w: evidence_pattern %q needs exactly one %%d", ErrInvalid, f.EvidencePattern)
	}
	switch strings.ToLower(f.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, f.LogLevel)
	}
	return nil
}

// Save writes the case file.
func (f *File) Save(path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal case file: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// resolve returns p relative to dir unless p is absolute or empty.
func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// ReferencePath returns the absolute path to the reference image.
func (f *File) ReferencePath(dir string) string { return resolve(dir, f.Reference) }

// MaskPath returns the mask image path, or "" when the reference doubles as the mask.
func (f *File) MaskPath(dir string) string { return resolve(dir, f.Mask) }

// OriginalPath returns the known original's path, or "" when none is configured.
func (f *File) OriginalPath(dir string) string { return resolve(dir, f.Original) }

// ProcessedPath returns the last stage's output image for a run of n stages.
func (f *File) ProcessedPath(dir string, n int) string {
	if f.Processed == "" {
		// Default: P<stages>.bmp
		return filepath.Join(dir, fmt.Sprintf("P%d.bmp", n))
	}
	return resolve(dir, f.Processed)
}

// OutputPath returns the directory for partial and final images.
func (f *File) OutputPath(dir string) string {
	if f.OutputDir == "" {
		return dir
	}
	return resolve(dir, f.OutputDir)
}

// AuditPath returns the audit database path, or "" when auditing is off.
func (f *File) AuditPath(dir string) string {
	if f.Audit.Database == ":memory:" {
		return f.Audit.Database
	}
	return resolve(dir, f.Audit.Database)
}

// Pattern returns the evidence file pattern.
func (f *File) Pattern() string {
	if f.EvidencePattern == "" {
		return evidence.DefaultPattern
	}
	return f.EvidencePattern
}
