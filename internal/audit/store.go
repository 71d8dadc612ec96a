// Package audit persists reconstruction runs, their inferred stages and
// optional per-stage buffer snapshots in SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bitrevert/internal/pixel"
	"bitrevert/internal/reconstruct"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	ErrNotFound   = errors.New("audit: not found")
	ErrNoSnapshot = errors.New("audit: stage has no snapshot")
)

// Store is an audit database handle.
type Store struct {
	db        *sql.DB
	snapshots bool
	newID     func() string
}

// Option configures a Store.
type Option func(*Store)

// WithSnapshots controls whether stage buffers are stored. Default: on.
func WithSnapshots(on bool) Option { return func(s *Store) { s.snapshots = on } }

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(gen func() string) Option { return func(s *Store) { s.newID = gen } }

func newRunID() string { return "run_" + uuid.Must(uuid.NewV7()).String() }

// Open opens (creating if needed) the audit database at path and applies
// the schema. ":memory:" opens a private in-memory database.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", p, err)
		}
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: init schema: %w", err)
	}
	return New(db, opts...), nil
}

// New wraps an already initialized database.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, snapshots: true, newID: newRunID}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// RunInfo describes a run when it starts.
type RunInfo struct {
	CaseDir string
	Stages  int
	Width   int
	Height  int
	Params  any // marshalled to JSON
}

// Run is a stored run.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   time.Time // zero while running
	CaseDir      string
	Stages       int
	Width        int
	Height       int
	Params       string
	Status       string
	FailedStage  int // -1 when none
	ErrorMessage string
	Verified     *bool
	MSE          float64
	DiffPercent  float64
}

// StageRecord is a stored stage. Index is 0-based.
type StageRecord struct {
	Index       int
	Code        int
	Operation   string
	Inverse     string
	Checked     int
	Tried       int
	RecordedAt  time.Time
	HasSnapshot bool
}

// BeginRun inserts a run in the running state and returns its ID.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	params := "{}"
	if info.Params != nil {
		b, err := json.Marshal(info.Params)
		if err != nil {
			return "", fmt.Errorf("audit: marshal params: %w", err)
		}
		params = string(b)
	}

	id := s.newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, case_dir, stages, width, height, params, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UnixMilli(), info.CaseDir, info.Stages, info.Width, info.Height, params, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("audit: begin run: %w", err)
	}
	return id, nil
}

// RecordStage stores one inverted stage and, when snapshots are enabled,
// the compressed buffer left after undoing it.
func (s *Store) RecordStage(ctx context.Context, runID string, rec StageRecord, img *pixel.Image) error {
	var (
		blob          any // NULL unless a snapshot is stored
		width, height int
	)
	if s.snapshots && img != nil {
		blob = compress(img.Pix)
		width, height = img.Width, img.Height
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_stages
		(run_id, stage_index, code, operation, inverse, checked, tried, recorded_at, width, height, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Index, rec.Code, rec.Operation, rec.Inverse, rec.Checked, rec.Tried,
		time.Now().UnixMilli(), width, height, blob)
	if err != nil {
		return fmt.Errorf("audit: record stage %d: %w", rec.Index+1, err)
	}
	return nil
}

// Outcome is what FinishRun stores about a completed run.
type Outcome struct {
	Status      string
	FailedStage int // -1 when none
	Err         error
	Comparison  *pixel.Comparison
}

// FinishRun closes a run.
func (s *Store) FinishRun(ctx context.Context, runID string, out Outcome) error {
	var (
		failed   sql.NullInt64
		errMsg   sql.NullString
		verified sql.NullBool
		mse      sql.NullFloat64
		diffPct  sql.NullFloat64
	)
	if out.FailedStage >= 0 {
		failed = sql.NullInt64{Int64: int64(out.FailedStage), Valid: true}
	}
	if out.Err != nil {
		errMsg = sql.NullString{String: out.Err.Error(), Valid: true}
	}
	if c := out.Comparison; c != nil {
		verified = sql.NullBool{Bool: c.Match, Valid: true}
		mse = sql.NullFloat64{Float64: c.MSE, Valid: true}
		diffPct = sql.NullFloat64{Float64: c.DiffPercent, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, failed_stage = ?, error_message = ?,
		verified = ?, mse = ?, diff_percent = ? WHERE run_id = ?`,
		time.Now().UnixMilli(), out.Status, failed, errMsg, verified, mse, diffPct, runID)
	if err != nil {
		return fmt.Errorf("audit: finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

// Runs returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, started_at, finished_at, case_dir, stages, width, height, params,
		status, failed_stage, error_message, verified, mse, diff_percent
		FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			failed   sql.NullInt64
			errMsg   sql.NullString
			verified sql.NullBool
			mse      sql.NullFloat64
			diffPct  sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.CaseDir, &r.Stages, &r.Width, &r.Height,
			&r.Params, &r.Status, &failed, &errMsg, &verified, &mse, &diffPct); err != nil {
			return nil, fmt.Errorf("audit: scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		if finished.Valid {
			r.FinishedAt = time.UnixMilli(finished.Int64)
		}
		r.FailedStage = -1
		if failed.Valid {
			r.FailedStage = int(failed.Int64)
		}
		r.ErrorMessage = errMsg.String
		if verified.Valid {
			v := verified.Bool
			r.Verified = &v
		}
		r.MSE = mse.Float64
		r.DiffPercent = diffPct.Float64
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Stages returns the recorded stages of a run, oldest stage first.
func (s *Store) Stages(ctx context.Context, runID string) ([]StageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage_index, code, operation, inverse, checked, tried, recorded_at, snapshot IS NOT NULL
		FROM run_stages WHERE run_id = ? ORDER BY stage_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("audit: query stages: %w", err)
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		var (
			r  StageRecord
			at int64
		)
		if err := rows.Scan(&r.Index, &r.Code, &r.Operation, &r.Inverse, &r.Checked, &r.Tried, &at, &r.HasSnapshot); err != nil {
			return nil, fmt.Errorf("audit: scan stage: %w", err)
		}
		r.RecordedAt = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Snapshot returns the stored buffer for a stage.
func (s *Store) Snapshot(ctx context.Context, runID string, stage int) (*pixel.Image, error) {
	var (
		blob          []byte
		width, height int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT width, height, snapshot FROM run_stages WHERE run_id = ? AND stage_index = ?`,
		runID, stage).Scan(&width, &height, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s stage %d", ErrNotFound, runID, stage+1)
	}
	if err != nil {
		return nil, fmt.Errorf("audit: query snapshot: %w", err)
	}
	if blob == nil {
		return nil, fmt.Errorf("%w: run %s stage %d", ErrNoSnapshot, runID, stage+1)
	}

	pix, err := decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("audit: decompress snapshot: %w", err)
	}
	return pixel.FromBytes(width, height, pix)
}

// Recorder adapts the store to reconstruct.Recorder for one run.
func (s *Store) Recorder(runID string) reconstruct.Recorder {
	return &recorder{store: s, runID: runID}
}

type recorder struct {
	store *Store
	runID string
}

func (r *recorder) RecordStage(ctx context.Context, st reconstruct.Stage, img *pixel.Image) error {
	return r.store.RecordStage(ctx, r.runID, StageRecord{
		Index:     st.Index,
		Code:      st.Class.Code(),
		Operation: st.Class.String(),
		Inverse:   st.Class.InverseString(),
		Checked:   st.Checked,
		Tried:     st.Tried,
	}, img)
}
