package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"bitrevert/internal/audit"
	"bitrevert/internal/classify"
	"bitrevert/internal/image"
	"bitrevert/internal/pixel"
	"bitrevert/internal/reconstruct"
	"bitrevert/internal/report"

	"github.com/spf13/cobra"
)

const (
	recoveredName  = "reconstructed.bmp"
	differenceName = "difference.bmp"
)

var (
	reconstructStages     int
	reconstructConfig     string
	reconstructOut        string
	reconstructParallel   bool
	reconstructNoPartials bool
	reconstructAudit      string
)

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct <dir>",
	Short: "Classify and invert every stage of a case directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		cfg, err := loadConfig(dir, reconstructConfig)
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)

		if cmd.Flags().Changed("parallel") {
			cfg.Classifier.Parallel = reconstructParallel
		}
		if reconstructNoPartials {
			cfg.SavePartials = false
		}
		outDir := cfg.OutputPath(dir)
		if reconstructOut != "" {
			outDir = reconstructOut
		}
		auditPath := cfg.AuditPath(dir)
		if reconstructAudit != "" {
			auditPath = reconstructAudit
		}

		n, err := stageCount(dir, cfg, reconstructStages)
		if err != nil {
			return err
		}
		cf, err := loadCase(dir, cfg, n)
		if err != nil {
			return err
		}
		p := cf.Pipeline
		logger.Info("case loaded", "dir", dir, "stages", n,
			"width", p.Processed.Width, "height", p.Processed.Height,
			"original", p.Expected != nil, "mask", p.Mask != nil)

		params := classifierParams(cfg)
		opts := []reconstruct.Option{
			reconstruct.WithLogger(logger),
			reconstruct.WithOverlay(cfg.OverlayEvidence),
		}
		if cfg.SavePartials {
			opts = append(opts, reconstruct.WithSink(image.DirSink{}, outDir))
		}

		var (
			store *audit.Store
			runID string
		)
		if auditPath != "" {
			store, err = audit.Open(auditPath, audit.WithSnapshots(cfg.Audit.Snapshots))
			if err != nil {
				return err
			}
			defer store.Close()
			runID, err = store.BeginRun(cmd.Context(), audit.RunInfo{
				CaseDir: dir,
				Stages:  n,
				Width:   p.Processed.Width,
				Height:  p.Processed.Height,
				Params:  params,
			})
			if err != nil {
				return err
			}
			opts = append(opts, reconstruct.WithRecorder(store.Recorder(runID)))
			logger.Info("audit run started", "run", runID, "database", auditPath)
		}

		driver := reconstruct.NewDriver(classify.New(params, logger), opts...)
		res, runErr := driver.Run(cmd.Context(), p)
		if res == nil {
			finishAudit(cmd, store, runID, -1, runErr, nil, logger)
			return runErr
		}

		var cmp *pixel.Comparison
		if res.OK() {
			path := filepath.Join(outDir, recoveredName)
			if err := image.Save(res.Recovered, path); err != nil {
				runErr = err
			} else {
				logger.Info("reconstructed image saved", "path", path)
			}
			if p.Expected != nil {
				cmp, err = verify(res.Recovered, p.Expected, outDir, logger)
				if err != nil {
					logger.Warn("verification failed", "error", err)
				}
			}
		}

		finishAudit(cmd, store, runID, res.FailedStage, runErr, cmp, logger)
		fmt.Fprintln(cmd.OutOrStdout(), report.Summary(res, cmp))
		return runErr
	},
}

// verify compares the recovered image with the known original and writes a
// difference image when they disagree.
func verify(recovered, expected *pixel.Image, outDir string, logger *slog.Logger) (*pixel.Comparison, error) {
	cmp, err := reconstruct.Verify(recovered, expected)
	if err != nil {
		return nil, err
	}
	if cmp.Match {
		return &cmp, nil
	}
	diff, err := image.Difference(recovered, expected, image.DiffAbsolute)
	if err != nil {
		return &cmp, err
	}
	path := filepath.Join(outDir, differenceName)
	if err := image.Save(diff, path); err != nil {
		return &cmp, err
	}
	logger.Info("difference image saved", "path", path, "diff_bytes", cmp.DiffBytes)
	return &cmp, nil
}

func finishAudit(cmd *cobra.Command, store *audit.Store, runID string, failed int, runErr error, cmp *pixel.Comparison, logger *slog.Logger) {
	if store == nil {
		return
	}
	status := audit.StatusSuccess
	var se *reconstruct.StageError
	if runErr != nil {
		status = audit.StatusFailed
		if errors.As(runErr, &se) {
			failed = se.Stage
		}
	}
	out := audit.Outcome{Status: status, FailedStage: failed, Err: runErr, Comparison: cmp}
	if err := store.FinishRun(cmd.Context(), runID, out); err != nil {
		logger.Warn("audit run not finished", "run", runID, "error", err)
	}
}

func init() {
	f := reconstructCmd.Flags()
	f.IntVar(&reconstructStages, "stages", 0, "number of stages (default: case file, then evidence files found)")
	f.StringVar(&reconstructConfig, "config", "", "case file (default <dir>/case.yaml)")
	f.StringVarP(&reconstructOut, "out", "o", "", "output directory for partial and final images")
	f.BoolVar(&reconstructParallel, "parallel", false, "evaluate candidates concurrently")
	f.BoolVar(&reconstructNoPartials, "no-partials", false, "do not write intermediate images")
	f.StringVar(&reconstructAudit, "audit", "", "SQLite audit database")
	rootCmd.AddCommand(reconstructCmd)
}
