package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"bitrevert/internal/classify"
	"bitrevert/internal/evidence"
	"bitrevert/internal/image"

	"github.com/spf13/cobra"
)

var (
	classifyStage  int
	classifyImage  string
	classifyConfig string
	classifyAll    bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <dir>",
	Short: "Classify a single stage against its output image",
	Long: `Classify one stage of a case directory. The stage output defaults to
P<stage>.bmp in the case directory; use --image for a partial image.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if classifyStage < 1 {
			return fmt.Errorf("--stage must be at least 1")
		}
		cfg, err := loadConfig(dir, classifyConfig)
		if err != nil {
			return err
		}
		logger := newLogger(cfg.LogLevel)

		ref, err := image.Load(cfg.ReferencePath(dir))
		if err != nil {
			return err
		}
		mask, err := loadOptional(cfg.MaskPath(dir))
		if err != nil {
			return err
		}
		curPath := classifyImage
		if curPath == "" {
			curPath = filepath.Join(dir, fmt.Sprintf("P%d.bmp", classifyStage))
		}
		cur, err := image.Load(curPath)
		if err != nil {
			return err
		}
		ev, err := evidence.Load(evidence.StagePath(dir, cfg.Pattern(), classifyStage))
		if err != nil {
			return err
		}

		c := classify.New(classifierParams(cfg), logger)
		out := cmd.OutOrStdout()
		if classifyAll {
			trials, err := c.Evaluate(cur, ref, mask, ev)
			if err != nil {
				return err
			}
			for _, t := range trials {
				mark := " "
				if t.Confirmed {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %-18s code %-3d %s\n", mark, t.Class, t.Class.Code(), t.Verdict)
			}
			return nil
		}

		res, err := c.Classify(cur, ref, mask, ev)
		if errors.Is(err, classify.ErrUndetermined) {
			fmt.Fprintf(out, "stage %d: undetermined after %d candidates\n", classifyStage, res.Tried())
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "stage %d: %s (code %d), undo with %s; %d triplets checked, %d candidates tried\n",
			classifyStage, res.Class, res.Class.Code(), res.Class.InverseString(), res.Verdict.Checked, res.Tried())
		return nil
	},
}

var stagesConfig string

var stagesCmd = &cobra.Command{
	Use:   "stages <dir>",
	Short: "Count the evidence files of a case directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		cfg, err := loadConfig(dir, stagesConfig)
		if err != nil {
			return err
		}
		n, err := evidence.CountStages(dir, cfg.Pattern())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d stages\n", n)

		files, err := evidence.StageFiles(dir)
		if err != nil {
			return err
		}
		keys := make([]int, 0, len(files))
		for k := range files {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		for _, k := range keys {
			note := ""
			if k > n {
				note = "  (ignored: gap before this stage)"
			}
			fmt.Fprintf(out, "  M%-3d %s%s\n", k, files[k], note)
		}
		return nil
	},
}

func init() {
	f := classifyCmd.Flags()
	f.IntVar(&classifyStage, "stage", 0, "stage to classify (1-based)")
	f.StringVar(&classifyImage, "image", "", "stage output image (default <dir>/P<stage>.bmp)")
	f.StringVar(&classifyConfig, "config", "", "case file (default <dir>/case.yaml)")
	f.BoolVar(&classifyAll, "all", false, "evaluate and print every candidate")
	classifyCmd.MarkFlagRequired("stage")

	stagesCmd.Flags().StringVar(&stagesConfig, "config", "", "case file (default <dir>/case.yaml)")

	rootCmd.AddCommand(classifyCmd, stagesCmd)
}
