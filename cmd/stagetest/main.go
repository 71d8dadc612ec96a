// Command stagetest runs every classifier candidate against one stage and
// prints the verdicts.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitrevert/internal/classify"
	"bitrevert/internal/evidence"
	"bitrevert/internal/image"
	"bitrevert/internal/pixel"
)

func main() {
	imagePath := flag.String("image", "", "Stage output image (BMP, PNG, JPEG or TIFF)")
	refPath := flag.String("ref", "", "Reference image (XOR operand)")
	maskPath := flag.String("mask", "", "Mask image (default: the reference)")
	evPath := flag.String("evidence", "", "Evidence file for the stage")
	minConfirm := flag.Int("min-confirm", 5, "Triplets that must validate before a candidate is accepted")
	noCombos := flag.Bool("no-combos", false, "Skip the rotate-then-XOR candidates")
	flag.Parse()

	if *imagePath == "" || *refPath == "" || *evPath == "" {
		fmt.Println("Usage: stagetest -image <path> -ref <path> -evidence <path> [-mask <path>] [-min-confirm 5] [-no-combos]")
		os.Exit(1)
	}

	cur, err := image.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	ref, err := image.Load(*refPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load reference: %v\n", err)
		os.Exit(1)
	}
	var mask *pixel.Image
	if *maskPath != "" {
		if mask, err = image.Load(*maskPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load mask: %v\n", err)
			os.Exit(1)
		}
	}
	ev, err := evidence.Load(*evPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load evidence: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Loaded image: %dx%d pixels (%d bytes)\n", cur.Width, cur.Height, cur.Len())
	fmt.Printf("Evidence: %s, %d triplets in range\n", ev, ev.InRange(cur.Len()))

	derived := 0
	for _, t := range ev.Triplets {
		for _, v := range t {
			if evidence.IsDerived(v) {
				derived++
			}
		}
	}
	fmt.Printf("  Components: %d direct, %d derived\n", ev.Len()*pixel.Channels-derived, derived)

	params := classify.DefaultParams().WithMinConfirm(*minConfirm).WithCombinations(!*noCombos)
	fmt.Printf("\nSearch parameters:\n")
	fmt.Printf("  Min confirm: %d\n", params.MinConfirm)
	fmt.Printf("  Rotations: 1-%d\n", params.MaxBits)
	fmt.Printf("  Combinations: %v\n", params.Combinations)

	c := classify.New(params, nil)
	trials, err := c.Evaluate(cur, ref, mask, ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%-18s %5s %8s %10s  %s\n", "Candidate", "Code", "Checked", "Confirmed", "Verdict")
	fmt.Println(strings.Repeat("-", 72))

	first := -1
	for i, t := range trials {
		if t.Confirmed && first < 0 {
			first = i
		}
		fmt.Printf("%-18s %5d %8d %10v  %s\n", t.Class, t.Class.Code(), t.Verdict.Checked, t.Confirmed, t.Verdict)
	}

	if first < 0 {
		fmt.Printf("\nNo candidate confirmed (%d tried)\n", len(trials))
		os.Exit(2)
	}
	win := trials[first].Class
	fmt.Printf("\nAccepted: %s (code %d), undo with %s\n", win, win.Code(), win.InverseString())
}
