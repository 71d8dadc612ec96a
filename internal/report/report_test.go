package report

import (
	"strings"
	"testing"
	"time"

	"bitrevert/internal/audit"
	"bitrevert/internal/classify"
	"bitrevert/internal/pixel"
	"bitrevert/internal/reconstruct"
)

func twoStageResult(failed int) *reconstruct.Result {
	res := &reconstruct.Result{
		Stages: []reconstruct.Stage{
			{Index: 0, Class: classify.Classification{Kind: classify.KindXOR}, Checked: 4, Tried: 1},
			{Index: 1, Class: classify.Classification{Kind: classify.KindRotateRight, Bits: 3}, Checked: 4, Tried: 4},
		},
		FailedStage: failed,
		Elapsed:     3 * time.Millisecond,
	}
	if failed >= 0 {
		res.Stages[failed].Class = classify.Undetermined
	} else {
		res.Recovered = &pixel.Image{Width: 1, Height: 1, Pix: []byte{1, 2, 3}}
	}
	return res
}

func TestStagesNewestFirst(t *testing.T) {
	out := Stages(twoStageResult(-1))
	i2 := strings.Index(out, "stage 2")
	i1 := strings.Index(out, "stage 1")
	if i1 < 0 || i2 < 0 || i2 > i1 {
		t.Fatalf("stage order wrong:\n%s", out)
	}
	if !strings.Contains(out, "RotateRight(3)") || !strings.Contains(out, "undo: RotateLeft(3)") {
		t.Errorf("missing operation:\n%s", out)
	}
}

func TestSummaryFailure(t *testing.T) {
	out := Summary(twoStageResult(0), nil)
	if !strings.Contains(out, "halted at stage 1") || !strings.Contains(out, "undetermined") {
		t.Errorf("summary:\n%s", out)
	}
	if strings.Contains(out, "Verification") {
		t.Error("verification block without a comparison")
	}
}

func TestSummaryVerified(t *testing.T) {
	cmp := &pixel.Comparison{Match: false, DiffBytes: 1, TotalBytes: 12, DiffPercent: 8.3333, MSE: 1.5, MaxAbsDiff: 4}
	out := Summary(twoStageResult(-1), cmp)
	for _, want := range []string{"reconstructed", "Verification", "mismatch", "1 of 12 bytes differ"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestHistory(t *testing.T) {
	v := true
	runs := []audit.Run{
		{ID: "run_b", Stages: 2, Status: audit.StatusSuccess, FailedStage: -1, Verified: &v},
		{ID: "run_a", Stages: 3, Status: audit.StatusFailed, FailedStage: 1},
	}
	out := History(runs)
	if !strings.Contains(out, "run_b") || !strings.Contains(out, "verified") || !strings.Contains(out, "at stage 2") {
		t.Errorf("history:\n%s", out)
	}
	if !strings.Contains(History(nil), "no runs") {
		t.Error("empty history")
	}
}

func TestRunStages(t *testing.T) {
	out := RunStages([]audit.StageRecord{
		{Index: 0, Code: 1, Operation: "XOR", Inverse: "XOR with reference"},
		{Index: 1, Code: 23, Operation: "RotateRight(3)", Inverse: "RotateLeft(3)", HasSnapshot: true},
	})
	if strings.Index(out, "stage 2") > strings.Index(out, "stage 1") {
		t.Errorf("order:\n%s", out)
	}
	if !strings.Contains(out, "[snapshot]") {
		t.Errorf("snapshot marker missing:\n%s", out)
	}
}
