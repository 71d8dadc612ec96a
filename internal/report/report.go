// Package report renders reconstruction results for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"bitrevert/internal/audit"
	"bitrevert/internal/pixel"
	"bitrevert/internal/reconstruct"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4CAF50"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#444444")).
	Padding(0, 1)

// Stages lists the inferred operations, newest stage first, the order in
// which they were undone.
func Stages(res *reconstruct.Result) string {
	var lines []string
	for i := len(res.Stages) - 1; i >= 0; i-- {
		st := res.Stages[i]
		switch {
		case st.Class.Determined():
			lines = append(lines, fmt.Sprintf("%-8s %-18s code %-3d undo: %s  %s",
				st.Name(), st.Class, st.Class.Code(), st.Class.InverseString(),
				dimStyle.Render(fmt.Sprintf("(%d checked, %d tried)", st.Checked, st.Tried))))
		case i == res.FailedStage:
			lines = append(lines, fmt.Sprintf("%-8s %s  %s", st.Name(), failStyle.Render("undetermined"),
				dimStyle.Render(fmt.Sprintf("(%d tried)", st.Tried))))
		default:
			lines = append(lines, fmt.Sprintf("%-8s %s", st.Name(), dimStyle.Render("not reached")))
		}
	}
	return strings.Join(lines, "\n")
}

// Verification renders the comparison against the known original.
func Verification(cmp pixel.Comparison) string {
	verdict := okStyle.Render("exact match")
	if !cmp.Match {
		verdict = failStyle.Render("mismatch")
	}
	return fmt.Sprintf("%s\n%d of %d bytes differ (%.4f%%)\nMSE %.4f, max abs diff %d",
		verdict, cmp.DiffBytes, cmp.TotalBytes, cmp.DiffPercent, cmp.MSE, cmp.MaxAbsDiff)
}

// Summary renders the full run report. cmp may be nil.
func Summary(res *reconstruct.Result, cmp *pixel.Comparison) string {
	status := okStyle.Render("reconstructed")
	if !res.OK() {
		status = failStyle.Render(fmt.Sprintf("halted at stage %d", res.FailedStage+1))
	}

	parts := []string{
		titleStyle.Render("Reconstruction") + "  " + status,
		Stages(res),
	}
	if len(res.Partials) > 0 {
		parts = append(parts, dimStyle.Render(fmt.Sprintf("%d partial images written", len(res.Partials))))
	}
	if cmp != nil {
		parts = append(parts, titleStyle.Render("Verification"), Verification(*cmp))
	}
	parts = append(parts, dimStyle.Render(fmt.Sprintf("elapsed %s", res.Elapsed.Round(time.Microsecond))))
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// History renders stored runs, one line each.
func History(runs []audit.Run) string {
	if len(runs) == 0 {
		return dimStyle.Render("no runs recorded")
	}
	lines := []string{titleStyle.Render("Runs")}
	for _, r := range runs {
		status := okStyle.Render(r.Status)
		if r.Status != audit.StatusSuccess {
			status = failStyle.Render(r.Status)
		}
		line := fmt.Sprintf("%s  %s  %d stages  %s", r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Stages, status)
		if r.FailedStage >= 0 {
			line += fmt.Sprintf(" at stage %d", r.FailedStage+1)
		}
		if r.Verified != nil {
			if *r.Verified {
				line += "  verified"
			} else {
				line += fmt.Sprintf("  %.4f%% differ", r.DiffPercent)
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// RunStages renders the stored stages of one run, newest first.
func RunStages(stages []audit.StageRecord) string {
	var lines []string
	for i := len(stages) - 1; i >= 0; i-- {
		s := stages[i]
		snap := ""
		if s.HasSnapshot {
			snap = dimStyle.Render("  [snapshot]")
		}
		lines = append(lines, fmt.Sprintf("  stage %-3d %-18s code %-3d undo: %s%s",
			s.Index+1, s.Operation, s.Code, s.Inverse, snap))
	}
	return strings.Join(lines, "\n")
}
