// Package ui renders run headers and summaries for the console.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// maxDiagnosticLines caps the diagnostic excerpt shown per problem
const maxDiagnosticLines = 8

// Renderer handles console rendering
type Renderer struct {
	out    io.Writer
	colors *Colors
}

// NewRenderer creates a renderer writing to out. Colors are only used when out
// is a terminal.
func NewRenderer(out io.Writer, enableColors bool) *Renderer {
	if !IsTerminalWriter(out) {
		enableColors = false
	}
	return &Renderer{
		out:    out,
		colors: NewColors(enableColors),
	}
}

// Header describes a run before it starts
type Header struct {
	Commit  string // empty for a preview run
	Label   string
	Engine  string
	Roots   []string
	LogDir  string
	Strict  bool
	DryRun  bool
	Version string
}

// RenderHeader renders the run header
func (r *Renderer) RenderHeader(h Header) {
	title := "cirun"
	if h.Version != "" {
		title += " " + h.Version
	}
	fmt.Fprintln(r.out, r.colors.Bold(title))
	if h.Commit != "" {
		fmt.Fprintf(r.out, "Commit: %s\n", h.Commit)
	} else {
		fmt.Fprintf(r.out, "Commit: %s\n", r.colors.Yellow("none (preview run, reports under "+h.Label+")"))
	}
	fmt.Fprintf(r.out, "Engine: %s\n", h.Engine)
	fmt.Fprintf(r.out, "Roots:  %s\n", strings.Join(h.Roots, ", "))
	fmt.Fprintf(r.out, "Logs:   %s\n", h.LogDir)

	var modes []string
	if h.Strict {
		modes = append(modes, "strict")
	}
	if h.DryRun {
		modes = append(modes, "dry-run")
	}
	if len(modes) > 0 {
		fmt.Fprintf(r.out, "Mode:   %s\n", r.colors.Cyan(strings.Join(modes, ", ")))
	}
	fmt.Fprintln(r.out)
}

// Problem is a failed, errored or skipped test shown in the summary
type Problem struct {
	ID         string
	Status     string
	Diagnostic string
}

// Summary describes a finished run
type Summary struct {
	Commit     string
	DryRun     bool
	Planned    int
	Total      int
	Failed     int
	Errored    int
	Skipped    int
	Duration   time.Duration
	Coverage   *float64
	ReportDir  string
	LedgerPath string
	Saved      bool
	Problems   []Problem
}

// Passed returns the number of passing tests
func (s Summary) Passed() int {
	return s.Total - s.Failed - s.Errored - s.Skipped
}

// RenderPlan renders the tests a dry run would execute
func (r *Renderer) RenderPlan(tests []string) {
	fmt.Fprintln(r.out, r.colors.Bold("Planned tests:"))
	for _, id := range tests {
		fmt.Fprintf(r.out, "  %s\n", id)
	}
	fmt.Fprintf(r.out, "\n%d test(s) would run\n\n", len(tests))
}

// RenderProblems prints each failing test with a short diagnostic excerpt
func (r *Renderer) RenderProblems(problems []Problem) {
	if len(problems) == 0 {
		return
	}
	fmt.Fprintln(r.out, r.colors.Bold("Problems:"))
	for _, p := range problems {
		fmt.Fprintf(r.out, "  %s %s %s\n", r.colors.StatusSymbol(p.Status), r.colors.StatusColor(p.Status, p.Status), p.ID)
		for _, line := range excerpt(p.Diagnostic, maxDiagnosticLines) {
			fmt.Fprintf(r.out, "      %s\n", r.colors.Gray(line))
		}
	}
	fmt.Fprintln(r.out)
}

// RenderSummary renders the summary table and the final status line
func (r *Renderer) RenderSummary(s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle("Test summary")
	t.AppendHeader(table.Row{"Tests", "Passed", "Failed", "Errors", "Skipped", "Coverage", "Duration"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})

	if s.DryRun {
		t.AppendRow(table.Row{s.Planned, "-", "-", "-", "-", "-", "-"})
	} else {
		t.AppendRow(table.Row{s.Total, s.Passed(), s.Failed, s.Errored, s.Skipped, formatCoverage(s.Coverage), formatDuration(s.Duration)})
	}

	if r.colors.Enabled() {
		switch {
		case s.Failed+s.Errored > 0:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		case s.Skipped > 0:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	} else {
		t.SetStyle(table.StyleLight)
	}
	t.Render()
	fmt.Fprintln(r.out)

	if s.ReportDir != "" && !s.DryRun {
		fmt.Fprintf(r.out, "Reports: %s\n", s.ReportDir)
	}
	switch {
	case s.DryRun:
		fmt.Fprintln(r.out, r.colors.Cyan("cirun: dry run, nothing executed or recorded"))
	case s.Saved:
		fmt.Fprintf(r.out, "Ledger:  %s (%s)\n", s.LedgerPath, s.Commit)
	default:
		fmt.Fprintln(r.out, r.colors.Yellow("cirun: no commit given, results not recorded"))
	}

	if !s.DryRun {
		if s.Failed+s.Errored > 0 {
			fmt.Fprintln(r.out, r.colors.Red(fmt.Sprintf("cirun: %d/%d tests failed", s.Failed+s.Errored, s.Total)))
		} else {
			fmt.Fprintln(r.out, r.colors.Green("cirun: all tests passed"))
		}
	}
	fmt.Fprintln(r.out)
}

// RenderError prints a fatal error
func (r *Renderer) RenderError(err error) {
	fmt.Fprintf(r.out, "%s %v\n", r.colors.Red("cirun: error:"), err)
}

func excerpt(diag string, maxLines int) []string {
	diag = strings.TrimSpace(diag)
	if diag == "" {
		return nil
	}
	lines := strings.Split(diag, "\n")
	if len(lines) > maxLines {
		more := len(lines) - maxLines
		lines = append(lines[:maxLines], fmt.Sprintf("... (%d more lines)", more))
	}
	return lines
}

func formatCoverage(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *pct)
}

func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	seconds := float64(ms) / 1000.0
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	minutes := int(seconds / 60)
	secs := int(seconds) % 60
	return fmt.Sprintf("%dm %ds", minutes, secs)
}
