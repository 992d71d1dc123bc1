package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/drew/cirun/internal/ledger"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output (show failing tests and diagnostics)")
	commit := flag.String("c", "", "Show only the record for this commit")
	dir := flag.String("d", "", "Log directory holding the ledger")
	flag.Parse()

	path := ""
	switch {
	case *dir != "":
		path = ledger.Path(*dir)
	case flag.NArg() > 0:
		path = flag.Arg(0)
	default:
		// Default: the ledger in .cirun
		path = ledger.Path(".cirun")
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(os.Stderr, "Usage: %s [options] <ledger-file>\n", os.Args[0])
			fmt.Fprintf(os.Stderr, "   or: %s -d <log-directory>\n\n", os.Args[0])
			fmt.Fprintf(os.Stderr, "Options:\n")
			flag.PrintDefaults()
			fmt.Fprintf(os.Stderr, "\nIf no file is specified, looks for .cirun/.db.json\n")
			os.Exit(1)
		}
	}

	records, err := ledger.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	if *commit != "" {
		r, ok := ledger.Find(records, *commit)
		if !ok {
			fmt.Fprintf(os.Stderr, "No record for commit %s\n", *commit)
			os.Exit(1)
		}
		records = []ledger.Record{r}
	}

	if len(records) == 0 {
		fmt.Println("No records found")
		return
	}

	printRecords(os.Stdout, records, *verbose)

	// Exit with error code if the last shown record failed
	if records[len(records)-1].Status == ledger.StatusFailure {
		os.Exit(1)
	}
}

// printRecords renders one row per record, followed by the failing tests of
// each record when verbose is set
func printRecords(w io.Writer, records []ledger.Record, verbose bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Commit", "Status", "Description", "Coverage", "Timestamp"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
	})
	for _, r := range records {
		t.AppendRow(table.Row{r.CommitID, string(r.Status), r.Description, formatCoverage(r.Coverage), r.Timestamp})
	}
	t.Render()

	if !verbose {
		return
	}
	for _, r := range records {
		if len(r.Results.Failed) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", r.CommitID)
		for _, f := range r.Results.Failed {
			fmt.Fprintf(w, "  ✗ %s\n", f.ID)
			for _, line := range strings.Split(strings.TrimSpace(f.Diagnostic), "\n") {
				if line != "" {
					fmt.Fprintf(w, "      %s\n", line)
				}
			}
		}
	}
}

func formatCoverage(pct *float64) string {
	if pct == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *pct)
}
