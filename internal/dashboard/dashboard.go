// Package dashboard renders the ledger history: a summary.json for tooling and
// an index.html page linking each commit to its coverage report.
package dashboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/drew/cirun/internal/fsutil"
	"github.com/drew/cirun/internal/ledger"
)

const (
	// SummaryFileName is the machine-readable history written to the log dir
	SummaryFileName = "summary.json"
	// IndexFileName is the history page written to the log dir
	IndexFileName = "index.html"
	// maxRecentRuns limits the rows on the history page
	maxRecentRuns = 50
)

// Summary holds aggregated data across all ledger records
type Summary struct {
	TotalRuns       int          `json:"totalRuns"`
	PassingRuns     int          `json:"passingRuns"`
	FailingRuns     int          `json:"failingRuns"`
	LatestCoverage  *float64     `json:"latestCoverage"`
	AverageCoverage *float64     `json:"averageCoverage"`
	RecentRuns      []RunSummary `json:"recentRuns"`
	FlakyTests      []TestStats  `json:"flakyTests"`
	LastGenerated   string       `json:"lastGenerated"`
}

// RunSummary is a condensed view of one ledger record
type RunSummary struct {
	CommitID    string   `json:"commitId"`
	ShortID     string   `json:"shortId"`
	Timestamp   string   `json:"timestamp"`
	Status      string   `json:"status"`
	Description string   `json:"description"`
	Coverage    *float64 `json:"coverage"`
	FailCount   int      `json:"failCount"`
	ReportLink  string   `json:"reportLink"`
}

// TestStats counts how often a test failed across the recorded commits
type TestStats struct {
	ID         string `json:"id"`
	FailCount  int    `json:"failCount"`
	LastFailed string `json:"lastFailed"`
}

// GenerateHistory writes summary.json and index.html into logDir
func GenerateHistory(logDir string, records []ledger.Record) error {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return err
	}
	summary := aggregate(records, time.Now())

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(logDir, SummaryFileName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", SummaryFileName, err)
	}

	if err := writeHistoryHTML(filepath.Join(logDir, IndexFileName), summary); err != nil {
		return fmt.Errorf("failed to write %s: %w", IndexFileName, err)
	}
	return nil
}

// aggregate summarizes records, newest first. Records without a timestamp
// keep their ledger position, which is append order.
func aggregate(records []ledger.Record, now time.Time) Summary {
	ordered := make([]ledger.Record, len(records))
	for i, r := range records {
		ordered[len(records)-1-i] = r
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Timestamp, ordered[j].Timestamp
		if a == "" || b == "" {
			return false
		}
		return a > b
	})

	summary := Summary{
		TotalRuns:     len(ordered),
		RecentRuns:    []RunSummary{},
		FlakyTests:    []TestStats{},
		LastGenerated: now.UTC().Format(time.RFC3339),
	}

	var covSum float64
	var covCount int
	failures := make(map[string]*TestStats)
	for i, r := range ordered {
		if r.Status == ledger.StatusSuccess {
			summary.PassingRuns++
		} else {
			summary.FailingRuns++
		}
		if r.Coverage != nil {
			if summary.LatestCoverage == nil {
				c := *r.Coverage
				summary.LatestCoverage = &c
			}
			covSum += *r.Coverage
			covCount++
		}
		for _, f := range r.Results.Failed {
			st, ok := failures[f.ID]
			if !ok {
				st = &TestStats{ID: f.ID, LastFailed: r.CommitID}
				failures[f.ID] = st
			}
			st.FailCount++
		}
		if i < maxRecentRuns {
			summary.RecentRuns = append(summary.RecentRuns, summarizeRecord(r))
		}
	}
	if covCount > 0 {
		avg := covSum / float64(covCount)
		summary.AverageCoverage = &avg
	}

	// a test that failed on some commits but not all of them
	for _, st := range failures {
		if st.FailCount < summary.TotalRuns {
			summary.FlakyTests = append(summary.FlakyTests, *st)
		}
	}
	sort.Slice(summary.FlakyTests, func(i, j int) bool {
		if summary.FlakyTests[i].FailCount != summary.FlakyTests[j].FailCount {
			return summary.FlakyTests[i].FailCount > summary.FlakyTests[j].FailCount
		}
		return summary.FlakyTests[i].ID < summary.FlakyTests[j].ID
	})
	return summary
}

func summarizeRecord(r ledger.Record) RunSummary {
	short := r.CommitID
	if len(short) > 8 {
		short = short[:8]
	}
	status := "PASS"
	if r.Status != ledger.StatusSuccess {
		status = "FAIL"
	}
	return RunSummary{
		CommitID:    r.CommitID,
		ShortID:     short,
		Timestamp:   r.Timestamp,
		Status:      status,
		Description: r.Description,
		Coverage:    r.Coverage,
		FailCount:   len(r.Results.Failed),
		ReportLink:  filepath.ToSlash(filepath.Join("reports", fsutil.PathElement(r.CommitID), "index.html")),
	}
}

// ensureDir creates the parent of path
func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
