package dashboard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/drew/cirun/internal/ledger"
)

func pct(v float64) *float64 { return &v }

func sampleRecords() []ledger.Record {
	return []ledger.Record{
		{
			CommitID:    "aaaaaaaaaaaa",
			Status:      ledger.StatusSuccess,
			Description: "All passed",
			Coverage:    pct(80),
			Timestamp:   "2026-01-01T10:00:00Z",
			Results:     ledger.Results{Passed: []string{"TestMath/test_add", "TestIO/test_read"}},
		},
		{
			CommitID:    "bbbbbbbbbbbb",
			Status:      ledger.StatusFailure,
			Description: "1/2 tests failed",
			Coverage:    pct(70),
			Timestamp:   "2026-01-02T10:00:00Z",
			Results:     ledger.Results{Failed: []ledger.Failure{{ID: "TestIO/test_read", Diagnostic: "boom"}}},
		},
		{
			CommitID:    "cccc",
			Status:      ledger.StatusSuccess,
			Description: "All passed",
			Timestamp:   "2026-01-03T10:00:00Z",
			Results:     ledger.Results{Passed: []string{"TestMath/test_add", "TestIO/test_read"}},
		},
	}
}

func TestGenerateHistory(t *testing.T) {
	tmpDir := t.TempDir()

	if err := GenerateHistory(tmpDir, sampleRecords()); err != nil {
		t.Fatalf("GenerateHistory() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, SummaryFileName))
	if err != nil {
		t.Fatalf("Expected summary.json to be created: %v", err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("summary.json is not valid JSON: %v", err)
	}
	if summary.TotalRuns != 3 || summary.PassingRuns != 2 || summary.FailingRuns != 1 {
		t.Errorf("runs = %d/%d/%d, want 3/2/1", summary.TotalRuns, summary.PassingRuns, summary.FailingRuns)
	}

	html, err := os.ReadFile(filepath.Join(tmpDir, IndexFileName))
	if err != nil {
		t.Fatalf("Expected index.html to be created: %v", err)
	}
	for _, want := range []string{"reports/bbbbbbbbbbbb/index.html", "bbbbbbbb<", "1/2 tests failed", "70.0%", "TestIO/test_read"} {
		if !strings.Contains(string(html), want) {
			t.Errorf("index.html missing %q", want)
		}
	}
}

func TestGenerateHistoryEmpty(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "logs")

	if err := GenerateHistory(tmpDir, nil); err != nil {
		t.Fatalf("GenerateHistory() error = %v", err)
	}
	html, err := os.ReadFile(filepath.Join(tmpDir, IndexFileName))
	if err != nil {
		t.Fatalf("Expected index.html to be created: %v", err)
	}
	if !strings.Contains(string(html), "No runs recorded yet.") {
		t.Error("Expected empty-state message")
	}
}

func TestAggregate(t *testing.T) {
	now := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)
	summary := aggregate(sampleRecords(), now)

	if summary.LastGenerated != "2026-01-04T00:00:00Z" {
		t.Errorf("LastGenerated = %s", summary.LastGenerated)
	}

	var order []string
	for _, r := range summary.RecentRuns {
		order = append(order, r.ShortID)
	}
	if got := strings.Join(order, ","); got != "cccc,bbbbbbbb,aaaaaaaa" {
		t.Errorf("RecentRuns order = %s, want newest first", got)
	}

	if summary.LatestCoverage == nil || *summary.LatestCoverage != 70 {
		t.Errorf("LatestCoverage = %v, want 70", summary.LatestCoverage)
	}
	if summary.AverageCoverage == nil || *summary.AverageCoverage != 75 {
		t.Errorf("AverageCoverage = %v, want 75", summary.AverageCoverage)
	}

	if len(summary.FlakyTests) != 1 {
		t.Fatalf("FlakyTests = %+v, want one entry", summary.FlakyTests)
	}
	if ft := summary.FlakyTests[0]; ft.ID != "TestIO/test_read" || ft.FailCount != 1 || ft.LastFailed != "bbbbbbbbbbbb" {
		t.Errorf("FlakyTests[0] = %+v", ft)
	}
}

func TestAggregateWithoutTimestamps(t *testing.T) {
	records := []ledger.Record{
		{CommitID: "first", Status: ledger.StatusSuccess},
		{CommitID: "second", Status: ledger.StatusFailure},
	}
	summary := aggregate(records, time.Now())

	if summary.RecentRuns[0].CommitID != "second" {
		t.Errorf("expected the most recently appended record first, got %s", summary.RecentRuns[0].CommitID)
	}
	if summary.LatestCoverage != nil || summary.AverageCoverage != nil {
		t.Error("expected no coverage figures")
	}
	if summary.RecentRuns[1].Status != "PASS" || summary.RecentRuns[0].Status != "FAIL" {
		t.Errorf("statuses = %s, %s", summary.RecentRuns[0].Status, summary.RecentRuns[1].Status)
	}
}

func TestSummarizeRecordReportLink(t *testing.T) {
	tests := map[string]string{
		"abc123":    "reports/abc123/index.html",
		"feature/x": "reports/feature_x/index.html",
		"../../x":   "reports/.._.._x/index.html",
	}
	for commit, want := range tests {
		got := summarizeRecord(ledger.Record{CommitID: commit, Status: ledger.StatusSuccess}).ReportLink
		if got != want {
			t.Errorf("ReportLink for %q = %s, want %s", commit, got, want)
		}
	}
}

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"coverage nil", formatCoverage(nil), "n/a"},
		{"coverage value", formatCoverage(pct(66.666)), "66.7%"},
		{"time empty", formatTime(""), "-"},
		{"time invalid", formatTime("yesterday"), "yesterday"},
		{"class pass", statusClass("PASS"), "pass"},
		{"class other", statusClass("???"), ""},
		{"symbol fail", statusSymbol("FAIL"), "✗"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
