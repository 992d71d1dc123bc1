package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/drew/cirun/internal/exitcodes"
	"github.com/drew/cirun/internal/ledger"
)

const failingReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuite name="MathTests" tests="3" failures="1">
  <testcase name="test_add" classname="TestMath"/>
  <testcase name="test_mul" classname="TestMath"/>
  <testcase name="test_sub" classname="TestMath">
    <failure message="assertion failed">Expected 1 but got 2</failure>
  </testcase>
</testsuite>`

const passingReport = `<?xml version="1.0" encoding="UTF-8"?>
<testsuite name="IOTests" tests="1">
  <testcase name="test_read" classname="TestIO"/>
</testsuite>`

// setupReports writes JUnit reports into a fresh test root and returns the
// root and a log directory
func setupReports(t *testing.T, reports map[string]string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	root := filepath.Join(dir, "tests")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range reports {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root, filepath.Join(dir, ".cirun")
}

func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(context.Background(), args, &out, &out)
	return code, out.String()
}

func TestRun_RecordsCommit(t *testing.T) {
	root, logDir := setupReports(t, map[string]string{"test_math.xml": failingReport, "test_io.xml": passingReport})

	code, out := runCLI(t, "-root", root, "-logdir", logDir, "-repo", filepath.Dir(root), "-engine", "junit", "-commit", "abc123", "-no-color")
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d, want %d\n%s", code, exitcodes.Success, out)
	}
	for _, want := range []string{"TestMath/test_sub", "Expected 1 but got 2", "cirun: 1/4 tests failed", "(abc123)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	records, err := ledger.Load(ledger.Path(logDir))
	if err != nil {
		t.Fatalf("ledger.Load() error = %v", err)
	}
	r, ok := ledger.Find(records, "abc123")
	if !ok {
		t.Fatalf("Expected a record for abc123, got %+v", records)
	}
	if r.Status != ledger.StatusFailure || len(r.Results.Failed) != 1 || r.Results.Failed[0].ID != "TestMath/test_sub" {
		t.Errorf("Unexpected record: %+v", r)
	}
	if r.Coverage != nil {
		t.Errorf("Expected no coverage for JUnit replays, got %v", *r.Coverage)
	}

	if _, err := os.Stat(filepath.Join(logDir, "reports", "abc123", "test_output.log")); err != nil {
		t.Errorf("Expected run log in the report directory: %v", err)
	}
}

func TestRun_FailOnTestFailure(t *testing.T) {
	root, logDir := setupReports(t, map[string]string{"test_math.xml": failingReport})
	cfgPath := filepath.Join(t.TempDir(), "cirun.toml")
	cfg := "[defaults]\nengine = \"junit\"\nfailOnTestFailure = true\n\n[coverage]\nenabled = false\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out := runCLI(t, "-config", cfgPath, "-root", root, "-logdir", logDir, "-commit", "abc123")
	if code != exitcodes.TestFailure {
		t.Errorf("exit code = %d, want %d\n%s", code, exitcodes.TestFailure, out)
	}
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	root, logDir := setupReports(t, map[string]string{"test_math.xml": failingReport})

	code, out := runCLI(t, "-root", root, "-logdir", logDir, "-engine", "junit", "-commit", "abc123", "-dry-run")
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	for _, want := range []string{"Planned tests:", "TestMath/test_sub", "3 test(s) would run", "dry run, nothing executed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if _, err := os.Stat(logDir); !os.IsNotExist(err) {
		t.Errorf("Expected no log directory after a dry run, stat err = %v", err)
	}
}

func TestRun_PreviewNotRecorded(t *testing.T) {
	root, logDir := setupReports(t, map[string]string{"test_io.xml": passingReport})

	code, out := runCLI(t, "-root", root, "-logdir", logDir, "-engine", "junit")
	if code != exitcodes.Success {
		t.Fatalf("exit code = %d\n%s", code, out)
	}
	if !strings.Contains(out, "results not recorded") {
		t.Errorf("Expected preview notice:\n%s", out)
	}
	if _, err := os.Stat(ledger.Path(logDir)); !os.IsNotExist(err) {
		t.Errorf("Expected no ledger after a preview run, stat err = %v", err)
	}
}

func TestRun_StrictImportFailure(t *testing.T) {
	root, logDir := setupReports(t, map[string]string{"test_math.xml": failingReport, "test_broken.xml": "<testsuite"})

	code, out := runCLI(t, "-root", root, "-logdir", logDir, "-engine", "junit", "-commit", "abc123", "-strict")
	if code != exitcodes.DiscoveryErr {
		t.Errorf("exit code = %d, want %d\n%s", code, exitcodes.DiscoveryErr, out)
	}
	if _, err := os.Stat(ledger.Path(logDir)); !os.IsNotExist(err) {
		t.Errorf("Expected no ledger write after a strict abort, stat err = %v", err)
	}
}

func TestRun_CorruptLedger(t *testing.T) {
	root, logDir := setupReports(t, map[string]string{"test_io.xml": passingReport})
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ledger.Path(logDir), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, out := runCLI(t, "-root", root, "-logdir", logDir, "-engine", "junit", "-commit", "abc123")
	if code != exitcodes.LedgerErr {
		t.Errorf("exit code = %d, want %d\n%s", code, exitcodes.LedgerErr, out)
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no roots", []string{"-config", writeConfig(t, "[defaults]\nengine = \"go\"\n")}, "no test roots configured"},
		{"bad engine", []string{"-root", ".", "-engine", "pytest"}, "invalid configuration"},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "missing.toml")}, "config file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := runCLI(t, tt.args...)
			if code != exitcodes.RuntimeErr {
				t.Errorf("exit code = %d, want %d", code, exitcodes.RuntimeErr)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestRun_Version(t *testing.T) {
	code, out := runCLI(t, "-version")
	if code != exitcodes.Success || !strings.Contains(out, "cirun dev") {
		t.Errorf("version output = %q (code %d)", out, code)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cirun.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
