// Package orchestrator runs one CI test pass: discover suites, execute them
// under coverage, publish the reports and record the outcome in the ledger.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/drew/cirun/internal/coverage"
	"github.com/drew/cirun/internal/dashboard"
	"github.com/drew/cirun/internal/executor"
	"github.com/drew/cirun/internal/fsutil"
	"github.com/drew/cirun/internal/ledger"
	"github.com/drew/cirun/internal/publish"
	"github.com/drew/cirun/internal/suite"
)

// ReportsDirName holds one report directory per commit or preview label
const ReportsDirName = "reports"

// Options controls one run
type Options struct {
	Roots    []suite.Root
	Pattern  string
	SkipDirs []string

	// Commit keys the ledger record. Nil means a preview run whose outcome is
	// reported but never saved.
	Commit *string
	// Label names the report directory when Commit is nil
	Label string

	LogDir  string
	RepoDir string   // stripped from published reports
	Sources []string // coverage sources, RepoDir when empty
	Omit    []string

	Strict    bool
	DryRun    bool
	Verbosity int

	Now func() time.Time
}

// ReportDir returns <logdir>/reports/<commit or label>. The name is flattened
// to a single path element.
func (o Options) ReportDir() string {
	name := o.Label
	if o.Commit != nil {
		name = *o.Commit
	}
	name = fsutil.PathElement(name)
	if name == "" {
		name = o.now().Format("20060102-150405")
	}
	return filepath.Join(o.LogDir, ReportsDirName, name)
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// CoverageReport locates the rendered coverage reports. Percent is nil when
// rendering failed in non-strict mode.
type CoverageReport struct {
	Percent *float64
	HTMLDir string
	XMLPath string
}

// Outcome is everything a run produced
type Outcome struct {
	Tests      []string
	Result     *executor.Result
	Coverage   *CoverageReport
	ReportDir  string
	Published  *publish.Report
	Record     *ledger.Record
	LedgerPath string
}

// Saved reports whether the outcome was written to the ledger
func (o *Outcome) Saved() bool {
	return o.Record != nil
}

// Orchestrator wires the loader, engine and coverage session together
type Orchestrator struct {
	loader  suite.Loader
	engine  executor.Engine
	session coverage.Session
	logger  *slog.Logger
}

// New creates an Orchestrator. A nil session disables coverage.
func New(loader suite.Loader, engine executor.Engine, session coverage.Session, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{loader: loader, engine: engine, session: session, logger: logger}
}

// Run performs one pass. Integrity failures (a corrupt ledger, failed imports in
// strict mode) abort before any test runs; coverage failures abort only in
// strict mode; test failures never abort and are recorded instead.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Outcome, error) {
	out := &Outcome{
		ReportDir:  opts.ReportDir(),
		LedgerPath: ledger.Path(opts.LogDir),
	}

	save := opts.Commit != nil && !opts.DryRun
	var records []ledger.Record
	if save {
		var err error
		if records, err = ledger.Load(out.LedgerPath); err != nil {
			return out, err
		}
		o.logger.Debug("loaded ledger", "path", out.LedgerPath, "records", len(records))
	}

	tree, err := suite.NewCollector(o.loader, opts.Pattern, opts.SkipDirs, o.logger).Collect(opts.Roots)
	if err != nil {
		return out, fmt.Errorf("failed to collect test suites: %w", err)
	}
	out.Tests = suite.Flatten(tree)
	o.logger.Info("collected test suites", "tests", len(out.Tests), "roots", len(opts.Roots))
	if err := suite.Validate(out.Tests, opts.Strict, o.logger); err != nil {
		return out, err
	}

	exec := executor.New(o.engine, o.logger)
	execOpts := executor.Options{DryRun: opts.DryRun, Verbosity: opts.Verbosity}
	if opts.DryRun {
		out.Result, err = exec.Run(ctx, tree, execOpts)
		return out, err
	}

	if err := o.execute(ctx, exec, tree, execOpts, opts, out); err != nil {
		return out, err
	}

	if o.session != nil {
		if _, err := os.Stat(out.ReportDir); err == nil {
			report, err := publish.SanitizePaths(out.ReportDir, o.repoDir(opts), o.logger)
			if err != nil {
				o.logger.Warn("failed to sanitize coverage reports", "dir", out.ReportDir, "error", err)
			}
			out.Published = report
		}
	}

	if !save {
		o.logger.Info("no commit given; results not recorded", "report", out.ReportDir)
		return out, nil
	}

	record := BuildRecord(*opts.Commit, out.Result, out.coveragePercent(), opts.now())
	records = ledger.Upsert(records, record)
	if err := ledger.Save(out.LedgerPath, records); err != nil {
		return out, fmt.Errorf("failed to save ledger: %w", err)
	}
	out.Record = &record
	o.logger.Info("recorded test results", "commit", record.CommitID, "status", string(record.Status), "ledger", out.LedgerPath)

	if err := dashboard.GenerateHistory(opts.LogDir, records); err != nil {
		o.logger.Warn("failed to generate history page", "error", err)
	}
	return out, nil
}

// execute runs the tree, inside a coverage recording window when a session is
// configured, then renders the coverage reports
func (o *Orchestrator) execute(ctx context.Context, exec *executor.Executor, tree *suite.Node,
	execOpts executor.Options, opts Options, out *Outcome) error {
	var runErr error
	run := func() error {
		out.Result, runErr = exec.Run(ctx, tree, execOpts)
		return nil
	}

	if o.session == nil {
		_ = run()
		return runErr
	}

	sources := opts.Sources
	if len(sources) == 0 {
		sources = []string{o.repoDir(opts)}
	}
	if err := o.session.Configure(sources, opts.Omit); err != nil {
		return fmt.Errorf("failed to configure coverage: %w", err)
	}

	covErr := coverage.Record(o.session, run)
	if out.Result == nil {
		// the session never started, so nothing ran
		return covErr
	}
	if runErr != nil {
		return runErr
	}
	if covErr != nil {
		if opts.Strict {
			return &CoverageRenderError{Stage: "persist", Err: covErr}
		}
		o.logger.Warn("failed to save coverage data; skipping coverage reports", "error", covErr)
		out.Coverage = &CoverageReport{HTMLDir: out.ReportDir, XMLPath: filepath.Join(out.ReportDir, coverage.XMLFileName)}
		return nil
	}

	report, err := o.render(out.ReportDir, opts.Strict)
	out.Coverage = report
	return err
}

// render writes the HTML and XML reports. In non-strict mode failures are
// logged and leave Percent nil.
func (o *Orchestrator) render(dir string, strict bool) (*CoverageReport, error) {
	report := &CoverageReport{HTMLDir: dir, XMLPath: filepath.Join(dir, coverage.XMLFileName)}

	fail := func(stage string, err error) (*CoverageReport, error) {
		if strict {
			return report, &CoverageRenderError{Stage: stage, Err: err}
		}
		o.logger.Warn("coverage report unavailable", "stage", stage, "error", err)
		return report, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("html", err)
	}
	pct, err := o.session.RenderHTML(dir)
	if err != nil {
		return fail("html", err)
	}
	if err := o.session.RenderXML(report.XMLPath); err != nil {
		return fail("xml", err)
	}
	if _, err := os.Stat(report.XMLPath); err != nil {
		return fail("xml", fmt.Errorf("failed to generate XML coverage: %w", err))
	}

	report.Percent = &pct
	o.logger.Info("rendered coverage reports", "dir", dir, "coverage", fmt.Sprintf("%.1f%%", pct))
	return report, nil
}

func (o *Orchestrator) repoDir(opts Options) string {
	if opts.RepoDir != "" {
		return opts.RepoDir
	}
	return "."
}

func (out *Outcome) coveragePercent() *float64 {
	if out.Coverage == nil {
		return nil
	}
	return out.Coverage.Percent
}

// BuildRecord converts a run result into a ledger record. A fully successful
// run stores every executed identifier; otherwise failures and errors are
// stored with their diagnostics.
func BuildRecord(commit string, res *executor.Result, coveragePct *float64, now time.Time) ledger.Record {
	r := ledger.Record{
		CommitID:    commit,
		Description: res.Description(),
		Coverage:    coveragePct,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
	if res.Success() {
		r.Status = ledger.StatusSuccess
		r.Results.Passed = res.Executed
		if r.Results.Passed == nil {
			r.Results.Passed = []string{}
		}
		return r
	}

	r.Status = ledger.StatusFailure
	for _, p := range res.Problems() {
		r.Results.Failed = append(r.Results.Failed, ledger.Failure{ID: p.ID, Diagnostic: p.Diagnostic})
	}
	return r
}

// CheckResult returns a TestFailureError when the run had failures and
// failOnTestFailure is set
func CheckResult(res *executor.Result, failOnTestFailure bool) error {
	if res == nil || res.Success() || !failOnTestFailure {
		return nil
	}
	return &TestFailureError{Description: res.Description()}
}
