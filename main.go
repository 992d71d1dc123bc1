// cirun - CI test orchestrator
//
// Discovers test modules, runs them under coverage, publishes path-stripped
// reports and records the outcome per commit in a JSON ledger.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/drew/cirun/internal/config"
	"github.com/drew/cirun/internal/coverage"
	"github.com/drew/cirun/internal/engine/gotest"
	"github.com/drew/cirun/internal/engine/junit"
	"github.com/drew/cirun/internal/executor"
	"github.com/drew/cirun/internal/exitcodes"
	"github.com/drew/cirun/internal/git"
	"github.com/drew/cirun/internal/logging"
	"github.com/drew/cirun/internal/orchestrator"
	"github.com/drew/cirun/internal/suite"
	"github.com/drew/cirun/internal/ui"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// coverageDataFile is the merged cover profile kept in the report directory
const coverageDataFile = "coverage.out"

// sliceFlag allows repeating -root
type sliceFlag []string

func (s *sliceFlag) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *sliceFlag) Set(val string) error {
	*s = append(*s, val)
	return nil
}

// cliFlags holds the parsed command line of a run
type cliFlags struct {
	config     string
	roots      sliceFlag
	pattern    string
	commit     string
	logDir     string
	repo       string
	engine     string
	strict     bool
	dryRun     bool
	verbose    bool
	noColor    bool
	noCoverage bool
	version    bool

	// set records which flags appeared on the command line
	set map[string]bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "validate":
			return runValidate(args[1:], stdout, stderr)
		case "init":
			return runInit(args[1:], stdout, stderr)
		}
	}

	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitcodes.Success
		}
		return exitcodes.RuntimeErr
	}
	if flags.version {
		fmt.Fprintf(stdout, "cirun %s\n", version)
		return exitcodes.Success
	}

	renderer := ui.NewRenderer(stdout, !flags.noColor && ui.IsColorEnabled(stdout))

	cfg, err := loadConfig(flags)
	if err != nil {
		renderer.RenderError(err)
		return exitcodes.RuntimeErr
	}

	info := git.Detect(cfg.Coverage.Repo)
	opts := buildOptions(cfg, flags, info, time.Now)
	reportDir := opts.ReportDir()

	renderer.RenderHeader(ui.Header{
		Commit:  deref(opts.Commit),
		Label:   opts.Label,
		Engine:  cfg.Defaults.Engine,
		Roots:   rootPaths(opts.Roots),
		LogDir:  cfg.Defaults.LogDir,
		Strict:  opts.Strict,
		DryRun:  opts.DryRun,
		Version: version,
	})

	logOpts := logging.Options{Dir: reportDir, Verbose: flags.verbose}
	if opts.DryRun {
		// a dry run leaves nothing on disk
		logOpts.Dir = ""
	}
	if flags.verbose {
		logOpts.Console = stderr
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		renderer.RenderError(err)
		return exitcodes.RuntimeErr
	}
	defer func() {
		_ = logger.Close()
	}()
	if !info.InGitRepo {
		logger.Debug("not in a git repo, using repo directory as is", "repo", cfg.Coverage.Repo)
	}

	loader, engine, session, err := newEngine(cfg, reportDir, logger.Logger)
	if err != nil {
		renderer.RenderError(err)
		return exitcodes.RuntimeErr
	}

	out, err := orchestrator.New(loader, engine, session, logger.Logger).Run(ctx, opts)
	if err != nil {
		logger.Error("run aborted", "error", err)
		renderer.RenderError(err)
		return orchestrator.ExitCode(err)
	}

	if opts.DryRun {
		renderer.RenderPlan(out.Tests)
	} else {
		renderer.RenderProblems(problems(out.Result))
	}
	renderer.RenderSummary(summarize(opts, out))

	return orchestrator.ExitCode(orchestrator.CheckResult(out.Result, cfg.Defaults.FailOnTestFailure))
}

// parseFlags parses the run flags. Parse errors are already reported on stderr.
func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: map[string]bool{}}
	fs := flag.NewFlagSet("cirun", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.config, "config", "", "Path to config file (default: cirun.toml)")
	fs.Var(&f.roots, "root", "Directory searched for test modules (can be specified multiple times)")
	fs.StringVar(&f.pattern, "pattern", "", "Glob matched against test module file names")
	fs.StringVar(&f.commit, "commit", "", "Commit id the results are recorded under; omit for a preview run")
	fs.StringVar(&f.logDir, "logdir", "", "Directory for the ledger, reports and logs")
	fs.StringVar(&f.repo, "repo", "", "Repository root stripped from published reports")
	fs.StringVar(&f.engine, "engine", "", "Test engine: go, junit")
	fs.BoolVar(&f.strict, "strict", false, "Abort on import failures and coverage report errors")
	fs.BoolVar(&f.dryRun, "dry-run", false, "List the tests that would run without executing or recording")
	fs.BoolVar(&f.verbose, "verbose", false, "Verbose logging")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.noCoverage, "no-coverage", false, "Do not record coverage")
	fs.BoolVar(&f.version, "version", false, "Print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cirun [flags]\n       cirun validate [config...]\n       cirun init [path]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	fs.Visit(func(fl *flag.Flag) {
		f.set[fl.Name] = true
	})
	return f, nil
}

// loadConfig loads the config file, fills defaults, applies flag overrides and
// validates the result
func loadConfig(flags *cliFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.config)
	if err != nil {
		return nil, err
	}

	merged := config.MergeWithDefaults(cfg)
	baseDir := "."
	if cfg != nil {
		path := flags.config
		if path == "" {
			path = config.DefaultConfigFile
		}
		baseDir = filepath.Dir(path)
	}
	merged.ResolvePaths(baseDir)
	applyFlags(&merged, flags)

	result, err := config.ValidateConfig(&merged)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("invalid configuration: %s", joinValidationErrors(result.Errors))
	}
	if len(merged.Roots) == 0 {
		return nil, fmt.Errorf("no test roots configured; pass -root or add a [[roots]] table to %s", config.DefaultConfigFile)
	}
	return &merged, nil
}

// applyFlags overrides config values with the flags given on the command line
func applyFlags(cfg *config.Config, flags *cliFlags) {
	if len(flags.roots) > 0 {
		cfg.Roots = nil
		for _, r := range flags.roots {
			cfg.Roots = append(cfg.Roots, config.RootConfig{Path: absPath(r)})
		}
	}
	if flags.set["pattern"] {
		cfg.Defaults.Pattern = flags.pattern
	}
	if flags.set["logdir"] {
		cfg.Defaults.LogDir = absPath(flags.logDir)
	}
	if flags.set["repo"] {
		cfg.Coverage.Repo = absPath(flags.repo)
	}
	if flags.set["engine"] {
		cfg.Defaults.Engine = flags.engine
	}
	if flags.strict {
		cfg.Defaults.Strict = true
	}
	if flags.noCoverage {
		disabled := false
		cfg.Coverage.Enabled = &disabled
	}
	if flags.verbose {
		debug := 3
		cfg.Defaults.Verbosity = &debug
	}
}

// absPath resolves a command-line path against the working directory
func absPath(path string) string {
	if path == "" {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}

// buildOptions converts the resolved config into orchestrator options. Preview
// runs are labelled with the short HEAD hash, or a timestamp outside a repo.
func buildOptions(cfg *config.Config, flags *cliFlags, info git.GitInfo, now func() time.Time) orchestrator.Options {
	opts := orchestrator.Options{
		Pattern:   cfg.Defaults.Pattern,
		SkipDirs:  cfg.Defaults.SkipDirs,
		LogDir:    cfg.Defaults.LogDir,
		RepoDir:   cfg.Coverage.Repo,
		Sources:   cfg.Coverage.Sources,
		Omit:      cfg.Coverage.Omit,
		Strict:    cfg.Defaults.Strict,
		DryRun:    flags.dryRun,
		Verbosity: cfg.VerbosityLevel(),
		Now:       now,
	}
	if opts.Pattern == "" {
		opts.Pattern = defaultPattern(cfg.Defaults.Engine)
	}
	for _, r := range cfg.Roots {
		opts.Roots = append(opts.Roots, suite.Root{Name: r.Name, Path: r.Path})
	}

	if commit := strings.TrimSpace(flags.commit); commit != "" {
		opts.Commit = &commit
		return opts
	}
	opts.Label = info.ShortHead()
	if opts.Label != "" && info.Dirty {
		opts.Label += "-dirty"
	}
	if opts.Label == "" {
		opts.Label = now().Format("20060102-150405")
	}
	return opts
}

func defaultPattern(engine string) string {
	if engine == config.EngineJUnit {
		return junit.DefaultPattern
	}
	return gotest.DefaultPattern
}

// newEngine picks the loader and engine for the configured engine name. The
// go engine writes cover profiles through the session; JUnit replays carry no
// coverage.
func newEngine(cfg *config.Config, reportDir string, logger *slog.Logger) (suite.Loader, executor.Engine, coverage.Session, error) {
	switch cfg.Defaults.Engine {
	case config.EngineJUnit:
		if cfg.CoverageEnabled() {
			logger.Warn("coverage is not recorded when replaying JUnit reports")
		}
		return junit.Loader{}, junit.New(logger), nil, nil
	case config.EngineGo:
		if !cfg.CoverageEnabled() {
			return gotest.Loader{}, gotest.New(nil, logger), nil, nil
		}
		session := coverage.NewProfileSession(filepath.Join(reportDir, coverageDataFile), logger)
		return gotest.Loader{}, gotest.New(session, logger), session, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown engine %q", cfg.Defaults.Engine)
	}
}

// runValidate validates one or more config files
func runValidate(args []string, stdout, stderr io.Writer) int {
	paths := args
	if len(paths) == 0 {
		paths = []string{config.DefaultConfigFile}
	}

	code := exitcodes.Success
	for _, path := range paths {
		result, err := config.ValidateConfigFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			code = exitcodes.RuntimeErr
			continue
		}
		config.PrintValidationResult(stdout, path, result)
		if !result.Valid {
			code = exitcodes.RuntimeErr
		}
	}
	return code
}

// runInit writes a starter config file
func runInit(args []string, stdout, stderr io.Writer) int {
	path := config.DefaultConfigFile
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.GenerateDefaultConfig(path); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return exitcodes.RuntimeErr
	}
	fmt.Fprintf(stdout, "Generated %s\n", path)
	return exitcodes.Success
}

// summarize converts a run outcome into the console summary
func summarize(opts orchestrator.Options, out *orchestrator.Outcome) ui.Summary {
	s := ui.Summary{
		Commit:     deref(opts.Commit),
		DryRun:     opts.DryRun,
		Planned:    len(out.Tests),
		ReportDir:  out.ReportDir,
		LedgerPath: out.LedgerPath,
		Saved:      out.Saved(),
	}
	if res := out.Result; res != nil {
		s.Total = res.TotalRun
		s.Failed = len(res.Failures)
		s.Errored = len(res.Errors)
		s.Skipped = len(res.Skipped)
		s.Duration = res.Duration
	}
	if out.Coverage != nil {
		s.Coverage = out.Coverage.Percent
	}
	return s
}

// problems lists failures then errors for the console
func problems(res *executor.Result) []ui.Problem {
	if res == nil {
		return nil
	}
	var out []ui.Problem
	for _, p := range res.Failures {
		out = append(out, ui.Problem{ID: p.ID, Status: ui.StatusFail, Diagnostic: p.Diagnostic})
	}
	for _, p := range res.Errors {
		out = append(out, ui.Problem{ID: p.ID, Status: ui.StatusError, Diagnostic: p.Diagnostic})
	}
	return out
}

func rootPaths(roots []suite.Root) []string {
	paths := make([]string, len(roots))
	for i, r := range roots {
		paths[i] = r.Path
	}
	return paths
}

func joinValidationErrors(errs []config.ValidationError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
