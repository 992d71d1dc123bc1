package gotest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/drew/cirun/internal/executor"
	"github.com/drew/cirun/internal/suite"
)

// DefaultGoBinary is the go command used when none is configured
const DefaultGoBinary = "go"

// CommandFunc runs name with args in dir and returns its standard output and
// standard error
type CommandFunc func(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, err error)

// ProfileSink hands out cover-profile paths while coverage is recording.
// *coverage.ProfileSession satisfies it.
type ProfileSink interface {
	ProfilePath(unit string) (string, bool)
	CoverPackages() []string
}

// Engine runs the cases of one _test.go file with go test -json
type Engine struct {
	GoBinary string
	Command  CommandFunc
	Profiles ProfileSink
	Logger   *slog.Logger
}

// New creates an Engine. profiles may be nil to run without coverage.
func New(profiles ProfileSink, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		GoBinary: DefaultGoBinary,
		Command:  execCommand,
		Profiles: profiles,
		Logger:   logger,
	}
}

// Run executes the cases of unit in the package directory of unit.Module
func (e *Engine) Run(ctx context.Context, unit *suite.Node, verbosity int) ([]executor.Outcome, error) {
	var cases []*suite.Node
	suite.Walk(unit, func(n *suite.Node) bool {
		if n.Kind == suite.KindCase {
			cases = append(cases, n)
		}
		return true
	})
	if len(cases) == 0 {
		return nil, nil
	}

	dir := filepath.Dir(unit.Module)
	args := e.args(unit, cases)
	e.Logger.Debug("running go test", "dir", dir, "args", strings.Join(args, " "))

	stdout, stderr, err := e.Command(ctx, dir, e.GoBinary, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	run := parseEvents(stdout)
	if len(run.tests) == 0 {
		// nothing ran: build failure, bad flags or a missing toolchain
		msg := strings.TrimSpace(run.output.String() + string(stderr))
		if err != nil {
			if msg == "" {
				return nil, fmt.Errorf("go test failed: %w", err)
			}
			return nil, fmt.Errorf("go test failed: %s", stripansi.Strip(msg))
		}
		if run.failed {
			return nil, fmt.Errorf("go test failed: %s", stripansi.Strip(msg))
		}
	}
	if verbosity >= 3 && len(stderr) > 0 {
		e.Logger.Debug("go test stderr", "dir", dir, "stderr", string(stderr))
	}

	outcomes := make([]executor.Outcome, 0, len(cases))
	for _, c := range cases {
		st, ok := run.tests[c.Name]
		if !ok || st.action == "" {
			// omitted: the executor reports cases without a result
			continue
		}
		outcomes = append(outcomes, outcome(c.ID(), st))
	}
	return outcomes, nil
}

func (e *Engine) args(unit *suite.Node, cases []*suite.Node) []string {
	names := make([]string, 0, len(cases))
	for _, c := range cases {
		names = append(names, regexp.QuoteMeta(c.Name))
	}
	args := []string{"test", "-json", "-count=1", "-run", "^(" + strings.Join(names, "|") + ")$"}
	if e.Profiles != nil {
		if path, ok := e.Profiles.ProfilePath(unit.Module); ok {
			args = append(args, "-coverprofile="+path)
			if pkgs := e.Profiles.CoverPackages(); len(pkgs) > 0 {
				args = append(args, "-coverpkg="+strings.Join(pkgs, ","))
			}
		}
	}
	return append(args, ".")
}

// outcome classifies a finished test. A failing test that panicked is an error
// rather than an assertion failure.
func outcome(id string, st *testState) executor.Outcome {
	out := st.output.String()
	switch st.action {
	case ActionPass:
		return executor.Outcome{ID: id, Status: executor.StatusPass}
	case ActionSkip:
		return executor.Outcome{ID: id, Status: executor.StatusSkip, Diagnostic: out}
	default:
		status := executor.StatusFail
		if strings.Contains(out, "panic:") {
			status = executor.StatusError
		}
		return executor.Outcome{ID: id, Status: status, Diagnostic: out}
	}
}

func execCommand(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	// go test exits 1 when tests fail; the events describe that
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && stdout.Len() > 0 {
		err = nil
	}
	return stdout.Bytes(), stderr.Bytes(), err
}
