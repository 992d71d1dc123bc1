// Package executor runs a suite tree through a test engine and summarizes the
// outcome of every case.
package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/drew/cirun/internal/suite"
)

// Engine executes the cases of one loaded module. unit is a group whose Module
// field is set; the engine returns one outcome per case it ran.
type Engine interface {
	Run(ctx context.Context, unit *suite.Node, verbosity int) ([]Outcome, error)
}

// EngineFunc adapts a function to the Engine interface
type EngineFunc func(ctx context.Context, unit *suite.Node, verbosity int) ([]Outcome, error)

// Run calls f
func (f EngineFunc) Run(ctx context.Context, unit *suite.Node, verbosity int) ([]Outcome, error) {
	return f(ctx, unit, verbosity)
}

// Options controls a run
type Options struct {
	DryRun    bool
	Verbosity int
}

// Executor drives an Engine over a suite tree
type Executor struct {
	engine Engine
	logger *slog.Logger
}

// New creates an Executor
func New(engine Engine, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{engine: engine, logger: logger}
}

// Run executes every case under root in flattened order. Engine failures and
// missing outcomes are recorded as errors for the affected cases and never stop
// the run. In dry-run mode nothing executes and only Planned is filled in. If
// ctx is cancelled the partial result is returned together with ctx.Err().
func (e *Executor) Run(ctx context.Context, root *suite.Node, opts Options) (*Result, error) {
	res := &Result{Planned: suite.Count(root)}
	if opts.DryRun {
		e.logger.Info("dry run: no tests executed", "planned", res.Planned)
		return res, nil
	}

	start := time.Now()
	var ctxErr error
	suite.Walk(root, func(n *suite.Node) bool {
		if ctxErr != nil {
			return false
		}
		if err := ctx.Err(); err != nil {
			ctxErr = err
			return false
		}
		switch n.Kind {
		case suite.KindFailedImport:
			e.report(res, Outcome{ID: n.ID(), Status: StatusError, Diagnostic: importDiagnostic(n)}, opts.Verbosity)
			return false
		case suite.KindCase:
			e.report(res, Outcome{ID: n.ID(), Status: StatusError, Diagnostic: "test case is not part of a loadable module"}, opts.Verbosity)
			return false
		case suite.KindGroup:
			if n.Module == "" {
				return true
			}
			e.runUnit(ctx, res, n, opts.Verbosity)
			return false
		}
		return false
	})
	res.Duration = time.Since(start)

	e.logger.Info("test run finished",
		"run", res.TotalRun, "failures", len(res.Failures), "errors", len(res.Errors),
		"skipped", len(res.Skipped), "duration", res.Duration.Round(time.Millisecond))
	return res, ctxErr
}

func (e *Executor) runUnit(ctx context.Context, res *Result, unit *suite.Node, verbosity int) {
	// failed imports nested in a module are reported on their own
	var cases []*suite.Node
	suite.Walk(unit, func(n *suite.Node) bool {
		switch n.Kind {
		case suite.KindCase:
			cases = append(cases, n)
		case suite.KindFailedImport:
			e.report(res, Outcome{ID: n.ID(), Status: StatusError, Diagnostic: importDiagnostic(n)}, verbosity)
		}
		return true
	})
	if len(cases) == 0 {
		return
	}

	e.logger.Debug("running module", "module", unit.Module, "tests", len(cases))
	outcomes, err := e.engine.Run(ctx, unit, verbosity)
	if err != nil {
		e.logger.Warn("engine failed to run module", "module", unit.Module, "error", err)
		for _, c := range cases {
			e.report(res, Outcome{ID: c.ID(), Status: StatusError, Diagnostic: err.Error()}, verbosity)
		}
		return
	}

	byID := make(map[string]Outcome, len(outcomes))
	for _, o := range outcomes {
		byID[o.ID] = o
	}
	for _, c := range cases {
		o, ok := byID[c.ID()]
		if !ok {
			o = Outcome{ID: c.ID(), Status: StatusError, Diagnostic: "no result was reported for this test"}
		}
		e.report(res, o, verbosity)
	}
}

func (e *Executor) report(res *Result, o Outcome, verbosity int) {
	o.Diagnostic = strings.TrimRight(stripansi.Strip(o.Diagnostic), "\n")
	res.record(o)
	if verbosity >= 2 {
		e.logger.Info("test finished", "test", o.ID, "status", string(o.Status))
	}
}

func importDiagnostic(n *suite.Node) string {
	return fmt.Sprintf("ImportError: failed to import test module %s\n%s", n.Module, n.Err)
}
