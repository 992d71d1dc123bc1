// Package junit replays recorded JUnit XML reports as test modules. Each report
// file is one module; its suites become groups and its testcases become cases.
package junit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/drew/cirun/internal/executor"
	"github.com/drew/cirun/internal/suite"
	"github.com/joshdk/go-junit"
)

// DefaultPattern matches JUnit report files
const DefaultPattern = "test_*.xml"

// errNoSuites is returned for files that contain no test suites
var errNoSuites = errors.New("no test suites found")

// Loader reads JUnit XML files into suite trees
type Loader struct{}

// Load parses path with go-junit, which accepts single <testsuite> documents,
// <testsuites> wrappers and multiple root elements
func (Loader) Load(path string) (*suite.Node, error) {
	suites, err := ingest(path)
	if err != nil {
		return nil, err
	}
	module := suite.NewModule(moduleName(path), path)
	for _, s := range suites {
		module.Add(suiteNode(s))
	}
	return module, nil
}

func ingest(path string) ([]junit.Suite, error) {
	suites, err := junit.IngestFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(suites) == 0 {
		return nil, fmt.Errorf("%s: %w", path, errNoSuites)
	}
	return suites, nil
}

func moduleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func suiteNode(s junit.Suite) *suite.Node {
	group := suite.NewGroup(s.Name)
	for _, t := range s.Tests {
		group.Add(suite.NewCase(caseGroup(s, t), t.Name))
	}
	for _, child := range s.Suites {
		group.Add(suiteNode(child))
	}
	return group
}

// caseGroup is the owner name used in a case identifier: the classname when
// the report has one, else the suite name
func caseGroup(s junit.Suite, t junit.Test) string {
	if t.Classname != "" {
		return t.Classname
	}
	return s.Name
}

// Engine reports the recorded status of every case in a JUnit file
type Engine struct {
	Logger *slog.Logger
}

// New creates an Engine
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{Logger: logger}
}

// Run re-reads unit.Module and returns the outcome recorded for each case
func (e *Engine) Run(ctx context.Context, unit *suite.Node, _ int) ([]executor.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	suites, err := ingest(unit.Module)
	if err != nil {
		return nil, err
	}

	var outcomes []executor.Outcome
	var visit func(s junit.Suite)
	visit = func(s junit.Suite) {
		for _, t := range s.Tests {
			outcomes = append(outcomes, outcome(s, t))
		}
		for _, child := range s.Suites {
			visit(child)
		}
	}
	for _, s := range suites {
		visit(s)
	}
	e.Logger.Debug("replayed junit report", "file", unit.Module, "tests", len(outcomes))
	return outcomes, nil
}

func outcome(s junit.Suite, t junit.Test) executor.Outcome {
	id := caseGroup(s, t) + "/" + t.Name
	switch t.Status {
	case junit.StatusFailed:
		return executor.Outcome{ID: id, Status: executor.StatusFail, Diagnostic: diagnostic(t)}
	case junit.StatusError:
		return executor.Outcome{ID: id, Status: executor.StatusError, Diagnostic: diagnostic(t)}
	case junit.StatusSkipped:
		return executor.Outcome{ID: id, Status: executor.StatusSkip, Diagnostic: t.Message}
	default:
		return executor.Outcome{ID: id, Status: executor.StatusPass}
	}
}

// diagnostic joins the failure message attribute and the element body
func diagnostic(t junit.Test) string {
	var body string
	if t.Error != nil {
		body = t.Error.Error()
	}
	switch {
	case t.Message == "":
		return body
	case body == "" || strings.Contains(body, t.Message):
		return t.Message
	default:
		return t.Message + "\n" + body
	}
}
