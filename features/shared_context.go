package features

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/drew/cirun/internal/engine/junit"
	"github.com/drew/cirun/internal/ledger"
	"github.com/drew/cirun/internal/orchestrator"
	"github.com/drew/cirun/internal/suite"
)

// sharedContext holds ALL state for a scenario - used by all step definitions
type sharedContext struct {
	tempDir string
	roots   map[string]string // root name -> directory
	order   []string          // root names in declaration order
	logDir  string

	outcome *orchestrator.Outcome
	err     error
}

// reset prepares a fresh workspace for a scenario
func (c *sharedContext) reset() error {
	dir, err := os.MkdirTemp("", "cirun-features-*")
	if err != nil {
		return err
	}
	*c = sharedContext{
		tempDir: dir,
		roots:   map[string]string{},
		logDir:  filepath.Join(dir, ".cirun"),
	}
	return nil
}

func (c *sharedContext) cleanup() {
	if c.tempDir != "" {
		_ = os.RemoveAll(c.tempDir)
	}
}

// rootDir returns the directory of a declared test root
func (c *sharedContext) rootDir(name string) (string, error) {
	dir, ok := c.roots[name]
	if !ok {
		return "", fmt.Errorf("test root %q was not declared", name)
	}
	return dir, nil
}

func (c *sharedContext) addRoot(name string) error {
	dir := filepath.Join(c.tempDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	c.roots[name] = dir
	c.order = append(c.order, name)
	return nil
}

func (c *sharedContext) writeFile(root, name, content string) error {
	dir, err := c.rootDir(root)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}

// run drives the orchestrator with the JUnit engine over the declared roots
func (c *sharedContext) run(commit *string, strict, dryRun bool) error {
	opts := orchestrator.Options{
		Pattern: junit.DefaultPattern,
		Commit:  commit,
		Label:   "preview",
		LogDir:  c.logDir,
		RepoDir: c.tempDir,
		Strict:  strict,
		DryRun:  dryRun,
	}
	for _, name := range c.order {
		opts.Roots = append(opts.Roots, suite.Root{Name: name, Path: c.roots[name]})
	}

	orch := orchestrator.New(junit.Loader{}, junit.New(nil), nil, nil)
	c.outcome, c.err = orch.Run(context.Background(), opts)
	return nil
}

func (c *sharedContext) records() ([]ledger.Record, error) {
	return ledger.Load(ledger.Path(c.logDir))
}

func (c *sharedContext) record(commit string) (ledger.Record, error) {
	records, err := c.records()
	if err != nil {
		return ledger.Record{}, err
	}
	r, ok := ledger.Find(records, commit)
	if !ok {
		return ledger.Record{}, fmt.Errorf("no record for commit %s in %d records", commit, len(records))
	}
	return r, nil
}

// passingReport renders a JUnit suite whose cases all pass
func passingReport(class string, names []string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(fmt.Sprintf("<testsuite name=%q tests=\"%d\">\n", class, len(names)))
	for _, n := range names {
		sb.WriteString(fmt.Sprintf("  <testcase name=%q classname=%q/>\n", n, class))
	}
	sb.WriteString("</testsuite>\n")
	return sb.String()
}

func splitList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
