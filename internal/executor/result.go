package executor

import (
	"fmt"
	"time"
)

// Status is the outcome of one test case
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
	StatusSkip  Status = "SKIP"
)

// Outcome is what an engine reports for a single case
type Outcome struct {
	ID         string
	Status     Status
	Diagnostic string
}

// Problem is a failed or errored case with its captured diagnostic text
type Problem struct {
	ID         string
	Diagnostic string
}

// Result summarizes one run. Executed lists every reported identifier in run
// order. Failures are assertion failures; Errors are
// unexpected errors, including modules that failed to import.
type Result struct {
	TotalRun int
	Executed []string
	Planned  int
	Failures []Problem
	Errors   []Problem
	Skipped  []string
	Duration time.Duration
}

// Success reports whether no case failed or errored
func (r *Result) Success() bool {
	return len(r.Failures) == 0 && len(r.Errors) == 0
}

// Problems returns failures followed by errors
func (r *Result) Problems() []Problem {
	out := make([]Problem, 0, len(r.Failures)+len(r.Errors))
	out = append(out, r.Failures...)
	return append(out, r.Errors...)
}

// Description is the one-line outcome used in reports
func (r *Result) Description() string {
	if r.Success() {
		return "All passed"
	}
	return fmt.Sprintf("%d/%d tests failed", len(r.Failures)+len(r.Errors), r.TotalRun)
}

func (r *Result) record(o Outcome) {
	r.TotalRun++
	r.Executed = append(r.Executed, o.ID)
	switch o.Status {
	case StatusFail:
		r.Failures = append(r.Failures, Problem{ID: o.ID, Diagnostic: o.Diagnostic})
	case StatusError:
		r.Errors = append(r.Errors, Problem{ID: o.ID, Diagnostic: o.Diagnostic})
	case StatusSkip:
		r.Skipped = append(r.Skipped, o.ID)
	}
}
