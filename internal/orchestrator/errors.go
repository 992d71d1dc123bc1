package orchestrator

import (
	"errors"
	"fmt"

	"github.com/drew/cirun/internal/exitcodes"
	"github.com/drew/cirun/internal/ledger"
	"github.com/drew/cirun/internal/suite"
)

// CoverageRenderError reports that coverage data could not be saved or
// rendered while running in strict mode
type CoverageRenderError struct {
	Stage string // persist, html or xml
	Err   error
}

func (e *CoverageRenderError) Error() string {
	return fmt.Sprintf("coverage %s report failed: %v", e.Stage, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *CoverageRenderError) Unwrap() error {
	return e.Err
}

// IsCoverageRenderError checks if the error is or wraps a CoverageRenderError
func IsCoverageRenderError(err error) bool {
	var ce *CoverageRenderError
	return err != nil && errors.As(err, &ce)
}

// TestFailureError is returned by CheckResult when tests failed and the
// caller asked for a failing exit status
type TestFailureError struct {
	Description string
}

func (e *TestFailureError) Error() string {
	return fmt.Sprintf("test failure: %s", e.Description)
}

// IsTestFailureError checks if the error is or wraps a TestFailureError
func IsTestFailureError(err error) bool {
	var te *TestFailureError
	return err != nil && errors.As(err, &te)
}

// ExitCode maps an error returned by Run or CheckResult to a process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case suite.IsImportError(err):
		return exitcodes.DiscoveryErr
	case IsCoverageRenderError(err):
		return exitcodes.CoverageErr
	case ledger.IsCorruptionError(err):
		return exitcodes.LedgerErr
	case IsTestFailureError(err):
		return exitcodes.TestFailure
	default:
		return exitcodes.RuntimeErr
	}
}
