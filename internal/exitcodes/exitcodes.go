// Package exitcodes defines the exit codes returned by cirun.
package exitcodes

// Exit code constants used by cirun:
//
// * Success (0): the run completed; also used for test failures unless
// failOnTestFailure is set
// * TestFailure (1): one or more tests failed or errored
// * RuntimeErr (2): configuration mistakes, I/O failures and other runtime errors
// * DiscoveryErr (3): strict mode found modules that failed to import
// * CoverageErr (4): strict mode could not render coverage reports
// * LedgerErr (5): the ledger file exists but could not be read
const (
	Success      = 0
	TestFailure  = 1
	RuntimeErr   = 2
	DiscoveryErr = 3
	CoverageErr  = 4
	LedgerErr    = 5
)
