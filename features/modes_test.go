package features

import (
	"fmt"
	"os"

	"github.com/cucumber/godog"
	"github.com/drew/cirun/internal/ledger"
	"github.com/drew/cirun/internal/orchestrator"
)

type modesContext struct {
	*sharedContext
}

func (c *modesContext) iRunTheTestsWithoutACommit() error {
	return c.run(nil, false, false)
}

func (c *modesContext) iDryRunTheTestsForCommit(commit string) error {
	return c.run(&commit, false, true)
}

func (c *modesContext) iRunTheTestsInStrictModeForCommit(commit string) error {
	return c.run(&commit, true, false)
}

func (c *modesContext) theRunShouldSucceed() error {
	if c.err != nil {
		return fmt.Errorf("expected run to succeed, got: %v", c.err)
	}
	return nil
}

func (c *modesContext) theRunShouldFailWithExitCode(code int) error {
	if c.err == nil {
		return fmt.Errorf("expected run to fail with exit code %d, but it succeeded", code)
	}
	if got := orchestrator.ExitCode(c.err); got != code {
		return fmt.Errorf("expected exit code %d, got %d (%v)", code, got, c.err)
	}
	return nil
}

func (c *modesContext) testsShouldHaveRun(n int) error {
	run := 0
	if c.outcome != nil && c.outcome.Result != nil {
		run = c.outcome.Result.TotalRun
	}
	if run != n {
		return fmt.Errorf("expected %d tests to have run, got %d", n, run)
	}
	return nil
}

func (c *modesContext) theLedgerShouldNotExist() error {
	path := ledger.Path(c.logDir)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return fmt.Errorf("expected no ledger at %s (stat error: %v)", path, err)
	}
	return nil
}

func (c *modesContext) theOutcomeShouldNotBeSaved() error {
	if c.outcome == nil {
		return fmt.Errorf("no run outcome (error: %v)", c.err)
	}
	if c.outcome.Saved() {
		return fmt.Errorf("expected the outcome not to be saved, got record %+v", c.outcome.Record)
	}
	return nil
}

func InitializeModesScenario(sc *godog.ScenarioContext, shared *sharedContext) {
	c := &modesContext{sharedContext: shared}

	sc.Step(`^I run the tests without a commit$`, c.iRunTheTestsWithoutACommit)
	sc.Step(`^I dry run the tests for commit "([^"]*)"$`, c.iDryRunTheTestsForCommit)
	sc.Step(`^I run the tests in strict mode for commit "([^"]*)"$`, c.iRunTheTestsInStrictModeForCommit)
	sc.Step(`^the run should succeed$`, c.theRunShouldSucceed)
	sc.Step(`^the run should fail with exit code (\d+)$`, c.theRunShouldFailWithExitCode)
	sc.Step(`^(\d+) tests should have run$`, c.testsShouldHaveRun)
	sc.Step(`^the ledger should not exist$`, c.theLedgerShouldNotExist)
	sc.Step(`^the outcome should not be saved$`, c.theOutcomeShouldNotBeSaved)
}
