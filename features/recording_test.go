package features

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
	"github.com/drew/cirun/internal/ledger"
)

type recordingContext struct {
	*sharedContext
}

func (c *recordingContext) iRunTheTestsForCommit(commit string) error {
	return c.run(&commit, false, false)
}

func (c *recordingContext) theLedgerAlreadyHasARecordFor(status, commit string) error {
	records, err := c.records()
	if err != nil {
		return err
	}
	r := ledger.Record{CommitID: commit, Status: ledger.Status(status), Description: "seeded"}
	if r.Status == ledger.StatusSuccess {
		r.Results.Passed = []string{"Seed/test_seed"}
	} else {
		r.Results.Failed = []ledger.Failure{{ID: "Seed/test_seed", Diagnostic: "seeded failure"}}
	}
	return ledger.Save(ledger.Path(c.logDir), ledger.Upsert(records, r))
}

func (c *recordingContext) theLedgerShouldContainRecords(n int) error {
	records, err := c.records()
	if err != nil {
		return err
	}
	if len(records) != n {
		return fmt.Errorf("expected %d records, got %d", n, len(records))
	}
	return nil
}

func (c *recordingContext) theRecordShouldHaveStatus(commit, status string) error {
	r, err := c.record(commit)
	if err != nil {
		return err
	}
	if string(r.Status) != status {
		return fmt.Errorf("expected status %s for %s, got %s", status, commit, r.Status)
	}
	return nil
}

func (c *recordingContext) theRecordShouldHaveDescription(commit, description string) error {
	r, err := c.record(commit)
	if err != nil {
		return err
	}
	if r.Description != description {
		return fmt.Errorf("expected description %q, got %q", description, r.Description)
	}
	return nil
}

func (c *recordingContext) theRecordShouldListFailureMentioning(commit, id, text string) error {
	r, err := c.record(commit)
	if err != nil {
		return err
	}
	for _, f := range r.Results.Failed {
		if f.ID == id {
			if !strings.Contains(f.Diagnostic, text) {
				return fmt.Errorf("diagnostic for %s does not mention %q: %s", id, text, f.Diagnostic)
			}
			return nil
		}
	}
	return fmt.Errorf("no failure %s recorded for %s: %+v", id, commit, r.Results.Failed)
}

func (c *recordingContext) theRecordShouldListAFailedImportOf(commit, file string) error {
	r, err := c.record(commit)
	if err != nil {
		return err
	}
	for _, f := range r.Results.Failed {
		if strings.HasPrefix(f.ID, "_FailedImport/") && strings.HasSuffix(f.ID, file) {
			return nil
		}
	}
	return fmt.Errorf("no failed import of %s recorded for %s: %+v", file, commit, r.Results.Failed)
}

func (c *recordingContext) theRecordShouldListPassedTests(commit, tests string) error {
	r, err := c.record(commit)
	if err != nil {
		return err
	}
	want := splitList(tests)
	if strings.Join(r.Results.Passed, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected passed tests %v, got %v", want, r.Results.Passed)
	}
	if len(r.Results.Failed) != 0 {
		return fmt.Errorf("expected no failures, got %+v", r.Results.Failed)
	}
	return nil
}

func (c *recordingContext) theRecordsShouldBeInOrder(commits string) error {
	records, err := c.records()
	if err != nil {
		return err
	}
	var got []string
	for _, r := range records {
		got = append(got, r.CommitID)
	}
	want := splitList(commits)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected record order %v, got %v", want, got)
	}
	return nil
}

func InitializeRecordingScenario(sc *godog.ScenarioContext, shared *sharedContext) {
	c := &recordingContext{sharedContext: shared}

	sc.Step(`^I run the tests for commit "([^"]*)"$`, c.iRunTheTestsForCommit)
	sc.Step(`^the ledger already has a "(success|failure)" record for "([^"]*)"$`, c.theLedgerAlreadyHasARecordFor)
	sc.Step(`^the ledger should contain (\d+) records?$`, c.theLedgerShouldContainRecords)
	sc.Step(`^the record for "([^"]*)" should have status "([^"]*)"$`, c.theRecordShouldHaveStatus)
	sc.Step(`^the record for "([^"]*)" should have description "([^"]*)"$`, c.theRecordShouldHaveDescription)
	sc.Step(`^the record for "([^"]*)" should list failure "([^"]*)" mentioning "([^"]*)"$`, c.theRecordShouldListFailureMentioning)
	sc.Step(`^the record for "([^"]*)" should list a failed import of "([^"]*)"$`, c.theRecordShouldListAFailedImportOf)
	sc.Step(`^the record for "([^"]*)" should list passed tests "([^"]*)"$`, c.theRecordShouldListPassedTests)
	sc.Step(`^the records should be in order "([^"]*)"$`, c.theRecordsShouldBeInOrder)
}
