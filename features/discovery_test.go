package features

import (
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

type discoveryContext struct {
	*sharedContext
}

func (c *discoveryContext) aTestRoot(name string) error {
	return c.addRoot(name)
}

func (c *discoveryContext) aJUnitReportWith(file, root string, content *godog.DocString) error {
	return c.writeFile(root, file, content.Content)
}

func (c *discoveryContext) aPassingJUnitReport(file, root, class, tests string) error {
	return c.writeFile(root, file, passingReport(class, splitList(tests)))
}

func (c *discoveryContext) aBrokenJUnitReport(file, root string) error {
	return c.writeFile(root, file, "<testsuite name=\"Broken\"><testcase")
}

func (c *discoveryContext) aNonReportFile(file, root string) error {
	return c.writeFile(root, file, "not a report")
}

func (c *discoveryContext) thePlannedTestsShouldBe(expected *godog.DocString) error {
	if c.outcome == nil {
		return fmt.Errorf("no run outcome (error: %v)", c.err)
	}
	want := splitList(strings.ReplaceAll(expected.Content, "\n", ","))
	got := c.outcome.Tests
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		return fmt.Errorf("planned tests:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	return nil
}

func (c *discoveryContext) testsShouldBePlanned(n int) error {
	if c.outcome == nil {
		return fmt.Errorf("no run outcome (error: %v)", c.err)
	}
	if len(c.outcome.Tests) != n {
		return fmt.Errorf("expected %d planned tests, got %d: %v", n, len(c.outcome.Tests), c.outcome.Tests)
	}
	return nil
}

func InitializeDiscoveryScenario(sc *godog.ScenarioContext, shared *sharedContext) {
	c := &discoveryContext{sharedContext: shared}

	sc.Step(`^a test root "([^"]*)"$`, c.aTestRoot)
	sc.Step(`^a JUnit report "([^"]*)" in "([^"]*)" with:$`, c.aJUnitReportWith)
	sc.Step(`^a passing JUnit report "([^"]*)" in "([^"]*)" for "([^"]*)" with tests "([^"]*)"$`, c.aPassingJUnitReport)
	sc.Step(`^a broken JUnit report "([^"]*)" in "([^"]*)"$`, c.aBrokenJUnitReport)
	sc.Step(`^a file "([^"]*)" in "([^"]*)" that is not a test module$`, c.aNonReportFile)
	sc.Step(`^the planned tests should be:$`, c.thePlannedTestsShouldBe)
	sc.Step(`^(\d+) tests should be planned$`, c.testsShouldBePlanned)
}
