package features

import (
	"context"
	"testing"

	"github.com/cucumber/godog"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: func(sc *godog.ScenarioContext) {
			// Create ONE shared context instance per scenario
			shared := &sharedContext{}

			sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
				return ctx, shared.reset()
			})
			sc.After(func(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
				shared.cleanup()
				return ctx, err
			})

			// Initialize all step definitions with the same shared context
			InitializeDiscoveryScenario(sc, shared)
			InitializeRecordingScenario(sc, shared)
			InitializeModesScenario(sc, shared)
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"."},
			Tags:     "~@wip", // Exclude work-in-progress scenarios
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
