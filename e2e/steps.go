package e2e

import (
	"github.com/cucumber/godog"

	"landtrust/e2e/steps/common"
	"landtrust/e2e/steps/registration"
	"landtrust/e2e/steps/settings"
)

// RegisterSteps registers all step definitions from modular packages.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	registration.RegisterSteps(ctx, tc)
	settings.RegisterSteps(ctx, tc)
}
