package e2e

import (
	"github.com/cucumber/godog"

	"klok/e2e/steps/classification"
	"klok/e2e/steps/common"
	"klok/e2e/steps/organization"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (authentication, generic requests, assertions)
	common.RegisterSteps(ctx, tc)

	// Register classification and compliance steps
	classification.RegisterSteps(ctx, tc)

	// Register organization onboarding steps
	organization.RegisterSteps(ctx, tc)
}
