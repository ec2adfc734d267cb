package organization

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	PUT(path string, body any) error
}

// RegisterSteps registers organization onboarding steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &organizationSteps{tc: tc}

	ctx.Step(`^I onboard a "([^"]*)" named "([^"]*)" in "([^"]*)" with registration "([^"]*)"$`, steps.onboard)
	ctx.Step(`^I add owner "([^"]*)" holding (\d+) percent to "([^"]*)"$`, steps.addOwner)
	ctx.Step(`^I add politically exposed owner "([^"]*)" holding (\d+) percent to "([^"]*)"$`, steps.addExposedOwner)
	ctx.Step(`^I set the revenue of "([^"]*)" to "([^"]*)"$`, steps.setRevenue)
}

type organizationSteps struct {
	tc TestContext
}

func (s *organizationSteps) onboard(ctx context.Context, orgType, name, jurisdiction, registration string) error {
	return s.tc.POST("/v1/organizations", map[string]any{
		"name":            name,
		"jurisdiction":    jurisdiction,
		"org_type":        orgType,
		"registration_no": registration,
	})
}

func (s *organizationSteps) addOwner(ctx context.Context, name string, pct int, orgRef string) error {
	return s.tc.POST("/v1/organizations/{"+orgRef+"}/owners", map[string]any{
		"name":          name,
		"ownership_pct": pct,
	})
}

func (s *organizationSteps) addExposedOwner(ctx context.Context, name string, pct int, orgRef string) error {
	return s.tc.POST("/v1/organizations/{"+orgRef+"}/owners", map[string]any{
		"name":                name,
		"ownership_pct":       pct,
		"politically_exposed": true,
	})
}

func (s *organizationSteps) setRevenue(ctx context.Context, orgRef, revenue string) error {
	return s.tc.PUT("/v1/organizations/{"+orgRef+"}/revenue", map[string]any{
		"revenue": revenue,
	})
}
