package classification

import (
	"context"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
}

// RegisterSteps registers classification and eligibility steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &classificationSteps{tc: tc}

	ctx.Step(`^I check whether a "([^"]*)" in "([^"]*)" may invoice with independent factors$`, steps.checkIndependent)
	ctx.Step(`^I check whether a "([^"]*)" in "([^"]*)" may invoice with employee-like factors$`, steps.checkEmployeeLike)
	ctx.Step(`^I ask for a recommendation in "([^"]*)" with employee-like factors$`, steps.recommendEmployeeLike)
}

type classificationSteps struct {
	tc TestContext
}

func independentFactors() map[string]any {
	return map[string]any{
		"fixed_workplace":        false,
		"fixed_hours":            false,
		"supervised":             false,
		"uses_company_equipment": false,
		"has_other_clients":      true,
		"paid_regular_salary":    false,
	}
}

func employeeLikeFactors() map[string]any {
	return map[string]any{
		"fixed_workplace":        true,
		"fixed_hours":            true,
		"supervised":             true,
		"uses_company_equipment": true,
		"has_other_clients":      false,
		"paid_regular_salary":    true,
	}
}

func (s *classificationSteps) checkIndependent(ctx context.Context, classification, jurisdiction string) error {
	return s.tc.POST("/v1/classification/check-eligibility", map[string]any{
		"jurisdiction":   jurisdiction,
		"classification": classification,
		"factors":        independentFactors(),
	})
}

func (s *classificationSteps) checkEmployeeLike(ctx context.Context, classification, jurisdiction string) error {
	return s.tc.POST("/v1/classification/check-eligibility", map[string]any{
		"jurisdiction":   jurisdiction,
		"classification": classification,
		"factors":        employeeLikeFactors(),
	})
}

func (s *classificationSteps) recommendEmployeeLike(ctx context.Context, jurisdiction string) error {
	return s.tc.POST("/v1/classification/recommend", map[string]any{
		"jurisdiction": jurisdiction,
		"factors":      employeeLikeFactors(),
	})
}
