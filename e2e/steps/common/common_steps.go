package common

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string) error
	POST(path string, body any) error
	AdminRequest(method, path string) error
	SetAuthenticated(on bool)
	HasAccessToken() bool
	HasAdminToken() bool
	StatusCode() int
	ResponseBody() []byte
	GetResponseField(field string) (any, error)
	Save(name, value string)
}

// RegisterSteps registers authentication, request and assertion steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}

	ctx.Step(`^I am an authenticated tenant user$`, steps.authenticated)
	ctx.Step(`^I am not authenticated$`, steps.unauthenticated)
	ctx.Step(`^I am an operator$`, steps.operator)

	ctx.Step(`^I GET "([^"]*)"$`, steps.get)
	ctx.Step(`^I POST an empty body to "([^"]*)"$`, steps.postEmpty)
	ctx.Step(`^I send an admin (GET|POST) to "([^"]*)"$`, steps.admin)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, steps.fieldShouldEqual)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response should contain "([^"]*)"$`, steps.responseShouldContain)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) authenticated(ctx context.Context) error {
	if !s.tc.HasAccessToken() {
		return godog.ErrSkip
	}
	s.tc.SetAuthenticated(true)
	return nil
}

func (s *commonSteps) unauthenticated(ctx context.Context) error {
	s.tc.SetAuthenticated(false)
	return nil
}

func (s *commonSteps) operator(ctx context.Context) error {
	if !s.tc.HasAdminToken() {
		return godog.ErrSkip
	}
	return nil
}

func (s *commonSteps) get(ctx context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) postEmpty(ctx context.Context, path string) error {
	return s.tc.POST(path, map[string]any{})
}

func (s *commonSteps) admin(ctx context.Context, method, path string) error {
	return s.tc.AdminRequest(method, path)
}

func (s *commonSteps) statusShouldBe(ctx context.Context, expected int) error {
	if got := s.tc.StatusCode(); got != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, got, s.tc.ResponseBody())
	}
	return nil
}

func (s *commonSteps) fieldShouldEqual(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if got := fmt.Sprint(value); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", field, expected, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(ctx context.Context, field, expected string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	b, ok := value.(bool)
	if !ok {
		return fmt.Errorf("expected %s to be a boolean, got %v", field, value)
	}
	if fmt.Sprint(b) != expected {
		return fmt.Errorf("expected %s to be %s, got %t", field, expected, b)
	}
	return nil
}

func (s *commonSteps) responseShouldContain(ctx context.Context, text string) error {
	if !strings.Contains(string(s.tc.ResponseBody()), text) {
		return fmt.Errorf("expected response to contain %q, got %s", text, s.tc.ResponseBody())
	}
	return nil
}

func (s *commonSteps) saveField(ctx context.Context, field, name string) error {
	value, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Save(name, fmt.Sprint(value))
	return nil
}
