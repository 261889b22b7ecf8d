// Package common holds steps shared by every feature: signing in and
// asserting on the last response.
package common

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the e2e test context these steps need.
type TestContext interface {
	SignIn(subject, email string) error
	SignOut()
	GET(path string) error
	Status() int
	Body() []byte
	Field(path string) (any, error)
	Save(name, value string)
	Expand(s string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &commonSteps{tc: tc}
	ctx.Step(`^I am signed in as "([^"]*)" with email "([^"]*)"$`, steps.signedInAs)
	ctx.Step(`^I am not signed in$`, steps.notSignedIn)
	ctx.Step(`^I request "([^"]*)"$`, steps.request)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be (true|false)$`, steps.fieldShouldBeBool)
	ctx.Step(`^the response field "([^"]*)" should be null$`, steps.fieldShouldBeNull)
	ctx.Step(`^I save the response field "([^"]*)" as "([^"]*)"$`, steps.saveField)
}

type commonSteps struct {
	tc TestContext
}

func (s *commonSteps) signedInAs(_ context.Context, subject, email string) error {
	return s.tc.SignIn(subject, email)
}

func (s *commonSteps) notSignedIn(_ context.Context) error {
	s.tc.SignOut()
	return nil
}

func (s *commonSteps) request(_ context.Context, path string) error {
	return s.tc.GET(path)
}

func (s *commonSteps) statusShouldBe(_ context.Context, want int) error {
	if got := s.tc.Status(); got != want {
		return fmt.Errorf("expected status %d, got %d: %s", want, got, s.tc.Body())
	}
	return nil
}

func (s *commonSteps) fieldShouldBe(_ context.Context, path, want string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	want = s.tc.Expand(want)
	if got := fmt.Sprint(v); got != want {
		return fmt.Errorf("expected %s to be %q, got %q", path, want, got)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeBool(_ context.Context, path, want string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	expected, _ := strconv.ParseBool(want)
	got, ok := v.(bool)
	if !ok || got != expected {
		return fmt.Errorf("expected %s to be %s, got %v", path, want, v)
	}
	return nil
}

func (s *commonSteps) fieldShouldBeNull(_ context.Context, path string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	if v != nil {
		return fmt.Errorf("expected %s to be null, got %v", path, v)
	}
	return nil
}

func (s *commonSteps) saveField(_ context.Context, path, name string) error {
	v, err := s.tc.Field(path)
	if err != nil {
		return err
	}
	s.tc.Save(name, fmt.Sprint(v))
	return nil
}
