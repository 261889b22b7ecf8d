package registration

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext is the subset of the e2e test context these steps need.
type TestContext interface {
	POST(path string, body any) error
	Upload(path string, fields map[string]string, fileName string, content []byte) error
	Status() int
	Body() []byte
	Field(path string) (any, error)
	Save(name, value string)
	Expand(s string) string
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrationSteps{tc: tc}
	ctx.Step(`^I submit a registration as "([^"]*)" "([^"]*)"$`, steps.submit)
	ctx.Step(`^I upload a "([^"]*)" document to registration "([^"]*)"$`, steps.upload)
	ctx.Step(`^I upload documents of kinds "([^"]*)" to registration "([^"]*)"$`, steps.uploadMany)
	ctx.Step(`^I set the status of registration "([^"]*)" to "([^"]*)"$`, steps.transition)
	ctx.Step(`^I record existing property lot "([^"]*)"$`, steps.existingProperty)
	ctx.Step(`^the checklist should be missing "([^"]*)"$`, steps.checklistMissing)
	ctx.Step(`^the checklist should be complete$`, steps.checklistComplete)
	ctx.Step(`^the history should contain (\d+) events?$`, steps.historyCount)
}

type registrationSteps struct {
	tc TestContext
}

func (s *registrationSteps) submit(_ context.Context, first, last string) error {
	err := s.tc.POST("/registrations", map[string]any{
		"firstName":     first,
		"lastName":      last,
		"email":         strings.ToLower(first + "." + last + "@e2e.landtrust.test"),
		"dob":           "1990-04-01",
		"address":       "1 Commons Way",
		"agreedToTerms": true,
		"signature":     first + " " + last,
		"signDate":      "2026-01-15",
	})
	if err != nil {
		return err
	}
	if s.tc.Status() != 200 {
		return fmt.Errorf("submit failed with %d: %s", s.tc.Status(), s.tc.Body())
	}
	id, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.Save("registration", fmt.Sprint(id))
	return nil
}

func (s *registrationSteps) upload(_ context.Context, kind, registration string) error {
	path := s.tc.Expand("/registrations/" + registration + "/attachments")
	return s.tc.Upload(path, map[string]string{"kind": kind, "label": "e2e"},
		strings.ToLower(kind)+".pdf", []byte("%PDF-1.4 e2e "+kind))
}

func (s *registrationSteps) uploadMany(ctx context.Context, kinds, registration string) error {
	for _, kind := range strings.Split(kinds, ",") {
		kind = strings.TrimSpace(kind)
		if err := s.upload(ctx, kind, registration); err != nil {
			return err
		}
		if s.tc.Status() != 200 && s.tc.Status() != 201 {
			return fmt.Errorf("upload of %s failed with %d: %s", kind, s.tc.Status(), s.tc.Body())
		}
	}
	return nil
}

func (s *registrationSteps) transition(_ context.Context, registration, to string) error {
	return s.tc.POST(s.tc.Expand("/admin/registrations/"+registration+"/status"), map[string]string{"to": to})
}

func (s *registrationSteps) existingProperty(_ context.Context, lot string) error {
	return s.tc.POST("/registrations/me/existing-property", map[string]any{
		"hasExistingProperty":   true,
		"existingLotNumber":     lot,
		"existingPropertyNotes": "recorded by e2e",
	})
}

func (s *registrationSteps) checklistMissing(_ context.Context, kinds string) error {
	v, err := s.tc.Field("checklist.missing")
	if err != nil {
		return err
	}
	got := toStrings(v)
	want := strings.Split(kinds, ",")
	for i := range want {
		want[i] = strings.TrimSpace(want[i])
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected missing %v, got %v", want, got)
	}
	return nil
}

func (s *registrationSteps) checklistComplete(_ context.Context) error {
	v, err := s.tc.Field("checklist.complete")
	if err != nil {
		return err
	}
	if complete, _ := v.(bool); !complete {
		return fmt.Errorf("expected a complete checklist: %s", s.tc.Body())
	}
	return nil
}

func (s *registrationSteps) historyCount(_ context.Context, want int) error {
	v, err := s.tc.Field("events")
	if err != nil {
		return err
	}
	events, _ := v.([]any)
	if len(events) != want {
		return fmt.Errorf("expected %d events, got %d: %s", want, len(events), s.tc.Body())
	}
	return nil
}

func toStrings(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}
