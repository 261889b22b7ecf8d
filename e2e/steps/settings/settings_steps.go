package settings

import (
	"context"
	"strconv"

	"github.com/cucumber/godog"
)

type TestContext interface {
	POST(path string, body any) error
}

func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &settingsSteps{tc: tc}
	ctx.Step(`^I set land applications open to (true|false)$`, steps.setOpen)
}

type settingsSteps struct {
	tc TestContext
}

func (s *settingsSteps) setOpen(_ context.Context, open string) error {
	value, err := strconv.ParseBool(open)
	if err != nil {
		return err
	}
	return s.tc.POST("/admin/settings/land-applications", map[string]bool{"open": value})
}
