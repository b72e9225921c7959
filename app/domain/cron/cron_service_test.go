package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"solara.ai/insights-gateway/app/domain/budget"
)

type stubReporter struct {
	status budget.Status
	err    error
}

func (s stubReporter) CheckBudget(context.Context) (budget.Status, error) {
	return s.status, s.err
}

func TestReportBudget(t *testing.T) {
	want := budget.Status{Allowed: true, Day: "2025-03-01", Used: 9, Limit: 10, Remaining: 1}
	cs := NewService(stubReporter{status: want})
	assert.Equal(t, want, cs.ReportBudget(context.Background()))

	failing := NewService(stubReporter{err: errors.New("down")})
	assert.False(t, failing.ReportBudget(context.Background()).Allowed)

	var nilService *CronService
	assert.Equal(t, budget.Status{}, nilService.ReportBudget(context.Background()))
}
