package cron

import (
	"context"

	"github.com/mileusna/crontab"
	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

// budgetWarnRatio is the share of the daily limit past which the spend
// report is logged at warn level.
const budgetWarnRatio = 0.8

type BudgetReporter interface {
	CheckBudget(ctx context.Context) (budget.Status, error)
}

type CronService struct {
	Budget BudgetReporter
}

func NewService(budgetReporter BudgetReporter) *CronService {
	return &CronService{
		Budget: budgetReporter,
	}
}

func (cs *CronService) Start(ctx context.Context, ctab *crontab.Crontab) {
	cs.ReportBudget(ctx)

	ctab.MustAddJob("* * * * *", environment_variables.Reload)
	ctab.MustAddJob("*/5 * * * *", func() {
		cs.ReportBudget(ctx)
	})
}

// ReportBudget logs today's spend and returns the status it logged.
func (cs *CronService) ReportBudget(ctx context.Context) budget.Status {
	if cs == nil || cs.Budget == nil {
		return budget.Status{}
	}
	status, err := cs.Budget.CheckBudget(ctx)
	if err != nil {
		logger.GetLogger().Warnf("cron service: failed to read budget: %v", err)
		return status
	}
	entry := logger.GetLogger().WithFields(logrus.Fields{
		"day":       status.Day,
		"used":      status.Used,
		"limit":     status.Limit,
		"remaining": status.Remaining,
		"degraded":  status.Degraded,
	})
	switch {
	case !status.Allowed:
		entry.Warn("cron service: daily generation budget exhausted")
	case status.Limit > 0 && status.Used >= status.Limit*budgetWarnRatio:
		entry.Warn("cron service: daily generation budget nearly exhausted")
	default:
		entry.Info("cron service: daily generation budget")
	}
	return status
}
