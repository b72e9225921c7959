// Package budget keeps a global daily spend counter with a hard ceiling.
//
// The check runs before a generation call and the increment after it, using
// measured usage. Concurrent requests that pass the check together may
// overshoot the ceiling by their combined cost.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

// counterGrace keeps a day's counter around after midnight UTC to
// tolerate clock skew between replicas.
const counterGrace = 48 * time.Hour

// FailMode decides what CheckBudget reports when the counter store is
// unreachable. The zero value is FailClosed.
type FailMode int

const (
	FailClosed FailMode = iota
	FailOpen
)

func (m FailMode) String() string {
	if m == FailOpen {
		return "open"
	}
	return "closed"
}

// ParseFailMode returns FailOpen only for the literal "open".
func ParseFailMode(s string) FailMode {
	if strings.EqualFold(strings.TrimSpace(s), "open") {
		return FailOpen
	}
	return FailClosed
}

var ErrBudgetStoreUnavailable = errors.New("budget: counter store unavailable")

type Status struct {
	Allowed   bool    `json:"allowed"`
	Day       string  `json:"day"`
	Used      float64 `json:"used"`
	Limit     float64 `json:"limit"`
	Remaining float64 `json:"remaining"`
	// Degraded is set when the store could not be read and FailOpen let the request through.
	Degraded bool `json:"degraded,omitempty"`
}

// Usage is one priced generation call.
type Usage struct {
	Day          string
	Model        string
	InputUnits   int64
	OutputUnits  int64
	Cost         decimal.Decimal
	PriceVersion string
	RecordedAt   time.Time
}

// UsageRecorder persists priced usage for audit.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage Usage) error
}

type Config struct {
	DailyLimit decimal.Decimal
	FailMode   FailMode
}

func ConfigFromEnv() Config {
	env := environment_variables.EnvironmentVariables
	return Config{
		DailyLimit: decimal.NewFromFloat(env.BUDGET_DAILY_LIMIT_USD),
		FailMode:   ParseFailMode(env.BUDGET_FAIL_MODE),
	}
}

type Governor struct {
	cache    cache.CacheService
	clock    clock.Clock
	pricing  *PricingTable
	cfg      Config
	recorder UsageRecorder
}

func NewGovernor(cacheService cache.CacheService, clk clock.Clock, pricing *PricingTable, recorder UsageRecorder) *Governor {
	return NewGovernorWithConfig(cacheService, clk, pricing, ConfigFromEnv(), recorder)
}

func NewGovernorWithConfig(cacheService cache.CacheService, clk clock.Clock, pricing *PricingTable, cfg Config, recorder UsageRecorder) *Governor {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	if pricing == nil {
		pricing = DefaultPricingTable()
	}
	return &Governor{
		cache:    cacheService,
		clock:    clk,
		pricing:  pricing,
		cfg:      cfg,
		recorder: recorder,
	}
}

func (g *Governor) Pricing() *PricingTable {
	return g.pricing
}

// CheckBudget reads today's counter. With FailClosed an unreachable store
// returns a not-allowed status and an error wrapping
// ErrBudgetStoreUnavailable; with FailOpen it returns an allowed, degraded
// status.
func (g *Governor) CheckBudget(ctx context.Context) (Status, error) {
	now := g.clock.Now().UTC()
	status := Status{
		Day:   now.Format("2006-01-02"),
		Limit: g.cfg.DailyLimit.InexactFloat64(),
	}

	raw, err := g.cache.Get(ctx, cache.BudgetDailyKey(now))
	used := decimal.Zero
	switch {
	case err == nil:
		used, err = decimal.NewFromString(raw)
		if err != nil {
			return g.unavailable(status, fmt.Errorf("corrupt counter %q: %w", raw, err))
		}
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		return g.unavailable(status, err)
	}

	remaining := g.cfg.DailyLimit.Sub(used)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	status.Used = used.InexactFloat64()
	status.Remaining = remaining.InexactFloat64()
	status.Allowed = used.LessThan(g.cfg.DailyLimit)
	return status, nil
}

func (g *Governor) unavailable(status Status, err error) (Status, error) {
	if g.cfg.FailMode == FailOpen {
		logger.GetLogger().WithFields(logrus.Fields{
			"day":   status.Day,
			"error": err.Error(),
		}).Warn("budget: counter store unreachable, fail-open override allows generation")
		status.Allowed = true
		status.Degraded = true
		return status, nil
	}
	return status, fmt.Errorf("%w: %w", ErrBudgetStoreUnavailable, err)
}

// IncrementBudget adds the priced cost of one call to today's counter and
// returns the new total. Callers log and drop the error.
func (g *Governor) IncrementBudget(ctx context.Context, model string, inputUnits, outputUnits int64) (float64, error) {
	inputUnits = max(inputUnits, 0)
	outputUnits = max(outputUnits, 0)

	now := g.clock.Now().UTC()
	cost := g.pricing.Estimate(model, inputUnits, outputUnits)

	if g.recorder != nil {
		usage := Usage{
			Day:          now.Format("2006-01-02"),
			Model:        model,
			InputUnits:   inputUnits,
			OutputUnits:  outputUnits,
			Cost:         cost,
			PriceVersion: g.pricing.Version,
			RecordedAt:   now,
		}
		if err := g.recorder.RecordUsage(ctx, usage); err != nil {
			logger.GetLogger().WithFields(logrus.Fields{
				"model": model,
				"cost":  cost.String(),
				"error": err.Error(),
			}).Warn("budget: failed to record usage row")
		}
	}

	total, err := g.cache.IncrByFloatWithExpire(ctx, cache.BudgetDailyKey(now), cost.InexactFloat64(), counterExpiry(now))
	if err != nil {
		return 0, fmt.Errorf("budget: increment: %w", err)
	}
	return total, nil
}

// counterExpiry is the time from now until the end of the UTC day plus grace.
func counterExpiry(now time.Time) time.Duration {
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return endOfDay.Sub(now) + counterGrace
}
