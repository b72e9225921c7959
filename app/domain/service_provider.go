package domain

import (
	"github.com/google/wire"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/domain/cron"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/domain/healthcheck"
	"solara.ai/insights-gateway/app/domain/insight"
	"solara.ai/insights-gateway/app/domain/ratelimit"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/lock"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/config/environment_variables"
)

func NewCoordinator(
	stores generation.Stores,
	limiter *ratelimit.Limiter,
	governor *budget.Governor,
	locks lock.Manager,
	cacheService cache.CacheService,
	observer generation.Observer,
	clk clock.Clock,
) *generation.Coordinator {
	return generation.NewCoordinator(stores, limiter, governor, locks, cacheService,
		generation.WithObserver(observer),
		generation.WithClock(clk),
		generation.WithConfig(generation.ConfigFromEnv()),
	)
}

func NewInsightService(
	subjectService *subject.SubjectService,
	coordinator *generation.Coordinator,
	provider generation.Provider,
	clk clock.Clock,
) *insight.InsightService {
	return insight.NewInsightService(subjectService, coordinator, provider,
		insight.WithClock(clk),
		insight.WithStrictTimezone(environment_variables.EnvironmentVariables.STRICT_TIMEZONE),
	)
}

var ServiceProvider = wire.NewSet(
	subject.NewService,
	ratelimit.NewLimiter,
	budget.NewPricingTableFromEnv,
	budget.NewGovernor,
	wire.Bind(new(cron.BudgetReporter), new(*budget.Governor)),
	generation.NewStores,
	NewCoordinator,
	NewInsightService,
	cron.NewService,
	healthcheck.NewService,
)
