package infrastructure

import (
	"github.com/google/wire"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/inference"
	"solara.ai/insights-gateway/app/infrastructure/lock"
	"solara.ai/insights-gateway/app/infrastructure/metrics"
	"solara.ai/insights-gateway/app/utils/clock"
)

var InfrastructureProvider = wire.NewSet(
	cache.NewCacheService,
	lock.NewLockManager,
	wire.Bind(new(lock.Manager), new(*lock.LockManager)),
	inference.NewProviderFromEnv,
	metrics.NewProvider,
	metrics.NewGenerationObserverFromProvider,
	wire.Bind(new(generation.Observer), new(*metrics.GenerationObserver)),
	clock.NewSystemClock,
	wire.Bind(new(clock.Clock), new(*clock.SystemClock)),
)
