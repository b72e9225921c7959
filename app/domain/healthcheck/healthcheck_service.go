package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/mileusna/crontab"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/logger"
)

const probeTimeout = 2 * time.Second

type Status struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// HealthcheckCrontabService probes the shared cache on a schedule and logs
// transitions between healthy and unhealthy.
type HealthcheckCrontabService struct {
	Cache cache.CacheService

	mu   sync.RWMutex
	last Status
}

func NewService(cacheService cache.CacheService) *HealthcheckCrontabService {
	return &HealthcheckCrontabService{
		Cache: cacheService,
	}
}

func (hs *HealthcheckCrontabService) Start(ctx context.Context, ctab *crontab.Crontab) {
	hs.CheckCache(ctx)
	ctab.MustAddJob("* * * * *", func() {
		hs.CheckCache(ctx)
	})
}

// CheckCache pings the store and writes the probe key so a read-only
// replica is reported as unhealthy too.
func (hs *HealthcheckCrontabService) CheckCache(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	now := time.Now().UTC()
	status := Status{Healthy: true, CheckedAt: now}
	err := hs.Cache.HealthCheck(ctx)
	if err == nil {
		err = hs.Cache.Set(ctx, cache.HealthProbeKey, now.Format(time.RFC3339), 5*time.Minute)
	}
	if err != nil {
		status.Healthy = false
		status.Error = err.Error()
	}

	hs.mu.Lock()
	previous := hs.last
	hs.last = status
	hs.mu.Unlock()

	switch {
	case !status.Healthy && (previous.Healthy || previous.CheckedAt.IsZero()):
		logger.GetLogger().Errorf("healthcheck: cache unhealthy: %s", status.Error)
	case status.Healthy && !previous.Healthy && !previous.CheckedAt.IsZero():
		logger.GetLogger().Info("healthcheck: cache recovered")
	}
	return status
}

func (hs *HealthcheckCrontabService) Last() Status {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.last
}
