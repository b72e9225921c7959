package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/mileusna/crontab"
	"solara.ai/insights-gateway/app/domain/cron"
	"solara.ai/insights-gateway/app/domain/healthcheck"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/metrics"
	"solara.ai/insights-gateway/app/interfaces/http"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

const shutdownTimeout = 30 * time.Second

type Application struct {
	HttpServer         *http.HttpServer
	CronService        *cron.CronService
	HealthcheckService *healthcheck.HealthcheckCrontabService
	Metrics            *metrics.Provider
	Cache              cache.CacheService
}

func (application *Application) Start(ctx context.Context) {
	ctab := crontab.New()
	application.HealthcheckService.Start(ctx, ctab)
	application.CronService.Start(ctx, ctab)

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.HttpServer.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			panic(err)
		}
	case <-ctx.Done():
		logger.GetLogger().Info("shutting down")
	}

	ctab.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.HttpServer.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Errorf("http server shutdown: %v", err)
	}
	if err := application.Metrics.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Warnf("metrics shutdown: %v", err)
	}
	if err := application.Cache.Close(); err != nil {
		logger.GetLogger().Warnf("cache close: %v", err)
	}
}

func init() {
	environment_variables.EnvironmentVariables.LoadFromEnv()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := CreateApplication()
	if err != nil {
		panic(err)
	}
	application.Start(ctx)
}
