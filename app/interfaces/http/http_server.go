package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/metrics"
	"solara.ai/insights-gateway/app/interfaces/http/middleware"
	v1 "solara.ai/insights-gateway/app/interfaces/http/routes/v1"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

type HttpServer struct {
	engine  *gin.Engine
	v1Route *v1.V1Route
	server  *http.Server
}

func NewHttpServer(v1Route *v1.V1Route, metricsProvider *metrics.Provider, cacheService cache.CacheService) *HttpServer {
	gin.SetMode(gin.ReleaseMode)
	server := HttpServer{
		engine:  gin.New(),
		v1Route: v1Route,
	}
	server.engine.Use(gin.Recovery(), middleware.LoggerMiddleware(logger.GetLogger()), middleware.CORS())
	server.engine.GET("/health-check", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := cacheService.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "cache": err.Error()})
			return
		}
		c.JSON(http.StatusOK, "ok")
	})
	server.engine.GET("/metrics", gin.WrapH(metricsProvider.Handler()))
	server.v1Route.RegisterRouter(server.engine.Group("/"))
	return &server
}

// Handler exposes the engine for in-process tests.
func (httpServer *HttpServer) Handler() http.Handler {
	return httpServer.engine
}

func (httpServer *HttpServer) Run() error {
	port := environment_variables.EnvironmentVariables.HTTP_PORT
	if port == 0 {
		port = 8080
	}
	httpServer.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           httpServer.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.GetLogger().Infof("http server listening on :%d", port)
	if err := httpServer.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (httpServer *HttpServer) Shutdown(ctx context.Context) error {
	if httpServer.server == nil {
		return nil
	}
	return httpServer.server.Shutdown(ctx)
}
