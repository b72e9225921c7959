//go:build wireinject

package main

import (
	"github.com/google/wire"
	"solara.ai/insights-gateway/app/domain"
	"solara.ai/insights-gateway/app/infrastructure"
	"solara.ai/insights-gateway/app/infrastructure/database"
	"solara.ai/insights-gateway/app/infrastructure/database/repository"
	"solara.ai/insights-gateway/app/interfaces/http"
	"solara.ai/insights-gateway/app/interfaces/http/routes"
)

func CreateApplication() (*Application, error) {
	wire.Build(
		database.NewDB,
		repository.RepositoryProvider,
		infrastructure.InfrastructureProvider,
		domain.ServiceProvider,
		routes.RouteProvider,
		http.NewHttpServer,
		wire.Struct(new(Application), "*"),
	)
	return nil, nil
}
