package routes

import (
	"github.com/google/wire"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/usagerepo"
	v1 "solara.ai/insights-gateway/app/interfaces/http/routes/v1"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/admin"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/insights"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/subjects"
)

var RouteProvider = wire.NewSet(
	insights.NewInsightRoute,
	subjects.NewSubjectRoute,
	admin.NewAdminRoute,
	wire.Bind(new(admin.UsageLedger), new(*usagerepo.UsageGormRepository)),
	v1.NewV1Route,
)
