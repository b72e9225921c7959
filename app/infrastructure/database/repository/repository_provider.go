package repository

import (
	"github.com/google/wire"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/contentrepo"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/subjectrepo"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/usagerepo"
)

var RepositoryProvider = wire.NewSet(
	contentrepo.NewContentGormRepository,
	wire.Bind(new(generation.RecordRepository), new(*contentrepo.ContentGormRepository)),
	usagerepo.NewUsageGormRepository,
	wire.Bind(new(budget.UsageRecorder), new(*usagerepo.UsageGormRepository)),
	subjectrepo.NewSubjectGormRepository,
)
