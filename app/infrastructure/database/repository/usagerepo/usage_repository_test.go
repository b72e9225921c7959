package usagerepo

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/infrastructure/database"
)

func newRepo(t *testing.T) *UsageGormRepository {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	require.NoError(t, database.NewDBMigrator(db).Migrate())
	return NewUsageGormRepository(db)
}

func TestUsageRepository_SumByDay(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	rows := []budget.Usage{
		{Day: "2025-03-01", Model: "gpt-4o-mini", InputUnits: 1000, OutputUnits: 500, Cost: decimal.RequireFromString("0.00045"), PriceVersion: "2025-01", RecordedAt: at},
		{Day: "2025-03-01", Model: "gpt-4o", InputUnits: 2000, OutputUnits: 100, Cost: decimal.RequireFromString("0.006"), PriceVersion: "2025-01", RecordedAt: at.Add(time.Minute)},
		{Day: "2025-03-02", Model: "gpt-4o", InputUnits: 1, OutputUnits: 1, Cost: decimal.RequireFromString("1"), PriceVersion: "2025-01", RecordedAt: at.Add(24 * time.Hour)},
	}
	for _, row := range rows {
		require.NoError(t, repo.RecordUsage(ctx, row))
	}

	total, count, err := repo.SumByDay(ctx, "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.True(t, total.Equal(decimal.RequireFromString("0.00645")), total.String())

	day, err := repo.FindByDay(ctx, "2025-03-01")
	require.NoError(t, err)
	require.Len(t, day, 2)
	assert.Equal(t, "gpt-4o-mini", day[0].Model)
	assert.Equal(t, "2025-01", day[1].PriceVersion)
}

func TestUsageRepository_PricedWithDefaultTable(t *testing.T) {
	repo := newRepo(t)

	require.NoError(t, repo.RecordUsage(context.Background(), budget.Usage{
		Day:          "2025-03-01",
		Model:        "gpt-4o-mini",
		Cost:         budget.DefaultPricingTable().Estimate("gpt-4o-mini", 1_000_000, 0),
		PriceVersion: budget.DefaultPricingTable().Version,
		RecordedAt:   time.Now(),
	}))
	total, _, err := repo.SumByDay(context.Background(), "2025-03-01")
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("0.15")), total.String())
}
