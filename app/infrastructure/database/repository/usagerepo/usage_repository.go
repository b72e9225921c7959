package usagerepo

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/infrastructure/database/dbschema"
)

type UsageGormRepository struct {
	db *gorm.DB
}

// RecordUsage implements budget.UsageRecorder.
func (repo *UsageGormRepository) RecordUsage(ctx context.Context, usage budget.Usage) error {
	return repo.db.WithContext(ctx).Create(dbschema.NewSchemaGenerationUsage(usage)).Error
}

// FindByDay lists the ledger rows of one UTC day, oldest first.
func (repo *UsageGormRepository) FindByDay(ctx context.Context, day string) ([]budget.Usage, error) {
	var rows []dbschema.GenerationUsage
	err := repo.db.WithContext(ctx).
		Where("day = ?", day).
		Order("recorded_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]budget.Usage, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].EtoD())
	}
	return result, nil
}

// SumByDay totals the ledger for one day. It is the audit counterpart of
// the cache counter and may lag it when ledger writes fail.
func (repo *UsageGormRepository) SumByDay(ctx context.Context, day string) (decimal.Decimal, int, error) {
	rows, err := repo.FindByDay(ctx, day)
	if err != nil {
		return decimal.Zero, 0, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Cost)
	}
	return total, len(rows), nil
}

func NewUsageGormRepository(db *gorm.DB) *UsageGormRepository {
	return &UsageGormRepository{
		db: db,
	}
}
