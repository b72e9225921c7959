package dbschema

import (
	"time"

	"github.com/shopspring/decimal"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(GenerationUsage{})
}

// GenerationUsage is the audit ledger behind the daily budget counter.
type GenerationUsage struct {
	BaseModel
	Day          string          `gorm:"size:10;not null;index"`
	Model        string          `gorm:"size:128;not null"`
	InputUnits   int64           `gorm:"not null"`
	OutputUnits  int64           `gorm:"not null"`
	CostUSD      decimal.Decimal `gorm:"type:decimal(20,10);not null"`
	PriceVersion string          `gorm:"size:32;not null"`
	RecordedAt   time.Time       `gorm:"not null"`
}

func NewSchemaGenerationUsage(u budget.Usage) *GenerationUsage {
	return &GenerationUsage{
		Day:          u.Day,
		Model:        u.Model,
		InputUnits:   u.InputUnits,
		OutputUnits:  u.OutputUnits,
		CostUSD:      u.Cost,
		PriceVersion: u.PriceVersion,
		RecordedAt:   u.RecordedAt.UTC(),
	}
}

func (g *GenerationUsage) EtoD() budget.Usage {
	return budget.Usage{
		Day:          g.Day,
		Model:        g.Model,
		InputUnits:   g.InputUnits,
		OutputUnits:  g.OutputUnits,
		Cost:         g.CostUSD,
		PriceVersion: g.PriceVersion,
		RecordedAt:   g.RecordedAt.UTC(),
	}
}
