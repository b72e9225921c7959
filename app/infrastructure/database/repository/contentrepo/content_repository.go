package contentrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/infrastructure/database/dbschema"
)

type ContentGormRepository struct {
	db *gorm.DB
}

// LoadByKey returns (nil, nil) when no row exists for recordKey.
func (repo *ContentGormRepository) LoadByKey(ctx context.Context, recordKey string) (*generation.Record, error) {
	var model dbschema.GeneratedContent
	err := repo.db.WithContext(ctx).Where("record_key = ?", recordKey).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.EtoD(), nil
}

// UpsertByKey inserts the row or overwrites every content column of the
// existing row with the same record key.
func (repo *ContentGormRepository) UpsertByKey(ctx context.Context, recordKey string, kind string, subjectID string, record *generation.Record) error {
	model := dbschema.NewSchemaGeneratedContent(recordKey, kind, subjectID, record)
	return repo.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"cache_key",
			"payload",
			"input_hash",
			"schema_version",
			"prompt_version",
			"language",
			"model",
			"generated_at",
			"updated_at",
		}),
	}).Create(model).Error
}

// CountBySubject returns how many durable records a subject has.
func (repo *ContentGormRepository) CountBySubject(ctx context.Context, subjectID string) (int64, error) {
	var count int64
	err := repo.db.WithContext(ctx).Model(&dbschema.GeneratedContent{}).
		Where("subject_id = ?", subjectID).
		Count(&count).Error
	return count, err
}

func NewContentGormRepository(db *gorm.DB) *ContentGormRepository {
	return &ContentGormRepository{
		db: db,
	}
}
