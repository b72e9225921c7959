package subjectrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	domain "solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/database/dbschema"
)

type SubjectGormRepository struct {
	db *gorm.DB
}

// Create persists a new subject.
func (repo *SubjectGormRepository) Create(ctx context.Context, s *domain.Subject) error {
	model := dbschema.NewSchemaSubject(s)
	if err := repo.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	s.ID = model.ID
	s.CreatedAt = model.CreatedAt
	s.UpdatedAt = model.UpdatedAt
	return nil
}

// Update overwrites an existing subject.
func (repo *SubjectGormRepository) Update(ctx context.Context, s *domain.Subject) error {
	model := dbschema.NewSchemaSubject(s)
	if err := repo.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	s.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByPublicID returns domain.ErrSubjectNotFound when absent.
func (repo *SubjectGormRepository) FindByPublicID(ctx context.Context, publicID string) (*domain.Subject, error) {
	var model dbschema.Subject
	err := repo.db.WithContext(ctx).Where("public_id = ?", publicID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSubjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.EtoD(), nil
}

func NewSubjectGormRepository(db *gorm.DB) domain.SubjectRepository {
	return &SubjectGormRepository{
		db: db,
	}
}
