package subject

import (
	"context"
	"fmt"
	"strings"
	"time"

	"solara.ai/insights-gateway/app/domain/contentkey"
	"solara.ai/insights-gateway/app/utils/idgen"
)

const publicIDPrefix = "subj"

const DefaultLanguage = "en"

type SubjectService struct {
	repo SubjectRepository
}

func NewService(repo SubjectRepository) *SubjectService {
	return &SubjectService{repo: repo}
}

func (s *SubjectService) FindByPublicID(ctx context.Context, publicID string) (*Subject, error) {
	return s.repo.FindByPublicID(ctx, publicID)
}

// Register stores a new subject under a generated public id.
func (s *SubjectService) Register(ctx context.Context, subj *Subject) (*Subject, error) {
	if err := normalize(subj); err != nil {
		return nil, err
	}
	publicID, err := idgen.NewPublicID(publicIDPrefix)
	if err != nil {
		return nil, err
	}
	subj.PublicID = publicID
	if err := s.repo.Create(ctx, subj); err != nil {
		return nil, err
	}
	return subj, nil
}

// UpdateProfile replaces the mutable profile fields of an existing subject.
func (s *SubjectService) UpdateProfile(ctx context.Context, publicID string, patch *Subject) (*Subject, error) {
	existing, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	patch.ID = existing.ID
	patch.PublicID = existing.PublicID
	patch.CreatedAt = existing.CreatedAt
	if err := normalize(patch); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, patch); err != nil {
		return nil, err
	}
	return patch, nil
}

func ValidPublicID(id string) bool {
	return idgen.ValidPublicID(id, publicIDPrefix)
}

func normalize(subj *Subject) error {
	subj.Language = strings.TrimSpace(subj.Language)
	if subj.Language == "" {
		subj.Language = DefaultLanguage
	}
	lang, err := contentkey.NormalizeLanguage(subj.Language)
	if err != nil {
		return fmt.Errorf("%w: language: %w", ErrInvalidProfile, err)
	}
	subj.Language = lang
	subj.Timezone = strings.TrimSpace(subj.Timezone)

	if subj.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", subj.BirthDate); err != nil {
			return fmt.Errorf("%w: birth_date must be YYYY-MM-DD: %w", ErrInvalidProfile, err)
		}
	}
	if subj.BirthTime != "" {
		if _, err := time.Parse("15:04", subj.BirthTime); err != nil {
			return fmt.Errorf("%w: birth_time must be HH:MM: %w", ErrInvalidProfile, err)
		}
	}
	return nil
}
