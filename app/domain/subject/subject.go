package subject

import (
	"context"
	"errors"
	"time"

	"solara.ai/insights-gateway/app/domain/contentkey"
)

var (
	ErrSubjectNotFound = errors.New("subject: not found")
	ErrInvalidProfile  = errors.New("subject: invalid profile")
)

// Subject is the profile content is generated for. Birth facts feed the
// input hash; language and timezone drive keys and periods.
type Subject struct {
	ID          uint
	PublicID    string
	DisplayName string
	Language    string
	Timezone    string
	BirthDate   string
	BirthTime   string
	BirthPlace  string
	Latitude    *float64
	Longitude   *float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Subject) BirthFacts() contentkey.BirthFacts {
	return contentkey.BirthFacts{
		Date:      s.BirthDate,
		Time:      s.BirthTime,
		Place:     s.BirthPlace,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Timezone:  s.Timezone,
	}
}

type SubjectRepository interface {
	Create(ctx context.Context, s *Subject) error
	Update(ctx context.Context, s *Subject) error
	FindByPublicID(ctx context.Context, publicID string) (*Subject, error)
}
