package dbschema

import (
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Subject{})
}

type Subject struct {
	BaseModel
	PublicID    string `gorm:"size:64;not null;uniqueIndex"`
	DisplayName string `gorm:"size:256"`
	Language    string `gorm:"size:35;not null"`
	Timezone    string `gorm:"size:64"`
	BirthDate   string `gorm:"size:10"`
	BirthTime   string `gorm:"size:5"`
	BirthPlace  string `gorm:"size:256"`
	Latitude    *float64
	Longitude   *float64
}

func NewSchemaSubject(s *subject.Subject) *Subject {
	return &Subject{
		BaseModel: BaseModel{
			ID:        s.ID,
			CreatedAt: s.CreatedAt,
		},
		PublicID:    s.PublicID,
		DisplayName: s.DisplayName,
		Language:    s.Language,
		Timezone:    s.Timezone,
		BirthDate:   s.BirthDate,
		BirthTime:   s.BirthTime,
		BirthPlace:  s.BirthPlace,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
	}
}

func (s *Subject) EtoD() *subject.Subject {
	return &subject.Subject{
		ID:          s.ID,
		PublicID:    s.PublicID,
		DisplayName: s.DisplayName,
		Language:    s.Language,
		Timezone:    s.Timezone,
		BirthDate:   s.BirthDate,
		BirthTime:   s.BirthTime,
		BirthPlace:  s.BirthPlace,
		Latitude:    s.Latitude,
		Longitude:   s.Longitude,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}
