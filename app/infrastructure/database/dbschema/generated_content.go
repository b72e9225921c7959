package dbschema

import (
	"encoding/json"
	"time"

	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(GeneratedContent{})
}

// GeneratedContent is the retained copy of durable content. One row per
// record key; a stale fingerprint is overwritten in place.
type GeneratedContent struct {
	BaseModel
	RecordKey     string `gorm:"size:512;not null;uniqueIndex"`
	CacheKey      string `gorm:"size:512"`
	Kind          string `gorm:"size:64;not null;index"`
	SubjectID     string `gorm:"size:128;not null;index"`
	Payload       string `gorm:"type:text;not null"`
	InputHash     string `gorm:"size:64;not null"`
	SchemaVersion int    `gorm:"not null"`
	PromptVersion int    `gorm:"not null"`
	Language      string `gorm:"size:35;not null"`
	Model         string `gorm:"size:128"`
	GeneratedAt   time.Time
}

func NewSchemaGeneratedContent(recordKey string, kind string, subjectID string, r *generation.Record) *GeneratedContent {
	return &GeneratedContent{
		RecordKey:     recordKey,
		CacheKey:      r.Key,
		Kind:          kind,
		SubjectID:     subjectID,
		Payload:       string(r.Payload),
		InputHash:     r.Fingerprint.InputHash,
		SchemaVersion: r.Fingerprint.SchemaVersion,
		PromptVersion: r.Fingerprint.PromptVersion,
		Language:      r.Fingerprint.Language,
		Model:         r.Model,
		GeneratedAt:   r.GeneratedAt.UTC(),
	}
}

func (g *GeneratedContent) EtoD() *generation.Record {
	return &generation.Record{
		Key:     g.CacheKey,
		Payload: json.RawMessage(g.Payload),
		Fingerprint: generation.Fingerprint{
			InputHash:     g.InputHash,
			SchemaVersion: g.SchemaVersion,
			PromptVersion: g.PromptVersion,
			Language:      g.Language,
		},
		Model:       g.Model,
		GeneratedAt: g.GeneratedAt.UTC(),
	}
}
