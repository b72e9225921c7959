package generation

import (
	"context"
	"encoding/json"
	"time"

	"solara.ai/insights-gateway/app/domain/contentkey"
)

// Fingerprint holds the fields that must all match for a stored record to
// be served. A record that differs in any field is stale.
type Fingerprint struct {
	InputHash     string `json:"input_hash"`
	SchemaVersion int    `json:"schema_version"`
	PromptVersion int    `json:"prompt_version"`
	Language      string `json:"language"`
}

// NewFingerprint takes versions and language from the key.
func NewFingerprint(key contentkey.LogicalKey, inputHash string) Fingerprint {
	n := key.Normalized()
	return Fingerprint{
		InputHash:     inputHash,
		SchemaVersion: n.SchemaVersion,
		PromptVersion: n.PromptVersion,
		Language:      n.Language,
	}
}

func (f Fingerprint) Matches(other Fingerprint) bool {
	return f == other
}

// Record is one unit of generated content with the fingerprint it was
// produced under.
type Record struct {
	Key         string          `json:"key"`
	Payload     json.RawMessage `json:"payload"`
	Fingerprint Fingerprint     `json:"fingerprint"`
	Model       string          `json:"model,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
}

type Usage struct {
	InputUnits  int64
	OutputUnits int64
}

// Output is what a generation call returns on success.
type Output struct {
	Payload json.RawMessage
	Model   string
	Usage   Usage
}

type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	JSONMode    bool
}

// Provider is the external generation service.
type Provider interface {
	Generate(ctx context.Context, prompt Prompt) (*Output, error)
}

// GenerateFunc produces the payload for one request. It is only called by
// the lock holder.
type GenerateFunc func(ctx context.Context) (*Output, error)

// Policy carries per-kind knobs.
type Policy struct {
	// SustainedPerHour overrides the limiter default when > 0.
	SustainedPerHour int
	// LeaseDuration overrides the lock default when > 0.
	LeaseDuration time.Duration
	// CacheTTL bounds how long the ephemeral copy lives.
	CacheTTL time.Duration
	// Durable stores the record in the relational store, retained forever.
	Durable bool
}

type Request struct {
	Key         contentkey.LogicalKey
	Fingerprint Fingerprint
	RequesterID string
	Policy      Policy
	Generate    GenerateFunc
}

type Result struct {
	Record   *Record
	WasFresh bool
}
