package insight

import (
	"sort"
	"time"

	"solara.ai/insights-gateway/app/domain/contentkey"
	"solara.ai/insights-gateway/app/domain/generation"
)

const (
	KindDailyInsight      = "daily_insight"
	KindWeeklyInsight     = "weekly_insight"
	KindMonthlyInsight    = "monthly_insight"
	KindYearlyInsight     = "yearly_insight"
	KindRelationshipBrief = "relationship_brief"
	KindNatalNarrative    = "natal_narrative"
	KindTarotReading      = "tarot_reading"

	// KindInsight is resolved to one of the periodic kinds by timeframe.
	KindInsight = "insight"
)

// KindPolicy describes how one content kind is keyed, cached and generated.
type KindPolicy struct {
	Kind string
	// Timeframe buckets the period key. Empty for natal content.
	Timeframe     contentkey.Timeframe
	SchemaVersion int
	PromptVersion int
	CacheTTL      time.Duration
	// SustainedPerHour overrides the limiter default when > 0.
	SustainedPerHour int
	LeaseDuration    time.Duration
	Durable          bool
	// RequiredFields must be present in the generated JSON object.
	RequiredFields []string
	MaxTokens      int
	Temperature    float32
	// NeedsPartner and NeedsQuestion mark kinds with extra request inputs.
	NeedsPartner  bool
	NeedsQuestion bool
}

func (p KindPolicy) generationPolicy() generation.Policy {
	return generation.Policy{
		SustainedPerHour: p.SustainedPerHour,
		LeaseDuration:    p.LeaseDuration,
		CacheTTL:         p.CacheTTL,
		Durable:          p.Durable,
	}
}

type Registry struct {
	policies map[string]KindPolicy
}

func NewRegistry(policies ...KindPolicy) *Registry {
	r := &Registry{policies: make(map[string]KindPolicy, len(policies))}
	for _, p := range policies {
		r.policies[p.Kind] = p
	}
	return r
}

func (r *Registry) Lookup(kind string) (KindPolicy, bool) {
	p, ok := r.policies[kind]
	return p, ok
}

// Kinds lists the registered kinds in lexical order.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.policies))
	for k := range r.policies {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// KindForTimeframe maps a timeframe to its periodic insight kind.
func KindForTimeframe(tf contentkey.Timeframe) string {
	switch tf {
	case contentkey.TimeframeWeek:
		return KindWeeklyInsight
	case contentkey.TimeframeMonth:
		return KindMonthlyInsight
	case contentkey.TimeframeYear:
		return KindYearlyInsight
	default:
		return KindDailyInsight
	}
}

var periodicFields = []string{"headline", "body", "focus"}

func DefaultRegistry() *Registry {
	return NewRegistry(
		KindPolicy{
			Kind:             KindDailyInsight,
			Timeframe:        contentkey.TimeframeDay,
			SchemaVersion:    1,
			PromptVersion:    3,
			CacheTTL:         36 * time.Hour,
			SustainedPerHour: 60,
			RequiredFields:   periodicFields,
			MaxTokens:        600,
			Temperature:      0.8,
		},
		KindPolicy{
			Kind:           KindWeeklyInsight,
			Timeframe:      contentkey.TimeframeWeek,
			SchemaVersion:  1,
			PromptVersion:  2,
			CacheTTL:       8 * 24 * time.Hour,
			RequiredFields: periodicFields,
			MaxTokens:      900,
			Temperature:    0.8,
		},
		KindPolicy{
			Kind:           KindMonthlyInsight,
			Timeframe:      contentkey.TimeframeMonth,
			SchemaVersion:  1,
			PromptVersion:  2,
			CacheTTL:       32 * 24 * time.Hour,
			RequiredFields: periodicFields,
			MaxTokens:      1200,
			Temperature:    0.8,
		},
		KindPolicy{
			Kind:           KindYearlyInsight,
			Timeframe:      contentkey.TimeframeYear,
			SchemaVersion:  1,
			PromptVersion:  1,
			CacheTTL:       367 * 24 * time.Hour,
			RequiredFields: periodicFields,
			MaxTokens:      1600,
			Temperature:    0.7,
			LeaseDuration:  90 * time.Second,
		},
		KindPolicy{
			Kind:             KindRelationshipBrief,
			Timeframe:        contentkey.TimeframeMonth,
			SchemaVersion:    1,
			PromptVersion:    1,
			CacheTTL:         32 * 24 * time.Hour,
			SustainedPerHour: 20,
			RequiredFields:   []string{"summary", "strengths", "tensions"},
			MaxTokens:        1000,
			Temperature:      0.7,
			NeedsPartner:     true,
		},
		KindPolicy{
			Kind:           KindNatalNarrative,
			SchemaVersion:  1,
			PromptVersion:  1,
			CacheTTL:       7 * 24 * time.Hour,
			Durable:        true,
			LeaseDuration:  2 * time.Minute,
			RequiredFields: []string{"summary", "sun", "moon", "rising"},
			MaxTokens:      2000,
			Temperature:    0.6,
		},
		KindPolicy{
			Kind:             KindTarotReading,
			Timeframe:        contentkey.TimeframeDay,
			SchemaVersion:    1,
			PromptVersion:    1,
			CacheTTL:         36 * time.Hour,
			SustainedPerHour: 12,
			RequiredFields:   []string{"cards", "interpretation"},
			MaxTokens:        900,
			Temperature:      0.9,
			NeedsQuestion:    true,
		},
	)
}
