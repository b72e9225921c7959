// Package insight turns a subject and a content kind into a coordinated
// generation request.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"solara.ai/insights-gateway/app/domain/contentkey"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

const maxQuestionLength = 500

var weekPeriodPattern = regexp.MustCompile(`^\d{4}-W(0[1-9]|[1-4][0-9]|5[0-3])$`)

type SubjectSource interface {
	FindByPublicID(ctx context.Context, publicID string) (*subject.Subject, error)
}

type Generator interface {
	GetOrGenerate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Query is one request for generated content.
type Query struct {
	Kind      string
	SubjectID string
	// RequesterID defaults to SubjectID.
	RequesterID string
	// Timeframe resolves KindInsight to a periodic kind.
	Timeframe string
	// Period overrides the current period for periodic kinds.
	Period    string
	PartnerID string
	Spread    string
	Question  string
	// Language overrides the subject's language.
	Language string
}

type Insight struct {
	Kind             string          `json:"kind"`
	SubjectID        string          `json:"subject_id"`
	Period           string          `json:"period"`
	Language         string          `json:"language"`
	Payload          json.RawMessage `json:"payload"`
	Model            string          `json:"model,omitempty"`
	GeneratedAt      time.Time       `json:"generated_at"`
	WasFresh         bool            `json:"was_fresh"`
	TimezoneFallback bool            `json:"timezone_fallback,omitempty"`
}

type InsightService struct {
	subjects       SubjectSource
	generator      Generator
	provider       generation.Provider
	registry       *Registry
	clock          clock.Clock
	strictTimezone bool
}

type Option func(*InsightService)

func WithRegistry(r *Registry) Option {
	return func(s *InsightService) { s.registry = r }
}

func WithClock(clk clock.Clock) Option {
	return func(s *InsightService) { s.clock = clk }
}

// WithStrictTimezone rejects subjects whose stored zone cannot be resolved
// instead of falling back to UTC.
func WithStrictTimezone(strict bool) Option {
	return func(s *InsightService) { s.strictTimezone = strict }
}

func NewInsightService(subjects SubjectSource, generator Generator, provider generation.Provider, opts ...Option) *InsightService {
	s := &InsightService{
		subjects:       subjects,
		generator:      generator,
		provider:       provider,
		registry:       DefaultRegistry(),
		clock:          clock.NewSystemClock(),
		strictTimezone: environment_variables.EnvironmentVariables.STRICT_TIMEZONE,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InsightService) Registry() *Registry {
	return s.registry
}

// Get returns the content for q, generating it at most once per fingerprint.
func (s *InsightService) Get(ctx context.Context, q Query) (*Insight, error) {
	policy, err := s.resolvePolicy(q)
	if err != nil {
		return nil, err
	}
	subj, err := s.subjects.FindByPublicID(ctx, q.SubjectID)
	if err != nil {
		return nil, err
	}

	language := subj.Language
	if strings.TrimSpace(q.Language) != "" {
		language = q.Language
	}
	language, err = contentkey.NormalizeLanguage(language)
	if err != nil {
		return nil, &generation.ValidationError{Field: "language", Reason: err.Error()}
	}

	loc := contentkey.ResolveLocation(subj.Timezone)
	if loc.Fallback && subj.Timezone != "" {
		if s.strictTimezone {
			return nil, &generation.ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown time zone %q", subj.Timezone)}
		}
		logger.GetLogger().WithFields(logrus.Fields{
			"subject_id": subj.PublicID,
			"timezone":   subj.Timezone,
		}).Warn("unresolvable time zone, using UTC")
	}

	period, err := s.period(policy, q.Period, loc)
	if err != nil {
		return nil, err
	}

	in := promptInput{
		policy:   policy,
		subject:  subj,
		period:   period,
		language: language,
	}
	facts := map[string]any{
		"subject": subjectFacts(subj),
		"period":  period,
	}
	keySubject := subj.PublicID

	if policy.NeedsPartner {
		if strings.TrimSpace(q.PartnerID) == "" {
			return nil, &generation.ValidationError{Field: "partner", Reason: "partner is required"}
		}
		if q.PartnerID == subj.PublicID {
			return nil, &generation.ValidationError{Field: "partner", Reason: "partner must differ from subject"}
		}
		partner, err := s.subjects.FindByPublicID(ctx, q.PartnerID)
		if err != nil {
			return nil, err
		}
		in.partner = partner
		facts["partner"] = subjectFacts(partner)
		keySubject = pairID(subj.PublicID, partner.PublicID)
	}

	if policy.NeedsQuestion {
		in.spread = strings.TrimSpace(q.Spread)
		if in.spread == "" {
			in.spread = "three_card"
		}
		in.question = strings.TrimSpace(q.Question)
		if in.question == "" {
			return nil, &generation.ValidationError{Field: "question", Reason: "question is required"}
		}
		if len(in.question) > maxQuestionLength {
			return nil, &generation.ValidationError{Field: "question", Reason: "question is too long"}
		}
		questionHash, err := contentkey.InputHash(map[string]any{"spread": in.spread, "question": in.question})
		if err != nil {
			return nil, err
		}
		// One reading per spread and question per day.
		period = period + "/" + questionHash[:16]
		in.period = period
		facts["period"] = period
		facts["spread"] = in.spread
		facts["question"] = in.question
	}

	inputHash, err := contentkey.InputHash(facts)
	if err != nil {
		return nil, &generation.ValidationError{Field: "subject", Reason: err.Error()}
	}

	key := contentkey.LogicalKey{
		SubjectID:     keySubject,
		Kind:          policy.Kind,
		Period:        period,
		Language:      language,
		SchemaVersion: policy.SchemaVersion,
		PromptVersion: policy.PromptVersion,
	}
	requester := q.RequesterID
	if requester == "" {
		requester = subj.PublicID
	}
	prompt := buildPrompt(in)
	result, err := s.generator.GetOrGenerate(ctx, generation.Request{
		Key:         key,
		Fingerprint: generation.NewFingerprint(key, inputHash),
		RequesterID: requester,
		Policy:      policy.generationPolicy(),
		Generate: func(ctx context.Context) (*generation.Output, error) {
			output, err := s.provider.Generate(ctx, prompt)
			if err != nil {
				return nil, err
			}
			if err := checkRequiredFields(output.Payload, policy.RequiredFields); err != nil {
				return nil, err
			}
			return output, nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &Insight{
		Kind:             policy.Kind,
		SubjectID:        subj.PublicID,
		Period:           period,
		Language:         language,
		Payload:          result.Record.Payload,
		Model:            result.Record.Model,
		GeneratedAt:      result.Record.GeneratedAt,
		WasFresh:         result.WasFresh,
		TimezoneFallback: loc.Fallback,
	}, nil
}

func (s *InsightService) resolvePolicy(q Query) (KindPolicy, error) {
	kind := strings.ToLower(strings.TrimSpace(q.Kind))
	if kind == KindInsight {
		tf := contentkey.TimeframeDay
		if q.Timeframe != "" {
			parsed, err := contentkey.ParseTimeframe(q.Timeframe)
			if err != nil {
				return KindPolicy{}, &generation.ValidationError{Field: "timeframe", Reason: err.Error()}
			}
			tf = parsed
		}
		kind = KindForTimeframe(tf)
	}
	policy, ok := s.registry.Lookup(kind)
	if !ok {
		return KindPolicy{}, &generation.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", q.Kind)}
	}
	return policy, nil
}

func (s *InsightService) period(policy KindPolicy, override string, loc contentkey.ResolvedLocation) (string, error) {
	if policy.Timeframe == "" {
		return contentkey.PeriodNatal, nil
	}
	override = strings.TrimSpace(override)
	if override != "" {
		if !validPeriod(policy.Timeframe, override) {
			return "", &generation.ValidationError{Field: "period", Reason: fmt.Sprintf("%q is not a %s period", override, policy.Timeframe)}
		}
		return override, nil
	}
	period, err := contentkey.PeriodKey(policy.Timeframe, s.clock.Now(), loc.Location)
	if err != nil {
		return "", &generation.ValidationError{Field: "period", Reason: err.Error()}
	}
	return period, nil
}

func validPeriod(tf contentkey.Timeframe, period string) bool {
	layout := ""
	switch tf {
	case contentkey.TimeframeDay:
		layout = "2006-01-02"
	case contentkey.TimeframeMonth:
		layout = "2006-01"
	case contentkey.TimeframeYear:
		layout = "2006"
	case contentkey.TimeframeWeek:
		return weekPeriodPattern.MatchString(period)
	default:
		return false
	}
	_, err := time.Parse(layout, period)
	return err == nil
}

func subjectFacts(s *subject.Subject) map[string]any {
	return map[string]any{
		"name":  s.DisplayName,
		"birth": s.BirthFacts().Facts(),
	}
}

// pairID is order independent so both partners share one record.
func pairID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "+" + ids[1]
}

func checkRequiredFields(payload json.RawMessage, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	var object map[string]json.RawMessage
	if err := json.Unmarshal(payload, &object); err != nil {
		return fmt.Errorf("payload is not a JSON object: %w", err)
	}
	var missing []string
	for _, f := range fields {
		if _, ok := object[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("payload is missing %s", strings.Join(missing, ", "))
	}
	return nil
}
