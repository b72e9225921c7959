package insight

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/domain/contentkey"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/domain/ratelimit"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/lock"
	"solara.ai/insights-gateway/app/utils/clock"
)

type memorySubjects map[string]*subject.Subject

func (m memorySubjects) FindByPublicID(_ context.Context, id string) (*subject.Subject, error) {
	s, ok := m[id]
	if !ok {
		return nil, subject.ErrSubjectNotFound
	}
	copied := *s
	return &copied, nil
}

type stubProvider struct {
	payload string
	calls   atomic.Int32
	last    generation.Prompt
}

func (p *stubProvider) Generate(_ context.Context, prompt generation.Prompt) (*generation.Output, error) {
	p.calls.Add(1)
	p.last = prompt
	return &generation.Output{
		Payload: json.RawMessage(p.payload),
		Model:   "gpt-4o-mini",
		Usage:   generation.Usage{InputUnits: 100, OutputUnits: 50},
	}, nil
}

// recordingGenerator runs Generate directly and keeps every request.
type recordingGenerator struct {
	requests []generation.Request
}

func (g *recordingGenerator) GetOrGenerate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	g.requests = append(g.requests, req)
	out, err := req.Generate(ctx)
	if err != nil {
		return nil, &generation.GenerationError{Err: err}
	}
	return &generation.Result{
		Record: &generation.Record{
			Key:         req.Key.CacheKey(),
			Payload:     out.Payload,
			Fingerprint: req.Fingerprint,
			Model:       out.Model,
			GeneratedAt: time.Now(),
		},
		WasFresh: true,
	}, nil
}

func (g *recordingGenerator) last() generation.Request {
	return g.requests[len(g.requests)-1]
}

const periodicPayload = `{"headline":"h","body":"b","focus":"f"}`

func testSubjects() memorySubjects {
	lat, lon := 37.9838, 23.7275
	return memorySubjects{
		"subj_athens": {
			PublicID:    "subj_athens",
			DisplayName: "Eleni",
			Language:    "el",
			Timezone:    "UTC+2",
			BirthDate:   "1990-04-12",
			BirthTime:   "06:30",
			BirthPlace:  "Athens",
			Latitude:    &lat,
			Longitude:   &lon,
		},
		"subj_lisbon": {
			PublicID:  "subj_lisbon",
			Language:  "pt-PT",
			Timezone:  "Europe/Lisbon",
			BirthDate: "1988-11-02",
		},
		"subj_lost": {
			PublicID:  "subj_lost",
			Language:  "en",
			Timezone:  "Mars/Olympus",
			BirthDate: "2000-01-01",
		},
	}
}

func newTestService(t *testing.T, now time.Time, payload string, opts ...Option) (*InsightService, *recordingGenerator, *stubProvider) {
	t.Helper()
	gen := &recordingGenerator{}
	provider := &stubProvider{payload: payload}
	opts = append([]Option{WithClock(clock.NewManualClock(now)), WithStrictTimezone(false)}, opts...)
	return NewInsightService(testSubjects(), gen, provider, opts...), gen, provider
}

func TestDailyInsightUsesSubjectLocalDay(t *testing.T) {
	// 22:30 UTC is 00:30 the next day at UTC+2.
	svc, gen, provider := newTestService(t, time.Date(2025, 2, 28, 22, 30, 0, 0, time.UTC), periodicPayload)

	got, err := svc.Get(context.Background(), Query{Kind: KindDailyInsight, SubjectID: "subj_athens"})
	require.NoError(t, err)

	assert.Equal(t, "2025-03-01", got.Period)
	assert.Equal(t, "el", got.Language)
	assert.True(t, got.WasFresh)
	assert.False(t, got.TimezoneFallback)

	req := gen.last()
	assert.Equal(t, "subj_athens", req.Key.SubjectID)
	assert.Equal(t, "subj_athens", req.RequesterID)
	assert.Equal(t, 60, req.Policy.SustainedPerHour)
	assert.Equal(t, "el", req.Fingerprint.Language)
	assert.True(t, provider.last.JSONMode)
	assert.Contains(t, provider.last.User, "Eleni")
	assert.Contains(t, provider.last.System, `"el"`)
}

func TestInsightAliasResolvesTimeframe(t *testing.T) {
	svc, gen, _ := newTestService(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), periodicPayload)

	got, err := svc.Get(context.Background(), Query{Kind: KindInsight, Timeframe: "weekly", SubjectID: "subj_lisbon"})
	require.NoError(t, err)
	assert.Equal(t, KindWeeklyInsight, got.Kind)
	assert.Equal(t, "2025-W09", got.Period)
	assert.Equal(t, KindWeeklyInsight, gen.last().Key.Kind)

	_, err = svc.Get(context.Background(), Query{Kind: KindInsight, Timeframe: "fortnight", SubjectID: "subj_lisbon"})
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestPeriodOverride(t *testing.T) {
	svc, _, _ := newTestService(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), periodicPayload)
	ctx := context.Background()

	got, err := svc.Get(ctx, Query{Kind: KindMonthlyInsight, SubjectID: "subj_lisbon", Period: "2025-04"})
	require.NoError(t, err)
	assert.Equal(t, "2025-04", got.Period)

	_, err = svc.Get(ctx, Query{Kind: KindMonthlyInsight, SubjectID: "subj_lisbon", Period: "2025-04-01"})
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestUnknownKindAndSubject(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now(), periodicPayload)
	ctx := context.Background()

	_, err := svc.Get(ctx, Query{Kind: "lottery_numbers", SubjectID: "subj_athens"})
	var verr *generation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)

	_, err = svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_missing"})
	assert.ErrorIs(t, err, subject.ErrSubjectNotFound)
}

func TestCustomRegistryReplacesDefaults(t *testing.T) {
	reg := NewRegistry(KindPolicy{
		Kind:             "lunar_note",
		Timeframe:        contentkey.TimeframeMonth,
		SchemaVersion:    4,
		PromptVersion:    2,
		CacheTTL:         12 * time.Hour,
		SustainedPerHour: 7,
		LeaseDuration:    30 * time.Second,
		RequiredFields:   []string{"note"},
	})
	svc, gen, provider := newTestService(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), `{"note":"waxing"}`, WithRegistry(reg))
	ctx := context.Background()

	assert.Equal(t, []string{"lunar_note"}, svc.Registry().Kinds())

	got, err := svc.Get(ctx, Query{Kind: "lunar_note", SubjectID: "subj_lisbon"})
	require.NoError(t, err)
	assert.Equal(t, "2025-03", got.Period)
	assert.Equal(t, int32(1), provider.calls.Load())

	req := gen.last()
	assert.Equal(t, 4, req.Key.SchemaVersion)
	assert.Equal(t, 2, req.Fingerprint.PromptVersion)
	assert.Equal(t, 7, req.Policy.SustainedPerHour)
	assert.Equal(t, 30*time.Second, req.Policy.LeaseDuration)
	assert.Equal(t, 12*time.Hour, req.Policy.CacheTTL)

	_, err = svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_lisbon"})
	var verr *generation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "kind", verr.Field)
}

func TestTimezoneFallback(t *testing.T) {
	now := time.Date(2025, 3, 1, 23, 30, 0, 0, time.UTC)

	svc, _, _ := newTestService(t, now, periodicPayload)
	got, err := svc.Get(context.Background(), Query{Kind: KindDailyInsight, SubjectID: "subj_lost"})
	require.NoError(t, err)
	assert.True(t, got.TimezoneFallback)
	assert.Equal(t, "2025-03-01", got.Period)

	strict, _, _ := newTestService(t, now, periodicPayload, WithStrictTimezone(true))
	_, err = strict.Get(context.Background(), Query{Kind: KindDailyInsight, SubjectID: "subj_lost"})
	var verr *generation.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "timezone", verr.Field)
}

func TestRelationshipBriefIsOrderIndependent(t *testing.T) {
	payload := `{"summary":"s","strengths":[],"tensions":[]}`
	svc, gen, _ := newTestService(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), payload)
	ctx := context.Background()

	_, err := svc.Get(ctx, Query{Kind: KindRelationshipBrief, SubjectID: "subj_athens", PartnerID: "subj_lisbon"})
	require.NoError(t, err)
	first := gen.last()

	_, err = svc.Get(ctx, Query{Kind: KindRelationshipBrief, SubjectID: "subj_lisbon", PartnerID: "subj_athens"})
	require.NoError(t, err)
	second := gen.last()

	assert.Equal(t, "subj_athens+subj_lisbon", first.Key.SubjectID)
	assert.Equal(t, first.Key.SubjectID, second.Key.SubjectID)
	assert.Equal(t, "2025-03", first.Key.Period)

	_, err = svc.Get(ctx, Query{Kind: KindRelationshipBrief, SubjectID: "subj_athens"})
	assert.ErrorIs(t, err, generation.ErrValidation)
	_, err = svc.Get(ctx, Query{Kind: KindRelationshipBrief, SubjectID: "subj_athens", PartnerID: "subj_athens"})
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestTarotReadingKeyedByQuestion(t *testing.T) {
	payload := `{"cards":["The Star"],"interpretation":"i"}`
	svc, gen, _ := newTestService(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), payload)
	ctx := context.Background()

	a, err := svc.Get(ctx, Query{Kind: KindTarotReading, SubjectID: "subj_lisbon", Question: "Should I move?"})
	require.NoError(t, err)
	b, err := svc.Get(ctx, Query{Kind: KindTarotReading, SubjectID: "subj_lisbon", Question: "  should i   MOVE? "})
	require.NoError(t, err)
	c, err := svc.Get(ctx, Query{Kind: KindTarotReading, SubjectID: "subj_lisbon", Question: "Will it rain?"})
	require.NoError(t, err)

	assert.Equal(t, a.Period, b.Period)
	assert.NotEqual(t, a.Period, c.Period)
	assert.Contains(t, a.Period, "2025-03-01/")
	assert.Len(t, gen.requests, 3)

	_, err = svc.Get(ctx, Query{Kind: KindTarotReading, SubjectID: "subj_lisbon"})
	assert.ErrorIs(t, err, generation.ErrValidation)
}

func TestNatalNarrativeIsDurable(t *testing.T) {
	payload := `{"summary":"s","sun":"aries","moon":"leo","rising":"virgo"}`
	svc, gen, _ := newTestService(t, time.Now(), payload)

	got, err := svc.Get(context.Background(), Query{Kind: KindNatalNarrative, SubjectID: "subj_athens"})
	require.NoError(t, err)
	assert.Equal(t, contentkey.PeriodNatal, got.Period)
	assert.True(t, gen.last().Policy.Durable)
	assert.Equal(t, 2*time.Minute, gen.last().Policy.LeaseDuration)
}

func TestFingerprintTracksInputs(t *testing.T) {
	svc, gen, _ := newTestService(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), periodicPayload)
	ctx := context.Background()

	_, err := svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_lisbon"})
	require.NoError(t, err)
	base := gen.last().Fingerprint

	_, err = svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_lisbon"})
	require.NoError(t, err)
	assert.Equal(t, base, gen.last().Fingerprint)

	svc.subjects.(memorySubjects)["subj_lisbon"].BirthTime = "14:15"
	_, err = svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_lisbon"})
	require.NoError(t, err)
	assert.NotEqual(t, base.InputHash, gen.last().Fingerprint.InputHash)

	_, err = svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_lisbon", Language: "EN-us"})
	require.NoError(t, err)
	assert.Equal(t, "en-US", gen.last().Key.Language)
	assert.Equal(t, "en-US", gen.last().Fingerprint.Language)
}

func TestMissingRequiredFieldsFailGeneration(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now(), `{"headline":"only"}`)

	_, err := svc.Get(context.Background(), Query{Kind: KindDailyInsight, SubjectID: "subj_lisbon"})
	require.ErrorIs(t, err, generation.ErrGenerationFailed)
	assert.Contains(t, err.Error(), "body, focus")
}

func TestGetThroughCoordinatorGeneratesOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := cache.NewRedisCacheServiceWithClient(client)
	clk := clock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	coordinator := generation.NewCoordinator(
		generation.Stores{Ephemeral: generation.NewCacheContentStore(store)},
		ratelimit.NewLimiterWithConfig(store, clk, ratelimit.DefaultConfig()),
		budget.NewGovernorWithConfig(store, clk, budget.DefaultPricingTable(), budget.Config{DailyLimit: decimal.NewFromInt(50)}, nil),
		lock.NewLockManager(store),
		store,
		generation.WithClock(clk),
		generation.WithConfig(generation.DefaultConfig()),
	)
	provider := &stubProvider{payload: periodicPayload}
	svc := NewInsightService(testSubjects(), coordinator, provider, WithClock(clk))
	ctx := context.Background()

	first, err := svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_athens"})
	require.NoError(t, err)
	assert.True(t, first.WasFresh)

	clk.Advance(10 * time.Minute)
	second, err := svc.Get(ctx, Query{Kind: KindDailyInsight, SubjectID: "subj_athens"})
	require.NoError(t, err)
	assert.False(t, second.WasFresh)
	assert.JSONEq(t, string(first.Payload), string(second.Payload))
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestRegistryKinds(t *testing.T) {
	kinds := DefaultRegistry().Kinds()
	assert.Equal(t, []string{
		KindDailyInsight, KindMonthlyInsight, KindNatalNarrative, KindRelationshipBrief,
		KindTarotReading, KindWeeklyInsight, KindYearlyInsight,
	}, kinds)
	for _, k := range kinds {
		p, ok := DefaultRegistry().Lookup(k)
		require.True(t, ok)
		assert.NoError(t, contentkey.LogicalKey{
			SubjectID: "s", Kind: k, Period: "p", Language: "en",
			SchemaVersion: p.SchemaVersion, PromptVersion: p.PromptVersion,
		}.Validate())
	}
}
