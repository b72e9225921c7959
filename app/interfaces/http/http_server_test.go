package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/domain/generation"
	"solara.ai/insights-gateway/app/domain/insight"
	"solara.ai/insights-gateway/app/domain/ratelimit"
	"solara.ai/insights-gateway/app/domain/subject"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/infrastructure/database"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/contentrepo"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/subjectrepo"
	"solara.ai/insights-gateway/app/infrastructure/database/repository/usagerepo"
	"solara.ai/insights-gateway/app/infrastructure/lock"
	"solara.ai/insights-gateway/app/infrastructure/metrics"
	"solara.ai/insights-gateway/app/interfaces/http/responses"
	v1 "solara.ai/insights-gateway/app/interfaces/http/routes/v1"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/admin"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/insights"
	"solara.ai/insights-gateway/app/interfaces/http/routes/v1/subjects"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/config/environment_variables"
)

const adminKey = "test-admin-key"

type fixedProvider struct {
	calls atomic.Int32
}

func (p *fixedProvider) Generate(_ context.Context, prompt generation.Prompt) (*generation.Output, error) {
	p.calls.Add(1)
	return &generation.Output{
		Payload: json.RawMessage(`{"headline":"h","body":"b","focus":"f","summary":"s","sun":"a","moon":"b","rising":"c"}`),
		Model:   "gpt-4o-mini",
		Usage:   generation.Usage{InputUnits: 1000, OutputUnits: 400},
	}, nil
}

type testServer struct {
	mr       *miniredis.Miniredis
	handler  http.Handler
	provider *fixedProvider
	clock    *clock.ManualClock
}

func newTestServer(t *testing.T, limits ratelimit.Config) *testServer {
	t.Helper()
	previous := environment_variables.EnvironmentVariables.ADMIN_API_KEY
	environment_variables.EnvironmentVariables.ADMIN_API_KEY = adminKey
	t.Cleanup(func() { environment_variables.EnvironmentVariables.ADMIN_API_KEY = previous })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	cacheService := cache.NewRedisCacheServiceWithClient(client)

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "gateway.db"))
	require.NoError(t, err)
	require.NoError(t, database.NewDBMigrator(db).Migrate())

	metricsProvider, err := metrics.NewProvider()
	require.NoError(t, err)
	observer, err := metrics.NewGenerationObserver(metricsProvider.Meter())
	require.NoError(t, err)

	clk := clock.NewManualClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	usage := usagerepo.NewUsageGormRepository(db)
	governor := budget.NewGovernorWithConfig(cacheService, clk, budget.DefaultPricingTable(),
		budget.Config{DailyLimit: decimal.NewFromInt(5)}, usage)
	ephemeral := generation.NewCacheContentStore(cacheService)
	coordinator := generation.NewCoordinator(
		generation.Stores{
			Ephemeral: ephemeral,
			Durable:   generation.NewTieredContentStore(ephemeral, generation.NewDurableContentStore(contentrepo.NewContentGormRepository(db))),
		},
		ratelimit.NewLimiterWithConfig(cacheService, clk, limits),
		governor,
		lock.NewLockManager(cacheService),
		cacheService,
		generation.WithClock(clk),
		generation.WithObserver(observer),
		generation.WithConfig(generation.Config{
			LockWaitAttempts:     2,
			LockWaitDelay:        10 * time.Millisecond,
			StillGeneratingRetry: 5 * time.Second,
			UnavailableRetry:     30 * time.Second,
		}),
	)
	subjectService := subject.NewService(subjectrepo.NewSubjectGormRepository(db))
	provider := &fixedProvider{}
	insightService := insight.NewInsightService(subjectService, coordinator, provider,
		insight.WithClock(clk), insight.WithStrictTimezone(false))

	server := NewHttpServer(
		v1.NewV1Route(
			insights.NewInsightRoute(insightService),
			subjects.NewSubjectRoute(subjectService),
			admin.NewAdminRoute(governor, usage, cacheService),
		),
		metricsProvider,
		cacheService,
	)
	return &testServer{mr: mr, handler: server.Handler(), provider: provider, clock: clk}
}

func relaxedLimits() ratelimit.Config {
	return ratelimit.Config{BurstLimit: 100, BurstWindow: 10 * time.Second, SustainedPerHour: 100}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) createSubject(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/subjects", subjects.SubjectRequest{
		DisplayName: "Eleni",
		Language:    "el",
		Timezone:    "UTC+2",
		BirthDate:   "1990-04-12",
		BirthPlace:  "Athens",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created subjects.SubjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created.ID
}

type insightEnvelope struct {
	Status string          `json:"status"`
	Result insight.Insight `json:"result"`
}

func decodeInsight(t *testing.T, rec *httptest.ResponseRecorder) insight.Insight {
	t.Helper()
	var env insightEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Result
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) responses.ErrorResponse {
	t.Helper()
	var body responses.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestInsightRoute_GeneratesOnceThenServesFromCache(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)
	headers := map[string]string{"X-Subject-ID": id}

	first := s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, headers)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	got := decodeInsight(t, first)
	assert.True(t, got.WasFresh)
	assert.Equal(t, "2025-03-01", got.Period)
	assert.Equal(t, "el", got.Language)
	assert.NotEmpty(t, first.Header().Get("X-Request-ID"))

	second := s.do(t, http.MethodGet, "/v1/insights/insight?timeframe=daily", nil, headers)
	require.Equal(t, http.StatusOK, second.Code, second.Body.String())
	assert.False(t, decodeInsight(t, second).WasFresh)
	assert.Equal(t, int32(1), s.provider.calls.Load())
}

func TestInsightRoute_NatalNarrativeIsStoredDurably(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)
	headers := map[string]string{"X-Subject-ID": id}

	rec := s.do(t, http.MethodGet, "/v1/insights/natal_narrative", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Losing the cache falls back to the relational copy.
	s.mr.FlushAll()
	rec = s.do(t, http.MethodGet, "/v1/insights/natal_narrative", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, decodeInsight(t, rec).WasFresh)
	assert.Equal(t, int32(1), s.provider.calls.Load())
}

func TestInsightRoute_RequestErrors(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)

	rec := s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, responses.CodeMissingSubjectKey, decodeError(t, rec).Code)

	rec = s.do(t, http.MethodGet, "/v1/insights/lottery", nil, map[string]string{"X-Subject-ID": id})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, responses.CodeValidation, decodeError(t, rec).Code)

	rec = s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, map[string]string{"X-Subject-ID": "subj_doesnotexist"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInsightRoute_ThrottledMissesCarryRetryAfter(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{BurstLimit: 2, BurstWindow: 10 * time.Second, SustainedPerHour: 100})
	id := s.createSubject(t)
	headers := map[string]string{"X-Subject-ID": id}

	for _, period := range []string{"2025-03-01", "2025-03-02"} {
		rec := s.do(t, http.MethodGet, "/v1/insights/daily_insight?period="+period, nil, headers)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := s.do(t, http.MethodGet, "/v1/insights/daily_insight?period=2025-03-03", nil, headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A cached period is still served while throttled.
	rec = s.do(t, http.MethodGet, "/v1/insights/daily_insight?period=2025-03-01", nil, headers)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInsightRoute_BudgetExhausted(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)
	require.NoError(t, s.mr.Set(cache.BudgetDailyKey(s.clock.Now()), "5.5"))

	rec := s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, map[string]string{"X-Subject-ID": id})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, responses.CodeBudgetExceeded, decodeError(t, rec).Code)
	assert.Equal(t, "54000", rec.Header().Get("Retry-After"))
	assert.Equal(t, int32(0), s.provider.calls.Load())
}

func TestInsightRoute_CacheOutageFailsClosed(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)
	s.mr.Close()

	rec := s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, map[string]string{"X-Subject-ID": id})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, responses.CodeUnavailable, decodeError(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, int32(0), s.provider.calls.Load())

	rec = s.do(t, http.MethodGet, "/health-check", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSubjectRoutes(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)

	rec := s.do(t, http.MethodGet, "/v1/subjects/"+id, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPut, "/v1/subjects/"+id, subjects.SubjectRequest{
		Language:  "pt-br",
		BirthDate: "1990-04-12",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated subjects.SubjectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "pt-BR", updated.Language)

	rec = s.do(t, http.MethodPost, "/v1/subjects", subjects.SubjectRequest{BirthDate: "12/04/1990"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/v1/subjects", map[string]string{"display_name": "no birth date"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)
	auth := map[string]string{"Authorization": "Bearer " + adminKey}

	rec := s.do(t, http.MethodGet, "/v1/admin/budget", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, map[string]string{"X-Subject-ID": id})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/v1/admin/budget", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var status admin.BudgetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "2025-03-01", status.Day)
	assert.Greater(t, status.Used, 0.0)
	assert.Equal(t, 1, status.LedgerEntries)

	rec = s.do(t, http.MethodPost, "/v1/admin/cache/invalidate?subject_id="+id, nil, auth)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, map[string]string{"X-Subject-ID": id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeInsight(t, rec).WasFresh)
	assert.Equal(t, int32(2), s.provider.calls.Load())

	rec = s.do(t, http.MethodDelete, "/v1/admin/locks?key=v1:budget:daily:2025-03-01", nil, auth)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodDelete, "/v1/admin/locks?key="+cache.GenerationLockKeyPrefix+":stuck", nil, auth)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, relaxedLimits())
	id := s.createSubject(t)
	s.do(t, http.MethodGet, "/v1/insights/daily_insight", nil, map[string]string{"X-Subject-ID": id})

	rec := s.do(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "insights_requests")
	assert.Contains(t, rec.Body.String(), `outcome="generated"`)
}
