package budget

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/clock"
)

type recordingLedger struct {
	mu   sync.Mutex
	rows []Usage
}

func (r *recordingLedger) RecordUsage(_ context.Context, u Usage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, u)
	return nil
}

func newGovernor(t *testing.T, cfg Config) (*miniredis.Miniredis, *clock.ManualClock, *Governor, *recordingLedger) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	clk := clock.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	ledger := &recordingLedger{}
	g := NewGovernorWithConfig(cache.NewRedisCacheServiceWithClient(client), clk, DefaultPricingTable(), cfg, ledger)
	return mr, clk, g, ledger
}

func limitConfig(usd string) Config {
	return Config{DailyLimit: decimal.RequireFromString(usd)}
}

func TestFailMode_ZeroValueIsClosed(t *testing.T) {
	var m FailMode
	assert.Equal(t, FailClosed, m)
	assert.Equal(t, FailClosed, ParseFailMode(""))
	assert.Equal(t, FailClosed, ParseFailMode("permissive"))
	assert.Equal(t, FailOpen, ParseFailMode(" OPEN "))
}

func TestCheckBudget_EmptyDayIsAllowed(t *testing.T) {
	_, _, g, _ := newGovernor(t, limitConfig("10"))

	status, err := g.CheckBudget(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, "2025-03-01", status.Day)
	assert.Zero(t, status.Used)
	assert.Equal(t, 10.0, status.Limit)
	assert.Equal(t, 10.0, status.Remaining)
}

func TestCheckBudget_CeilingAndDayRollover(t *testing.T) {
	mr, clk, g, _ := newGovernor(t, limitConfig("10"))
	ctx := context.Background()

	require.NoError(t, mr.Set(cache.BudgetDailyKey(clk.Now()), "10"))

	status, err := g.CheckBudget(ctx)
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Zero(t, status.Remaining)

	clk.Advance(12 * time.Hour)
	status, err = g.CheckBudget(ctx)
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, "2025-03-02", status.Day)
}

func TestIncrementBudget_PricesUsageAndSetsGraceExpiry(t *testing.T) {
	mr, clk, g, ledger := newGovernor(t, limitConfig("10"))
	ctx := context.Background()

	// 1M input at 0.15 plus 0.5M output at 0.60 = 0.45
	total, err := g.IncrementBudget(ctx, "gpt-4o-mini-2024-07-18", 1_000_000, 500_000)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, total, 1e-9)

	total, err = g.IncrementBudget(ctx, "gpt-4o-mini", 1_000_000, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, total, 1e-9)

	ttl := mr.TTL(cache.BudgetDailyKey(clk.Now()))
	assert.InDelta(t, (12*time.Hour + counterGrace).Seconds(), ttl.Seconds(), 2)

	require.Len(t, ledger.rows, 2)
	assert.Equal(t, "2025-01", ledger.rows[0].PriceVersion)
	assert.Equal(t, "0.45", ledger.rows[0].Cost.String())

	status, err := g.CheckBudget(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.60, status.Used, 1e-9)
	assert.InDelta(t, 9.40, status.Remaining, 1e-9)
}

func TestCheckBudget_StoreDown(t *testing.T) {
	t.Run("fail closed by default", func(t *testing.T) {
		mr, _, g, _ := newGovernor(t, limitConfig("10"))
		mr.SetError("ERR simulated outage")

		status, err := g.CheckBudget(context.Background())
		assert.ErrorIs(t, err, ErrBudgetStoreUnavailable)
		assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
		assert.False(t, status.Allowed)
	})

	t.Run("explicit fail open", func(t *testing.T) {
		mr, _, g, _ := newGovernor(t, Config{DailyLimit: decimal.NewFromInt(10), FailMode: FailOpen})
		mr.SetError("ERR simulated outage")

		status, err := g.CheckBudget(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Allowed)
		assert.True(t, status.Degraded)
	})
}

func TestIncrementBudget_StoreDownReturnsError(t *testing.T) {
	mr, _, g, ledger := newGovernor(t, limitConfig("10"))
	mr.SetError("ERR simulated outage")

	_, err := g.IncrementBudget(context.Background(), "gpt-4o", 100, 100)
	assert.ErrorIs(t, err, cache.ErrStoreUnavailable)
	assert.Len(t, ledger.rows, 1, "ledger row is written independently of the counter")
}

func TestPricingTable_LookupAndParse(t *testing.T) {
	table, err := ParsePricingTable([]byte(`
version: "2025-06"
default:
  input_per_million: "5"
  output_per_million: "15"
models:
  Claude-Haiku:
    input_per_million: "0.80"
    output_per_million: "4.00"
`))
	require.NoError(t, err)
	assert.Equal(t, "2025-06", table.Version)
	assert.Equal(t, "0.8", table.Lookup("claude-haiku-20250101").InputPerMillion.String())
	assert.Equal(t, "5", table.Lookup("unknown").InputPerMillion.String())
	assert.Equal(t, "0.02", table.Estimate("unknown", 1000, 1000).String())

	_, err = ParsePricingTable([]byte(`default: {input_per_million: "1", output_per_million: "1"}`))
	assert.Error(t, err, "version is required")

	_, err = ParsePricingTable([]byte(`version: x
default: {input_per_million: "-1", output_per_million: "1"}`))
	assert.Error(t, err)

	def, err := LoadPricingTable("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPricingTable().Version, def.Version)
}
