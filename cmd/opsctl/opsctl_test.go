package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/app/utils/idgen"
)

func newTestDeps(t *testing.T) (*Deps, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	clk := clock.NewManualClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return &Deps{
		NewCache: func() cache.CacheService {
			return cache.NewRedisCacheServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		},
		NewPricing: func() (*budget.PricingTable, error) {
			return budget.DefaultPricingTable(), nil
		},
		BudgetConfig: func() budget.Config {
			return budget.Config{DailyLimit: decimal.NewFromInt(10)}
		},
		Clock: clk,
	}, mr
}

func execute(t *testing.T, deps *Deps, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBudgetStatus(t *testing.T) {
	deps, mr := newTestDeps(t)
	require.NoError(t, mr.Set(cache.BudgetDailyKey(deps.Clock.Now()), "2.5"))

	out, err := execute(t, deps, "budget", "status", "--format", "json")
	require.NoError(t, err)

	var status budget.Status
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "2025-03-01", status.Day)
	assert.InDelta(t, 2.5, status.Used, 1e-9)
	assert.InDelta(t, 7.5, status.Remaining, 1e-9)
	assert.True(t, status.Allowed)

	out, err = execute(t, deps, "budget", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "state=open")
	assert.Contains(t, out, "prices=2025-01")
}

func TestBudgetStatusCacheDown(t *testing.T) {
	deps, mr := newTestDeps(t)
	mr.SetError("ERR simulated outage")

	_, err := execute(t, deps, "budget", "status")
	require.Error(t, err)
	assert.ErrorIs(t, err, budget.ErrBudgetStoreUnavailable)
}

func TestCacheInvalidate(t *testing.T) {
	deps, mr := newTestDeps(t)
	subjectID, err := idgen.NewPublicID("subj")
	require.NoError(t, err)
	otherID, err := idgen.NewPublicID("subj")
	require.NoError(t, err)

	mine := cache.GeneratedContentKeyPrefix + ":daily_insight:" + cache.SanitizeKeyPart(subjectID) + ":2025-03-01"
	theirs := cache.GeneratedContentKeyPrefix + ":daily_insight:" + cache.SanitizeKeyPart(otherID) + ":2025-03-01"
	require.NoError(t, mr.Set(mine, "{}"))
	require.NoError(t, mr.Set(theirs, "{}"))

	out, err := execute(t, deps, "cache", "invalidate", "--subject", subjectID)
	require.NoError(t, err)
	assert.Contains(t, out, "invalidated")
	assert.False(t, mr.Exists(mine))
	assert.True(t, mr.Exists(theirs))

	_, err = execute(t, deps, "cache", "invalidate", "--subject", "not-an-id")
	assert.Error(t, err)

	_, err = execute(t, deps, "cache", "invalidate")
	assert.Error(t, err)
}

func TestLockRelease(t *testing.T) {
	deps, mr := newTestDeps(t)
	key := cache.GenerationLockKeyPrefix + ":natal_narrative:abc:natal"
	require.NoError(t, mr.Set(key, "owner-token"))

	out, err := execute(t, deps, "lock", "release", key, "--format", "json")
	require.NoError(t, err)
	var result releaseResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Existed)
	assert.False(t, mr.Exists(key))

	out, err = execute(t, deps, "lock", "release", key)
	require.NoError(t, err)
	assert.Contains(t, out, "no lock held")

	_, err = execute(t, deps, "lock", "release", "v1:budget:daily:2025-03-01")
	assert.Error(t, err)
}

func TestInvalidFormat(t *testing.T) {
	deps, _ := newTestDeps(t)
	_, err := execute(t, deps, "budget", "status", "--format", "xml")
	assert.Error(t, err)
}
