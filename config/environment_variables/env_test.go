package environment_variables

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadFromEnv_AppliesDefaults(t *testing.T) {
	t.Setenv("LOCK_LEASE_SECONDS", "")
	t.Setenv("BUDGET_FAIL_MODE", "")

	ev := EnvironmentVariable{}
	ev.LoadFromEnv()

	assert.Equal(t, 60, ev.LOCK_LEASE_SECONDS)
	assert.Equal(t, "closed", ev.BUDGET_FAIL_MODE)
	assert.Equal(t, 3, ev.LOCK_WAIT_ATTEMPTS)
	assert.Equal(t, 25.0, ev.BUDGET_DAILY_LIMIT_USD)
	assert.False(t, ev.STRICT_TIMEZONE)
}

func TestLoadFromEnv_ParsesTypedValues(t *testing.T) {
	t.Setenv("LOCK_LEASE_SECONDS", "120")
	t.Setenv("BUDGET_DAILY_LIMIT_USD", "12.5")
	t.Setenv("STRICT_TIMEZONE", "true")
	t.Setenv("CACHE_URL", "redis://cache:6379/2")

	ev := EnvironmentVariable{}
	ev.LoadFromEnv()

	assert.Equal(t, 120, ev.LOCK_LEASE_SECONDS)
	assert.Equal(t, 12.5, ev.BUDGET_DAILY_LIMIT_USD)
	assert.True(t, ev.STRICT_TIMEZONE)
	assert.Equal(t, "redis://cache:6379/2", ev.CACHE_URL)
}

func TestLoadFromEnv_InvalidValueFallsBackToDefault(t *testing.T) {
	t.Setenv("RATE_BURST_LIMIT", "lots")

	ev := EnvironmentVariable{}
	ev.LoadFromEnv()

	assert.Equal(t, 30, ev.RATE_BURST_LIMIT)
}

func TestReload_PublishesSnapshotWithoutTouchingStartupValues(t *testing.T) {
	t.Cleanup(func() { reloaded.Store(nil) })
	reloaded.Store(nil)

	startup := EnvironmentVariables.ADMIN_API_KEY
	assert.Same(t, &EnvironmentVariables, Current())

	t.Setenv("ADMIN_API_KEY", "rotated-key")
	t.Setenv("ALLOWED_CORS_HOSTS", "https://a.example, https://b.example")
	Reload()

	assert.Equal(t, "rotated-key", Current().ADMIN_API_KEY)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, Current().CORSHosts())
	assert.Equal(t, startup, EnvironmentVariables.ADMIN_API_KEY)
}
