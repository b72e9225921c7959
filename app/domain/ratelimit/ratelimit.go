// Package ratelimit throttles generation attempts per requester.
//
// Three independent throttles run in order burst, cooldown, sustained and
// the first rejection wins. All counters live in the shared cache so every
// gateway replica sees the same state. Cache hits never reach this package.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"solara.ai/insights-gateway/app/infrastructure/cache"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/config/environment_variables"
)

type Class string

const (
	ClassBurst     Class = "burst"
	ClassCooldown  Class = "cooldown"
	ClassSustained Class = "sustained"
)

const sustainedWindow = time.Hour

// Decision is the outcome of a check. RetryAfterSeconds is 0 when allowed
// and at least 1 when rejected.
type Decision struct {
	Allowed           bool
	Class             Class
	RetryAfterSeconds int
}

func Allow() Decision {
	return Decision{Allowed: true}
}

// Reject rounds retryAfter up to whole seconds, never below one.
func Reject(class Class, retryAfter time.Duration) Decision {
	secs := int(math.Ceil(retryAfter.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return Decision{Class: class, RetryAfterSeconds: secs}
}

type Config struct {
	BurstLimit       int
	BurstWindow      time.Duration
	Cooldown         time.Duration
	SustainedPerHour int
}

func DefaultConfig() Config {
	return Config{
		BurstLimit:       30,
		BurstWindow:      10 * time.Second,
		Cooldown:         5 * time.Second,
		SustainedPerHour: 60,
	}
}

func ConfigFromEnv() Config {
	env := environment_variables.EnvironmentVariables
	cfg := DefaultConfig()
	if env.RATE_BURST_LIMIT > 0 {
		cfg.BurstLimit = env.RATE_BURST_LIMIT
	}
	if env.RATE_BURST_WINDOW_SECONDS > 0 {
		cfg.BurstWindow = time.Duration(env.RATE_BURST_WINDOW_SECONDS) * time.Second
	}
	if env.RATE_COOLDOWN_SECONDS > 0 {
		cfg.Cooldown = time.Duration(env.RATE_COOLDOWN_SECONDS) * time.Second
	}
	if env.RATE_SUSTAINED_PER_HOUR > 0 {
		cfg.SustainedPerHour = env.RATE_SUSTAINED_PER_HOUR
	}
	return cfg
}

type Limiter struct {
	cache cache.CacheService
	clock clock.Clock
	cfg   Config
}

func NewLimiter(cacheService cache.CacheService, clk clock.Clock) *Limiter {
	return NewLimiterWithConfig(cacheService, clk, ConfigFromEnv())
}

func NewLimiterWithConfig(cacheService cache.CacheService, clk clock.Clock, cfg Config) *Limiter {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Limiter{cache: cacheService, clock: clk, cfg: cfg}
}

func (l *Limiter) Config() Config {
	return l.cfg
}

// Check runs burst, cooldown and sustained in order. sustainedLimit <= 0
// uses the configured default. Store failures are returned as errors and
// must be treated as a refusal.
func (l *Limiter) Check(ctx context.Context, requesterID string, sustainedLimit int) (Decision, error) {
	d, err := l.CheckBurst(ctx, requesterID)
	if err != nil || !d.Allowed {
		return d, err
	}
	d, err = l.CheckCooldown(ctx, requesterID)
	if err != nil || !d.Allowed {
		return d, err
	}
	return l.CheckSustained(ctx, requesterID, sustainedLimit)
}

func (l *Limiter) CheckBurst(ctx context.Context, requesterID string) (Decision, error) {
	return l.fixedWindow(ctx, ClassBurst, requesterID, l.cfg.BurstWindow, l.cfg.BurstLimit)
}

// CheckCooldown claims the cooldown marker atomically, so of two requests
// racing in the same instant only one passes.
func (l *Limiter) CheckCooldown(ctx context.Context, requesterID string) (Decision, error) {
	if l.cfg.Cooldown <= 0 {
		return Allow(), nil
	}
	key := cache.RateLimitCooldownKey(requesterID)
	created, err := l.cache.SetNX(ctx, key, l.clock.Now().UTC().Format(time.RFC3339Nano), l.cfg.Cooldown)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: %s: %w", ClassCooldown, err)
	}
	if created {
		return Allow(), nil
	}
	remaining, err := l.cache.TTL(ctx, key)
	if err != nil || remaining <= 0 {
		remaining = l.cfg.Cooldown
	}
	return Reject(ClassCooldown, remaining), nil
}

func (l *Limiter) CheckSustained(ctx context.Context, requesterID string, limit int) (Decision, error) {
	if limit <= 0 {
		limit = l.cfg.SustainedPerHour
	}
	return l.fixedWindow(ctx, ClassSustained, requesterID, sustainedWindow, limit)
}

// fixedWindow counts attempts in the window containing now. The window start
// is part of the key; expiry only garbage-collects old windows.
func (l *Limiter) fixedWindow(ctx context.Context, class Class, requesterID string, window time.Duration, limit int) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Allow(), nil
	}
	now := l.clock.Now()
	start := now.Truncate(window)
	end := start.Add(window)

	count, err := l.cache.IncrWithExpire(ctx, cache.RateLimitWindowKey(string(class), requesterID, start), window+time.Second)
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit: %s: %w", class, err)
	}
	if count > int64(limit) {
		return Reject(class, end.Sub(now)), nil
	}
	return Allow(), nil
}
