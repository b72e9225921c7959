// Package generation serves generated content at most once per fingerprint.
//
// GetOrGenerate answers from the store when a record with a matching
// fingerprint exists. Otherwise it applies rate limits, checks store health
// and the daily budget, and takes the distributed lock for the key before
// calling the provider. Requesters that lose the lock poll the store a
// bounded number of times and then receive StillGeneratingError.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"solara.ai/insights-gateway/app/domain/budget"
	"solara.ai/insights-gateway/app/domain/contentkey"
	"solara.ai/insights-gateway/app/domain/ratelimit"
	"solara.ai/insights-gateway/app/infrastructure/lock"
	"solara.ai/insights-gateway/app/utils/clock"
	"solara.ai/insights-gateway/app/utils/logger"
	"solara.ai/insights-gateway/config/environment_variables"
)

type RateLimiter interface {
	Check(ctx context.Context, requesterID string, sustainedLimit int) (ratelimit.Decision, error)
}

type BudgetGovernor interface {
	CheckBudget(ctx context.Context) (budget.Status, error)
	IncrementBudget(ctx context.Context, model string, inputUnits, outputUnits int64) (float64, error)
}

// HealthChecker reports whether the shared store answers.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type Config struct {
	LockWaitAttempts int
	LockWaitDelay    time.Duration
	// StillGeneratingRetry is the hint returned with StillGeneratingError.
	StillGeneratingRetry time.Duration
	// UnavailableRetry is the hint returned with ServiceUnavailableError.
	UnavailableRetry time.Duration
}

func DefaultConfig() Config {
	return Config{
		LockWaitAttempts:     3,
		LockWaitDelay:        2 * time.Second,
		StillGeneratingRetry: 5 * time.Second,
		UnavailableRetry:     30 * time.Second,
	}
}

func ConfigFromEnv() Config {
	env := environment_variables.EnvironmentVariables
	cfg := DefaultConfig()
	if env.LOCK_WAIT_ATTEMPTS > 0 {
		cfg.LockWaitAttempts = env.LOCK_WAIT_ATTEMPTS
	}
	if env.LOCK_WAIT_DELAY_MS > 0 {
		cfg.LockWaitDelay = time.Duration(env.LOCK_WAIT_DELAY_MS) * time.Millisecond
	}
	if env.STILL_GENERATING_RETRY_SECONDS > 0 {
		cfg.StillGeneratingRetry = time.Duration(env.STILL_GENERATING_RETRY_SECONDS) * time.Second
	}
	return cfg
}

// Stores groups the ephemeral and durable content stores. Durable may be
// nil, in which case durable policies use Ephemeral.
type Stores struct {
	Ephemeral ContentStore
	Durable   ContentStore
}

type Coordinator struct {
	stores   Stores
	limiter  RateLimiter
	budget   BudgetGovernor
	locks    lock.Manager
	health   HealthChecker
	clock    clock.Clock
	cfg      Config
	observer Observer
	group    singleflight.Group
	sleep    func(ctx context.Context, d time.Duration) error
}

type Option func(*Coordinator)

func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observer = o
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

func NewCoordinator(
	stores Stores,
	limiter RateLimiter,
	governor BudgetGovernor,
	locks lock.Manager,
	health HealthChecker,
	opts ...Option,
) *Coordinator {
	c := &Coordinator{
		stores:   stores,
		limiter:  limiter,
		budget:   governor,
		locks:    locks,
		health:   health,
		clock:    clock.NewSystemClock(),
		cfg:      ConfigFromEnv(),
		observer: nopObserver{},
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrGenerate returns the stored record for req.Key when its fingerprint
// matches, generating it first when needed. Errors are one of the typed
// errors in this package or a context error.
func (c *Coordinator) GetOrGenerate(ctx context.Context, req Request) (*Result, error) {
	normalized, err := validateRequest(req)
	if err != nil {
		c.observer.RecordOutcome(ctx, req.Key.Kind, OutcomeInvalid)
		return nil, err
	}
	req = normalized

	// Same-process callers for the same key and requester share one pass.
	// The pass outlives any single caller, so it runs detached and bounded
	// by the lease plus the lock wait; each caller still selects on its own
	// context below.
	flightKey := req.Key.CacheKey() + "|" + req.Fingerprint.InputHash + "|" + req.RequesterID
	ch := c.group.DoChan(flightKey, func() (any, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.passTimeout(req.Policy))
		defer cancel()
		return c.getOrGenerate(passCtx, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	}
}

func (c *Coordinator) getOrGenerate(ctx context.Context, req Request) (*Result, error) {
	kind := req.Key.Kind
	store := c.storeFor(req.Policy)
	log := logger.GetLogger().WithFields(logrus.Fields{
		"cache_key":    req.Key.CacheKey(),
		"requester_id": req.RequesterID,
	})

	record, err := c.lookup(ctx, store, req)
	if err != nil {
		return nil, c.finish(ctx, kind, err)
	}
	if record != nil {
		c.observer.RecordOutcome(ctx, kind, OutcomeHit)
		return &Result{Record: record, WasFresh: false}, nil
	}

	if err := c.checkRateLimits(ctx, req); err != nil {
		return nil, c.finish(ctx, kind, err)
	}
	if err := c.checkCapacity(ctx); err != nil {
		return nil, c.finish(ctx, kind, err)
	}

	lease, record, err := c.acquireOrWait(ctx, store, req)
	if err != nil {
		return nil, c.finish(ctx, kind, err)
	}
	if record != nil {
		c.observer.RecordOutcome(ctx, kind, OutcomeHit)
		return &Result{Record: record, WasFresh: false}, nil
	}
	defer lease.Release(ctx)

	// Another holder may have published between our miss and the acquire.
	record, err = c.lookup(ctx, store, req)
	if err != nil {
		return nil, c.finish(ctx, kind, err)
	}
	if record != nil {
		c.observer.RecordOutcome(ctx, kind, OutcomeHit)
		return &Result{Record: record, WasFresh: false}, nil
	}

	started := time.Now()
	output, err := req.Generate(ctx)
	if err == nil {
		err = validateOutput(output)
	}
	if err != nil && ctx.Err() != nil {
		log.WithField("error", err.Error()).Warn("generation: pass deadline reached during provider call")
		return nil, c.finish(ctx, kind, ctx.Err())
	}
	if err != nil {
		log.WithField("error", err.Error()).Error("generation: provider call failed")
		return nil, c.finish(ctx, kind, &GenerationError{Err: err})
	}
	c.observer.RecordGeneration(ctx, kind, output.Model, time.Since(started), output.Usage)

	record = &Record{
		Key:         req.Key.CacheKey(),
		Payload:     output.Payload,
		Fingerprint: req.Fingerprint,
		Model:       output.Model,
		GeneratedAt: c.clock.Now().UTC(),
	}
	// Publish and account even if the requester has gone away.
	detached := context.WithoutCancel(ctx)
	if err := store.Save(detached, req.Key, record, req.Policy.CacheTTL); err != nil {
		// The payload is paid for; serve it even though it was not stored.
		log.WithField("error", err.Error()).Error("generation: failed to store generated record")
	}

	if total, err := c.budget.IncrementBudget(detached, output.Model, output.Usage.InputUnits, output.Usage.OutputUnits); err != nil {
		log.WithField("error", err.Error()).Warn("generation: budget increment failed")
	} else {
		log.WithFields(logrus.Fields{
			"model":       output.Model,
			"daily_spend": total,
		}).Debug("generation: budget incremented")
	}

	c.observer.RecordOutcome(ctx, kind, OutcomeGenerated)
	return &Result{Record: record, WasFresh: true}, nil
}

// passTimeout bounds one shared pass: a full lease of generation plus the
// bounded wait for another holder.
func (c *Coordinator) passTimeout(p Policy) time.Duration {
	lease := p.LeaseDuration
	if lease <= 0 {
		lease = lock.DefaultLeaseDuration
	}
	return lease + time.Duration(c.cfg.LockWaitAttempts)*c.cfg.LockWaitDelay
}

func (c *Coordinator) finish(ctx context.Context, kind string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.observer.RecordOutcome(ctx, kind, outcomeOf(err))
	return err
}

func (c *Coordinator) storeFor(p Policy) ContentStore {
	if p.Durable && c.stores.Durable != nil {
		return c.stores.Durable
	}
	return c.stores.Ephemeral
}

// lookup returns a record only when its fingerprint matches. A missing or
// stale record returns (nil, nil).
func (c *Coordinator) lookup(ctx context.Context, store ContentStore, req Request) (*Record, error) {
	record, err := store.Load(ctx, req.Key)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, c.storeFailure(ctx, ComponentCache, err)
	case record == nil || !record.Fingerprint.Matches(req.Fingerprint):
		return nil, nil
	default:
		return record, nil
	}
}

func (c *Coordinator) checkRateLimits(ctx context.Context, req Request) error {
	decision, err := c.limiter.Check(ctx, req.RequesterID, req.Policy.SustainedPerHour)
	if err != nil {
		return c.storeFailure(ctx, ComponentRateLimit, err)
	}
	if !decision.Allowed {
		return &ThrottledError{Class: string(decision.Class), RetryAfterSeconds: decision.RetryAfterSeconds}
	}
	return nil
}

func (c *Coordinator) checkCapacity(ctx context.Context) error {
	if err := c.health.HealthCheck(ctx); err != nil {
		return c.storeFailure(ctx, ComponentCache, err)
	}
	status, err := c.budget.CheckBudget(ctx)
	if err != nil {
		return c.storeFailure(ctx, ComponentBudget, err)
	}
	if !status.Allowed {
		return &BudgetExceededError{
			Used:              status.Used,
			Limit:             status.Limit,
			RetryAfterSeconds: secondsUntilNextUTCDay(c.clock.Now()),
		}
	}
	return nil
}

// acquireOrWait returns either a lease or a record published by the
// current holder. When the lock stays held for every attempt it returns
// StillGeneratingError.
func (c *Coordinator) acquireOrWait(ctx context.Context, store ContentStore, req Request) (*lock.Lease, *Record, error) {
	lockKey := req.Key.LockKey()
	lease, err := c.locks.TryAcquire(ctx, lockKey, req.Policy.LeaseDuration)
	if err == nil {
		return lease, nil, nil
	}
	if !errors.Is(err, lock.ErrLockHeld) {
		return nil, nil, c.storeFailure(ctx, ComponentLock, err)
	}

	for attempt := 1; attempt <= c.cfg.LockWaitAttempts; attempt++ {
		if err := c.sleep(ctx, c.cfg.LockWaitDelay); err != nil {
			return nil, nil, err
		}
		record, err := c.lookup(ctx, store, req)
		if err != nil {
			return nil, nil, err
		}
		if record != nil {
			c.observer.RecordLockWait(ctx, req.Key.Kind, attempt)
			return nil, record, nil
		}
		// The holder may have crashed or failed; its lease is gone.
		lease, err = c.locks.TryAcquire(ctx, lockKey, req.Policy.LeaseDuration)
		if err == nil {
			c.observer.RecordLockWait(ctx, req.Key.Kind, attempt)
			return lease, nil, nil
		}
		if !errors.Is(err, lock.ErrLockHeld) {
			return nil, nil, c.storeFailure(ctx, ComponentLock, err)
		}
	}
	c.observer.RecordLockWait(ctx, req.Key.Kind, c.cfg.LockWaitAttempts)
	return nil, nil, &StillGeneratingError{RetryAfterSeconds: ceilSeconds(c.cfg.StillGeneratingRetry)}
}

// storeFailure reports a context error as itself rather than as an outage
// of the component whose call it interrupted.
func (c *Coordinator) storeFailure(ctx context.Context, component Component, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return c.unavailable(component, err)
}

func (c *Coordinator) unavailable(component Component, err error) error {
	return &ServiceUnavailableError{
		Component:         component,
		RetryAfterSeconds: ceilSeconds(c.cfg.UnavailableRetry),
		Err:               err,
	}
}

func validateRequest(req Request) (Request, error) {
	if req.Generate == nil {
		return req, &ValidationError{Field: "generate", Reason: "generate function is required"}
	}
	if req.RequesterID == "" {
		return req, &ValidationError{Field: "requester_id", Reason: "requester id is required"}
	}
	if err := req.Key.Validate(); err != nil {
		return req, &ValidationError{Field: "key", Reason: err.Error()}
	}
	req.Key = req.Key.Normalized()
	if req.Fingerprint.InputHash == "" {
		return req, &ValidationError{Field: "fingerprint", Reason: "input hash is required"}
	}
	want := NewFingerprint(req.Key, req.Fingerprint.InputHash)
	if lang, err := contentkey.NormalizeLanguage(req.Fingerprint.Language); err == nil {
		req.Fingerprint.Language = lang
	}
	if !req.Fingerprint.Matches(want) {
		return req, &ValidationError{Field: "fingerprint", Reason: "versions and language must match the key"}
	}
	return req, nil
}

func validateOutput(output *Output) error {
	if output == nil || len(output.Payload) == 0 {
		return errors.New("empty output")
	}
	if !json.Valid(output.Payload) {
		return fmt.Errorf("payload is not valid JSON (%d bytes)", len(output.Payload))
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func ceilSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func secondsUntilNextUTCDay(now time.Time) int {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return ceilSeconds(next.Sub(now))
}
