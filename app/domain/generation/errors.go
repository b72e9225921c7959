package generation

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Every typed error below matches its kind with errors.Is.
var (
	ErrThrottled             = errors.New("generation: throttled")
	ErrBudgetExceeded        = errors.New("generation: daily budget exceeded")
	ErrServiceUnavailable    = errors.New("generation: service unavailable")
	ErrLockStoreUnavailable  = errors.New("generation: lock store unavailable")
	ErrCacheStoreUnavailable = errors.New("generation: cache store unavailable")
	ErrStillGenerating       = errors.New("generation: still generating")
	ErrGenerationFailed      = errors.New("generation: provider call failed")
	ErrValidation            = errors.New("generation: invalid request")
)

// ThrottledError is returned when a rate limit rejects the attempt.
type ThrottledError struct {
	Class             string
	RetryAfterSeconds int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("generation: throttled by %s limit, retry after %ds", e.Class, e.RetryAfterSeconds)
}

func (e *ThrottledError) Is(target error) bool { return target == ErrThrottled }

type BudgetExceededError struct {
	Used              float64
	Limit             float64
	RetryAfterSeconds int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("generation: daily budget exceeded (%.4f of %.4f), retry after %ds", e.Used, e.Limit, e.RetryAfterSeconds)
}

func (e *BudgetExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// Component names the dependency that could not answer.
type Component string

const (
	ComponentLock      Component = "lock"
	ComponentCache     Component = "cache"
	ComponentBudget    Component = "budget"
	ComponentRateLimit Component = "ratelimit"
)

// ServiceUnavailableError reports an infrastructure failure. Generation was
// refused rather than attempted without protection.
type ServiceUnavailableError struct {
	Component         Component
	RetryAfterSeconds int
	Err               error
}

func (e *ServiceUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generation: %s unavailable", e.Component)
	}
	return fmt.Sprintf("generation: %s unavailable: %v", e.Component, e.Err)
}

func (e *ServiceUnavailableError) Is(target error) bool {
	switch target {
	case ErrServiceUnavailable:
		return true
	case ErrLockStoreUnavailable:
		return e.Component == ComponentLock
	case ErrCacheStoreUnavailable:
		return e.Component == ComponentCache
	}
	return false
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Err }

// StillGeneratingError means another requester holds the lock and did not
// publish a result within the wait budget. It is not a failure.
type StillGeneratingError struct {
	RetryAfterSeconds int
}

func (e *StillGeneratingError) Error() string {
	return fmt.Sprintf("generation: still generating, retry after %ds", e.RetryAfterSeconds)
}

func (e *StillGeneratingError) Is(target error) bool { return target == ErrStillGenerating }

type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: provider call failed: %v", e.Err)
}

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

func (e *GenerationError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("generation: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// RetryAfter extracts the retry hint carried by err, if any.
func RetryAfter(err error) (int, bool) {
	var throttled *ThrottledError
	var budget *BudgetExceededError
	var unavailable *ServiceUnavailableError
	var still *StillGeneratingError
	switch {
	case errors.As(err, &throttled):
		return throttled.RetryAfterSeconds, true
	case errors.As(err, &budget):
		return budget.RetryAfterSeconds, true
	case errors.As(err, &unavailable):
		return unavailable.RetryAfterSeconds, true
	case errors.As(err, &still):
		return still.RetryAfterSeconds, true
	}
	return 0, false
}
