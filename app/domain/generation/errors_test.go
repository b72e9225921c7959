package generation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	lockDown := &ServiceUnavailableError{Component: ComponentLock, RetryAfterSeconds: 30, Err: errors.New("dial tcp")}
	assert.ErrorIs(t, lockDown, ErrServiceUnavailable)
	assert.ErrorIs(t, lockDown, ErrLockStoreUnavailable)
	assert.NotErrorIs(t, lockDown, ErrCacheStoreUnavailable)

	wrapped := fmt.Errorf("handler: %w", &ThrottledError{Class: "cooldown", RetryAfterSeconds: 4})
	assert.ErrorIs(t, wrapped, ErrThrottled)
	retry, ok := RetryAfter(wrapped)
	assert.True(t, ok)
	assert.Equal(t, 4, retry)

	upstream := errors.New("502 from provider")
	gen := &GenerationError{Err: upstream}
	assert.ErrorIs(t, gen, ErrGenerationFailed)
	assert.ErrorIs(t, gen, upstream)
	_, ok = RetryAfter(gen)
	assert.False(t, ok)

	assert.ErrorIs(t, &StillGeneratingError{RetryAfterSeconds: 5}, ErrStillGenerating)
	assert.ErrorIs(t, &BudgetExceededError{}, ErrBudgetExceeded)
	assert.ErrorIs(t, &ValidationError{Field: "key"}, ErrValidation)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, OutcomeGenerated, outcomeOf(nil))
	assert.Equal(t, OutcomeThrottled, outcomeOf(&ThrottledError{}))
	assert.Equal(t, OutcomeUnavailable, outcomeOf(&ServiceUnavailableError{}))
	assert.Equal(t, OutcomeFailed, outcomeOf(&GenerationError{}))
}
