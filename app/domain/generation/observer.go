package generation

import (
	"context"
	"time"
)

// Outcome labels how a GetOrGenerate call ended.
type Outcome string

const (
	OutcomeHit             Outcome = "hit"
	OutcomeGenerated       Outcome = "generated"
	OutcomeThrottled       Outcome = "throttled"
	OutcomeBudgetExceeded  Outcome = "budget_exceeded"
	OutcomeUnavailable     Outcome = "unavailable"
	OutcomeStillGenerating Outcome = "still_generating"
	OutcomeFailed          Outcome = "failed"
	OutcomeInvalid         Outcome = "invalid"
)

// Observer receives coordinator events for metrics.
type Observer interface {
	RecordOutcome(ctx context.Context, kind string, outcome Outcome)
	RecordGeneration(ctx context.Context, kind string, model string, elapsed time.Duration, usage Usage)
	RecordLockWait(ctx context.Context, kind string, attempts int)
}

type nopObserver struct{}

func (nopObserver) RecordOutcome(context.Context, string, Outcome) {}

func (nopObserver) RecordGeneration(context.Context, string, string, time.Duration, Usage) {}

func (nopObserver) RecordLockWait(context.Context, string, int) {}

func outcomeOf(err error) Outcome {
	switch err.(type) {
	case nil:
		return OutcomeGenerated
	case *ThrottledError:
		return OutcomeThrottled
	case *BudgetExceededError:
		return OutcomeBudgetExceeded
	case *ServiceUnavailableError:
		return OutcomeUnavailable
	case *StillGeneratingError:
		return OutcomeStillGenerating
	case *ValidationError:
		return OutcomeInvalid
	default:
		return OutcomeFailed
	}
}
