package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"solara.ai/insights-gateway/app/domain/generation"
)

// GenerationObserver implements generation.Observer.
type GenerationObserver struct {
	outcomes  metric.Int64Counter
	duration  metric.Float64Histogram
	tokens    metric.Int64Counter
	lockWaits metric.Int64Histogram
}

func NewGenerationObserver(meter metric.Meter) (*GenerationObserver, error) {
	outcomes, err := meter.Int64Counter(
		"insights.requests",
		metric.WithDescription("GetOrGenerate calls by kind and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"insights.generation.duration",
		metric.WithDescription("Provider call latency for fresh generations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	tokens, err := meter.Int64Counter(
		"insights.generation.tokens",
		metric.WithDescription("Provider usage units by direction"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}
	lockWaits, err := meter.Int64Histogram(
		"insights.lock.wait_attempts",
		metric.WithDescription("Polls made while another holder generated"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}
	return &GenerationObserver{
		outcomes:  outcomes,
		duration:  duration,
		tokens:    tokens,
		lockWaits: lockWaits,
	}, nil
}

func (o *GenerationObserver) RecordOutcome(ctx context.Context, kind string, outcome generation.Outcome) {
	o.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", string(outcome)),
	))
}

func (o *GenerationObserver) RecordGeneration(ctx context.Context, kind string, model string, elapsed time.Duration, usage generation.Usage) {
	o.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("model", model),
	))
	o.tokens.Add(ctx, usage.InputUnits, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "input"),
	))
	o.tokens.Add(ctx, usage.OutputUnits, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("direction", "output"),
	))
}

func (o *GenerationObserver) RecordLockWait(ctx context.Context, kind string, attempts int) {
	o.lockWaits.Record(ctx, int64(attempts), metric.WithAttributes(attribute.String("kind", kind)))
}

func NewGenerationObserverFromProvider(p *Provider) (*GenerationObserver, error) {
	return NewGenerationObserver(p.Meter())
}
