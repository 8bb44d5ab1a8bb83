package observability

import (
	"context"
	"fmt"
	"time"

	"smartats/internal/config"
	"smartats/internal/errors"
	"smartats/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all custom metrics for smartats.
// The zero value records nothing.
type Metrics struct {
	// AI call metrics
	AICallDuration metric.Float64Histogram
	AIRequestCount metric.Int64Counter
	AIErrorCount   metric.Int64Counter
	AITokenUsage   metric.Int64Histogram

	// Submission metrics
	Analyses    metric.Int64Counter
	ContentSize metric.Int64Histogram

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter

	toggles config.CustomMetricsConfig
}

func newMetrics(meter metric.Meter, toggles config.CustomMetricsConfig) (*Metrics, error) {
	m := &Metrics{toggles: toggles}
	var err error

	m.AICallDuration, err = meter.Float64Histogram(
		"smartats_ai_call_duration_seconds",
		metric.WithDescription("Time spent waiting for the model"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI call duration metric: %w", err)
	}

	m.AIRequestCount, err = meter.Int64Counter(
		"smartats_ai_requests_total",
		metric.WithDescription("Total number of model calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI request count metric: %w", err)
	}

	m.AIErrorCount, err = meter.Int64Counter(
		"smartats_ai_errors_total",
		metric.WithDescription("Total number of failed model calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI error count metric: %w", err)
	}

	m.AITokenUsage, err = meter.Int64Histogram(
		"smartats_ai_token_usage",
		metric.WithDescription("Token usage per model call (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	m.Analyses, err = meter.Int64Counter(
		"smartats_analyses_total",
		metric.WithDescription("Total number of submissions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create analyses metric: %w", err)
	}

	m.ContentSize, err = meter.Int64Histogram(
		"smartats_content_size_bytes",
		metric.WithDescription("Size of submitted resumes and job descriptions"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create content size metric: %w", err)
	}

	m.RateLimitHits, err = meter.Int64Counter(
		"smartats_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limited requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return m, nil
}

// TrackAICall times fn and records request, error and token metrics for it
func (m *Metrics) TrackAICall(ctx context.Context, model string, fn func(context.Context) (*types.TokenUsage, error)) error {
	if m == nil || m.AIRequestCount == nil {
		_, err := fn(ctx)
		return err
	}

	start := time.Now()
	usage, err := fn(ctx)
	duration := time.Since(start).Seconds()

	attrs := []attribute.KeyValue{
		attribute.String("ai.model", model),
		attribute.Bool("success", err == nil),
	}

	if m.toggles.TrackAIDuration {
		m.AICallDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
	}
	m.AIRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		code := errors.ErrCodeUnexpected
		if appErr, ok := errors.As(err); ok {
			code = appErr.Code
		}
		m.AIErrorCount.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.String("error.code", code))...))
	}

	if usage != nil && m.toggles.TrackTokenUsage {
		m.recordTokenMetrics(ctx, usage, attrs)
	}

	return err
}

func (m *Metrics) recordTokenMetrics(ctx context.Context, usage *types.TokenUsage, attrs []attribute.KeyValue) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		tokenAttrs := make([]attribute.KeyValue, 0, len(attrs)+1)
		tokenAttrs = append(tokenAttrs, attrs...)
		tokenAttrs = append(tokenAttrs, attribute.String("token_type", tt.tokenType))
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(tokenAttrs...))
	}
}

// RecordAnalysis counts one finished submission. outcome is "rendered" or
// the failure kind.
func (m *Metrics) RecordAnalysis(ctx context.Context, outcome string, attributes ...attribute.KeyValue) {
	if m == nil || m.Analyses == nil || !m.toggles.TrackAnalyses {
		return
	}
	attrs := append([]attribute.KeyValue{attribute.String("outcome", outcome)}, attributes...)
	m.Analyses.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordContentSize records the size of one submitted input
func (m *Metrics) RecordContentSize(ctx context.Context, content string, size int) {
	if m == nil || m.ContentSize == nil || !m.toggles.TrackContentSizes {
		return
	}
	m.ContentSize.Record(ctx, int64(size), metric.WithAttributes(attribute.String("content", content)))
}

// RecordRateLimitHit counts one rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limiter string) {
	if m == nil || m.RateLimitHits == nil || !m.toggles.TrackRateLimits {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("limiter", limiter)))
}
