package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/joseph-ayodele/billguard/internal/llm"

type analyzerMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newAnalyzerMetrics(mp metric.MeterProvider) (analyzerMetrics, error) {
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter(
		"billguard.llm.request.count",
		metric.WithDescription("Number of analyzer requests"),
	)
	if err != nil {
		return analyzerMetrics{}, err
	}
	errs, err := meter.Int64Counter(
		"billguard.llm.request.errors",
		metric.WithDescription("Number of analyzer requests that produced no usable result"),
	)
	if err != nil {
		return analyzerMetrics{}, err
	}
	duration, err := meter.Float64Histogram(
		"billguard.llm.request.duration",
		metric.WithDescription("Analyzer request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return analyzerMetrics{}, err
	}
	return analyzerMetrics{requests: requests, errors: errs, duration: duration}, nil
}

func (m analyzerMetrics) record(ctx context.Context, purpose string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("llm.purpose", purpose))
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		m.errors.Add(ctx, 1, attrs)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
