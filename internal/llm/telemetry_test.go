package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/joseph-ayodele/billguard/internal/entity"
)

func sumByPurpose(t *testing.T, rm metricdata.ResourceMetrics, name string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value("llm.purpose")
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestAnalyzer_RecordsMetricsAndSpans(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	gen := &fakeGenerator{responses: [][]byte{[]byte(validAnalysis)}}
	a, err := NewAnalyzer(gen, quietLogger(), WithMeterProvider(mp), WithTracerProvider(tp))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = a.AnalyzeBill(ctx, testImage, nil)
	require.NoError(t, err)

	gen.err = errors.New("upstream 503")
	_, err = a.GenerateDisputeGuide(ctx, entity.BillRecord{ID: "bill-1"})
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	assert.Equal(t, map[string]int64{"analysis": 1, "dispute": 1}, sumByPurpose(t, rm, "billguard.llm.request.count"))
	assert.Equal(t, map[string]int64{"dispute": 1}, sumByPurpose(t, rm, "billguard.llm.request.errors"))

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "llm.AnalyzeBill", ended[0].Name())
	assert.Equal(t, "llm.GenerateDisputeGuide", ended[1].Name())
	assert.Len(t, ended[1].Events(), 1, "failed span carries the recorded error")
}
