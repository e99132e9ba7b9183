package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/billguard/internal/common"
	"github.com/joseph-ayodele/billguard/internal/entity"
)

const defaultAnalysisTemperature float32 = 0.2

// Analyzer turns a bill image into a validated AnalysisResult and drafts dispute guides.
// All model I/O goes through a Generator; Analyzer owns prompting, sanitizing and validation.
type Analyzer struct {
	gen         Generator
	logger      *slog.Logger
	temperature float32
	meters      metric.MeterProvider
	tracer      trace.Tracer
	metrics     analyzerMetrics

	analysisSchema   map[string]any
	analysisCompiled *jsonschema.Schema
	disputeSchema    map[string]any
	disputeCompiled  *jsonschema.Schema
}

type AnalyzerOption func(*Analyzer)

// WithTemperature overrides the analysis sampling temperature.
func WithTemperature(t float32) AnalyzerOption {
	return func(a *Analyzer) { a.temperature = t }
}

// WithMeterProvider records request metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) AnalyzerOption {
	return func(a *Analyzer) { a.meters = mp }
}

// WithTracerProvider starts spans on tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) AnalyzerOption {
	return func(a *Analyzer) { a.tracer = tp.Tracer(instrumentationName) }
}

var _ BillAnalyzer = (*Analyzer)(nil)

func NewAnalyzer(gen Generator, logger *slog.Logger, opts ...AnalyzerOption) (*Analyzer, error) {
	if gen == nil {
		return nil, fmt.Errorf("analyzer: generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Analyzer{
		gen:            gen,
		logger:         logger,
		temperature:    defaultAnalysisTemperature,
		meters:         otel.GetMeterProvider(),
		tracer:         otel.Tracer(instrumentationName),
		analysisSchema: BuildAnalysisJSONSchema(),
		disputeSchema:  BuildDisputeJSONSchema(),
	}
	for _, o := range opts {
		o(a)
	}

	var err error
	if a.metrics, err = newAnalyzerMetrics(a.meters); err != nil {
		return nil, fmt.Errorf("analyzer: metrics: %w", err)
	}
	if a.analysisCompiled, err = CompileSchema(AnalysisSchemaName, a.analysisSchema); err != nil {
		return nil, err
	}
	if a.disputeCompiled, err = CompileSchema(DisputeSchemaName, a.disputeSchema); err != nil {
		return nil, err
	}
	return a, nil
}

// AnalyzeBill sends the image and insurance context to the model and returns a complete result or an
// error wrapping common.ErrAnalysis. There are no partial results.
func (a *Analyzer) AnalyzeBill(ctx context.Context, imageDataURI string, insurance *entity.UserInsuranceInput) (res entity.AnalysisResult, err error) {
	ctx, span := a.tracer.Start(ctx, "llm.AnalyzeBill",
		trace.WithAttributes(attribute.Bool("billguard.has_insurance", insurance != nil && insurance.HasInsurance)))
	start := time.Now()
	defer func() {
		a.metrics.record(ctx, "analysis", start, err)
		if err == nil {
			span.SetAttributes(attribute.Int("billguard.issues", len(res.Issues)))
		}
		endSpan(span, err)
	}()
	return a.analyzeBill(ctx, imageDataURI, insurance)
}

func (a *Analyzer) analyzeBill(ctx context.Context, imageDataURI string, insurance *entity.UserInsuranceInput) (entity.AnalysisResult, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()

	img, err := ParseDataURI(imageDataURI)
	if err != nil {
		a.logger.Error("llm.analyze.bad_image", "req_id", rid, "error", err)
		return entity.AnalysisResult{}, common.AnalysisError(fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}

	hasInsurance := insurance != nil && insurance.HasInsurance
	a.logger.Info("llm.analyze.start",
		"req_id", rid,
		"mime", img.MIMEType,
		"image_b64_len", len(img.Data),
		"has_insurance", hasInsurance,
	)

	temp := a.temperature
	raw, err := a.gen.GenerateJSON(ctx, GenerateRequest{
		Purpose:     "analysis",
		Tier:        TierFast,
		Prompt:      BuildAnalysisPrompt(insurance),
		Image:       &img,
		Schema:      a.analysisSchema,
		SchemaName:  AnalysisSchemaName,
		Temperature: &temp,
	})
	if err != nil {
		a.logger.Error("llm.analyze.generate_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AnalysisResult{}, common.AnalysisError(err)
	}

	out, err := a.parseAnalysis(raw, rid)
	if err != nil {
		a.logger.Error("llm.analyze.invalid_response",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.AnalysisResult{}, common.AnalysisError(err)
	}

	a.logger.Info("llm.analyze.ok",
		"req_id", rid,
		"hospital", out.HospitalName,
		"currency", out.Currency,
		"total", out.TotalAmount,
		"issues", len(out.Issues),
		"insurance_status", out.Insurance.Status,
		"confidence", out.ConfidenceScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (a *Analyzer) parseAnalysis(raw []byte, rid string) (entity.AnalysisResult, error) {
	cleaned, _, err := NormalizeAnalysisJSON(raw, a.logger.With("req_id", rid))
	if err != nil {
		return entity.AnalysisResult{}, err
	}
	if err := ValidateJSON(a.analysisCompiled, cleaned); err != nil {
		return entity.AnalysisResult{}, err
	}
	var out entity.AnalysisResult
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return entity.AnalysisResult{}, fmt.Errorf("unmarshal analysis: %w", err)
	}
	if out.Issues == nil {
		out.Issues = []entity.Issue{}
	}
	if out.VerificationMethodology == nil {
		out.VerificationMethodology = []string{}
	}
	return out, nil
}

// GenerateDisputeGuide drafts a letter and next steps for bill. Repeated calls may return different text.
func (a *Analyzer) GenerateDisputeGuide(ctx context.Context, bill entity.BillRecord) (guide entity.DisputeGuide, err error) {
	ctx, span := a.tracer.Start(ctx, "llm.GenerateDisputeGuide",
		trace.WithAttributes(attribute.String("billguard.bill_id", bill.ID)))
	start := time.Now()
	defer func() {
		a.metrics.record(ctx, "dispute", start, err)
		endSpan(span, err)
	}()
	return a.generateDisputeGuide(ctx, bill)
}

func (a *Analyzer) generateDisputeGuide(ctx context.Context, bill entity.BillRecord) (entity.DisputeGuide, error) {
	ctx, rid := common.EnsureRequestID(ctx)
	start := time.Now()

	prompt, err := BuildDisputePrompt(bill)
	if err != nil {
		return entity.DisputeGuide{}, common.DisputeGenerationError(err)
	}

	a.logger.Info("llm.dispute.start",
		"req_id", rid,
		"bill_id", bill.ID,
		"issues", len(bill.Issues),
		"addressee", bill.DisputeAddressee(),
	)

	raw, err := a.gen.GenerateJSON(ctx, GenerateRequest{
		Purpose:    "dispute",
		Tier:       TierReasoning,
		Prompt:     prompt,
		Schema:     a.disputeSchema,
		SchemaName: DisputeSchemaName,
	})
	if err != nil {
		a.logger.Error("llm.dispute.generate_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.DisputeGuide{}, common.DisputeGenerationError(err)
	}

	guide, err := a.parseDispute(raw)
	if err != nil {
		a.logger.Error("llm.dispute.invalid_response",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.DisputeGuide{}, common.DisputeGenerationError(err)
	}

	a.logger.Info("llm.dispute.ok",
		"req_id", rid,
		"bill_id", bill.ID,
		"letter_len", len(guide.Letter),
		"steps", len(guide.Steps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return guide, nil
}

func (a *Analyzer) parseDispute(raw []byte) (entity.DisputeGuide, error) {
	cleaned, err := NormalizeDisputeJSON(raw)
	if err != nil {
		return entity.DisputeGuide{}, err
	}
	if err := ValidateJSON(a.disputeCompiled, cleaned); err != nil {
		return entity.DisputeGuide{}, err
	}
	var out entity.DisputeGuide
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return entity.DisputeGuide{}, fmt.Errorf("unmarshal dispute guide: %w", err)
	}
	return out, nil
}
