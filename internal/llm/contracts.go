package llm

import (
	"context"

	"github.com/joseph-ayodele/billguard/internal/entity"
)

// Tier picks between the provider's fast extraction model and its stronger writing model.
type Tier string

const (
	TierFast      Tier = "fast"
	TierReasoning Tier = "reasoning"
)

// InlineImage is an image attached to a request as raw base64 (no data-URI header).
type InlineImage struct {
	MIMEType string
	Data     string
}

// GenerateRequest is a provider-neutral structured-output request.
type GenerateRequest struct {
	Purpose     string // logged only, e.g. "analysis"
	Tier        Tier
	Prompt      string
	Image       *InlineImage
	Schema      map[string]any
	SchemaName  string
	Temperature *float32
}

// Generator is the model provider seam. It returns the model's JSON text unvalidated.
type Generator interface {
	GenerateJSON(ctx context.Context, req GenerateRequest) ([]byte, error)
}

// BillAnalyzer is what the workflow depends on.
type BillAnalyzer interface {
	AnalyzeBill(ctx context.Context, imageDataURI string, insurance *entity.UserInsuranceInput) (entity.AnalysisResult, error)
	GenerateDisputeGuide(ctx context.Context, bill entity.BillRecord) (entity.DisputeGuide, error)
}
