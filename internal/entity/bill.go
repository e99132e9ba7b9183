package entity

import (
	"slices"

	"github.com/joseph-ayodele/billguard/constants"
)

// Issue is one flagged billing anomaly. It has no identity beyond its position and title.
type Issue struct {
	Title               string             `json:"title"`
	Description         string             `json:"description"`
	EstimatedOvercharge float64            `json:"estimatedOvercharge"`
	Category            constants.Category `json:"category"`
	Severity            constants.Severity `json:"severity"`
}

// InsuranceDetails is what the model detected about insurance on the bill itself.
type InsuranceDetails struct {
	DetectedProvider      *string                   `json:"detectedProvider"`
	PolicyNumber          *string                   `json:"policyNumber"`
	ClaimedAmount         *float64                  `json:"claimedAmount"`
	CoveredAmount         *float64                  `json:"coveredAmount"`
	PatientResponsibility *float64                  `json:"patientResponsibility"`
	Status                constants.InsuranceStatus `json:"status"`
}

// UserInsuranceInput is the context the user supplied before analysis.
type UserInsuranceInput struct {
	HasInsurance bool   `json:"hasInsurance"`
	Provider     string `json:"provider"`
	PlanName     string `json:"planName"`
}

// AnalysisResult is the validated structured output of a bill analysis.
type AnalysisResult struct {
	HospitalName            string           `json:"hospitalName"`
	DateOfService           string           `json:"dateOfService"`
	Currency                string           `json:"currency"`
	Locale                  string           `json:"locale"`
	TotalAmount             float64          `json:"totalAmount"`
	Insurance               InsuranceDetails `json:"insurance"`
	ConfidenceScore         float64          `json:"confidenceScore"`
	Issues                  []Issue          `json:"issues"`
	Summary                 string           `json:"summary"`
	VerificationMethodology []string         `json:"verificationMethodology"`
}

// BillRecord is the persisted unit: an analysis plus its upload metadata.
type BillRecord struct {
	AnalysisResult
	ID            string               `json:"id"`
	Status        constants.BillStatus `json:"status"`
	UploadDate    string               `json:"uploadDate"`
	RawImage      string               `json:"rawImage"`
	UserInsurance *UserInsuranceInput  `json:"userInsurance,omitempty"`
}

// StatusFor derives the construction-time status: Clean iff there are no issues.
func StatusFor(issues []Issue) constants.BillStatus {
	if len(issues) > 0 {
		return constants.BillStatusActionRequired
	}
	return constants.BillStatusClean
}

// NewBillRecord assembles a record from a finished analysis. Status is assigned here and nowhere else.
func NewBillRecord(id, uploadDate, rawImage string, result AnalysisResult, insurance *UserInsuranceInput) BillRecord {
	rec := BillRecord{
		AnalysisResult: result,
		ID:             id,
		Status:         StatusFor(result.Issues),
		UploadDate:     uploadDate,
		RawImage:       rawImage,
	}
	if insurance != nil {
		in := *insurance
		rec.UserInsurance = &in
	}
	return rec.Clone()
}

// TotalPotentialSavings sums the estimated overcharge of every issue.
func (b BillRecord) TotalPotentialSavings() float64 {
	var total float64
	for _, is := range b.Issues {
		total += is.EstimatedOvercharge
	}
	return total
}

// PatientPays is the patient's share when the bill states it, otherwise the full total.
func (b BillRecord) PatientPays() float64 {
	if b.Insurance.PatientResponsibility != nil {
		return *b.Insurance.PatientResponsibility
	}
	return b.TotalAmount
}

// DisputeAddressee names who a dispute letter should go to.
func (b BillRecord) DisputeAddressee() string {
	if b.Insurance.Status != "" && b.Insurance.Status != constants.InsuranceNotFound {
		return "your insurance and hospital"
	}
	return "the hospital"
}

// Clone returns a deep copy so callers can't mutate history through shared slices or pointers.
func (b BillRecord) Clone() BillRecord {
	out := b
	out.Issues = slices.Clone(b.Issues)
	out.VerificationMethodology = slices.Clone(b.VerificationMethodology)
	out.Insurance = b.Insurance.clone()
	if b.UserInsurance != nil {
		in := *b.UserInsurance
		out.UserInsurance = &in
	}
	return out
}

func (d InsuranceDetails) clone() InsuranceDetails {
	return InsuranceDetails{
		DetectedProvider:      clonePtr(d.DetectedProvider),
		PolicyNumber:          clonePtr(d.PolicyNumber),
		ClaimedAmount:         clonePtr(d.ClaimedAmount),
		CoveredAmount:         clonePtr(d.CoveredAmount),
		PatientResponsibility: clonePtr(d.PatientResponsibility),
		Status:                d.Status,
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
