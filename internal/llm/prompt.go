package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/billguard/constants"
	"github.com/joseph-ayodele/billguard/internal/entity"
)

// BuildAnalysisPrompt composes the auditor instruction sent alongside the bill image.
func BuildAnalysisPrompt(insurance *entity.UserInsuranceInput) string {
	parts := []string{
		"Analyze this hospital bill image as an expert medical bill auditor. Return ONLY JSON that matches the provided schema.",
		"Extract the facility name, date of service (YYYY-MM-DD when legible), the currency as printed (ISO 4217 code when possible) and a BCP-47 locale for number formatting.",
		"Extract the total billed amount as a plain number without currency symbols or thousands separators.",
		"Report any insurance details printed on the bill: provider, policy number, claimed, covered and patient-responsibility amounts. Use null for anything not printed; use status 'Not Found' when the bill shows no insurance at all.",
		"Identify potential billing errors: duplicate charges (same item listed twice), upcoding (billing a more severe or expensive service than supported), unbundling (charging separately for items that belong to one package), and inflation (prices well above standard rates).",
		"Each issue MUST use exactly one category from: " + strings.Join(constants.AsStringSlice(), ", ") + ", and a severity from: " + strings.Join(constants.SeverityValues(), ", ") + ".",
		"Estimate each issue's overcharge in the bill's currency.",
		"List the verification steps you actually performed under 'verificationMethodology'.",
		"Give a confidence score between 0 and 1 for the legibility and accuracy of the extraction, and a two-sentence summary.",
		"Be conservative but helpful. If the bill looks clean, return an empty issues list.",
	}

	if insurance != nil && insurance.HasInsurance {
		provider := strings.TrimSpace(insurance.Provider)
		if provider == "" {
			provider = "an unnamed insurer"
		}
		plan := strings.TrimSpace(insurance.PlanName)
		line := "The patient reports active health insurance with " + provider
		if plan != "" {
			line += " (plan: " + plan + ")"
		}
		parts = append(parts,
			line+".",
			"Check whether insurance was applied. If the patient is charged 100% of the total despite this reported coverage, flag it as balance billing with category '"+string(constants.InsuranceError)+"'.",
		)
	} else {
		parts = append(parts, "The patient did not report any health insurance.")
	}
	return strings.Join(parts, "\n")
}

// BuildDisputePrompt embeds a finished analysis into a letter-drafting instruction.
func BuildDisputePrompt(bill entity.BillRecord) (string, error) {
	issues := bill.Issues
	if issues == nil {
		issues = []entity.Issue{}
	}
	issuesJSON, err := json.MarshalIndent(issues, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode issues: %w", err)
	}

	insStatus := string(bill.Insurance.Status)
	if insStatus == "" {
		insStatus = string(constants.InsuranceNotFound)
	}

	var b strings.Builder
	b.WriteString("You are a patient advocate helping a user dispute a hospital bill.\n\n")
	fmt.Fprintf(&b, "Hospital: %s\n", bill.HospitalName)
	fmt.Fprintf(&b, "Date of service: %s\n", bill.DateOfService)
	fmt.Fprintf(&b, "Total billed: %s %.2f\n", bill.Currency, bill.TotalAmount)
	fmt.Fprintf(&b, "Patient pays: %s %.2f\n", bill.Currency, bill.PatientPays())
	fmt.Fprintf(&b, "Insurance status: %s\n", insStatus)
	if bill.UserInsurance != nil && bill.UserInsurance.HasInsurance {
		fmt.Fprintf(&b, "Patient-reported insurer: %s %s\n", bill.UserInsurance.Provider, bill.UserInsurance.PlanName)
	}
	b.WriteString("\nIdentified issues:\n")
	b.Write(issuesJSON)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Task 1: Write a formal, professional dispute letter addressed to %s's billing department. ", bill.DisputeAddressee())
	b.WriteString("Request an itemized statement if one is not present and a coding review, and challenge each identified issue specifically. ")
	b.WriteString("Use placeholders like [Your Name] and [Account Number] for missing information.\n")
	b.WriteString("Task 2: Provide 3-5 concrete next steps the user should take.\n\n")
	b.WriteString("Return a JSON object with keys \"letter\" (string) and \"steps\" (array of strings).")
	return b.String(), nil
}
