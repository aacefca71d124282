// Package outcome combines per-document, requirement and policy results into
// the application-level verdict.
package outcome

import (
	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/requirements"
)

// Aggregate builds a fresh ApplicationOutcome. It copies its inputs, so the
// same inputs always give an identical outcome and later mutation of the
// inputs cannot leak into it.
func Aggregate(
	documents []domain.DocumentOutcome,
	requirementResults []domain.RequirementCheckResult,
	policyResults []domain.PolicyEvaluationResult,
) domain.ApplicationOutcome {
	out := domain.ApplicationOutcome{
		DocumentCheckStatus: requirements.DocumentCheckStatus(requirementResults),
		PolicyCheckStatus:   PolicyCheckStatus(policyResults),
		Documents:           cloneDocuments(documents),
		Requirements:        append([]domain.RequirementCheckResult{}, requirementResults...),
		Policies:            append([]domain.PolicyEvaluationResult{}, policyResults...),
	}
	out.SystemStatus = SystemStatus(out.DocumentCheckStatus, out.PolicyCheckStatus)
	return out
}

// PolicyCheckStatus fails if any policy failed. No policies is a vacuous pass.
func PolicyCheckStatus(results []domain.PolicyEvaluationResult) domain.CheckStatus {
	for _, r := range results {
		if r.Result != domain.CheckPass {
			return domain.CheckFail
		}
	}
	return domain.CheckPass
}

func SystemStatus(documentCheck, policyCheck domain.CheckStatus) domain.SystemStatus {
	if documentCheck == domain.CheckPass && policyCheck == domain.CheckPass {
		return domain.SystemApproved
	}
	return domain.SystemDeclined
}

func cloneDocuments(documents []domain.DocumentOutcome) []domain.DocumentOutcome {
	out := make([]domain.DocumentOutcome, len(documents))
	for i, doc := range documents {
		out[i] = doc
		if doc.Fields != nil {
			fields := make(map[string]any, len(doc.Fields))
			for k, v := range doc.Fields {
				fields[k] = v
			}
			out[i].Fields = fields
		}
	}
	return out
}
