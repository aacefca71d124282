package domain

type CheckStatus string

const (
	CheckPass CheckStatus = "Pass"
	CheckFail CheckStatus = "Fail"
)

type SystemStatus string

const (
	SystemApproved SystemStatus = "Approved"
	SystemDeclined SystemStatus = "Declined"
)

// PolicyRule is read-only within a run.
type PolicyRule struct {
	Name                   string `json:"name"`
	RuleText               string `json:"rule_text"`
	ApplicableDocumentType string `json:"applicable_document_type"`
}

type PolicyEvaluationResult struct {
	PolicyName string      `json:"policy_name"`
	Result     CheckStatus `json:"result"`
	Comment    string      `json:"comment"`
}
