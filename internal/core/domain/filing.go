package domain

import "time"

type FilingStatus string

const (
	FilingQueued     FilingStatus = "queued"
	FilingProcessing FilingStatus = "processing"
	FilingCompleted  FilingStatus = "completed"
	FilingFailed     FilingStatus = "failed"
)

// FilingFile is a stored upload belonging to a filing.
type FilingFile struct {
	Filename   string `json:"filename"`
	StorageKey string `json:"storage_key"`
	SizeBytes  int64  `json:"size_bytes"`
}

type Filing struct {
	ID              string              `json:"id"`
	ApplicationID   string              `json:"application_id"`
	ApplicationType string              `json:"application_type"`
	Status          FilingStatus        `json:"status"`
	Files           []FilingFile        `json:"files"`
	Outcome         *ApplicationOutcome `json:"outcome,omitempty"`
	Error           string              `json:"error,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// FilingRequest is the input of one process_filing run.
type FilingRequest struct {
	FilingID        string
	ApplicationID   string
	ApplicationType string
	Files           []UploadedFile
	Taxonomy        Taxonomy
	Requirements    []RequirementEntry
}

// DocumentOutcome is the per-file section of an ApplicationOutcome.
type DocumentOutcome struct {
	Filename       string               `json:"filename"`
	FileType       FileType             `json:"file_type,omitempty"`
	PageCount      int                  `json:"page_count"`
	Classification ClassificationResult `json:"classification"`
	Fields         map[string]any       `json:"fields"`
	Error          string               `json:"error,omitempty"`
}

// ApplicationOutcome is always recomputed in full and replaced wholesale.
type ApplicationOutcome struct {
	ApplicationID       string                   `json:"application_id,omitempty"`
	ApplicationType     string                   `json:"application_type,omitempty"`
	DocumentCheckStatus CheckStatus              `json:"classification_overall_result"`
	PolicyCheckStatus   CheckStatus              `json:"policy_overall_result"`
	SystemStatus        SystemStatus             `json:"system_status"`
	Documents           []DocumentOutcome        `json:"files"`
	Requirements        []RequirementCheckResult `json:"classification_results"`
	Policies            []PolicyEvaluationResult `json:"policy_results"`
}

// VisionRequest is one call to the external image capability.
type VisionRequest struct {
	Operation  string
	Prompt     string
	ImagePaths []string
}

// Capability operation names, used for breakers, metrics and logs.
const (
	OperationClassify = "classify"
	OperationExtract  = "extract"
	OperationPolicy   = "policy"
)
