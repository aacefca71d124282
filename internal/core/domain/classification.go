package domain

import (
	"io"
)

type FileType string

const (
	FileTypePNG  FileType = "png"
	FileTypeJPEG FileType = "jpeg"
	FileTypePDF  FileType = "pdf"
)

// UploadedFile is owned by the request and never retained after normalization.
type UploadedFile struct {
	Filename string
	Body     io.Reader
}

// NormalizedDocument is the page-image view of one uploaded file. Its paths live
// under WorkDir, which belongs to the run that created it.
type NormalizedDocument struct {
	Filename       string   `json:"filename"`
	FilePath       string   `json:"file_path"`
	FileType       FileType `json:"file_type"`
	PageImagePaths []string `json:"page_image_paths"`
	PageCount      int      `json:"page_count"`
	Present        bool     `json:"present"`
	ContentHash    string   `json:"content_hash,omitempty"`
	WorkDir        string   `json:"-"`
}

type MatchStatus string

const (
	MatchClassified MatchStatus = "classified"
	MatchExtra      MatchStatus = "extra"
	MatchUnknown    MatchStatus = "unknown"
)

// Diagnostic notes attached to ClassificationResult.
const (
	NoteValidationFailed  = "validation_failed"
	NoteNoParsedResponse  = "no_parsed_response"
	NoteTimeout           = "timeout"
	NoteConnectionError   = "connection_error"
	NoteCapabilityError   = "capability_error"
	NoteInputError        = "input_error"
	NoteUnrecognized      = "unrecognized_labels"
	NotePairNotInTaxonomy = "Pair not in allowed list (user-provided)"
)

// ClassificationResult always carries normalized labels, even when unknown.
type ClassificationResult struct {
	Category       string      `json:"document_category"`
	Type           string      `json:"document_type"`
	MatchStatus    MatchStatus `json:"match_status"`
	Note           string      `json:"note,omitempty"`
	RawModelOutput string      `json:"raw_model_output,omitempty"`
	Cached         bool        `json:"cached,omitempty"`
}

func UnknownClassification(note string) ClassificationResult {
	return ClassificationResult{
		Category:    UnknownLabel,
		Type:        UnknownLabel,
		MatchStatus: MatchUnknown,
		Note:        note,
	}
}

// Matchable reports whether the result may satisfy a requirement.
func (c ClassificationResult) Matchable() bool {
	return c.MatchStatus == MatchClassified || c.MatchStatus == MatchExtra
}

// NamedClassification pairs a classification with the file it came from.
type NamedClassification struct {
	Filename       string
	Classification ClassificationResult
}

type RequirementEntry struct {
	Category   string `json:"category" yaml:"category"`
	Type       string `json:"type" yaml:"type"`
	IsOptional bool   `json:"optional" yaml:"optional"`
}

type RequirementCheckResult struct {
	Category        string `json:"document_category"`
	Type            string `json:"document_type"`
	IsOptional      bool   `json:"optional"`
	Present         bool   `json:"result"`
	Reason          string `json:"reason"`
	MatchedFilename string `json:"matched_filename,omitempty"`
}
