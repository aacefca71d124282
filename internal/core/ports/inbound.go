package ports

import (
	"context"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// FilingProcessor is the single entry point the service layer depends on.
type FilingProcessor interface {
	ProcessFiling(ctx context.Context, req domain.FilingRequest) (*domain.ApplicationOutcome, error)
}

// StoredFilingProcessor processes a filing previously accepted by FilingSubmitter.
type StoredFilingProcessor interface {
	ProcessByID(ctx context.Context, filingID string) error
}

// UploadedFiling is one multipart submission.
type UploadedFiling struct {
	ApplicationID   string
	ApplicationType string
	Files           []domain.UploadedFile
}

// FilingSubmitter accepts filings for asynchronous or inline processing.
type FilingSubmitter interface {
	Submit(ctx context.Context, in UploadedFiling) (*domain.Filing, error)
	ProcessNow(ctx context.Context, in UploadedFiling) (*domain.ApplicationOutcome, error)
}

// FilingReader is the read model for filing state.
type FilingReader interface {
	GetByID(ctx context.Context, id string) (*domain.Filing, error)
}
