package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
)

// SubmitFilingUseCase accepts uploaded filings. Submit stores and queues
// them; ProcessNow runs the pipeline inline.
type SubmitFilingUseCase struct {
	repo      ports.FilingRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	catalog   ports.CatalogProvider
	processor ports.FilingProcessor
}

func NewSubmitFilingUseCase(
	repo ports.FilingRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	catalog ports.CatalogProvider,
	processor ports.FilingProcessor,
) *SubmitFilingUseCase {
	return &SubmitFilingUseCase{
		repo:      repo,
		storage:   storage,
		queue:     queue,
		catalog:   catalog,
		processor: processor,
	}
}

func (uc *SubmitFilingUseCase) Submit(ctx context.Context, in ports.UploadedFiling) (*domain.Filing, error) {
	if err := validateUpload(in); err != nil {
		return nil, err
	}
	if _, err := uc.catalog.Taxonomy(ctx, in.ApplicationType); err != nil {
		return nil, fmt.Errorf("resolve application type: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	filing := &domain.Filing{
		ID:              id,
		ApplicationID:   in.ApplicationID,
		ApplicationType: in.ApplicationType,
		Status:          domain.FilingQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for i, f := range in.Files {
		key := fmt.Sprintf("%s/%03d_%s", id, i, sanitizeFilename(f.Filename))
		size, err := uc.storage.Save(ctx, key, f.Body)
		if err != nil {
			return nil, fmt.Errorf("save to object storage: %w", err)
		}
		filing.Files = append(filing.Files, domain.FilingFile{Filename: f.Filename, StorageKey: key, SizeBytes: size})
	}

	if err := uc.repo.Create(ctx, filing); err != nil {
		return nil, fmt.Errorf("create filing record: %w", err)
	}

	if err := uc.queue.PublishFilingSubmitted(ctx, filing.ID); err != nil {
		return nil, fmt.Errorf("publish filing event: %w", err)
	}

	return filing, nil
}

func (uc *SubmitFilingUseCase) ProcessNow(ctx context.Context, in ports.UploadedFiling) (*domain.ApplicationOutcome, error) {
	if err := validateUpload(in); err != nil {
		return nil, err
	}
	tax, err := uc.catalog.Taxonomy(ctx, in.ApplicationType)
	if err != nil {
		return nil, fmt.Errorf("resolve application type: %w", err)
	}
	reqs, err := uc.catalog.Requirements(ctx, in.ApplicationType)
	if err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}
	return uc.processor.ProcessFiling(ctx, domain.FilingRequest{
		FilingID:        uuid.NewString(),
		ApplicationID:   in.ApplicationID,
		ApplicationType: in.ApplicationType,
		Files:           in.Files,
		Taxonomy:        tax,
		Requirements:    reqs,
	})
}

func validateUpload(in ports.UploadedFiling) error {
	switch {
	case strings.TrimSpace(in.ApplicationID) == "":
		return domain.WrapError(domain.ErrInvalidInput, "submit filing", errors.New("application id is required"))
	case strings.TrimSpace(in.ApplicationType) == "":
		return domain.WrapError(domain.ErrInvalidInput, "submit filing", errors.New("application type is required"))
	case len(in.Files) == 0:
		return domain.WrapError(domain.ErrInvalidInput, "submit filing", errors.New("at least one file is required"))
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "upload.bin"
	}
	return base
}
