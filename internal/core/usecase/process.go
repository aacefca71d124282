package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
)

// failureWriteTimeout bounds the failed-status write, which outlives the
// processing context.
const failureWriteTimeout = 10 * time.Second

// ProcessStoredFilingUseCase runs a queued filing from storage and persists
// its outcome.
type ProcessStoredFilingUseCase struct {
	repo      ports.FilingRepository
	storage   ports.ObjectStorage
	catalog   ports.CatalogProvider
	processor ports.FilingProcessor
}

func NewProcessStoredFilingUseCase(
	repo ports.FilingRepository,
	storage ports.ObjectStorage,
	catalog ports.CatalogProvider,
	processor ports.FilingProcessor,
) *ProcessStoredFilingUseCase {
	return &ProcessStoredFilingUseCase{
		repo:      repo,
		storage:   storage,
		catalog:   catalog,
		processor: processor,
	}
}

func (uc *ProcessStoredFilingUseCase) ProcessByID(ctx context.Context, filingID string) error {
	if err := uc.markStatus(ctx, filingID, domain.FilingProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	result, err := uc.processPipeline(ctx, filingID)
	if err != nil {
		if failErr := uc.markFailed(ctx, filingID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.persistOutcome(ctx, filingID, *result); err != nil {
		if failErr := uc.markFailed(ctx, filingID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, filingID, domain.FilingCompleted, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

func (uc *ProcessStoredFilingUseCase) processPipeline(ctx context.Context, filingID string) (*domain.ApplicationOutcome, error) {
	filing, err := uc.loadFiling(ctx, filingID)
	if err != nil {
		return nil, err
	}

	req, err := uc.buildRequest(ctx, filing)
	if err != nil {
		return nil, err
	}

	files, closeAll, err := uc.openFiles(ctx, filing.Files)
	if err != nil {
		return nil, err
	}
	defer closeAll()
	req.Files = files

	result, err := uc.processor.ProcessFiling(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("process filing: %w", err)
	}
	return result, nil
}

func (uc *ProcessStoredFilingUseCase) loadFiling(ctx context.Context, filingID string) (*domain.Filing, error) {
	filing, err := uc.repo.GetByID(ctx, filingID)
	if err != nil {
		return nil, fmt.Errorf("fetch filing by id: %w", err)
	}
	if len(filing.Files) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "load filing", errors.New("filing has no files"))
	}
	return filing, nil
}

func (uc *ProcessStoredFilingUseCase) buildRequest(ctx context.Context, filing *domain.Filing) (domain.FilingRequest, error) {
	tax, err := uc.catalog.Taxonomy(ctx, filing.ApplicationType)
	if err != nil {
		return domain.FilingRequest{}, fmt.Errorf("load taxonomy: %w", err)
	}
	reqs, err := uc.catalog.Requirements(ctx, filing.ApplicationType)
	if err != nil {
		return domain.FilingRequest{}, fmt.Errorf("load requirements: %w", err)
	}
	return domain.FilingRequest{
		FilingID:        filing.ID,
		ApplicationID:   filing.ApplicationID,
		ApplicationType: filing.ApplicationType,
		Taxonomy:        tax,
		Requirements:    reqs,
	}, nil
}

func (uc *ProcessStoredFilingUseCase) openFiles(ctx context.Context, stored []domain.FilingFile) ([]domain.UploadedFile, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	files := make([]domain.UploadedFile, 0, len(stored))
	for _, f := range stored {
		rc, err := uc.storage.Open(ctx, f.StorageKey)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open stored file %s: %w", f.Filename, err)
		}
		closers = append(closers, rc)
		files = append(files, domain.UploadedFile{Filename: f.Filename, Body: rc})
	}
	return files, closeAll, nil
}

func (uc *ProcessStoredFilingUseCase) persistOutcome(ctx context.Context, filingID string, result domain.ApplicationOutcome) error {
	if err := uc.repo.SaveOutcome(ctx, filingID, result); err != nil {
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (uc *ProcessStoredFilingUseCase) markStatus(ctx context.Context, filingID string, status domain.FilingStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, filingID, status, errMessage)
}

func (uc *ProcessStoredFilingUseCase) markFailed(ctx context.Context, filingID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()
	return uc.markStatus(writeCtx, filingID, domain.FilingFailed, processErr.Error())
}
