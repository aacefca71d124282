package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

type statusCall struct {
	status domain.FilingStatus
	errMsg string
}

type filingRepoFake struct {
	filing        *domain.Filing
	created       *domain.Filing
	createErr     error
	getErr        error
	saveErr       error
	failStatusErr error
	honorCtx      bool
	statusCalls   []statusCall
	outcome       *domain.ApplicationOutcome
	outcomeID     string
}

func (f *filingRepoFake) Create(_ context.Context, filing *domain.Filing) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyFiling := *filing
	f.created = &copyFiling
	return nil
}

func (f *filingRepoFake) GetByID(context.Context, string) (*domain.Filing, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyFiling := *f.filing
	return &copyFiling, nil
}

func (f *filingRepoFake) UpdateStatus(ctx context.Context, _ string, status domain.FilingStatus, errMessage string) error {
	if f.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.FilingFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	return nil
}

func (f *filingRepoFake) SaveOutcome(_ context.Context, id string, outcome domain.ApplicationOutcome) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.outcomeID = id
	f.outcome = &outcome
	return nil
}

type storageFake struct {
	objects map[string]string
	opened  []*trackedReader
	err     error
}

type trackedReader struct {
	io.Reader
	closed bool
}

func (r *trackedReader) Close() error {
	r.closed = true
	return nil
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return 0, err
	}
	if f.objects == nil {
		f.objects = make(map[string]string)
	}
	f.objects[key] = string(raw)
	return int64(len(raw)), nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	r := &trackedReader{Reader: strings.NewReader(body)}
	f.opened = append(f.opened, r)
	return r, nil
}

type catalogFake struct {
	err error
}

func (c catalogFake) Taxonomy(context.Context, string) (domain.Taxonomy, error) {
	if c.err != nil {
		return domain.Taxonomy{}, c.err
	}
	return testTaxonomy(), nil
}

func (c catalogFake) Requirements(context.Context, string) ([]domain.RequirementEntry, error) {
	if c.err != nil {
		return nil, c.err
	}
	return filingRequest().Requirements, nil
}

// blockingProcessor waits for the context to end, like a stalled model call.
type blockingProcessor struct{}

func (blockingProcessor) ProcessFiling(ctx context.Context, _ domain.FilingRequest) (*domain.ApplicationOutcome, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("process filing: %w", ctx.Err())
}

// processorFake records the request it was given and reads every file body.
type processorFake struct {
	req    domain.FilingRequest
	bodies []string
	result *domain.ApplicationOutcome
	err    error
}

func (p *processorFake) ProcessFiling(_ context.Context, req domain.FilingRequest) (*domain.ApplicationOutcome, error) {
	p.req = req
	for _, f := range req.Files {
		raw, err := io.ReadAll(f.Body)
		if err != nil {
			return nil, err
		}
		p.bodies = append(p.bodies, string(raw))
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

func storedFiling() (*domain.Filing, *storageFake) {
	storage := &storageFake{objects: map[string]string{
		"f-1/000_passport.png": "p",
		"f-1/001_payslip.png":  "s",
	}}
	filing := &domain.Filing{
		ID:              "f-1",
		ApplicationID:   "APP-42",
		ApplicationType: "mortgage",
		Status:          domain.FilingQueued,
		Files: []domain.FilingFile{
			{Filename: "passport.png", StorageKey: "f-1/000_passport.png", SizeBytes: 1},
			{Filename: "payslip.png", StorageKey: "f-1/001_payslip.png", SizeBytes: 1},
		},
	}
	return filing, storage
}

func TestProcessByIDSuccess(t *testing.T) {
	filing, storage := storedFiling()
	repo := &filingRepoFake{filing: filing}
	processor := &processorFake{result: &domain.ApplicationOutcome{SystemStatus: domain.SystemApproved}}
	uc := NewProcessStoredFilingUseCase(repo, storage, catalogFake{}, processor)

	if err := uc.ProcessByID(context.Background(), "f-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.FilingProcessing || repo.statusCalls[1].status != domain.FilingCompleted {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.outcomeID != "f-1" || repo.outcome.SystemStatus != domain.SystemApproved {
		t.Fatalf("expected outcome saved for f-1, got %s %+v", repo.outcomeID, repo.outcome)
	}
	if strings.Join(processor.bodies, ",") != "p,s" {
		t.Fatalf("unexpected bodies: %v", processor.bodies)
	}
	if processor.req.ApplicationID != "APP-42" || processor.req.Taxonomy.Version != "v1" || len(processor.req.Requirements) != 3 {
		t.Fatalf("unexpected request: %+v", processor.req)
	}
	for _, r := range storage.opened {
		if !r.closed {
			t.Fatalf("stored file left open")
		}
	}
}

func TestProcessByIDMarksFailedOnProcessingError(t *testing.T) {
	filing, storage := storedFiling()
	repo := &filingRepoFake{filing: filing}
	processor := &processorFake{err: domain.WrapError(domain.ErrConfiguration, "load policy rules", errors.New("missing"))}
	uc := NewProcessStoredFilingUseCase(repo, storage, catalogFake{}, processor)

	err := uc.ProcessByID(context.Background(), "f-1")
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.FilingFailed {
		t.Fatalf("expected processing + failed status updates, got %+v", repo.statusCalls)
	}
	if !strings.Contains(repo.statusCalls[1].errMsg, "missing") {
		t.Fatalf("expected failure message recorded, got %q", repo.statusCalls[1].errMsg)
	}
	if repo.outcome != nil {
		t.Fatalf("no outcome expected on failure")
	}
}

func TestProcessByIDMarksFailedOnMissingObject(t *testing.T) {
	filing, storage := storedFiling()
	delete(storage.objects, "f-1/001_payslip.png")
	repo := &filingRepoFake{filing: filing}
	uc := NewProcessStoredFilingUseCase(repo, storage, catalogFake{}, &processorFake{})

	if err := uc.ProcessByID(context.Background(), "f-1"); err == nil {
		t.Fatalf("expected error")
	}
	if repo.statusCalls[len(repo.statusCalls)-1].status != domain.FilingFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
	if len(storage.opened) != 1 || !storage.opened[0].closed {
		t.Fatalf("already opened files must be closed")
	}
}

func TestProcessByIDMarksFailedOnSaveError(t *testing.T) {
	filing, storage := storedFiling()
	repo := &filingRepoFake{filing: filing, saveErr: errors.New("db down"), failStatusErr: errors.New("still down")}
	processor := &processorFake{result: &domain.ApplicationOutcome{}}
	uc := NewProcessStoredFilingUseCase(repo, storage, catalogFake{}, processor)

	err := uc.ProcessByID(context.Background(), "f-1")
	if err == nil || !strings.Contains(err.Error(), "mark failed status") {
		t.Fatalf("expected combined error, got %v", err)
	}
}

func TestProcessByIDNotFound(t *testing.T) {
	repo := &filingRepoFake{getErr: domain.ErrFilingNotFound}
	uc := NewProcessStoredFilingUseCase(repo, &storageFake{}, catalogFake{}, &processorFake{})

	err := uc.ProcessByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrFilingNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProcessByIDMarksFailedAfterDeadline(t *testing.T) {
	filing, storage := storedFiling()
	repo := &filingRepoFake{filing: filing, honorCtx: true}
	uc := NewProcessStoredFilingUseCase(repo, storage, catalogFake{}, blockingProcessor{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := uc.ProcessByID(ctx, "f-1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if strings.Contains(err.Error(), "mark failed status") {
		t.Fatalf("failed status write must survive the expired context: %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.FilingFailed {
		t.Fatalf("expected processing + failed status updates, got %+v", repo.statusCalls)
	}
}
