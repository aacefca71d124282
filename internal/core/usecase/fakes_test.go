package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/infrastructure/resilience"
)

func testTaxonomy() domain.Taxonomy {
	return domain.Taxonomy{
		Version: "v1",
		Entries: []domain.TaxonomyEntry{
			{Category: "identity", Type: "passport"},
			{Category: "identity", Type: "driving_license"},
			{Category: "income", Type: "payslip"},
		},
		TypeAliases: map[string]string{"pay stub": "payslip"},
	}
}

// fastGuard retries three times with millisecond backoff and no breaker.
func fastGuard() *resilience.CapabilityGuard {
	return resilience.NewCapabilityGuard(resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	}))
}

// visionFake answers by operation and records every request.
type visionFake struct {
	mu       sync.Mutex
	respond  func(req domain.VisionRequest, call int) (string, error)
	requests []domain.VisionRequest
}

func (f *visionFake) Generate(_ context.Context, req domain.VisionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	f.mu.Unlock()
	return f.respond(req, call)
}

func (f *visionFake) calls(operation string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Operation == operation {
			n++
		}
	}
	return n
}

func constantVision(raw string) *visionFake {
	return &visionFake{respond: func(domain.VisionRequest, int) (string, error) { return raw, nil }}
}

type cacheFake struct {
	mu     sync.Mutex
	values map[string]domain.ClassificationResult
	sets   int
}

func newCacheFake() *cacheFake {
	return &cacheFake{values: make(map[string]domain.ClassificationResult)}
}

func (f *cacheFake) Get(_ context.Context, key string) (domain.ClassificationResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *cacheFake) Set(_ context.Context, key string, value domain.ClassificationResult, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	f.sets++
	return nil
}

// normalizerFake writes one page image per upload into workDir. Uploads whose
// body reads "corrupt" are rejected.
type normalizerFake struct {
	mu    sync.Mutex
	dirs  []string
	pages int
}

func (f *normalizerFake) Normalize(_ context.Context, file domain.UploadedFile, workDir string) (domain.NormalizedDocument, error) {
	f.mu.Lock()
	f.dirs = append(f.dirs, workDir)
	f.mu.Unlock()

	body, err := io.ReadAll(file.Body)
	if err != nil {
		return domain.NormalizedDocument{}, err
	}
	if string(body) == "corrupt" {
		return domain.NormalizedDocument{}, domain.WrapError(domain.ErrFileProcessing, "normalize", errors.New("unsupported file type"))
	}
	pages := max(f.pages, 1)
	stem := strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename))
	doc := domain.NormalizedDocument{
		Filename:    file.Filename,
		FilePath:    filepath.Join(workDir, file.Filename),
		FileType:    domain.FileTypePNG,
		PageCount:   pages,
		Present:     true,
		ContentHash: fmt.Sprintf("hash-%s", body),
		WorkDir:     workDir,
	}
	for i := 1; i <= pages; i++ {
		path := filepath.Join(workDir, fmt.Sprintf("%s_page_%d.png", stem, i))
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return domain.NormalizedDocument{}, err
		}
		doc.PageImagePaths = append(doc.PageImagePaths, path)
	}
	return doc, nil
}

type rulesFake struct {
	rules []domain.PolicyRule
	err   error
}

func (f rulesFake) LoadPolicyRules(context.Context) ([]domain.PolicyRule, error) {
	return f.rules, f.err
}

type observerFake struct {
	mu              sync.Mutex
	classifications []domain.MatchStatus
	capabilityCalls map[string]int
	filings         int
}

func (o *observerFake) ObserveClassification(status domain.MatchStatus, _ string, _ bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.classifications = append(o.classifications, status)
}

func (o *observerFake) ObserveCapabilityCall(operation string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.capabilityCalls == nil {
		o.capabilityCalls = make(map[string]int)
	}
	o.capabilityCalls[operation]++
}

func (o *observerFake) ObserveFiling(*domain.ApplicationOutcome, time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filings++
}

func upload(name, body string) domain.UploadedFile {
	return domain.UploadedFile{Filename: name, Body: strings.NewReader(body)}
}
