package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/outcome"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
	"github.com/kirillkom/filing-classifier/internal/core/requirements"
)

// DocumentClassifier is the contract of ClassificationDispatcher.
type DocumentClassifier interface {
	Classify(ctx context.Context, doc domain.NormalizedDocument, t domain.Taxonomy) domain.ClassificationResult
}

// FieldExtractor is the contract of FieldExtractionDispatcher.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, documentType string, pageImages []string) map[string]any
}

// PolicyEvaluator is the contract of PolicyEvaluationBatcher.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, policies []domain.PolicyRule, allPageImages []string, contextDocumentTypes []string) ([]domain.PolicyEvaluationResult, error)
}

type ProcessFilingOptions struct {
	// WorkDir is the parent of per-filing temporary directories; empty means os.TempDir.
	WorkDir         string
	FileConcurrency int
	FuzzyMatching   bool
	Logger          *slog.Logger
	Observer        ports.FilingObserver
}

// ProcessFilingUseCase runs the whole pipeline for one filing: normalize,
// classify and extract each file concurrently, then match requirements,
// evaluate policies in one batch and aggregate.
type ProcessFilingUseCase struct {
	normalizer ports.FileNormalizer
	classifier DocumentClassifier
	extractor  FieldExtractor
	policies   PolicyEvaluator
	rules      ports.PolicyRuleSource
	opts       ProcessFilingOptions
	logger     *slog.Logger
	observer   ports.FilingObserver
}

func NewProcessFilingUseCase(
	normalizer ports.FileNormalizer,
	classifier DocumentClassifier,
	extractor FieldExtractor,
	policies PolicyEvaluator,
	rules ports.PolicyRuleSource,
	opts ProcessFilingOptions,
) *ProcessFilingUseCase {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessFilingUseCase{
		normalizer: normalizer,
		classifier: classifier,
		extractor:  extractor,
		policies:   policies,
		rules:      rules,
		opts:       opts,
		logger:     logger,
		observer:   observerOrNop(opts.Observer),
	}
}

// fileRun is the working set of one file, owned by a single goroutine until
// the fan-out joins.
type fileRun struct {
	outcome    domain.DocumentOutcome
	normalized domain.NormalizedDocument
	inputErr   error
}

func (uc *ProcessFilingUseCase) ProcessFiling(ctx context.Context, req domain.FilingRequest) (*domain.ApplicationOutcome, error) {
	start := time.Now()
	result, err := uc.process(ctx, req)
	uc.observer.ObserveFiling(result, time.Since(start), err)
	if err != nil {
		uc.logger.Error("filing_processing_failed",
			"filing_id", req.FilingID,
			"elapsed_ms", elapsedMS(start),
			"error", err,
		)
		return nil, err
	}
	uc.logger.Info("filing_processing_completed",
		"filing_id", req.FilingID,
		"system_status", result.SystemStatus,
		"document_check", result.DocumentCheckStatus,
		"policy_check", result.PolicyCheckStatus,
		"files", len(req.Files),
		"elapsed_ms", elapsedMS(start),
	)
	return result, nil
}

func (uc *ProcessFilingUseCase) process(ctx context.Context, req domain.FilingRequest) (*domain.ApplicationOutcome, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	rules, err := uc.loadRules(ctx)
	if err != nil {
		return nil, err
	}

	workDir, err := os.MkdirTemp(uc.opts.WorkDir, "filing-*")
	if err != nil {
		return nil, fmt.Errorf("create filing work dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			uc.logger.Error("filing_cleanup_failed", "filing_id", req.FilingID, "work_dir", workDir, "error", rmErr)
		}
	}()

	uc.logger.Info("filing_processing_started",
		"filing_id", req.FilingID,
		"application_type", req.ApplicationType,
		"files", len(req.Files),
		"taxonomy_version", req.Taxonomy.Version,
	)

	runs, err := uc.processFiles(ctx, req, workDir)
	if err != nil {
		return nil, err
	}

	documents := make([]domain.DocumentOutcome, len(runs))
	named := make([]domain.NamedClassification, len(runs))
	var firstInputErr error
	readable := 0
	for i, run := range runs {
		documents[i] = run.outcome
		named[i] = domain.NamedClassification{Filename: run.outcome.Filename, Classification: run.outcome.Classification}
		if run.inputErr != nil {
			if firstInputErr == nil {
				firstInputErr = run.inputErr
			}
			continue
		}
		readable++
	}
	if readable == 0 {
		return nil, domain.WrapError(domain.ErrFileProcessing, "process filing", fmt.Errorf("no readable files: %w", firstInputErr))
	}

	reqResults := requirements.Match(req.Requirements, named, requirements.Options{Fuzzy: uc.opts.FuzzyMatching})
	applicable := ApplicablePolicies(rules, requirements.MatchedTypes(reqResults))

	policyResults, err := uc.policies.Evaluate(ctx, applicable, allPageImages(runs), presentTypes(named))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation: %w", err)
	}

	out := outcome.Aggregate(documents, reqResults, policyResults)
	out.ApplicationID = req.ApplicationID
	out.ApplicationType = req.ApplicationType
	return &out, nil
}

func validateRequest(req domain.FilingRequest) error {
	if len(req.Files) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "process filing", errors.New("at least one file is required"))
	}
	if req.Taxonomy.Empty() {
		return domain.WrapError(domain.ErrConfiguration, "process filing", fmt.Errorf("empty taxonomy for application type %q", req.ApplicationType))
	}
	return nil
}

func (uc *ProcessFilingUseCase) loadRules(ctx context.Context) ([]domain.PolicyRule, error) {
	if uc.rules == nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "load policy rules", errors.New("no policy rule source configured"))
	}
	rules, err := uc.rules.LoadPolicyRules(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrConfiguration) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrConfiguration, "load policy rules", err)
	}
	return rules, nil
}

// processFiles fans out over the files. Per-file failures are recorded on the
// run, so a worker only returns an error when the filing context is done.
func (uc *ProcessFilingUseCase) processFiles(ctx context.Context, req domain.FilingRequest, workDir string) ([]fileRun, error) {
	runs := make([]fileRun, len(req.Files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency(len(req.Files)))
	for i, file := range req.Files {
		g.Go(func() error {
			runs[i] = uc.processFile(gctx, req.Taxonomy, file, filepath.Join(workDir, fmt.Sprintf("file-%03d", i)))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process filing files: %w", err)
	}
	return runs, nil
}

func (uc *ProcessFilingUseCase) processFile(ctx context.Context, t domain.Taxonomy, file domain.UploadedFile, fileDir string) fileRun {
	run := fileRun{outcome: domain.DocumentOutcome{Filename: file.Filename, Fields: map[string]any{}}}

	if err := os.MkdirAll(fileDir, 0o755); err != nil {
		run.inputErr = fmt.Errorf("create file work dir: %w", err)
		return uc.inputFailure(run)
	}
	doc, err := uc.normalizer.Normalize(ctx, file, fileDir)
	if err != nil {
		run.inputErr = err
		return uc.inputFailure(run)
	}
	if doc.Filename == "" {
		doc.Filename = file.Filename
	}
	run.normalized = doc
	run.outcome.FileType = doc.FileType
	run.outcome.PageCount = doc.PageCount

	cls := uc.classifier.Classify(ctx, doc, t)
	run.outcome.Classification = cls
	if cls.Matchable() {
		run.outcome.Fields = uc.extractor.ExtractFields(ctx, cls.Type, doc.PageImagePaths)
	}
	return run
}

func (uc *ProcessFilingUseCase) inputFailure(run fileRun) fileRun {
	uc.logger.Warn("file_rejected", "filename", run.outcome.Filename, "error", run.inputErr)
	run.outcome.Classification = domain.UnknownClassification(domain.NoteInputError)
	run.outcome.Error = run.inputErr.Error()
	uc.observer.ObserveClassification(domain.MatchUnknown, domain.NoteInputError, false)
	return run
}

func (uc *ProcessFilingUseCase) concurrency(files int) int {
	limit := uc.opts.FileConcurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	return max(min(limit, files), 1)
}

func allPageImages(runs []fileRun) []string {
	var out []string
	for _, run := range runs {
		out = append(out, run.normalized.PageImagePaths...)
	}
	return out
}

// presentTypes lists the distinct matchable document types in input order.
func presentTypes(named []domain.NamedClassification) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, n := range named {
		if !n.Classification.Matchable() {
			continue
		}
		if _, ok := seen[n.Classification.Type]; ok {
			continue
		}
		seen[n.Classification.Type] = struct{}{}
		out = append(out, n.Classification.Type)
	}
	return out
}

func elapsedMS(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
