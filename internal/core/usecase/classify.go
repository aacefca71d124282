package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/llmjson"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
	"github.com/kirillkom/filing-classifier/internal/core/prompts"
	"github.com/kirillkom/filing-classifier/internal/core/taxonomy"
)

type ClassificationOptions struct {
	CallTimeout time.Duration
	CacheTTL    time.Duration
	Logger      *slog.Logger
	Observer    ports.FilingObserver
}

// ClassificationDispatcher classifies one normalized document. It never
// returns an error: infrastructure and parse failures degrade to an unknown
// result carrying a diagnostic note.
type ClassificationDispatcher struct {
	caller   capabilityCaller
	cache    ports.ClassificationCache
	cacheTTL time.Duration
	logger   *slog.Logger
	observer ports.FilingObserver
}

func NewClassificationDispatcher(
	model ports.VisionModel,
	executor ports.CallExecutor,
	cache ports.ClassificationCache,
	opts ClassificationOptions,
) *ClassificationDispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := observerOrNop(opts.Observer)
	return &ClassificationDispatcher{
		caller: capabilityCaller{
			model:    model,
			executor: executor,
			observer: observer,
			timeout:  opts.CallTimeout,
		},
		cache:    cache,
		cacheTTL: opts.CacheTTL,
		logger:   logger,
		observer: observer,
	}
}

func (d *ClassificationDispatcher) Classify(ctx context.Context, doc domain.NormalizedDocument, t domain.Taxonomy) domain.ClassificationResult {
	result := d.classify(ctx, doc, t)
	d.observer.ObserveClassification(result.MatchStatus, result.Note, result.Cached)
	return result
}

func (d *ClassificationDispatcher) classify(ctx context.Context, doc domain.NormalizedDocument, t domain.Taxonomy) domain.ClassificationResult {
	if len(doc.PageImagePaths) == 0 {
		return domain.UnknownClassification(domain.NoteInputError)
	}

	key := cacheKey(doc, t)
	if cached, ok := d.lookup(ctx, key); ok {
		return cached
	}

	raw, err := d.caller.call(ctx, domain.VisionRequest{
		Operation:  domain.OperationClassify,
		Prompt:     prompts.Classification(t),
		ImagePaths: doc.PageImagePaths,
	})
	if err != nil {
		note := failureNote(err)
		d.logger.Warn("classification_degraded",
			"filename", doc.Filename,
			"note", note,
			"error", err,
		)
		return domain.UnknownClassification(note)
	}

	result := interpretClassification(raw, t)
	if result.MatchStatus == domain.MatchUnknown && result.Note != domain.NoteUnrecognized {
		d.logger.Warn("classification_unparsable", "filename", doc.Filename, "note", result.Note)
		return result
	}
	d.store(ctx, key, result)
	return result
}

// interpretClassification parses and validates the raw answer and reconciles
// its labels against the taxonomy.
func interpretClassification(raw string, t domain.Taxonomy) domain.ClassificationResult {
	if strings.TrimSpace(raw) == "" {
		return domain.UnknownClassification(domain.NoteNoParsedResponse)
	}

	obj, err := llmjson.DecodeObject(raw)
	if err != nil {
		out := domain.UnknownClassification(domain.NoteValidationFailed)
		out.RawModelOutput = raw
		return out
	}
	if err := llmjson.ClassificationSchema.Validate(obj); err != nil {
		out := domain.UnknownClassification(domain.NoteValidationFailed)
		out.RawModelOutput = raw
		return out
	}

	category, _ := obj["document_category"].(string)
	docType, _ := obj["document_type"].(string)
	return taxonomy.Reconcile(category, docType, t).Apply(raw)
}

// cacheKey binds a cached result to the document bytes and to the taxonomy
// content it was reconciled against.
func cacheKey(doc domain.NormalizedDocument, t domain.Taxonomy) string {
	if doc.ContentHash == "" {
		return ""
	}
	return fmt.Sprintf("classification:%s:%s:%s", t.Version, t.Fingerprint(), doc.ContentHash)
}

func (d *ClassificationDispatcher) lookup(ctx context.Context, key string) (domain.ClassificationResult, bool) {
	if d.cache == nil || key == "" {
		return domain.ClassificationResult{}, false
	}
	cached, ok, err := d.cache.Get(ctx, key)
	if err != nil {
		d.logger.Warn("classification_cache_get_failed", "key", key, "error", err)
		return domain.ClassificationResult{}, false
	}
	if !ok {
		return domain.ClassificationResult{}, false
	}
	cached.Cached = true
	return cached, true
}

func (d *ClassificationDispatcher) store(ctx context.Context, key string, result domain.ClassificationResult) {
	if d.cache == nil || key == "" {
		return
	}
	result.Cached = false
	if err := d.cache.Set(ctx, key, result, d.cacheTTL); err != nil {
		d.logger.Warn("classification_cache_set_failed", "key", key, "error", err)
	}
}
