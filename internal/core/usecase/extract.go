package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/llmjson"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
	"github.com/kirillkom/filing-classifier/internal/core/prompts"
	"github.com/kirillkom/filing-classifier/internal/core/taxonomy"
)

type ExtractionOptions struct {
	CallTimeout time.Duration
	Logger      *slog.Logger
	Observer    ports.FilingObserver
}

// FieldExtractionDispatcher pulls type-specific fields from a document.
// Extraction is best effort: every failure yields an empty map.
type FieldExtractionDispatcher struct {
	caller capabilityCaller
	logger *slog.Logger
}

func NewFieldExtractionDispatcher(model ports.VisionModel, executor ports.CallExecutor, opts ExtractionOptions) *FieldExtractionDispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldExtractionDispatcher{
		caller: capabilityCaller{
			model:    model,
			executor: executor,
			observer: observerOrNop(opts.Observer),
			timeout:  opts.CallTimeout,
		},
		logger: logger,
	}
}

func (d *FieldExtractionDispatcher) ExtractFields(ctx context.Context, documentType string, pageImages []string) map[string]any {
	tpl, ok := prompts.ExtractionFor(taxonomy.NormalizeLabel(documentType))
	if !ok || len(pageImages) == 0 {
		return map[string]any{}
	}

	raw, err := d.caller.call(ctx, domain.VisionRequest{
		Operation:  domain.OperationExtract,
		Prompt:     tpl.Prompt(),
		ImagePaths: pageImages,
	})
	if err != nil {
		d.logger.Warn("field_extraction_failed", "document_type", tpl.DocumentType, "note", failureNote(err), "error", err)
		return map[string]any{}
	}

	fields, err := llmjson.DecodeObject(raw)
	if err != nil {
		d.logger.Warn("field_extraction_unparsable", "document_type", tpl.DocumentType, "error", err)
		return map[string]any{}
	}
	return fields
}
