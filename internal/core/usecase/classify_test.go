package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

func testDocument() domain.NormalizedDocument {
	return domain.NormalizedDocument{
		Filename:       "passport.png",
		FileType:       domain.FileTypePNG,
		PageImagePaths: []string{"/tmp/passport_page_1.png"},
		PageCount:      1,
		Present:        true,
		ContentHash:    "abc123",
	}
}

func TestClassifyFencedResponse(t *testing.T) {
	model := constantVision("```json\n{\"document_category\": \"Identity\", \"document_type\": \"Passport\"}\n```")
	d := NewClassificationDispatcher(model, fastGuard(), nil, ClassificationOptions{})

	got := d.Classify(context.Background(), testDocument(), testTaxonomy())
	if got.MatchStatus != domain.MatchClassified {
		t.Fatalf("expected classified, got %+v", got)
	}
	if got.Category != "identity" || got.Type != "passport" {
		t.Fatalf("unexpected labels: %s/%s", got.Category, got.Type)
	}
	if got.Note != "" {
		t.Fatalf("expected empty note, got %q", got.Note)
	}
}

func TestClassifyAliasAndExtra(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		status domain.MatchStatus
		typ    string
		note   string
	}{
		{
			name:   "alias resolves type",
			raw:    `{"document_category": "income", "document_type": "Pay Stub"}`,
			status: domain.MatchClassified,
			typ:    "payslip",
		},
		{
			name:   "known labels outside taxonomy pair",
			raw:    `{"document_category": "identity", "document_type": "payslip"}`,
			status: domain.MatchExtra,
			typ:    "payslip",
			note:   domain.NotePairNotInTaxonomy,
		},
		{
			name:   "null labels",
			raw:    `{"document_category": null, "document_type": null}`,
			status: domain.MatchUnknown,
			typ:    domain.UnknownLabel,
			note:   domain.NoteUnrecognized,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewClassificationDispatcher(constantVision(tc.raw), nil, nil, ClassificationOptions{})
			got := d.Classify(context.Background(), testDocument(), testTaxonomy())
			if got.MatchStatus != tc.status || got.Type != tc.typ || got.Note != tc.note {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestClassifyRetriesTransientFailure(t *testing.T) {
	model := &visionFake{respond: func(_ domain.VisionRequest, call int) (string, error) {
		if call < 3 {
			return "", domain.WrapError(domain.ErrCapabilityConnection, "generate", errors.New("connection refused"))
		}
		return `{"document_category": "identity", "document_type": "passport"}`, nil
	}}
	d := NewClassificationDispatcher(model, fastGuard(), nil, ClassificationOptions{})

	got := d.Classify(context.Background(), testDocument(), testTaxonomy())
	if got.MatchStatus != domain.MatchClassified {
		t.Fatalf("expected classified after retries, got %+v", got)
	}
	if n := model.calls(domain.OperationClassify); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestClassifyDegradesAfterExhaustedRetries(t *testing.T) {
	model := &visionFake{respond: func(domain.VisionRequest, int) (string, error) {
		return "", domain.WrapError(domain.ErrCapabilityConnection, "generate", errors.New("connection refused"))
	}}
	cache := newCacheFake()
	d := NewClassificationDispatcher(model, fastGuard(), cache, ClassificationOptions{})

	got := d.Classify(context.Background(), testDocument(), testTaxonomy())
	if got.MatchStatus != domain.MatchUnknown || got.Note != domain.NoteConnectionError {
		t.Fatalf("expected unknown with connection note, got %+v", got)
	}
	if got.Category != domain.UnknownLabel || got.Type != domain.UnknownLabel {
		t.Fatalf("expected unknown labels, got %s/%s", got.Category, got.Type)
	}
	if n := model.calls(domain.OperationClassify); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if cache.sets != 0 {
		t.Fatalf("degraded result must not be cached")
	}
}

func TestClassifyMalformedEnvelopeIsValidationFailure(t *testing.T) {
	model := &visionFake{respond: func(domain.VisionRequest, int) (string, error) {
		return "", domain.WrapError(domain.ErrMalformedResponse, "decode classify response", errors.New("unexpected EOF"))
	}}
	cache := newCacheFake()
	d := NewClassificationDispatcher(model, fastGuard(), cache, ClassificationOptions{})

	got := d.Classify(context.Background(), testDocument(), testTaxonomy())
	if got.MatchStatus != domain.MatchUnknown || got.Note != domain.NoteValidationFailed {
		t.Fatalf("expected unknown with validation note, got %+v", got)
	}
	if n := model.calls(domain.OperationClassify); n != 1 {
		t.Fatalf("malformed responses must not be retried, got %d attempts", n)
	}
	if cache.sets != 0 {
		t.Fatalf("degraded result must not be cached")
	}
}

func TestClassifyAttemptTimeout(t *testing.T) {
	model := &visionFake{respond: func(domain.VisionRequest, int) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "", context.DeadlineExceeded
	}}
	d := NewClassificationDispatcher(model, fastGuard(), nil, ClassificationOptions{CallTimeout: 5 * time.Millisecond})

	got := d.Classify(context.Background(), testDocument(), testTaxonomy())
	if got.Note != domain.NoteTimeout {
		t.Fatalf("expected timeout note, got %+v", got)
	}
	if n := model.calls(domain.OperationClassify); n != 3 {
		t.Fatalf("timeouts should be retried, got %d attempts", n)
	}
}

func TestClassifyMalformedResponse(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		note string
	}{
		{name: "empty", raw: "  ", note: domain.NoteNoParsedResponse},
		{name: "prose", raw: "I think this is a passport.", note: domain.NoteValidationFailed},
		{name: "missing key", raw: `{"document_category": "identity"}`, note: domain.NoteValidationFailed},
		{name: "wrong type", raw: `{"document_category": 1, "document_type": "passport"}`, note: domain.NoteValidationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := newCacheFake()
			d := NewClassificationDispatcher(constantVision(tc.raw), fastGuard(), cache, ClassificationOptions{})
			got := d.Classify(context.Background(), testDocument(), testTaxonomy())
			if got.MatchStatus != domain.MatchUnknown || got.Note != tc.note {
				t.Fatalf("got %+v", got)
			}
			if cache.sets != 0 {
				t.Fatalf("unparsable result must not be cached")
			}
		})
	}
}

func TestClassifyMalformedCapabilityErrorNotRetried(t *testing.T) {
	model := &visionFake{respond: func(domain.VisionRequest, int) (string, error) {
		return "", domain.WrapError(domain.ErrMalformedResponse, "generate", errors.New("bad envelope"))
	}}
	d := NewClassificationDispatcher(model, fastGuard(), nil, ClassificationOptions{})

	got := d.Classify(context.Background(), testDocument(), testTaxonomy())
	if got.Note != domain.NoteCapabilityError {
		t.Fatalf("expected capability_error note, got %+v", got)
	}
	if n := model.calls(domain.OperationClassify); n != 1 {
		t.Fatalf("expected a single attempt, got %d", n)
	}
}

func TestClassifyUsesCache(t *testing.T) {
	model := constantVision(`{"document_category": "identity", "document_type": "passport"}`)
	cache := newCacheFake()
	observer := &observerFake{}
	d := NewClassificationDispatcher(model, nil, cache, ClassificationOptions{Observer: observer})

	first := d.Classify(context.Background(), testDocument(), testTaxonomy())
	second := d.Classify(context.Background(), testDocument(), testTaxonomy())

	if first.Cached {
		t.Fatalf("first result should not be marked cached")
	}
	if !second.Cached || second.Type != "passport" {
		t.Fatalf("expected cached passport, got %+v", second)
	}
	if n := model.calls(domain.OperationClassify); n != 1 {
		t.Fatalf("expected one model call, got %d", n)
	}
	if len(observer.classifications) != 2 {
		t.Fatalf("expected 2 observed classifications, got %d", len(observer.classifications))
	}

	other := testTaxonomy()
	other.Version = "v2"
	d.Classify(context.Background(), testDocument(), other)
	if n := model.calls(domain.OperationClassify); n != 2 {
		t.Fatalf("taxonomy version must be part of the cache key")
	}
}

func TestClassifyCacheIsScopedToTaxonomyContent(t *testing.T) {
	model := constantVision(`{"document_category": "identity", "document_type": "passport"}`)
	cache := newCacheFake()
	d := NewClassificationDispatcher(model, nil, cache, ClassificationOptions{})

	identity := domain.Taxonomy{Entries: []domain.TaxonomyEntry{{Category: "identity", Type: "passport"}}}
	income := domain.Taxonomy{Entries: []domain.TaxonomyEntry{{Category: "income", Type: "payslip"}}}

	first := d.Classify(context.Background(), testDocument(), identity)
	if first.MatchStatus != domain.MatchClassified {
		t.Fatalf("expected classified under identity taxonomy, got %+v", first)
	}

	second := d.Classify(context.Background(), testDocument(), income)
	if second.Cached {
		t.Fatalf("result cached under another taxonomy must not be reused: %+v", second)
	}
	if second.MatchStatus == domain.MatchClassified {
		t.Fatalf("identity/passport is not in the income taxonomy, got %+v", second)
	}
	if n := model.calls(domain.OperationClassify); n != 2 {
		t.Fatalf("expected a model call per taxonomy, got %d", n)
	}

	again := d.Classify(context.Background(), testDocument(), identity)
	if !again.Cached || again.MatchStatus != domain.MatchClassified {
		t.Fatalf("expected cache hit for identical taxonomy content, got %+v", again)
	}
}

func TestClassifyWithoutPages(t *testing.T) {
	model := constantVision(`{}`)
	d := NewClassificationDispatcher(model, nil, nil, ClassificationOptions{})
	doc := testDocument()
	doc.PageImagePaths = nil

	got := d.Classify(context.Background(), doc, testTaxonomy())
	if got.Note != domain.NoteInputError {
		t.Fatalf("expected input_error, got %+v", got)
	}
	if model.calls(domain.OperationClassify) != 0 {
		t.Fatalf("model must not be called without pages")
	}
}

func TestClassifyPromptListsTaxonomy(t *testing.T) {
	model := constantVision(`{"document_category": "identity", "document_type": "passport"}`)
	d := NewClassificationDispatcher(model, nil, nil, ClassificationOptions{})
	d.Classify(context.Background(), testDocument(), testTaxonomy())

	req := model.requests[0]
	for _, want := range []string{"identity", "passport", "payslip"} {
		if !strings.Contains(req.Prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
	if len(req.ImagePaths) != 1 {
		t.Fatalf("expected page images to be forwarded, got %v", req.ImagePaths)
	}
}
