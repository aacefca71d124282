package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// VisionModel is the external image capability. It returns the model's raw
// text; interpreting it is the caller's job.
type VisionModel interface {
	Generate(ctx context.Context, req domain.VisionRequest) (string, error)
}

// CallExecutor runs a capability call under the retry and breaker policy.
type CallExecutor interface {
	Execute(ctx context.Context, operation string, fn func(context.Context) error) error
}

// PolicyRuleSource loads the policy rule table.
type PolicyRuleSource interface {
	LoadPolicyRules(ctx context.Context) ([]domain.PolicyRule, error)
}

// CatalogProvider resolves the taxonomy and requirement list of an application type.
type CatalogProvider interface {
	Taxonomy(ctx context.Context, applicationType string) (domain.Taxonomy, error)
	Requirements(ctx context.Context, applicationType string) ([]domain.RequirementEntry, error)
}

// FileNormalizer turns one upload into page images under workDir.
type FileNormalizer interface {
	Normalize(ctx context.Context, file domain.UploadedFile, workDir string) (domain.NormalizedDocument, error)
}

// ClassificationCache stores classifications by content key.
type ClassificationCache interface {
	Get(ctx context.Context, key string) (domain.ClassificationResult, bool, error)
	Set(ctx context.Context, key string, value domain.ClassificationResult, ttl time.Duration) error
}

// FilingRepository persists filings and their outcomes.
type FilingRepository interface {
	Create(ctx context.Context, filing *domain.Filing) error
	GetByID(ctx context.Context, id string) (*domain.Filing, error)
	UpdateStatus(ctx context.Context, id string, status domain.FilingStatus, errMessage string) error
	SaveOutcome(ctx context.Context, id string, outcome domain.ApplicationOutcome) error
}

// ObjectStorage stores uploaded files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes and consumes filing submission events.
type MessageQueue interface {
	PublishFilingSubmitted(ctx context.Context, filingID string) error
	SubscribeFilingSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// FilingObserver receives pipeline measurements. Implementations must be
// safe for concurrent use.
type FilingObserver interface {
	ObserveClassification(status domain.MatchStatus, note string, cached bool)
	ObserveCapabilityCall(operation string, duration time.Duration, err error)
	ObserveFiling(outcome *domain.ApplicationOutcome, duration time.Duration, err error)
}
