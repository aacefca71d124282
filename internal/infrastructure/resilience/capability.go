package resilience

import (
	"context"
	"errors"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

// CapabilityGuard applies the executor to vision capability calls using the
// domain error kinds adapters report.
type CapabilityGuard struct {
	executor *Executor
}

func NewCapabilityGuard(executor *Executor) *CapabilityGuard {
	return &CapabilityGuard{executor: executor}
}

func (g *CapabilityGuard) Execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	err := g.executor.Execute(ctx, "capability."+operation, fn, ClassifyCapabilityError)
	if err != nil && IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrCapabilityConnection, operation, err)
	}
	return err
}

// ClassifyCapabilityError retries only transient infrastructure failures.
// Malformed responses and input errors are returned immediately and do not
// count against the breaker.
func ClassifyCapabilityError(err error) ErrorClassification {
	switch {
	case err == nil:
		return ErrorClassification{}
	case errors.Is(err, context.Canceled):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrCapabilityTimeout),
		domain.IsKind(err, domain.ErrCapabilityConnection),
		domain.IsKind(err, domain.ErrTemporary):
		return ErrorClassification{Retryable: true, RecordFailure: true}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorClassification{Retryable: false, RecordFailure: true}
	case domain.IsKind(err, domain.ErrMalformedResponse),
		domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrFileProcessing):
		return ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}
}
