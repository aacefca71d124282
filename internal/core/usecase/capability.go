package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
)

// capabilityCaller issues one logical capability call. Every attempt gets its
// own timeout; an attempt that runs out of time is reported as
// domain.ErrCapabilityTimeout so the executor may retry it.
type capabilityCaller struct {
	model    ports.VisionModel
	executor ports.CallExecutor
	observer ports.FilingObserver
	timeout  time.Duration
}

func (c capabilityCaller) call(ctx context.Context, req domain.VisionRequest) (string, error) {
	start := time.Now()
	var raw string
	attempt := func(ctx context.Context) error {
		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		out, err := c.model.Generate(attemptCtx, req)
		if err != nil {
			if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrCapabilityTimeout) {
				return domain.WrapError(domain.ErrCapabilityTimeout, req.Operation, err)
			}
			return err
		}
		raw = out
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, req.Operation, attempt)
	} else {
		err = attempt(ctx)
	}
	c.observer.ObserveCapabilityCall(req.Operation, time.Since(start), err)
	return raw, err
}

// failureNote names the class of a capability failure.
func failureNote(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrCapabilityTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.NoteTimeout
	case domain.IsKind(err, domain.ErrCapabilityConnection):
		return domain.NoteConnectionError
	case domain.IsKind(err, domain.ErrMalformedResponse):
		return domain.NoteValidationFailed
	default:
		return domain.NoteCapabilityError
	}
}

type nopObserver struct{}

func (nopObserver) ObserveClassification(domain.MatchStatus, string, bool)         {}
func (nopObserver) ObserveCapabilityCall(string, time.Duration, error)             {}
func (nopObserver) ObserveFiling(*domain.ApplicationOutcome, time.Duration, error) {}

func observerOrNop(o ports.FilingObserver) ports.FilingObserver {
	if o == nil {
		return nopObserver{}
	}
	return o
}
