package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFilingNotFound = errors.New("filing not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrTemporary      = errors.New("temporary failure")

	// Input validation failures, fatal for the one file they concern.
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrFileProcessing  = errors.New("file processing failed")

	// Capability failures. Timeout and connection errors are also ErrTemporary.
	ErrCapabilityTimeout    = errors.New("capability timeout")
	ErrCapabilityConnection = errors.New("capability connection failure")
	ErrMalformedResponse    = errors.New("malformed capability response")

	// ErrConfiguration is fatal for the whole filing.
	ErrConfiguration = errors.New("configuration error")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
