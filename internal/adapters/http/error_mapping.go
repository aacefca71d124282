package httpadapter

import (
	"net/http"

	"github.com/kirillkom/filing-classifier/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrFileProcessing):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrFilingNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConfiguration):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrTemporary),
		domain.IsKind(err, domain.ErrCapabilityTimeout),
		domain.IsKind(err, domain.ErrCapabilityConnection),
		domain.IsKind(err, domain.ErrMalformedResponse):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
