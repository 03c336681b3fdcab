package httpadapter

import (
	"net/http"

	"github.com/kirillkom/textmill/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBadFormat):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrEncrypted):
		return http.StatusLocked
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
