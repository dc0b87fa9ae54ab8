package httpadapter

import (
	"net/http"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDesignNotFound), domain.IsKind(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrBusy):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrCompositionFailed), domain.IsKind(err, domain.ErrSubmissionFailed):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// isExpected reports whether err is a domain outcome the shopper can act on,
// as opposed to a fault in the server itself.
func isExpected(err error) bool {
	return mapErrorToHTTPStatus(err) != http.StatusInternalServerError
}
