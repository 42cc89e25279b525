package http

import (
	"errors"
	"net/http"

	"loans/internal/core"
	"loans/internal/log"
)

// StatusForKind maps an error kind to its HTTP status code.
func StatusForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindInvalidInput, core.KindInvalidDateFormat, core.KindFutureDate:
		return http.StatusBadRequest
	case core.KindLoanNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context())
	kind := core.KindOf(err)
	status := StatusForKind(kind)
	if status == http.StatusInternalServerError {
		op := log.OpRead
		if r.Method == http.MethodPost {
			op = log.OpCreate
		}
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op,
			log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", ""))
		InternalServerError(err.Error()).Write(w)
		return
	}

	message := err.Error()
	var ce *core.Error
	if errors.As(err, &ce) {
		message = ce.Message
	}
	logger.InfoContext(r.Context(), "Request rejected",
		log.FieldErrorKind, kind,
		log.FieldError, message,
		log.FieldPath, r.URL.Path)

	switch status {
	case http.StatusBadRequest:
		BadRequestError(message).Write(w)
	case http.StatusNotFound:
		NotFoundError(message).Write(w)
	default:
		ErrorResponse(status, message).Write(w)
	}
}
