package httpx

import (
	"errors"
	"net/http"

	"github.com/netadmind/netadmind/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Credential and token failures keep deliberately generic messages so the
// response body never distinguishes the root cause.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		w.Header().Set("WWW-Authenticate", "Bearer")
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Incorrect username or password")
	case errors.Is(err, shared.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", "Bearer")
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Could not validate credentials")
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrRateLimited):
		Problem(w, http.StatusTooManyRequests, "Too Many Requests", "Try again later")
	case errors.Is(err, shared.ErrDirectoryUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "Directory unavailable")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
