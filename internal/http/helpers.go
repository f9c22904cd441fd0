package http

import (
	"context"
	"errors"
	"net/http"

	"tabs/internal/auth"
	"tabs/internal/core"
	"tabs/internal/log"
)

// statusFor maps domain sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func errorTypeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return log.ErrorTypeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return log.ErrorTypeAuth
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	default:
		return log.ErrorTypeDatabase
	}
}

// writeError renders err as {"error": "..."}. Server-side failures get an
// opaque message; the detail goes to the log only.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	msg := err.Error()

	logger := log.FromContext(r.Context())
	if status >= 500 {
		msg = http.StatusText(status)
		if !errors.Is(err, context.Canceled) {
			log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, errorTypeFor(status), op, nil)
		}
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, status,
			log.FieldErrorType, errorTypeFor(status),
			log.FieldError, err)
	}
	writeJSON(w, r, status, errorJSON{Error: msg})
}

// caller returns the authenticated user. Routes behind the session
// middleware always have one.
func caller(r *http.Request) (core.User, error) {
	u, ok := auth.UserFrom(r.Context())
	if !ok {
		return core.User{}, auth.ErrNoSession
	}
	return u, nil
}
