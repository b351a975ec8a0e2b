package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/diecompare/internal/models"
)

// statusFor maps a service error to the HTTP status reported to the caller.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidCredential), errors.Is(err, models.ErrWrongCredential):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, models.ErrLoadFailure):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeError writes err as a plain-text body. Internal errors are not
// echoed to the caller.
func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	http.Error(w, msg, code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
