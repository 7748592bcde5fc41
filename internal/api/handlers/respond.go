package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// statusFor maps the error taxonomy to HTTP statuses. Credential errors also
// carry ErrExecution or ErrEvaluation, so they are checked first.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, prompt.ErrNotFound), errors.Is(err, prompt.ErrInvalidVersion):
		return http.StatusNotFound
	case errors.Is(err, prompt.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, prompt.ErrAlreadyEvaluated), errors.Is(err, prompt.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrInvalidCredential):
		return http.StatusUnauthorized
	case errors.Is(err, prompt.ErrExecution),
		errors.Is(err, prompt.ErrEvaluation),
		errors.Is(err, prompt.ErrCategorization),
		errors.Is(err, prompt.ErrSearch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}
