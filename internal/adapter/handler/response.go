package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/logging"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	// retryAfterSeconds is the hint sent with every retryable failure.
	retryAfterSeconds = "5"
)

// Envelope wraps every API response.
type Envelope struct {
	Status    string `json:"status"`
	Msg       string `json:"msg"`
	Data      any    `json:"data"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeSuccess(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, Envelope{Status: statusSuccess, Msg: msg, Data: data})
}

// writeError maps the error taxonomy onto HTTP. Internal details of
// unexpected errors are logged, never returned.
func writeError(ctx context.Context, w http.ResponseWriter, logger logging.Logger, err error) {
	status, msg := errorStatus(err)
	env := Envelope{Status: statusError, Msg: msg}

	if domain.Retryable(err) {
		env.Retryable = true
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	if status == http.StatusInternalServerError {
		logger.Error(ctx, "request failed", "error", err)
	}
	writeJSON(w, status, env)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrSyncUnavailable):
		return http.StatusServiceUnavailable, "sync unavailable, retry later without advancing the watermark"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store unavailable, retry later"
	case errors.Is(err, context.Canceled):
		// client went away; the status is never seen
		return 499, "request canceled"
	}
	return http.StatusInternalServerError, "internal error"
}
