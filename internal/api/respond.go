package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/star/orbitdash/internal/propagation"
	"github.com/star/orbitdash/internal/telemetry"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTelemetryError maps a poller error to a status: 400 for bad
// parameters, 404 for an unknown body and 503 for any other missing data.
func writeTelemetryError(w http.ResponseWriter, err error) {
	status := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, telemetry.ErrInvalidConfig):
		status = http.StatusBadRequest
	case errors.Is(err, propagation.ErrUnknownBody):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{
		"error":  err.Error(),
		"reason": telemetry.Reason(err),
	})
}
