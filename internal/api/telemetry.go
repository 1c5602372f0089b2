package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/star/orbitdash/internal/telemetry"
)

const (
	maxSeriesCount   = 1440
	maxSeriesStepSec = 3600
)

// poller builds a request-scoped poller for the ?body= parameter, falling
// back to the configured body.
func poller(r *http.Request, logger *slog.Logger, deps Deps) *telemetry.Poller {
	cfg := deps.Telemetry
	if body := strings.TrimSpace(r.URL.Query().Get("body")); body != "" {
		cfg.Body = body
	}
	cfg.Mode = telemetry.ModeSynthetic
	return telemetry.NewPoller(deps.Registry.Sampler(cfg.Body), cfg, logger)
}

// GET /api/v1/telemetry/current?body=TERRA
func currentHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := poller(r, logger, deps).SampleCurrent(r.Context())
		if err != nil {
			writeTelemetryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// GET /api/v1/telemetry/series?body=TERRA&count=180&step=20
func seriesHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := poller(r, logger, deps)
		count, step := p.Config().Count, p.Config().Step

		if v := r.URL.Query().Get("count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 || n > maxSeriesCount {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid count parameter, must be 0-%d", maxSeriesCount))
				return
			}
			count = n
		}
		if v := r.URL.Query().Get("step"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxSeriesStepSec {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid step parameter, must be 1-%d", maxSeriesStepSec))
				return
			}
			step = time.Duration(n) * time.Second
		}

		series, err := p.BuildSeries(r.Context(), count, step)
		if err != nil {
			writeTelemetryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, series.Figure())
	}
}
