package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/app.js", "/app.js"},
		{"/api/v1/telemetry/current", "/api/v1/telemetry/current"},
		{"/api/v1/telemetry/series", "/api/v1/telemetry/series"},
		{"/api/v1/stream/telemetry", "/api/v1/stream/telemetry"},
		{"/api/v1/tle/metadata", "/api/v1/tle/metadata"},
		{"/api/v1/tle/fetch", "/api/v1/tle/fetch"},

		{"/api/v1/tle/bodies/TERRA", "/api/v1/tle/bodies/{body}"},
		{"/api/v1/tle/bodies/25994", "/api/v1/tle/bodies/{body}"},

		{"/api/v1/tle/bodies/", "other"},
		{"/api/v1/tle/bodies/a/b", "other"},
		{"/wp-admin", "other"},
		{"/.env", "other"},
		{"/api/v2/something", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizeRoute(tt.path); got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that many body names collapse into one label.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for _, body := range []string{"TERRA", "AQUA", "ISS", "NOAA 19", "25544"} {
		seen[normalizeRoute("/api/v1/tle/bodies/"+body)] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "418"))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", w.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "418"))
	if after-before != 1 {
		t.Errorf("request counter delta = %v, want 1", after-before)
	}
}

func TestTickCounters(t *testing.T) {
	before := testutil.ToFloat64(ticksTotal.WithLabelValues(TickDropped))
	IncTicks(TickDropped)
	IncTicks(TickDropped)
	if got := testutil.ToFloat64(ticksTotal.WithLabelValues(TickDropped)) - before; got != 2 {
		t.Errorf("dropped delta = %v, want 2", got)
	}
}

func TestMiddlewarePreservesFlusher(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer does not implement http.Flusher")
		}
		f.Flush()
		flushed = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/stream/telemetry", nil))
	if !flushed {
		t.Error("handler did not run")
	}
}
