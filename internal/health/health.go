// Package health serves liveness and readiness probes.
package health

import (
	"net/http"

	"github.com/star/orbitdash/internal/tle"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz reports ready once a TLE dataset is loaded; before that the
// dashboard can only publish "no data" frames.
func Readyz(store *tle.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if store.Get() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: no TLE dataset\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}
