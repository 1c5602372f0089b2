package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/star/orbitdash/internal/tle"
)

type tleMetadata struct {
	Source       string `json:"source"`
	FetchedAt    string `json:"fetched_at"`
	AgeSeconds   int    `json:"age_seconds"`
	Count        int    `json:"count"`
	EpochMin     string `json:"epoch_min"`
	EpochMax     string `json:"epoch_max"`
	FetchEnabled bool   `json:"fetch_enabled"`
}

func metadataFor(ds *tle.TLEDataset, fetchEnabled bool) tleMetadata {
	return tleMetadata{
		Source:       ds.Source,
		FetchedAt:    ds.FetchedAt.UTC().Format(time.RFC3339),
		AgeSeconds:   int(time.Since(ds.FetchedAt).Seconds()),
		Count:        len(ds.Satellites),
		EpochMin:     ds.EpochRange.Min.UTC().Format(time.RFC3339),
		EpochMax:     ds.EpochRange.Max.UTC().Format(time.RFC3339),
		FetchEnabled: fetchEnabled,
	}
}

func fetchEnabled(deps Deps) bool {
	return deps.TLE.EnableFetch && deps.Refresher != nil
}

// GET /api/v1/tle/metadata
func tleMetadataHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := deps.Store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
			return
		}
		writeJSON(w, http.StatusOK, metadataFor(ds, fetchEnabled(deps)))
	}
}

// POST /api/v1/tle/fetch
func tleFetchHandler(logger *slog.Logger, deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !fetchEnabled(deps) {
			writeError(w, http.StatusForbidden, "TLE fetching is disabled")
			return
		}
		ds, err := deps.Refresher.Refresh(r.Context())
		if err != nil {
			logger.Warn("on-demand TLE fetch failed", "error", err)
			writeError(w, http.StatusBadGateway, "TLE fetch failed: "+err.Error())
			return
		}
		writeJSON(w, http.StatusOK, metadataFor(ds, true))
	}
}

type tleBody struct {
	NORADID int    `json:"norad_id"`
	Name    string `json:"name"`
	Epoch   string `json:"epoch"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
}

// GET /api/v1/tle/bodies/{body}
func tleBodyHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := deps.Store.Get()
		if ds == nil {
			writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
			return
		}
		entry, ok := ds.Find(r.PathValue("body"))
		if !ok {
			writeError(w, http.StatusNotFound, "body not found in TLE dataset")
			return
		}
		writeJSON(w, http.StatusOK, tleBody{
			NORADID: entry.NORADID,
			Name:    entry.Name,
			Epoch:   entry.Epoch.UTC().Format(time.RFC3339),
			Line1:   entry.Line1,
			Line2:   entry.Line2,
		})
	}
}
