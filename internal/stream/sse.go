// Package stream serves telemetry frames over Server-Sent Events (SSE).
// Clients connect via GET /api/v1/stream/telemetry and receive one frame per
// scheduler tick.
//
// SSE message format:
//
//	data: {"type":"telemetry","seq":12,"t":"2026-10-19T10:00:00Z","body":"TERRA","snapshot":{...},"figure":{...}}\n\n
//
// The first message is always metadata, followed by the latest frame if one
// has been published:
//
//	data: {"type":"metadata","body":"TERRA","dataset_epoch":"...","tle_age_seconds":1800,"interval_ms":1000}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval without a frame.
package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/star/orbitdash/internal/httputil"
	"github.com/star/orbitdash/internal/metrics"
	"github.com/star/orbitdash/internal/telemetry"
	"github.com/star/orbitdash/internal/tle"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	Body               string        // Body named in the metadata message.
	Interval           time.Duration // Tick interval advertised to clients.
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	MaxTotal           int           // Max concurrent streams overall (default: 1000).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	TrustProxy         bool          // Take the client IP from X-Forwarded-For.
}

// Handler manages SSE streaming connections.
type Handler struct {
	feed    *telemetry.Feed
	store   *tle.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(feed *telemetry.Feed, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 30 * time.Second
	}
	return &Handler{
		feed:    feed,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger.With("component", "stream"),
	}
}

// HandleTelemetry serves the SSE telemetry stream.
// GET /api/v1/stream/telemetry
func (h *Handler) HandleTelemetry(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many concurrent streams"})
		return
	}

	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
	)

	c := &client{ip: ip, logger: h.logger}
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "streaming not supported"})
		return
	}

	// Subscribe before writing anything so no frame published meanwhile is lost.
	frames, cancel := h.feed.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Long-lived stream: clear the server's WriteTimeout for this connection.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c.w, c.flusher, c.rc = w, flusher, rc

	// Jittered retry (3-7s) so a restart does not cause a reconnect storm.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if err := c.sendJSON(h.metadata()); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	var lastSeq uint64
	if fr := h.feed.Latest(); fr != nil {
		if err := c.sendJSON(fr); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
			return
		}
		lastSeq = fr.Seq
	}

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case fr, ok := <-frames:
			if !ok {
				return
			}
			if fr.Seq != 0 && fr.Seq <= lastSeq {
				continue
			}
			if err := c.sendJSON(fr); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}
			lastSeq = fr.Seq
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

func (h *Handler) metadata() metadataMessage {
	meta := metadataMessage{
		Type:       "metadata",
		Body:       h.config.Body,
		IntervalMs: h.config.Interval.Milliseconds(),
		TLEAge:     -1,
	}
	if ds := h.store.Get(); ds != nil {
		meta.DatasetEpoch = ds.FetchedAt.UTC().Format(time.RFC3339)
		meta.TLEAge = int(time.Since(ds.FetchedAt).Seconds())
	}
	return meta
}

type metadataMessage struct {
	Type         string `json:"type"`
	Body         string `json:"body"`
	DatasetEpoch string `json:"dataset_epoch,omitempty"`
	TLEAge       int    `json:"tle_age_seconds"`
	IntervalMs   int64  `json:"interval_ms"`
}
