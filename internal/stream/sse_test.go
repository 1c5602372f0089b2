package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/star/orbitdash/internal/telemetry"
	"github.com/star/orbitdash/internal/tle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func testStore() *tle.Store {
	store := tle.NewStore()
	store.Set(&tle.TLEDataset{
		Source:    "test",
		FetchedAt: time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC),
		Satellites: []tle.TLEEntry{
			{NORADID: 25994, Name: "TERRA"},
		},
	})
	return store
}

func testConfig() Config {
	return Config{
		Body:               "TERRA",
		Interval:           time.Second,
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}
}

func frame(seq uint64) *telemetry.Frame {
	return &telemetry.Frame{
		Type: telemetry.FrameTelemetry,
		Seq:  seq,
		Time: time.Unix(int64(1000+seq), 0).UTC(),
		Body: "TERRA",
	}
}

// serve runs the handler until timeout and returns the decoded data
// messages in order plus the raw body.
func serve(t *testing.T, h *Handler, timeout time.Duration, during func()) ([]map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()
	req = req.WithContext(ctx)

	if during != nil {
		go during()
	}
	w := httptest.NewRecorder()
	h.HandleTelemetry(w, req)

	var msgs []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var msg map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &msg); err != nil {
			t.Errorf("invalid JSON in SSE data line: %v", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, w
}

func TestSSEMessageFormat(t *testing.T) {
	feed := telemetry.NewFeed()
	feed.Publish(frame(1))
	h := NewHandler(feed, testStore(), testConfig(), testLogger())

	msgs, w := serve(t, h, 200*time.Millisecond, nil)

	resp := w.Result()
	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", resp.Header.Get("Content-Type"))
	}
	if resp.Header.Get("Cache-Control") != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", resp.Header.Get("Cache-Control"))
	}

	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want metadata + latest frame", len(msgs))
	}
	meta := msgs[0]
	if meta["type"] != "metadata" || meta["body"] != "TERRA" {
		t.Errorf("metadata = %v", meta)
	}
	if meta["dataset_epoch"] != "2026-10-19T09:30:00Z" {
		t.Errorf("dataset_epoch = %v", meta["dataset_epoch"])
	}
	if meta["interval_ms"].(float64) != 1000 {
		t.Errorf("interval_ms = %v", meta["interval_ms"])
	}
	if msgs[1]["type"] != "telemetry" || msgs[1]["seq"].(float64) != 1 {
		t.Errorf("latest frame = %v", msgs[1])
	}

	for _, line := range strings.Split(w.Body.String(), "\n") {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "retry: ") && line != ":" {
			t.Errorf("unexpected SSE line: %q", line)
		}
	}
}

func TestSSEStreamsPublishedFrames(t *testing.T) {
	feed := telemetry.NewFeed()
	h := NewHandler(feed, testStore(), testConfig(), testLogger())

	msgs, _ := serve(t, h, 500*time.Millisecond, func() {
		for feed.Subscribers() == 0 {
			time.Sleep(time.Millisecond)
		}
		feed.Publish(frame(1))
		time.Sleep(50 * time.Millisecond)
		feed.Publish(frame(2))
	})

	var seqs []float64
	for _, m := range msgs {
		if m["type"] == "telemetry" {
			seqs = append(seqs, m["seq"].(float64))
		}
	}
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Errorf("streamed seqs = %v, want [1 2]", seqs)
	}
}

func TestSSEMetadataWithoutDataset(t *testing.T) {
	h := NewHandler(telemetry.NewFeed(), tle.NewStore(), testConfig(), testLogger())
	msgs, _ := serve(t, h, 100*time.Millisecond, nil)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want only metadata", len(msgs))
	}
	if _, ok := msgs[0]["dataset_epoch"]; ok {
		t.Error("metadata carries a dataset epoch before any dataset loaded")
	}
	if msgs[0]["tle_age_seconds"].(float64) != -1 {
		t.Errorf("tle_age_seconds = %v, want -1", msgs[0]["tle_age_seconds"])
	}
}

func TestSSEKeepalive(t *testing.T) {
	cfg := testConfig()
	cfg.KeepaliveInterval = 20 * time.Millisecond
	h := NewHandler(telemetry.NewFeed(), testStore(), cfg, testLogger())

	_, w := serve(t, h, 150*time.Millisecond, nil)
	if !strings.Contains(w.Body.String(), "\n:\n\n") {
		t.Errorf("no keep-alive comment in %q", w.Body.String())
	}
}

func TestRateLimiting(t *testing.T) {
	limiter := newStreamLimiter(3, 0)

	for i := 0; i < 3; i++ {
		if !limiter.acquire("10.0.0.1") {
			t.Fatalf("acquire %d should succeed", i+1)
		}
	}
	if limiter.acquire("10.0.0.1") {
		t.Error("acquire beyond limit should fail")
	}
	if !limiter.acquire("10.0.0.2") {
		t.Error("different IP should not be rate limited")
	}

	limiter.release("10.0.0.1")
	if !limiter.acquire("10.0.0.1") {
		t.Error("acquire after release should succeed")
	}

	if c := limiter.count("10.0.0.1"); c != 3 {
		t.Errorf("count = %d, want 3", c)
	}
	if c := limiter.count("10.0.0.2"); c != 1 {
		t.Errorf("count = %d, want 1", c)
	}
}

func TestRateLimitingGlobalCap(t *testing.T) {
	limiter := newStreamLimiter(10, 2)
	limiter.acquire("10.0.0.1")
	limiter.acquire("10.0.0.2")
	if limiter.acquire("10.0.0.3") {
		t.Error("acquire beyond global cap should fail")
	}
}

func TestRateLimitingConcurrent(t *testing.T) {
	limiter := newStreamLimiter(100, 0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.acquire("10.0.0.1") {
				defer limiter.release("10.0.0.1")
				time.Sleep(10 * time.Millisecond)
			}
		}()
	}
	wg.Wait()

	if c := limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("count after all released = %d, want 0", c)
	}
}

func TestRateLimitHTTPResponse(t *testing.T) {
	feed := telemetry.NewFeed()
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	h := NewHandler(feed, testStore(), cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil).WithContext(ctx)
		req.RemoteAddr = "10.0.0.1:12345"
		h.HandleTelemetry(httptest.NewRecorder(), req)
	}()

	// The first stream subscribes once it holds its limiter slot.
	for feed.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	h.HandleTelemetry(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	cancel()
	<-done
	if c := h.limiter.count("10.0.0.1"); c != 0 {
		t.Errorf("slot not released after disconnect: count = %d", c)
	}
}

func TestTrustProxyKeysLimiterByForwardedIP(t *testing.T) {
	feed := telemetry.NewFeed()
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	cfg.TrustProxy = true
	h := NewHandler(feed, testStore(), cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil).WithContext(ctx)
		req.RemoteAddr = "10.0.0.1:1"
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		h.HandleTelemetry(httptest.NewRecorder(), req)
	}()
	for feed.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	// Same proxy, different client: not limited.
	req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil)
	req.RemoteAddr = "10.0.0.1:2"
	req.Header.Set("X-Forwarded-For", "203.0.113.8")
	reqCtx, reqCancel := context.WithTimeout(req.Context(), 50*time.Millisecond)
	defer reqCancel()
	w := httptest.NewRecorder()
	h.HandleTelemetry(w, req.WithContext(reqCtx))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	cancel()
	<-done
}

func TestTrustProxyIgnoresMalformedForwardedFor(t *testing.T) {
	feed := telemetry.NewFeed()
	cfg := testConfig()
	cfg.MaxConcurrentPerIP = 1
	cfg.TrustProxy = true
	h := NewHandler(feed, testStore(), cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil).WithContext(ctx)
		req.RemoteAddr = "10.0.0.1:1"
		req.Header.Set("X-Forwarded-For", "client-a")
		h.HandleTelemetry(httptest.NewRecorder(), req)
	}()
	for feed.Subscribers() == 0 {
		time.Sleep(time.Millisecond)
	}

	// A different junk value must not buy a fresh limiter slot.
	req := httptest.NewRequest("GET", "/api/v1/stream/telemetry", nil)
	req.RemoteAddr = "10.0.0.1:2"
	req.Header.Set("X-Forwarded-For", "client-b")
	w := httptest.NewRecorder()
	h.HandleTelemetry(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	cancel()
	<-done
}
