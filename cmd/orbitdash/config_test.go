package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/star/orbitdash/internal/telemetry"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg := loadAppConfig(testLogger)
	if cfg.Addr != ":8050" || cfg.Body != "TERRA" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.OpenBrowser {
		t.Error("browser should not open by default")
	}
}

func TestLoadAppConfigOverrides(t *testing.T) {
	t.Setenv("ORBITDASH_HTTP_ADDR", "127.0.0.1:9000")
	t.Setenv("ORBITDASH_BODY", " iss (zarya) ")
	t.Setenv("ORBITDASH_OPEN_BROWSER", "true")
	t.Setenv("ORBITDASH_TRUST_PROXY", "nope")

	cfg := loadAppConfig(testLogger)
	if cfg.Addr != "127.0.0.1:9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.Body != "ISS (ZARYA)" {
		t.Errorf("Body = %q", cfg.Body)
	}
	if !cfg.OpenBrowser {
		t.Error("OpenBrowser = false")
	}
	if cfg.TrustProxy {
		t.Error("invalid boolean should fall back to false")
	}
}

func TestLoadAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		enabled string
		token   string
		wantErr bool
	}{
		{"disabled by default", "", "", false},
		{"enabled with token", "true", "secret", false},
		{"enabled without token", "true", "", true},
		{"not a boolean", "yes please", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ORBITDASH_AUTH_ENABLED", tt.enabled)
			t.Setenv("ORBITDASH_AUTH_TOKEN", tt.token)
			cfg, err := loadAuthConfig(testLogger)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && cfg.Enabled && cfg.Token != tt.token {
				t.Errorf("Token = %q", cfg.Token)
			}
		})
	}
}

func TestLoadTLEConfig(t *testing.T) {
	cfg := loadTLEConfig(testLogger)
	if !cfg.EnableFetch || cfg.MaxAge != 24*time.Hour || len(cfg.ExtraSourceURLs) != 1 {
		t.Errorf("defaults = %+v", cfg)
	}

	t.Setenv("ORBITDASH_ENABLE_TLE_FETCH", "false")
	t.Setenv("ORBITDASH_TLE_EXTRA_URLS", "")
	t.Setenv("ORBITDASH_TLE_MAX_AGE", "3600")
	t.Setenv("ORBITDASH_TLE_MAX_FILES", "-2")

	cfg = loadTLEConfig(testLogger)
	if cfg.EnableFetch {
		t.Error("EnableFetch = true")
	}
	if len(cfg.ExtraSourceURLs) != 0 {
		t.Errorf("ExtraSourceURLs = %v, want none", cfg.ExtraSourceURLs)
	}
	if cfg.MaxAge != time.Hour {
		t.Errorf("MaxAge = %v", cfg.MaxAge)
	}
	if cfg.MaxFiles != 5 {
		t.Errorf("MaxFiles = %d, want default 5", cfg.MaxFiles)
	}
}

func TestLoadTelemetryConfig(t *testing.T) {
	t.Setenv("ORBITDASH_SERIES_COUNT", "60")
	t.Setenv("ORBITDASH_SERIES_STEP", "5")
	t.Setenv("ORBITDASH_SERIES_MODE", "ROLLING")

	cfg, err := loadTelemetryConfig(testLogger, "TERRA")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Count != 60 || cfg.Step != 5*time.Second || cfg.Mode != telemetry.ModeRolling {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("ORBITDASH_SERIES_MODE", "sideways")
	t.Setenv("ORBITDASH_SERIES_COUNT", "zero")
	cfg, err = loadTelemetryConfig(testLogger, "TERRA")
	if err != nil {
		t.Fatalf("fallback values should validate: %v", err)
	}
	if cfg.Mode != telemetry.ModeSynthetic || cfg.Count != telemetry.DefaultCount {
		t.Errorf("invalid values did not fall back: %+v", cfg)
	}
}

func TestLoadTelemetryConfigRejectsEmptyBody(t *testing.T) {
	if _, err := loadTelemetryConfig(testLogger, ""); !errors.Is(err, telemetry.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadPropConfig(t *testing.T) {
	cfg := loadPropConfig(testLogger)
	if cfg.MaxElementAge != 30*24*time.Hour {
		t.Errorf("MaxElementAge = %v", cfg.MaxElementAge)
	}

	t.Setenv("ORBITDASH_MAX_ELEMENT_AGE", "0")
	if cfg := loadPropConfig(testLogger); cfg.MaxElementAge != 0 {
		t.Errorf("zero should disable the age check, got %v", cfg.MaxElementAge)
	}
}

func TestLoadSchedulerInterval(t *testing.T) {
	if got := loadSchedulerInterval(testLogger); got != time.Second {
		t.Errorf("default = %v", got)
	}
	t.Setenv("ORBITDASH_TICK_INTERVAL_MS", "250")
	if got := loadSchedulerInterval(testLogger); got != 250*time.Millisecond {
		t.Errorf("override = %v", got)
	}
	t.Setenv("ORBITDASH_TICK_INTERVAL_MS", "-1")
	if got := loadSchedulerInterval(testLogger); got != time.Second {
		t.Errorf("invalid = %v, want default", got)
	}
}

func TestLoadTracingConfig(t *testing.T) {
	t.Setenv("ORBITDASH_TRACING_ENABLED", "1")
	t.Setenv("ORBITDASH_TRACING_EXPORTER", "otlp")
	t.Setenv("ORBITDASH_TRACING_SAMPLE_RATIO", "2")

	cfg := loadTracingConfig(testLogger)
	if !cfg.Enabled || cfg.Exporter != "otlp" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SampleRatio != 1 {
		t.Errorf("out-of-range ratio should fall back to 1, got %v", cfg.SampleRatio)
	}
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		addr, want string
	}{
		{":8050", "http://localhost:8050/"},
		{"0.0.0.0:8050", "http://localhost:8050/"},
		{"127.0.0.1:9000", "http://127.0.0.1:9000/"},
		{"[::1]:8050", "http://[::1]:8050/"},
	}
	for _, tt := range tests {
		if got := dashboardURL(tt.addr); got != tt.want {
			t.Errorf("dashboardURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
