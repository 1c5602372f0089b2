package main

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/star/orbitdash/internal/api"
	"github.com/star/orbitdash/internal/auth"
	"github.com/star/orbitdash/internal/logging"
	"github.com/star/orbitdash/internal/observability"
	"github.com/star/orbitdash/internal/propagation"
	"github.com/star/orbitdash/internal/schedule"
	"github.com/star/orbitdash/internal/stream"
	"github.com/star/orbitdash/internal/telemetry"
)

const (
	defaultAddr = ":8050"
	defaultBody = "TERRA"

	// ISS (NORAD 25544) rides along with the resource group so the dataset
	// always carries a well-documented reference body.
	issSourceURL = "https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle"
)

// appConfig is everything main needs that is not owned by a single package.
type appConfig struct {
	Addr        string
	Body        string
	TrustProxy  bool
	OpenBrowser bool
}

func loadAppConfig(logger *slog.Logger) appConfig {
	cfg := appConfig{
		Addr: defaultAddr,
		Body: defaultBody,
	}

	if v := os.Getenv("ORBITDASH_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv("ORBITDASH_BODY")); v != "" {
		cfg.Body = strings.ToUpper(v)
	}
	cfg.TrustProxy = envBool(logger, "ORBITDASH_TRUST_PROXY", false)
	cfg.OpenBrowser = envBool(logger, "ORBITDASH_OPEN_BROWSER", false)

	logger.Info("app config",
		"addr", cfg.Addr,
		"body", cfg.Body,
		"trust_proxy", cfg.TrustProxy,
		"open_browser", cfg.OpenBrowser,
	)
	return cfg
}

// loadLogConfig runs before a logger exists, so bad numeric values fall back
// to the logging package defaults silently.
func loadLogConfig() logging.Config {
	cfg := logging.Config{
		Level: os.Getenv("ORBITDASH_LOG_LEVEL"),
		File:  os.Getenv("ORBITDASH_LOG_FILE"),
	}
	if n, err := strconv.Atoi(os.Getenv("ORBITDASH_LOG_MAX_SIZE_MB")); err == nil {
		cfg.MaxSizeMB = n
	}
	if n, err := strconv.Atoi(os.Getenv("ORBITDASH_LOG_MAX_BACKUPS")); err == nil {
		cfg.MaxBackups = n
	}
	if n, err := strconv.Atoi(os.Getenv("ORBITDASH_LOG_MAX_AGE_DAYS")); err == nil {
		cfg.MaxAgeDays = n
	}
	if b, err := strconv.ParseBool(os.Getenv("ORBITDASH_LOG_COMPRESS")); err == nil {
		cfg.Compress = b
	}
	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("ORBITDASH_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("ORBITDASH_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ORBITDASH_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ORBITDASH_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadTLEConfig(logger *slog.Logger) api.TLEConfig {
	cfg := api.TLEConfig{
		EnableFetch:     true,
		CacheDir:        "/tmp/orbitdash/tle",
		MaxFiles:        5,
		MaxAge:          24 * time.Hour,
		ExtraSourceURLs: []string{issSourceURL},
	}

	cfg.EnableFetch = envBool(logger, "ORBITDASH_ENABLE_TLE_FETCH", cfg.EnableFetch)

	if v := os.Getenv("ORBITDASH_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v, ok := os.LookupEnv("ORBITDASH_TLE_EXTRA_URLS"); ok {
		var urls []string
		for _, u := range strings.Split(v, ",") {
			u = strings.TrimSpace(u)
			if u != "" {
				urls = append(urls, u)
			}
		}
		cfg.ExtraSourceURLs = urls
	}

	if v := os.Getenv("ORBITDASH_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	cfg.MaxFiles = envPositiveInt(logger, "ORBITDASH_TLE_MAX_FILES", cfg.MaxFiles)
	cfg.MaxAge = envSeconds(logger, "ORBITDASH_TLE_MAX_AGE", cfg.MaxAge)

	logger.Info("TLE config",
		"fetch_enabled", cfg.EnableFetch,
		"source_url", cfg.SourceURL,
		"extra_urls", cfg.ExtraSourceURLs,
		"cache_dir", cfg.CacheDir,
		"max_age_seconds", cfg.MaxAge.Seconds(),
	)
	return cfg
}

func loadPropConfig(logger *slog.Logger) propagation.Config {
	cfg := propagation.Config{
		MaxElementAge: 30 * 24 * time.Hour,
		RegistrySize:  32,
	}

	if v := os.Getenv("ORBITDASH_MAX_ELEMENT_AGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid ORBITDASH_MAX_ELEMENT_AGE value, using default", "value", v, "default", cfg.MaxElementAge.Seconds())
		} else {
			cfg.MaxElementAge = time.Duration(n) * time.Second
		}
	}
	cfg.RegistrySize = envPositiveInt(logger, "ORBITDASH_SAMPLER_CACHE_SIZE", cfg.RegistrySize)

	logger.Info("propagation config",
		"max_element_age_seconds", cfg.MaxElementAge.Seconds(),
		"registry_size", cfg.RegistrySize,
	)
	return cfg
}

// loadTelemetryConfig returns the poller configuration, validated so a bad
// combination fails at startup rather than on every tick.
func loadTelemetryConfig(logger *slog.Logger, body string) (telemetry.Config, error) {
	cfg := telemetry.DefaultConfig(body)

	cfg.Count = envPositiveInt(logger, "ORBITDASH_SERIES_COUNT", cfg.Count)
	cfg.Step = envSeconds(logger, "ORBITDASH_SERIES_STEP", cfg.Step)
	cfg.Workers = envPositiveInt(logger, "ORBITDASH_SERIES_WORKERS", cfg.Workers)

	if v := os.Getenv("ORBITDASH_SERIES_MODE"); v != "" {
		switch mode := strings.ToLower(v); mode {
		case telemetry.ModeSynthetic, telemetry.ModeRolling:
			cfg.Mode = mode
		default:
			logger.Warn("invalid ORBITDASH_SERIES_MODE value, using default", "value", v, "default", cfg.Mode)
		}
	}

	logger.Info("telemetry config",
		"body", cfg.Body,
		"count", cfg.Count,
		"step_seconds", cfg.Step.Seconds(),
		"workers", cfg.Workers,
		"mode", cfg.Mode,
	)
	return cfg, cfg.Validate()
}

func loadSchedulerInterval(logger *slog.Logger) time.Duration {
	interval := schedule.DefaultInterval
	if v := os.Getenv("ORBITDASH_TICK_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORBITDASH_TICK_INTERVAL_MS value, using default", "value", v, "default", interval.Milliseconds())
		} else {
			interval = time.Duration(n) * time.Millisecond
		}
	}
	logger.Info("scheduler config", "interval_ms", interval.Milliseconds())
	return interval
}

func loadStreamConfig(logger *slog.Logger, body string, interval time.Duration, trustProxy bool) stream.Config {
	cfg := stream.Config{
		Body:               body,
		Interval:           interval,
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		KeepaliveInterval:  30 * time.Second,
		TrustProxy:         trustProxy,
	}

	cfg.MaxConcurrentPerIP = envPositiveInt(logger, "ORBITDASH_STREAM_MAX_CONCURRENT", cfg.MaxConcurrentPerIP)
	cfg.MaxTotal = envPositiveInt(logger, "ORBITDASH_STREAM_MAX_TOTAL", cfg.MaxTotal)
	cfg.KeepaliveInterval = envSeconds(logger, "ORBITDASH_STREAM_KEEPALIVE_INTERVAL", cfg.KeepaliveInterval)

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
	)
	return cfg
}

func loadTracingConfig(logger *slog.Logger) observability.TracingConfig {
	cfg := observability.TracingConfig{
		ServiceName: "orbitdash",
		Exporter:    "stdout",
		SampleRatio: 1,
	}

	cfg.Enabled = envBool(logger, "ORBITDASH_TRACING_ENABLED", false)
	if v := os.Getenv("ORBITDASH_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("ORBITDASH_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = v
	}
	cfg.Endpoint = os.Getenv("ORBITDASH_TRACING_ENDPOINT")

	if v := os.Getenv("ORBITDASH_TRACING_SAMPLE_RATIO"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r < 0 || r > 1 {
			logger.Warn("invalid ORBITDASH_TRACING_SAMPLE_RATIO value, using default", "value", v, "default", cfg.SampleRatio)
		} else {
			cfg.SampleRatio = r
		}
	}
	return cfg
}

func envBool(logger *slog.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid boolean value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func envPositiveInt(logger *slog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid integer value, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envSeconds reads a whole number of seconds.
func envSeconds(logger *slog.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid seconds value, using default", "key", key, "value", v, "default", def.Seconds())
		return def
	}
	return time.Duration(n) * time.Second
}
