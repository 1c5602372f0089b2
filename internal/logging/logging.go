// Package logging builds the service's JSON slog logger, writing to stdout or
// to a size-rotated file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration loaded from environment variables.
type Config struct {
	Level      string // debug | info | warn | error (default: info)
	File       string // rotate into this file instead of stdout when set
	MaxSizeMB  int    // rotate after this many MB (default: 64)
	MaxBackups int    // rotated files to keep (default: 5)
	MaxAgeDays int    // days to keep rotated files (default: 14)
	Compress   bool   // gzip rotated files
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
}

// New returns a JSON logger writing to stdout, or to a lumberjack-rotated
// file when cfg.File is set. The returned close function flushes and closes
// the file; it is a no-op for stdout.
func New(cfg Config, stdout io.Writer) (*slog.Logger, func() error, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	w := stdout
	closeFn := func() error { return nil }
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 14),
			Compress:   cfg.Compress,
		}
		w = lj
		closeFn = lj.Close
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
	return logger, closeFn, nil
}

// LogBuildInfo records the platform and module versions at startup.
func LogBuildInfo(logger *slog.Logger) {
	logger.Info("system information",
		slog.String("goarch", runtime.GOARCH),
		slog.String("goos", runtime.GOOS),
		slog.Int("num_cpu", runtime.NumCPU()),
	)

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	deps := make([]any, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		deps = append(deps, slog.String(dep.Path, dep.Version))
	}
	logger.Debug("build",
		slog.String("go_version", bi.GoVersion),
		slog.String("path", bi.Path),
		slog.Group("dependencies", deps...),
	)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
