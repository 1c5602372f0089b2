// Command orbitdash serves a live dashboard of one Earth-orbiting body: its
// current sub-satellite point and a trailing altitude and ground-track chart,
// pushed to the browser once per tick.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"

	"github.com/star/orbitdash/internal/api"
	"github.com/star/orbitdash/internal/logging"
	"github.com/star/orbitdash/internal/metrics"
	"github.com/star/orbitdash/internal/observability"
	"github.com/star/orbitdash/internal/propagation"
	"github.com/star/orbitdash/internal/schedule"
	"github.com/star/orbitdash/internal/stream"
	"github.com/star/orbitdash/internal/telemetry"
	"github.com/star/orbitdash/internal/tle"
	"github.com/star/orbitdash/web"
)

func main() {
	logger, closeLog, err := logging.New(loadLogConfig(), os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "orbitdash: invalid logging configuration:", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(logger); err != nil {
		logger.Error("orbitdash exited", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	logging.LogBuildInfo(logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, loadTracingConfig(logger), logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	appCfg := loadAppConfig(logger)
	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		return fmt.Errorf("invalid auth configuration: %w", err)
	}
	tleCfg := loadTLEConfig(logger)
	propCfg := loadPropConfig(logger)
	telCfg, err := loadTelemetryConfig(logger, appCfg.Body)
	if err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	interval := loadSchedulerInterval(logger)
	streamCfg := loadStreamConfig(logger, appCfg.Body, interval, appCfg.TrustProxy)

	store := tle.NewStore()
	fetcher := tle.NewFetcher(tleCfg.SourceURL, logger, tleCfg.ExtraSourceURLs...)
	refresher := tle.NewRefresher(store, fetcher, tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles), tleCfg.MaxAge, logger)

	registry, err := propagation.NewRegistry(store, propCfg, logger)
	if err != nil {
		return fmt.Errorf("create sampler registry: %w", err)
	}

	poller := telemetry.NewPoller(registry.Sampler(appCfg.Body), telCfg, logger)
	feed := telemetry.NewFeed()

	// A new element set invalidates the rolling history.
	refresher.OnUpdate(func(*tle.TLEDataset) { poller.ResetHistory() })

	if err := refresher.LoadCached(); err != nil {
		logger.Info("no usable TLE cache, starting without TLE data", "error", err)
	}

	sched := schedule.New(interval, logger)
	sched.Subscribe(func(ctx context.Context, tick schedule.Tick) {
		feed.Publish(poller.Tick(ctx, tick.Seq, tick.Time))
	})

	deps := api.Deps{
		Store:      store,
		Registry:   registry,
		Telemetry:  telCfg,
		Stream:     stream.NewHandler(feed, store, streamCfg, logger),
		Web:        web.Content,
		Auth:       authCfg,
		TLE:        tleCfg,
		TrustProxy: appCfg.TrustProxy,
	}
	if tleCfg.EnableFetch {
		deps.Refresher = refresher
	}
	srv := api.NewServer(appCfg.Addr, logger, deps)

	g, gctx := errgroup.WithContext(ctx)

	// Request contexts derive from gctx so open streams end on shutdown.
	srv.HTTPServer().BaseContext = func(net.Listener) context.Context { return gctx }

	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	if tleCfg.EnableFetch {
		g.Go(func() error {
			refresher.Run(gctx)
			return nil
		})
	} else if store.Get() != nil {
		metrics.SetTLEDatasetAge(store.AgeSeconds())
	}

	g.Go(func() error {
		logger.Info("starting server",
			"addr", appCfg.Addr,
			"auth_enabled", authCfg.Enabled,
			"tle_fetch_enabled", tleCfg.EnableFetch,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if appCfg.OpenBrowser {
		go openDashboard(gctx, dashboardURL(appCfg.Addr), logger)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// openDashboard waits briefly for the listener before launching the browser.
func openDashboard(ctx context.Context, url string, logger *slog.Logger) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(time.Second):
	}
	if err := browser.OpenURL(url); err != nil {
		logger.Warn("could not open browser", "url", url, "error", err)
	}
}

// dashboardURL maps a listen address to a URL a local browser can open.
func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return "http://" + host + ":" + port + "/"
}
