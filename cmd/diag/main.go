// Command diag loads a TLE file (or downloads one), then prints the current
// readout and a short trailing series for one body, cross-checking the
// pipeline without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/star/orbitdash/internal/propagation"
	"github.com/star/orbitdash/internal/telemetry"
	"github.com/star/orbitdash/internal/tle"
)

func main() {
	file := flag.String("tle", "", "read TLE data from this file instead of downloading")
	body := flag.String("body", "TERRA", "body name or NORAD ID")
	count := flag.Int("count", 10, "series points to print")
	step := flag.Duration("step", 20*time.Second, "series spacing")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store := tle.NewStore()
	refresher := tle.NewRefresher(store, tle.NewFetcher("", logger), nil, 0, logger)

	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			fmt.Println("ERROR reading TLE file:", err)
			os.Exit(1)
		}
		entries, err := tle.Parse(f, logger)
		f.Close()
		if err != nil {
			fmt.Println("ERROR parsing TLE:", err)
			os.Exit(1)
		}
		store.Set(tle.NewDataset("file", time.Now(), entries))
	} else if _, err := refresher.Refresh(ctx); err != nil {
		fmt.Println("ERROR fetching TLE:", err)
		os.Exit(1)
	}

	ds := store.Get()
	fmt.Printf("Loaded %d TLE entries (%s)\n", len(ds.Satellites), ds.Source)
	entry, ok := ds.Find(*body)
	if !ok {
		fmt.Printf("ERROR: %s not in dataset\n", *body)
		os.Exit(1)
	}
	fmt.Printf("Body: %s (NORAD %d) epoch %v\n", entry.Name, entry.NORADID, entry.Epoch.Format(time.RFC3339))

	sampler := propagation.NewSampler(store, *body, propagation.Config{}, logger)
	cfg := telemetry.DefaultConfig(entry.Name)
	cfg.Count, cfg.Step = *count, *step
	poller := telemetry.NewPoller(sampler, cfg, logger)

	snap, err := poller.SampleCurrent(ctx)
	if err != nil {
		fmt.Println("ERROR sampling:", err)
		os.Exit(1)
	}
	fmt.Printf("Now: %s  %s  %s  ground speed %.3f km/s\n",
		snap.LongitudeText, snap.LatitudeText, snap.AltitudeText, snap.GroundSpeed)

	series, err := poller.BuildSeries(ctx, *count, *step)
	if err != nil {
		fmt.Println("ERROR building series:", err)
		os.Exit(1)
	}
	for _, s := range series.Samples {
		fmt.Printf("  %s  lon=%8.3f lat=%7.3f alt=%8.2f km\n",
			s.Time.UTC().Format(time.RFC3339), s.Longitude, s.Latitude, s.Altitude)
	}
}
