package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"

	"ctfd_ip_scan/internal/analysis"
	"ctfd_ip_scan/internal/config"
	"ctfd_ip_scan/internal/logging"
	"ctfd_ip_scan/internal/query"
	"ctfd_ip_scan/internal/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Error().Err(err).Msg("scan failed")
		if errors.Is(err, analysis.ErrNoTeams) {
			fmt.Fprintln(os.Stderr, "No team data loaded. Check the teams export and its delimiter.")
		}
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Load the config, writing defaults when the file is missing
	cfg, created, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if created {
		logging.Info().Str("file", configPath).Msg("default config written, continuing with defaults")
	}

	// 2. Pick the ISP lookup
	var lookup query.ISPLookup = query.DisabledLookup{}
	if cfg.Lookup.Enabled {
		lookup = query.NewIPAPIClient(cfg.Lookup)
		logging.Info().Str("base_url", cfg.Lookup.BaseURL).Dur("interval", cfg.Lookup.Interval).Msg("ISP lookup enabled")
	} else {
		logging.Info().Msg("ISP lookup disabled")
	}

	// 3. Run until done or interrupted
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := runner.New(cfg, lookup, os.Stdout).Run(ctx)
	if err != nil {
		return err
	}

	// 4. Report
	logging.Info().
		Str("flagged", humanize.Comma(int64(len(summary.Rows)))).
		Int("warnings", len(summary.Warnings)).
		Str("report", summary.ReportPath).
		Msg("scan complete")
	fmt.Printf("Results exported to %s\n", summary.ReportPath)
	return nil
}
