// Satwatchd is the ground station daemon. It refreshes orbital elements,
// predicts passes over the configured station, records pass windows from the
// SDR, and runs detection over the recordings. Clients connect over HTTP and
// WebSocket; shutdown is handled gracefully on SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/satwatch/satwatch/internal/app"
	"github.com/satwatch/satwatch/internal/config"
	"github.com/satwatch/satwatch/internal/logging"
)

func main() {
	var (
		configPath  = pflag.StringP("config", "c", "/etc/satwatch/satwatch.toml", "Path to config TOML")
		bind        = pflag.String("bind", "", "HTTP bind address (overrides config)")
		simulate    = pflag.Bool("simulate", false, "Synthesize IQ data instead of running the capture command")
		showVersion = pflag.BoolP("version", "V", false, "Print version and exit")
	)
	pflag.Parse()

	if *showVersion {
		fmt.Printf("satwatchd %s (%s)\n", app.Version, runtime.Version())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "satwatchd: config load failed: %v\n", err)
		os.Exit(1)
	}
	if *simulate {
		cfg.SDR.Simulate = true
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	a := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Error("satwatchd failed", "error", err)
		os.Exit(1)
	}
}
