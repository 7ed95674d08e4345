// Command navkeeper drives a browser tab with intercepted navigation and
// per-entry scroll restoration.
//
// Usage:
//
//	navkeeper -config navkeeper.yaml        # full session from YAML config
//	navkeeper -url http://localhost:8080/   # quick session with defaults
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/navkeeper/session"
)

func main() {
	configPath := flag.String("config", "", "path to navkeeper.yaml config file")
	singleURL := flag.String("url", "", "drive a single URL with default settings")
	headful := flag.Bool("headful", false, "run Chrome with a visible window")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *headful); err != nil {
		logger.Error("navkeeper: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL string, headful bool) error {
	var cfg *session.Config

	switch {
	case configPath != "":
		loaded, err := session.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	case singleURL != "":
		cfg = session.Default(singleURL)
	default:
		fmt.Fprintln(os.Stderr, "usage: navkeeper -config <file> | -url <url>")
		os.Exit(1)
	}
	cfg.Browser.Headful = cfg.Browser.Headful || headful

	s := session.New(cfg, session.WithLogger(logger))
	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	s.Stop()
	return nil
}
