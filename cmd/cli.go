package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mavrika/mavrika/internal/app"
	"github.com/mavrika/mavrika/internal/config"
	"github.com/mavrika/mavrika/internal/log"
)

var (
	flagVerbose  bool
	flagJSONLogs bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "emit logs as JSON")
}

// setup loads configuration, builds the logger, and wires the application.
// The caller must Close the returned App.
func setup(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: flagJSONLogs})

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
