package main

import (
	"io"
	"log/slog"

	"mutcompact/pkg/config"
)

// initConfig loads the YAML config, config.Default() when the file does
// not exist.
func initConfig(path string) (config.Config, error) {
	return config.Load(path)
}

// initLogger sets the global slog.Logger, JSON or text.
func initLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true, Level: cfg.Logger.SlogLevel()}

	var handler slog.Handler
	if cfg.Logger.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)
	return logger
}
