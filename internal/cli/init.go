// Package cli consolidates initialization shared by cmd/splitlens and
// cmd/splitlens-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"splitlens/internal/config"
	applog "splitlens/internal/log"
)

// SetupLogger initializes structured logging for the given component
// and sets it as the process default. LOG_FORMAT selects the handler
// (text, json or dev).
func SetupLogger(component string) *applog.Logger {
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: component,
		Format:    applog.Format(os.Getenv("LOG_FORMAT")),
	})
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}
