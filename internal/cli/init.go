// Package cli provides common CLI initialization utilities shared by
// cmd/financify, cmd/financify-api and cmd/financify-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"financify/internal/backend"
	"financify/internal/config"
	"financify/internal/log"
	"financify/internal/services"
)

// ShutdownTimeout bounds how long servers and loops get to drain.
const ShutdownTimeout = 30 * time.Second

// SetupLogger builds the process logger from LOG_LEVEL and sets it as the
// slog default. An invalid level falls back to info with a warning.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	level, err := config.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{Level: level, Component: component})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", log.FieldError, err.Error())
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig loads configuration and validates it.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadConfig is LoadConfig for the long-running binaries: it writes
// the problems to stderr and exits.
func MustLoadConfig() *config.Config {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend opens the configured store and optional adapters.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger.WithComponent(log.ComponentStorage)).Create(ctx, bcfg)
}

// NewProcessor returns the scheduled report processor, or nil when
// REPORT_INTERVAL disables it.
func NewProcessor(cfg *config.Config, generator services.Generator) *services.ReportProcessor {
	if cfg.ReportInterval <= 0 {
		return nil
	}
	return services.NewReportProcessor(generator, services.ReportProcessorConfig{
		Interval:   cfg.ReportInterval,
		RunOnStart: true,
	})
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM.
func GracefulShutdown(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
