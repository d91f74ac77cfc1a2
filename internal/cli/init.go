// Package cli provides common CLI initialization utilities shared by
// the dosh commands.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"dosh/internal/config"
	"dosh/internal/log"
	"dosh/internal/storage"
)

// SetupLogger initializes structured logging at the given level and format
// ("text" or "json") for one binary and sets it as the default logger.
func SetupLogger(component string, level slog.Level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Format:    format,
	})
	log.SetDefault(logger)
	return logger
}

// SetupStderrLogger is SetupLogger for tools whose stdout carries results.
func SetupStderrLogger(component string, level slog.Level, format string) *log.Logger {
	logger := log.New(log.Config{
		Level:     level,
		Component: component,
		Format:    format,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the SQLite repository at dbPath.
// Returns the repository or exits the process on failure.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository",
			log.FieldError, err,
			"path", dbPath,
			"error_type", log.ErrorTypeDatabase)
		os.Exit(1)
	}
	logger.Info("SQLite repository ready", "path", dbPath)
	return repo
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		cancel()

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}

// Exit closes closers in reverse order and terminates the process with code.
// Deferred calls do not run on os.Exit, so startup failures after a resource
// is opened go through here.
func Exit(logger *log.Logger, code int, closers ...io.Closer) {
	closeAll(logger, closers...)
	os.Exit(code)
}

func closeAll(logger *log.Logger, closers ...io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if closers[i] == nil {
			continue
		}
		if err := closers[i].Close(); err != nil {
			logger.Warn("Close failed during exit", log.FieldError, err)
		}
	}
}
