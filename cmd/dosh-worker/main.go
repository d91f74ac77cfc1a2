// Command dosh-worker keeps the Google Sheet export current by listening
// for change events and re-exporting on a timer.
package main

import (
	"context"
	"errors"
	"os"

	"dosh/internal/amqp"
	"dosh/internal/cli"
	"dosh/internal/log"
	"dosh/internal/sheets/google"
	"dosh/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(log.ComponentWorker, cfg.Level(), cfg.LogFormat)

	if err := cfg.ValidateSheets(); err != nil {
		logger.Error("Sheets configuration invalid", log.FieldError, err, "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	if !cfg.EventsEnabled() {
		logger.Error("DOSH_AMQP_URL is required for the worker", "error_type", log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheet, err := google.New(context.Background(), google.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		cli.Exit(logger, 1, repo)
	}

	events, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err, "error_type", log.ErrorTypeNetwork)
		cli.Exit(logger, 1, repo)
	}

	w := worker.NewSheetSync(repo, sheet, worker.Config{
		Debounce: cfg.SyncDebounce,
		Interval: cfg.SyncInterval,
		Logger:   logger,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		if err := events.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	})

	go func() {
		if err := events.ConsumeTransactionEvents(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
			// the timer keeps the sheet fresh without events
			logger.Error("Event consumption stopped", log.FieldError, err, "error_type", log.ErrorTypeNetwork)
		}
	}()

	logger.Info("Starting dosh worker",
		"sheet", cfg.GoogleSheetName,
		"interval", cfg.SyncInterval.String(),
		log.FieldOperation, log.OpStartup)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err)
		cli.Exit(logger, 1, repo, events)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
