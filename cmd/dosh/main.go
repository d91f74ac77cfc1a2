package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"dosh/internal/actions"
	"dosh/internal/amqp"
	"dosh/internal/cli"
	apphttp "dosh/internal/http"
	"dosh/internal/log"
	"dosh/internal/present"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(log.ComponentApp, cfg.Level(), cfg.LogFormat)
	if f := cfg.File(); f != "" {
		logger.Info("Configuration file loaded", "path", f)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	renderer, err := present.NewRenderer(present.Currency(cfg.CurrencySymbol))
	if err != nil {
		logger.Error("Failed to parse templates", log.FieldError, err, "error_type", log.ErrorTypeConfiguration)
		cli.Exit(logger, 1, repo)
	}

	dcfg := actions.Config{
		TopCategories: cfg.TopCategories,
		PageSize:      cfg.PageSize,
		ListCacheTTL:  cfg.ListCacheTTL,
		Logger:        logger,
	}

	var events *amqp.Client
	if cfg.EventsEnabled() {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			logger.Warn("AMQP unavailable, change events disabled",
				log.FieldError, err,
				"error_type", log.ErrorTypeNetwork)
		} else {
			dcfg.Events = events
			logger.Info("Publishing change events", "exchange", cfg.AMQPExchange, "routing_key", cfg.AMQPRoutingKey)
		}
	}

	dispatcher := actions.NewDispatcher(repo, renderer, dcfg)
	srv := apphttp.NewServer(":"+cfg.Port, dispatcher, repo, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting dosh server", "port", cfg.Port, log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		closers := []io.Closer{repo}
		if events != nil {
			closers = append(closers, events)
		}
		cli.Exit(logger, 1, closers...)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
