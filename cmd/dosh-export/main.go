// Command dosh-export copies filtered transactions into a Google Sheet.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dosh/internal/cli"
	"dosh/internal/config"
	"dosh/internal/core"
	"dosh/internal/filter"
	"dosh/internal/log"
	"dosh/internal/sheets"
	"dosh/internal/sheets/google"
	"dosh/internal/sheets/memory"
)

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()

	var (
		category     = flag.String("category", "", "category prefix")
		account      = flag.String("account", "", "account name")
		group        = flag.String("group", "", "account group")
		dateRange    = flag.String("range", "", `date range shorthand, e.g. "-1 month" or "start of year"`)
		expensesOnly = flag.Bool("expenses-only", false, "export debits only")
		dryRun       = flag.Bool("dry-run", false, "write CSV to stdout instead of the sheet")
		db           = flag.String("db", cfg.SQLiteDBPath, "SQLite database path")
		verbose      = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := cfg.Level()
	if *verbose {
		level = slog.LevelDebug
	}
	logger := cli.SetupStderrLogger(log.ComponentSheets, level, cfg.LogFormat)

	rng, err := filter.Parse(*dateRange, core.AllTransactions)
	if err != nil {
		logger.Error("Invalid date range", "range", *dateRange, log.FieldError, err)
		os.Exit(2)
	}
	f := filter.Filter{
		Category:     *category,
		Account:      *account,
		Group:        *group,
		Range:        rng,
		ExpensesOnly: *expensesOnly,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var exp sheets.Exporter
	if *dryRun {
		exp = memory.NewWriter(os.Stdout)
	} else {
		if err := cfg.ValidateSheets(); err != nil {
			logger.Error("Sheets configuration invalid", log.FieldError, err, "error_type", log.ErrorTypeConfiguration)
			os.Exit(1)
		}
		client, err := google.New(ctx, google.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			CredentialsFile: cfg.GoogleCredentialsFile,
			OAuthClientFile: cfg.GoogleOAuthClientFile,
			OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exp = client
	}

	repo := cli.InitSQLite(logger, *db)
	defer repo.Close()

	n, err := sheets.ExportFiltered(ctx, repo, exp, f)
	if err != nil {
		logger.Error("Export failed", log.FieldError, err, log.FieldOperation, log.OpExport)
		cancel()
		cli.Exit(logger, 1, repo)
	}
	if !*dryRun {
		fmt.Printf("%d transactions exported to %q\n", n, cfg.GoogleSheetName)
	}
}
