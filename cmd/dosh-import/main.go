// Command dosh-import loads bank statements into the dosh database and runs
// maintenance over stored transactions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"dosh/internal/cli"
	"dosh/internal/config"
	"dosh/internal/importer"
	"dosh/internal/log"
	"dosh/internal/present"
	"dosh/internal/storage"
)

type options struct {
	globs     map[importer.Format]*string
	rules     string
	db        string
	testMatch bool
	dups      bool
	fuzzy     float64
	rehash    bool
	verbose   bool
}

func parseFlags(cfg *config.Config) options {
	opts := options{globs: make(map[importer.Format]*string)}
	for _, f := range importer.Formats() {
		opts.globs[f] = flag.String(string(f), "", fmt.Sprintf("glob of %s statements to import", f))
	}
	flag.StringVar(&opts.rules, "rules", cfg.RulesFile, "categorisation rules file (toml, yaml or json)")
	flag.StringVar(&opts.db, "db", cfg.SQLiteDBPath, "SQLite database path")
	flag.BoolVar(&opts.testMatch, "testmatch", false, "categorise without storing and print unmatched transactions")
	flag.BoolVar(&opts.dups, "dups", false, "print delete statements for likely duplicate transactions")
	flag.Float64Var(&opts.fuzzy, "fuzzy", 0, "with -dups, treat descriptions within this edit distance ratio as equal")
	flag.BoolVar(&opts.rehash, "rehash", false, "recompute the fingerprint of every stored transaction")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Parse()
	return opts
}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	opts := parseFlags(cfg)

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := cli.SetupStderrLogger(log.ComponentImporter, level, cfg.LogFormat)

	if err := run(context.Background(), opts, logger); err != nil {
		logger.Error("Import failed", log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *log.Logger) error {
	var rules *importer.RuleSet
	if opts.rules != "" {
		rs, err := importer.LoadRules(opts.rules)
		if err != nil {
			return err
		}
		rules = rs
		logger.Debug("Rules loaded", "path", opts.rules, log.FieldCount, rs.Len())
	}

	var sources []importer.Source
	for _, f := range importer.Formats() {
		found, err := importer.ExpandSources(*opts.globs[f], f)
		if err != nil {
			return err
		}
		if *opts.globs[f] != "" && len(found) == 0 {
			logger.Warn("No files match", "format", f, "glob", *opts.globs[f])
		}
		sources = append(sources, found...)
	}

	if len(sources) == 0 && !opts.rehash && !opts.dups {
		flag.Usage()
		return fmt.Errorf("nothing to do")
	}

	if opts.testMatch {
		im := importer.New(nil, rules, logger)
		txs, err := im.ParseFiles(ctx, sources)
		if err != nil {
			return err
		}
		for _, tx := range im.TestMatch(txs) {
			fmt.Printf("%s  %-12s  %12s  %s\n", tx.Date, tx.Account, present.FormatCurrency(tx.Amount), tx.Description)
		}
		return nil
	}

	if opts.db == "" {
		return fmt.Errorf("database path is empty")
	}
	repo, err := storage.NewSQLiteRepository(opts.db)
	if err != nil {
		return err
	}
	defer repo.Close()
	im := importer.New(repo, rules, logger)

	if len(sources) > 0 {
		txs, err := im.ParseFiles(ctx, sources)
		if err != nil {
			return err
		}
		res, err := im.Import(ctx, txs)
		if err != nil {
			return err
		}
		fmt.Printf("%s parsed, %s inserted, %s already present, %s rejected\n",
			humanize.Comma(int64(res.Parsed)), humanize.Comma(int64(res.Inserted)),
			humanize.Comma(int64(res.Duplicates)), humanize.Comma(int64(res.Invalid)))
	}

	if opts.rehash {
		n, err := im.Rehash(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%d fingerprints updated\n", n)
	}

	if opts.dups {
		dups, err := im.Duplicates(ctx, opts.fuzzy)
		if err != nil {
			return err
		}
		for _, d := range dups {
			fmt.Printf("-- %s %s %q / %q\n", d.Remove.Date, d.Remove.Amount, d.Remove.Description, d.Keep.Description)
			fmt.Println(d.DeleteStatement())
		}
	}

	return nil
}
