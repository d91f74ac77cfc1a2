// Package importer turns bank statement exports into stored transactions.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dosh/internal/core"
	"dosh/internal/log"
)

// maxParallelFiles bounds how many statements are parsed at once.
const maxParallelFiles = 4

// Store is the subset of the repository the importer writes to.
type Store interface {
	Insert(ctx context.Context, t core.Transaction) (int64, error)
	All(ctx context.Context) ([]core.Transaction, error)
	UpdateFingerprint(ctx context.Context, id int64, fingerprint string) error
}

// Source is one statement file and its layout.
type Source struct {
	Path   string
	Format Format
}

// Result summarises one import run.
type Result struct {
	RunID       string
	Parsed      int
	Categorised int
	Inserted    int
	Duplicates  int
	Invalid     int
}

type Importer struct {
	store  Store
	rules  *RuleSet
	logger *log.Logger
	runID  string
}

// New returns an importer. rules may be nil.
func New(store Store, rules *RuleSet, logger *log.Logger) *Importer {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	runID := uuid.NewString()
	return &Importer{
		store:  store,
		rules:  rules,
		logger: logger.WithComponent(log.ComponentImporter).With(log.FieldRunID, runID),
		runID:  runID,
	}
}

// RunID identifies this importer's log lines.
func (im *Importer) RunID() string { return im.runID }

// ExpandSources resolves a glob into sources of one format, sorted by path.
func ExpandSources(pattern string, format Format) ([]Source, error) {
	if pattern == "" {
		return nil, nil
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	sort.Strings(matches)
	out := make([]Source, 0, len(matches))
	for _, m := range matches {
		out = append(out, Source{Path: m, Format: format})
	}
	return out, nil
}

// ParseFiles reads every source concurrently and returns the transactions in
// source order. The first failing file aborts the run.
func (im *Importer) ParseFiles(ctx context.Context, sources []Source) ([]core.Transaction, error) {
	parsed := make([][]core.Transaction, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			txs, err := im.parseFile(src)
			if err != nil {
				return err
			}
			parsed[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []core.Transaction
	for _, txs := range parsed {
		out = append(out, txs...)
	}
	return out, nil
}

func (im *Importer) parseFile(src Source) ([]core.Transaction, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Path, err)
	}
	defer f.Close()

	txs, err := Parse(src.Format, f, im.rules)
	if err != nil {
		im.logger.Error("Statement parse failed",
			log.FieldFile, src.Path,
			log.FieldOperation, log.OpParse,
			log.FieldError, err.Error())
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}
	im.logger.Debug("Statement parsed",
		log.FieldFile, src.Path,
		log.FieldCount, len(txs))
	return txs, nil
}

// Categorise applies the rule set in place and returns how many
// transactions a rule matched.
func (im *Importer) Categorise(txs []core.Transaction) int {
	n := 0
	for i := range txs {
		if im.rules.Apply(&txs[i]) {
			n++
		}
	}
	return n
}

// Import categorises txs and stores them one by one. Rows already present
// are counted as duplicates; rows the store rejects are counted as invalid.
func (im *Importer) Import(ctx context.Context, txs []core.Transaction) (Result, error) {
	start := time.Now()
	res := Result{RunID: im.runID, Parsed: len(txs)}
	res.Categorised = im.Categorise(txs)

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, err := im.store.Insert(ctx, tx)
		switch {
		case errors.Is(err, core.ErrInvalidDate), errors.Is(err, core.ErrEmptyDescription),
			errors.Is(err, core.ErrEmptyAccount), errors.Is(err, core.ErrInvalidNeedsWants):
			res.Invalid++
			im.logger.Warn("Transaction rejected",
				log.FieldAccount, tx.Account,
				log.FieldError, err.Error())
		case err != nil:
			return res, fmt.Errorf("insert: %w", err)
		case id == 0:
			res.Duplicates++
		default:
			res.Inserted++
		}
	}

	im.logger.Info("Import finished",
		log.FieldOperation, log.OpImport,
		"parsed", res.Parsed,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"invalid", res.Invalid,
		log.FieldDurationHuman, humanize.RelTime(start, time.Now(), "", ""))
	return res, nil
}

// TestMatch categorises txs without storing them and returns those no rule
// matched.
func (im *Importer) TestMatch(txs []core.Transaction) []core.Transaction {
	var unmatched []core.Transaction
	for i := range txs {
		if !im.rules.Apply(&txs[i]) {
			unmatched = append(unmatched, txs[i])
		}
	}
	return unmatched
}

// Rehash recomputes the fingerprint of every stored transaction and returns
// how many changed.
func (im *Importer) Rehash(ctx context.Context) (int, error) {
	txs, err := im.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}
	changed := 0
	for _, tx := range txs {
		fp := tx.ComputeFingerprint()
		if fp == tx.Fingerprint {
			continue
		}
		if err := im.store.UpdateFingerprint(ctx, tx.ID, fp); err != nil {
			return changed, err
		}
		changed++
	}
	im.logger.Info("Fingerprints recomputed",
		log.FieldCount, len(txs),
		log.FieldRowsAffected, changed)
	return changed, nil
}

// Duplicates loads every stored transaction and reports likely duplicates.
func (im *Importer) Duplicates(ctx context.Context, fuzzy float64) ([]Duplicate, error) {
	txs, err := im.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return FindDuplicates(txs, fuzzy), nil
}
