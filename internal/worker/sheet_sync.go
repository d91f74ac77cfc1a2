// Package worker keeps an exported spreadsheet in step with the store.
package worker

import (
	"context"
	"sync"
	"time"

	"dosh/internal/amqp"
	"dosh/internal/filter"
	"dosh/internal/log"
	"dosh/internal/sheets"
)

const (
	DefaultDebounce = 5 * time.Second
	DefaultInterval = 15 * time.Minute
)

type Config struct {
	// Filter selects the exported transactions.
	Filter filter.Filter
	// Debounce is how long to wait after an event for more to arrive.
	Debounce time.Duration
	// Interval forces a full export; imports do not publish events.
	Interval time.Duration
	Logger   *log.Logger
}

// SheetSync re-exports the sheet after change events and on a timer.
type SheetSync struct {
	src      sheets.TransactionLister
	exp      sheets.Exporter
	filter   filter.Filter
	debounce time.Duration
	interval time.Duration
	logger   *log.Logger
	kick     chan struct{}

	mu       sync.Mutex
	dirty    bool
	lastSync time.Time
	exports  int
}

func NewSheetSync(src sheets.TransactionLister, exp sheets.Exporter, cfg Config) *SheetSync {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SheetSync{
		src:      src,
		exp:      exp,
		filter:   cfg.Filter,
		debounce: cfg.Debounce,
		interval: cfg.Interval,
		logger:   logger.WithComponent(log.ComponentSheets),
		kick:     make(chan struct{}, 1),
	}
}

// HandleEvent marks the sheet stale. It never fails, so the event is acked.
func (w *SheetSync) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	w.logger.DebugContext(ctx, "Transaction event received",
		"type", ev.Type,
		log.FieldTransactionID, ev.ID)
	w.markDirty()
	select {
	case w.kick <- struct{}{}:
	default:
	}
	return nil
}

// Run exports once, then on every debounced burst of events and every
// interval, until ctx is cancelled.
func (w *SheetSync) Run(ctx context.Context) error {
	w.markDirty()
	w.syncIfDirty(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.kick:
			timer := time.NewTimer(w.debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			w.syncIfDirty(ctx)
		case <-ticker.C:
			w.markDirty()
			w.syncIfDirty(ctx)
		}
	}
}

// SyncNow exports unconditionally and returns the number of rows written.
func (w *SheetSync) SyncNow(ctx context.Context) (int, error) {
	w.mu.Lock()
	w.dirty = false
	w.mu.Unlock()

	n, err := sheets.ExportFiltered(ctx, w.src, w.exp, w.filter)
	if err != nil {
		// retried on the next event or tick
		w.markDirty()
		return 0, err
	}

	w.mu.Lock()
	w.lastSync = time.Now()
	w.exports++
	w.mu.Unlock()
	return n, nil
}

// Stats reports how many exports succeeded and when the last one finished.
func (w *SheetSync) Stats() (exports int, lastSync time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exports, w.lastSync
}

func (w *SheetSync) markDirty() {
	w.mu.Lock()
	w.dirty = true
	w.mu.Unlock()
}

func (w *SheetSync) syncIfDirty(ctx context.Context) {
	w.mu.Lock()
	dirty := w.dirty
	w.mu.Unlock()
	if !dirty {
		return
	}

	start := time.Now()
	n, err := w.SyncNow(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Sheet sync failed",
			log.FieldError, err,
			log.FieldOperation, log.OpExport,
			"error_type", log.ErrorTypeNetwork)
		return
	}
	w.logger.InfoContext(ctx, "Sheet synced",
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds())
}
