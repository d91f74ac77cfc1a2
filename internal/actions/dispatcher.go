package actions

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"dosh/internal/amqp"
	"dosh/internal/cache"
	"dosh/internal/core"
	"dosh/internal/filter"
	"dosh/internal/log"
	"dosh/internal/present"
)

// Store is the query surface the actions run against.
type Store interface {
	Accounts(ctx context.Context) ([]string, error)
	Categories(ctx context.Context) ([]string, error)
	Groups(ctx context.Context) ([]string, error)
	Transaction(ctx context.Context, id int64) (*core.Transaction, error)
	TransactionsSince(ctx context.Context, rng *filter.Range, group string) ([]core.Transaction, error)
	Page(ctx context.Context, f filter.Filter, start, results int) ([]core.Transaction, error)
	Count(ctx context.Context, f filter.Filter) (int, error)
	TopExpenseCategories(ctx context.Context, n int, f filter.Filter) ([]core.CategoryTotal, error)
	MonthlySpending(ctx context.Context, category string, rng *filter.Range, expensesOnly bool) ([]core.MonthlyTotal, error)
	NeedsWantsSavings(ctx context.Context, rng *filter.Range) ([]core.NeedsWantsTotal, error)
	Search(ctx context.Context, criteria string) ([]core.Transaction, error)
	UpdateCategory(ctx context.Context, id int64, category string) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// EventPublisher receives an event after every mutation that changed a row.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Kind tells the transport how to encode a Response.
type Kind int

const (
	KindJSON Kind = iota
	KindHTML
)

// Response is the result of one action: HTML is set for KindHTML, JSON for
// KindJSON.
type Response struct {
	Kind Kind
	HTML string
	JSON any
}

func jsonResponse(v any) Response { return Response{Kind: KindJSON, JSON: v} }

func htmlResponse(s string) Response { return Response{Kind: KindHTML, HTML: s} }

// DefaultListCacheTTL bounds how stale the account, category and group
// lists may be after another process writes to the store.
const DefaultListCacheTTL = 30 * time.Second

// Config tunes a Dispatcher. Zero values select the defaults.
type Config struct {
	TopCategories int
	PageSize      int
	// ListCacheTTL below zero disables the list cache.
	ListCacheTTL time.Duration
	Events       EventPublisher
	Logger       *log.Logger
}

type handlerFunc func(ctx context.Context, params url.Values) Response

// Dispatcher runs actions against a Store. Store failures are logged and
// turned into empty results; clients never see partial data.
type Dispatcher struct {
	store    Store
	renderer *present.Renderer
	events   EventPublisher
	logger   *log.Logger
	mutLog   *log.StructuredLogger
	lists    *cache.LRUCache[[]string]
	topN     int
	pageSize int
	handlers map[Action]handlerFunc
}

func NewDispatcher(store Store, renderer *present.Renderer, cfg Config) *Dispatcher {
	if cfg.TopCategories <= 0 {
		cfg.TopCategories = 8
	}
	if cfg.PageSize <= 0 || cfg.PageSize > MaxPageSize {
		cfg.PageSize = DefaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentActions)

	d := &Dispatcher{
		store:    store,
		renderer: renderer,
		events:   cfg.Events,
		logger:   logger,
		mutLog:   log.NewStructuredLogger(logger),
		topN:     cfg.TopCategories,
		pageSize: cfg.PageSize,
	}
	switch {
	case cfg.ListCacheTTL == 0:
		d.lists = cache.NewLRUCache[[]string](3, DefaultListCacheTTL)
	case cfg.ListCacheTTL > 0:
		d.lists = cache.NewLRUCache[[]string](3, cfg.ListCacheTTL)
	}
	d.handlers = map[Action]handlerFunc{
		GetAccounts:                       d.getAccounts,
		GetCategories:                     d.getCategories,
		GetGroups:                         d.getGroups,
		GetSingleTransaction:              d.getSingleTransaction,
		GetTransactionsTable:              d.getTransactionsTable,
		GetTransactionsPageJSON:           d.getTransactionsPage,
		UpdateCategory:                    d.updateCategory,
		Search:                            d.search,
		GetExpenseCategories:              d.getExpenseCategories,
		GetSpendingByCategory:             d.getSpendingByCategory,
		GetSpendingByBalancedMoneyFormula: d.getNeedsWantsSavings,
		DeleteTransaction:                 d.deleteTransaction,
	}
	return d
}

// Dispatch runs action with params. The only error is ErrUnknownAction.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, params url.Values) (Response, error) {
	h, ok := d.handlers[action]
	if !ok {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if params == nil {
		params = url.Values{}
	}
	d.logger.DebugContext(ctx, "Dispatching action", log.FieldAction, action.String())
	return h(ctx, params), nil
}

func (d *Dispatcher) fail(ctx context.Context, action Action, op string, err error) {
	if errors.Is(err, core.ErrInvalidAmount) {
		d.logger.WarnContext(ctx, "Rejected input, returning empty result",
			log.FieldAction, action.String(),
			log.FieldOperation, op,
			log.FieldError, err,
			"error_type", log.ErrorTypeValidation)
		return
	}
	d.logger.ErrorContext(ctx, "Action failed, returning empty result",
		log.FieldAction, action.String(),
		log.FieldOperation, op,
		log.FieldError, err,
		"error_type", log.ErrorTypeDatabase)
}

// dateRange parses the first present key; a malformed shorthand is logged
// and ignored.
func (d *Dispatcher) dateRange(ctx context.Context, params url.Values, keys ...string) *filter.Range {
	rng, err := rangeParam(params, keys...)
	if err != nil {
		d.logger.WarnContext(ctx, "Ignoring malformed date range",
			"keys", keys,
			log.FieldError, err,
			"error_type", log.ErrorTypeValidation)
		return nil
	}
	return rng
}

func (d *Dispatcher) getAccounts(ctx context.Context, _ url.Values) Response {
	return d.cachedList(ctx, GetAccounts, d.store.Accounts)
}

func (d *Dispatcher) getCategories(ctx context.Context, _ url.Values) Response {
	return d.cachedList(ctx, GetCategories, d.store.Categories)
}

func (d *Dispatcher) getGroups(ctx context.Context, _ url.Values) Response {
	return d.cachedList(ctx, GetGroups, d.store.Groups)
}

func (d *Dispatcher) cachedList(ctx context.Context, action Action, load func(context.Context) ([]string, error)) Response {
	key := action.String()
	if d.lists != nil {
		if v, ok := d.lists.Get(key); ok {
			return jsonResponse(v)
		}
	}
	v, err := load(ctx)
	if err != nil {
		d.fail(ctx, action, log.OpList, err)
		return jsonResponse([]string{})
	}
	if d.lists != nil {
		d.lists.Set(key, v)
	}
	return jsonResponse(v)
}

// changed drops cached lists after a mutation touched a row.
func (d *Dispatcher) changed() {
	if d.lists != nil {
		d.lists.Purge()
	}
}

func (d *Dispatcher) getSingleTransaction(ctx context.Context, params url.Values) Response {
	id, ok := parseID(params.Get("id"))
	if !ok {
		return jsonResponse(present.InvalidID)
	}
	tx, err := d.store.Transaction(ctx, id)
	if err != nil {
		d.fail(ctx, GetSingleTransaction, log.OpRead, err)
		return jsonResponse(nil)
	}
	if tx == nil {
		return jsonResponse(nil)
	}
	return jsonResponse(tx)
}

func (d *Dispatcher) getTransactionsTable(ctx context.Context, params url.Values) Response {
	rng := d.dateRange(ctx, params, "modifiers", "date_modifier")
	group := strings.TrimSpace(params.Get("group"))

	txs, err := d.store.TransactionsSince(ctx, rng, group)
	if err != nil {
		d.fail(ctx, GetTransactionsTable, log.OpList, err)
		return htmlResponse("")
	}
	categories, err := d.store.Categories(ctx)
	if err != nil {
		d.fail(ctx, GetTransactionsTable, log.OpList, err)
		return htmlResponse("")
	}

	html, err := d.renderer.TransactionsTable(txs, categories)
	if err != nil {
		d.logger.ErrorContext(ctx, "Rendering transactions table failed",
			log.FieldError, err,
			log.FieldOperation, log.OpRender,
			"error_type", log.ErrorTypeInternal)
		return htmlResponse("")
	}
	return htmlResponse(html)
}

// pageFilter builds the filter shared by the paged list and its count.
func (d *Dispatcher) pageFilter(ctx context.Context, params url.Values) filter.Filter {
	return filter.Filter{
		Category:     params.Get("category"),
		Account:      params.Get("account"),
		Group:        params.Get("group"),
		Range:        d.dateRange(ctx, params, "date_modifier", "modifiers"),
		ExpensesOnly: parseBool(params.Get("expenses_only")),
		NeedsWants:   parseNeedsWants(params.Get("needs_wants")),
	}.Normalize()
}

func (d *Dispatcher) getTransactionsPage(ctx context.Context, params url.Values) Response {
	start := parseStart(params.Get("startIndex"))
	results := parseResults(params.Get("results"), d.pageSize)
	f := d.pageFilter(ctx, params)

	txs, err := d.store.Page(ctx, f, start, results)
	if err != nil {
		d.fail(ctx, GetTransactionsPageJSON, log.OpList, err)
		return jsonResponse(present.NewPagePayload(nil, 0, start, results))
	}
	total, err := d.store.Count(ctx, f)
	if err != nil {
		d.fail(ctx, GetTransactionsPageJSON, log.OpList, err)
		return jsonResponse(present.NewPagePayload(nil, 0, start, results))
	}
	return jsonResponse(present.NewPagePayload(txs, total, start, results))
}

func (d *Dispatcher) updateCategory(ctx context.Context, params url.Values) Response {
	id, ok := parseID(params.Get("id"))
	if !ok {
		return jsonResponse(present.InvalidID)
	}
	category := strings.TrimSpace(params.Get("category"))
	if category == "" {
		return jsonResponse(present.ErrorPayload{Error: "Invalid category"})
	}

	n, err := d.store.UpdateCategory(ctx, id, category)
	if err != nil {
		d.fail(ctx, UpdateCategory, log.OpUpdate, err)
		return jsonResponse(int64(0))
	}
	d.mutLog.LogMutation(ctx, UpdateCategory.String(), log.OpUpdate, id, category, n)
	if n > 0 {
		d.changed()
		d.publish(ctx, amqp.NewCategoryUpdated(id, category))
	}
	return jsonResponse(n)
}

func (d *Dispatcher) deleteTransaction(ctx context.Context, params url.Values) Response {
	id, ok := parseID(params.Get("id"))
	if !ok {
		return jsonResponse(present.InvalidID)
	}

	n, err := d.store.Delete(ctx, id)
	if err != nil {
		d.fail(ctx, DeleteTransaction, log.OpDelete, err)
		return jsonResponse(int64(0))
	}
	d.mutLog.LogMutation(ctx, DeleteTransaction.String(), log.OpDelete, id, "", n)
	if n > 0 {
		d.changed()
		d.publish(ctx, amqp.NewTransactionDeleted(id))
	}
	return jsonResponse(n)
}

// publish forwards ev to the configured publisher. Failures are logged; the
// mutation has already been committed.
func (d *Dispatcher) publish(ctx context.Context, ev *amqp.TransactionEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishTransactionEvent(ctx, ev); err != nil {
		d.logger.WarnContext(ctx, "Publishing transaction event failed",
			log.FieldError, err,
			log.FieldTransactionID, ev.ID,
			log.FieldOperation, log.OpPublish,
			"error_type", log.ErrorTypeNetwork)
	}
}

func (d *Dispatcher) search(ctx context.Context, params url.Values) Response {
	txs, err := d.store.Search(ctx, params.Get("text"))
	if err != nil {
		d.fail(ctx, Search, log.OpSearch, err)
		return jsonResponse(present.SearchPayload(nil))
	}
	return jsonResponse(present.SearchPayload(txs))
}

func (d *Dispatcher) getExpenseCategories(ctx context.Context, params url.Values) Response {
	f := filter.Filter{
		Category: params.Get("category"),
		Account:  params.Get("account"),
		Group:    params.Get("group"),
		Range:    d.dateRange(ctx, params, "modifiers", "date_modifier"),
	}.Normalize()

	totals, err := d.store.TopExpenseCategories(ctx, d.topN, f)
	if err != nil {
		d.fail(ctx, GetExpenseCategories, log.OpAggregate, err)
		return jsonResponse([]core.CategoryTotal{})
	}
	return jsonResponse(totals)
}

func (d *Dispatcher) getSpendingByCategory(ctx context.Context, params url.Values) Response {
	category := filter.Filter{Category: params.Get("category")}.Normalize().Category
	rng := d.dateRange(ctx, params, "modifiers", "date_modifier")

	totals, err := d.store.MonthlySpending(ctx, category, rng, parseBool(params.Get("expenses_only")))
	if err != nil {
		d.fail(ctx, GetSpendingByCategory, log.OpAggregate, err)
		return jsonResponse([]core.MonthlyTotal{})
	}
	return jsonResponse(totals)
}

func (d *Dispatcher) getNeedsWantsSavings(ctx context.Context, params url.Values) Response {
	rng := d.dateRange(ctx, params, "modifiers", "date_modifier")

	totals, err := d.store.NeedsWantsSavings(ctx, rng)
	if err != nil {
		d.fail(ctx, GetSpendingByBalancedMoneyFormula, log.OpAggregate, err)
		return jsonResponse([]core.NeedsWantsTotal{})
	}
	return jsonResponse(totals)
}
