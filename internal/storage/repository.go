package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dosh/internal/core"
	"dosh/internal/filter"

	_ "modernc.org/sqlite"
)

const transactionColumns = `id, transaction_date, description, amount, category,
	account_name, needs_wants_savings, fingerprint, split`

// SearchLimit caps the number of rows returned by Search.
const SearchLimit = 200

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database file and
// applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// single writer; keeps "database is locked" out of the request path
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the store is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Accounts returns the distinct account names, sorted.
func (r *SQLiteRepository) Accounts(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT account_name FROM transactions ORDER BY account_name`)
}

// Categories returns the distinct categories, sorted.
func (r *SQLiteRepository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT category FROM transactions ORDER BY category`)
}

// Groups returns the distinct account group names, sorted.
func (r *SQLiteRepository) Groups(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT group_name FROM account_groups ORDER BY group_name`)
}

// AddToGroup puts an account in a named group. Adding twice is a no-op.
func (r *SQLiteRepository) AddToGroup(ctx context.Context, group, account string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO account_groups (group_name, account_name) VALUES (?, ?)`, group, account)
	if err != nil {
		return fmt.Errorf("add account %q to group %q: %w", account, group, err)
	}
	return nil
}

func (r *SQLiteRepository) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query distinct values: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan distinct value: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Transaction fetches one transaction. It returns nil, nil when no row has
// the given id.
func (r *SQLiteRepository) Transaction(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return &t, nil
}

// TransactionsSince returns the transactions on or after the lower bound of
// rng, newest first. A nil range returns everything. A non-empty group limits
// the result to the accounts of that group.
func (r *SQLiteRepository) TransactionsSince(ctx context.Context, rng *filter.Range, group string) ([]core.Transaction, error) {
	var where []string
	var args []any
	if rng != nil {
		fromSQL, fromArgs := rng.From.SQL()
		where = append(where, "transaction_date >= "+fromSQL)
		args = append(args, fromArgs...)
	}
	groupWhere, groupArgs := filter.Filter{Group: group}.Predicates()
	where = append(where, groupWhere...)
	args = append(args, groupArgs...)

	query := `SELECT ` + transactionColumns + ` FROM transactions` + joinWhere(where) +
		` ORDER BY transaction_date DESC, id DESC`
	return r.queryTransactions(ctx, query, args...)
}

// Page returns one page of transactions under f, newest first.
func (r *SQLiteRepository) Page(ctx context.Context, f filter.Filter, start, results int) ([]core.Transaction, error) {
	if start < 0 || results < 0 {
		return nil, fmt.Errorf("invalid page bounds start=%d results=%d", start, results)
	}
	where, args := f.Where()
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?`
	return r.queryTransactions(ctx, query, append(args, results, start)...)
}

// List returns every transaction under f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f filter.Filter) ([]core.Transaction, error) {
	where, args := f.Where()
	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY transaction_date DESC, id DESC`
	return r.queryTransactions(ctx, query, args...)
}

// Count returns the number of transactions under f.
func (r *SQLiteRepository) Count(ctx context.Context, f filter.Filter) (int, error) {
	where, args := f.Where()
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM transactions`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// All returns every transaction ordered by id.
func (r *SQLiteRepository) All(ctx context.Context) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY id`)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var t core.Transaction
	var nws string
	err := s.Scan(&t.ID, &t.Date, &t.Description, &t.Amount.Cents, &t.Category,
		&t.Account, &nws, &t.Fingerprint, &t.Split)
	t.NeedsWants = core.NeedsWants(nws)
	return t, err
}

// Insert stores a transaction unless one with the same fingerprint exists.
// It returns the new id, or 0 when the row was ignored as a duplicate.
func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}
	if t.Category == "" {
		t.Category = core.UnknownCategory
	}
	if t.NeedsWants == "" {
		t.NeedsWants = core.Unknown
	}
	if t.Fingerprint == "" {
		t.Fingerprint = t.ComputeFingerprint()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			fingerprint, account_name, transaction_date, description,
			amount, category, needs_wants_savings, split
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Fingerprint, t.Account, t.Date, t.Description,
		t.Amount.Cents, t.Category, string(t.NeedsWants), t.Split)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// UpdateCategory sets the category of one transaction and returns the number
// of affected rows; 0 means there is no such id.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id int64, category string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET category = ? WHERE id = ?`, category, id)
	if err != nil {
		return 0, fmt.Errorf("update category of %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	slog.InfoContext(ctx, "Transaction category updated", "id", id, "category", category, "rows", n)
	return n, nil
}

// UpdateFingerprint replaces the stored fingerprint of one transaction.
func (r *SQLiteRepository) UpdateFingerprint(ctx context.Context, id int64, fingerprint string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE transactions SET fingerprint = ? WHERE id = ?`, fingerprint, id); err != nil {
		return fmt.Errorf("update fingerprint of %d: %w", id, err)
	}
	return nil
}

// Delete removes one transaction and returns the number of affected rows.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "rows", n)
	return n, nil
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return ""
	}
	out := " WHERE " + where[0]
	for _, w := range where[1:] {
		out += " AND " + w
	}
	return out
}
