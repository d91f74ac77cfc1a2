package storage

import (
	"context"
	"fmt"
	"strings"

	"dosh/internal/core"
	"dosh/internal/filter"
)

// TopExpenseCategories returns up to n categories with the largest net
// spending under f, biggest first. Transfers and categories whose net is not
// an outflow are left out. Each row carries the start and end dates of the
// window; without a range the window spans the whole table.
func (r *SQLiteRepository) TopExpenseCategories(ctx context.Context, n int, f filter.Filter) ([]core.CategoryTotal, error) {
	if n <= 0 {
		return []core.CategoryTotal{}, nil
	}

	windowSQL := `(SELECT min(transaction_date) FROM transactions), (SELECT max(transaction_date) FROM transactions)`
	var selectArgs []any
	if f.Range != nil {
		fromSQL, fromArgs := f.Range.From.SQL()
		toSQL, toArgs := f.Range.To.SQL()
		windowSQL = fromSQL + ", " + toSQL
		selectArgs = append(append(selectArgs, fromArgs...), toArgs...)
	}

	// ExpensesOnly would hide the credits that offset a category's spending
	f.ExpensesOnly = false
	where, args := f.Predicates()
	where = append(where, "category != ?")
	args = append(args, core.TransfersCategory)

	query := `SELECT category, abs(sum(amount)) AS amount_sum, ` + windowSQL + `
		FROM transactions` + joinWhere(where) + `
		GROUP BY category
		HAVING sum(amount) < 0
		ORDER BY amount_sum DESC, category
		LIMIT ?`

	allArgs := append(append(selectArgs, args...), n)
	rows, err := r.db.QueryContext(ctx, query, allArgs...)
	if err != nil {
		return nil, fmt.Errorf("query top expense categories: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var c core.CategoryTotal
		var start, end *string
		if err := rows.Scan(&c.Category, &c.AmountSum.Cents, &start, &end); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		c.StartDate, c.EndDate = deref(start), deref(end)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MonthlySpending returns the absolute net amount per calendar month, oldest
// first, leaving out Transfers. category is a prefix and may be empty.
func (r *SQLiteRepository) MonthlySpending(ctx context.Context, category string, rng *filter.Range, expensesOnly bool) ([]core.MonthlyTotal, error) {
	f := filter.Filter{Category: category, Range: rng, ExpensesOnly: expensesOnly}
	where, args := f.Predicates()
	where = append(where, "category != ?")
	args = append(args, core.TransfersCategory)

	query := `SELECT abs(sum(amount)) AS amount_sum, min(transaction_date),
			strftime('%m/%Y', transaction_date) AS month_date
		FROM transactions` + joinWhere(where) + `
		GROUP BY month_date
		ORDER BY min(transaction_date)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query monthly spending: %w", err)
	}
	defer rows.Close()

	out := []core.MonthlyTotal{}
	for rows.Next() {
		var m core.MonthlyTotal
		if err := rows.Scan(&m.AmountSum.Cents, &m.TransactionDate, &m.Month); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// NeedsWantsSavings returns the absolute net amount per needs/wants/savings
// tag within rng. Exempt rows never count.
func (r *SQLiteRepository) NeedsWantsSavings(ctx context.Context, rng *filter.Range) ([]core.NeedsWantsTotal, error) {
	where, args := filter.Filter{Range: rng}.Predicates()
	where = append(where, "needs_wants_savings != ?")
	args = append(args, string(core.Exempt))

	query := `SELECT abs(sum(amount)) AS amount_sum, needs_wants_savings
		FROM transactions` + joinWhere(where) + `
		GROUP BY needs_wants_savings
		ORDER BY needs_wants_savings`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query needs/wants/savings: %w", err)
	}
	defer rows.Close()

	out := []core.NeedsWantsTotal{}
	for rows.Next() {
		var t core.NeedsWantsTotal
		var tag string
		if err := rows.Scan(&t.AmountSum.Cents, &tag); err != nil {
			return nil, fmt.Errorf("scan needs/wants total: %w", err)
		}
		t.NeedsWants = core.NeedsWants(tag)
		out = append(out, t)
	}
	return out, rows.Err()
}

// amountOperators maps the leading character of a search to a fixed SQL
// comparison. Only these fragments ever reach the query text.
var amountOperators = map[byte]string{
	'<': "amount < ?",
	'=': "amount = ?",
	'>': "amount > ?",
}

// Search finds up to SearchLimit transactions, newest first.
//
// A criteria starting with <, = or > compares the amount with the number that
// follows, in currency units ("<-1000"). Anything else is a case-insensitive
// substring match on description or category; an empty criteria matches
// every row. A malformed amount returns core.ErrInvalidAmount.
func (r *SQLiteRepository) Search(ctx context.Context, criteria string) ([]core.Transaction, error) {
	criteria = strings.TrimSpace(criteria)

	var where string
	var args []any
	if clause, ok := amountOperators[firstByte(criteria)]; ok {
		amount, err := core.ParseAmount(strings.TrimSpace(criteria[1:]))
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", criteria, err)
		}
		where = clause
		args = append(args, amount.Cents)
	} else {
		pattern := "%" + filter.EscapeLike(criteria) + "%"
		where = `(description LIKE ? ESCAPE '\' OR category LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + where +
		` ORDER BY transaction_date DESC, id DESC LIMIT ?`
	return r.queryTransactions(ctx, query, append(args, SearchLimit)...)
}

func firstByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[0]
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
