package filter

import (
	"strings"

	"dosh/internal/core"
)

// Filter holds the optional constraints of a transaction query. Zero values
// mean "no constraint".
type Filter struct {
	Category     string // prefix match
	Account      string // exact match
	Range        *Range
	ExpensesOnly bool
	NeedsWants   core.NeedsWants
	Group        string // accounts belonging to a named group
}

// Normalize clears fields holding one of the UI sentinels.
func (f Filter) Normalize() Filter {
	f.Category = strings.TrimSpace(f.Category)
	f.Account = strings.TrimSpace(f.Account)
	f.Group = strings.TrimSpace(f.Group)
	if f.Category == core.AllCategories {
		f.Category = ""
	}
	if f.Account == core.AllAccounts {
		f.Account = ""
	}
	return f
}

// IsEmpty reports whether the filter constrains nothing.
func (f Filter) IsEmpty() bool {
	f = f.Normalize()
	return f.Category == "" && f.Account == "" && f.Range == nil &&
		!f.ExpensesOnly && f.NeedsWants == "" && f.Group == ""
}

// Predicates returns the conjunctive predicates of the filter and their
// arguments, in a fixed order.
func (f Filter) Predicates() ([]string, []any) {
	f = f.Normalize()

	var where []string
	var args []any

	if f.Category != "" {
		where = append(where, `category LIKE ? ESCAPE '\'`)
		args = append(args, EscapeLike(f.Category)+"%")
	}
	if f.Account != "" {
		where = append(where, "account_name = ?")
		args = append(args, f.Account)
	}
	if f.Group != "" {
		where = append(where, "account_name IN (SELECT account_name FROM account_groups WHERE group_name = ?)")
		args = append(args, f.Group)
	}
	if f.Range != nil {
		clause, rangeArgs := f.Range.Predicate("transaction_date")
		where = append(where, clause)
		args = append(args, rangeArgs...)
	}
	if f.ExpensesOnly {
		where = append(where, "amount < 0")
	}
	if f.NeedsWants != "" {
		where = append(where, "needs_wants_savings = ?")
		args = append(args, string(f.NeedsWants))
	}
	return where, args
}

// Where returns a complete WHERE clause (with leading space) or an empty
// string when the filter is empty.
func (f Filter) Where() (string, []any) {
	where, args := f.Predicates()
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// Predicate returns "<column> >= date(..) AND <column> <= date(..)".
func (r Range) Predicate(column string) (string, []any) {
	fromSQL, fromArgs := r.From.SQL()
	toSQL, toArgs := r.To.SQL()
	return column + " >= " + fromSQL + " AND " + column + " <= " + toSQL, append(fromArgs, toArgs...)
}

// EscapeLike escapes the LIKE wildcards so the value matches literally.
// The escape character is a backslash.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
