// Package actions maps named client requests onto store queries and renders
// their results. Every action takes flat string parameters and yields either
// an HTML fragment or a JSON-serializable value.
package actions

import (
	"errors"
	"fmt"
	"strings"
)

// Action names one operation exposed to clients.
type Action string

const (
	GetAccounts                       Action = "get_accounts"
	GetCategories                     Action = "get_categories"
	GetGroups                         Action = "get_groups"
	GetSingleTransaction              Action = "get_single_transaction"
	GetTransactionsTable              Action = "get_transactions_table"
	GetTransactionsPageJSON           Action = "get_transactions_page_json"
	UpdateCategory                    Action = "update_category"
	Search                            Action = "search"
	GetExpenseCategories              Action = "get_expense_categories"
	GetSpendingByCategory             Action = "get_spending_by_category"
	GetSpendingByBalancedMoneyFormula Action = "get_spending_by_balanced_money_formula"
	DeleteTransaction                 Action = "delete_transaction"
)

var ErrUnknownAction = errors.New("unknown action")

var all = []Action{
	GetAccounts,
	GetCategories,
	GetGroups,
	GetSingleTransaction,
	GetTransactionsTable,
	GetTransactionsPageJSON,
	UpdateCategory,
	Search,
	GetExpenseCategories,
	GetSpendingByCategory,
	GetSpendingByBalancedMoneyFormula,
	DeleteTransaction,
}

// All returns every known action.
func All() []Action {
	out := make([]Action, len(all))
	copy(out, all)
	return out
}

// ParseAction resolves a client supplied name. Names outside the fixed set
// are rejected with ErrUnknownAction and never reach a handler.
func ParseAction(name string) (Action, error) {
	name = strings.TrimSpace(name)
	for _, a := range all {
		if string(a) == name {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, name)
}

// Mutating reports whether the action writes to the store.
func (a Action) Mutating() bool {
	return a == UpdateCategory || a == DeleteTransaction
}

func (a Action) String() string {
	return string(a)
}
