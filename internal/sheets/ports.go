package sheets

import (
	"context"
	"fmt"

	"dosh/internal/core"
	"dosh/internal/filter"
)

// Ports for outbound adapters.
type (
	// Exporter replaces the contents of a destination with txs and returns
	// the number of data rows written.
	Exporter interface {
		Export(ctx context.Context, txs []core.Transaction) (int, error)
	}

	TransactionLister interface {
		List(ctx context.Context, f filter.Filter) ([]core.Transaction, error)
	}
)

// Header is the first row of every export.
var Header = []string{"Date", "Description", "Amount", "Category", "Account", "Needs/Wants"}

// Row renders one transaction in Header order.
func Row(tx core.Transaction) []string {
	return []string{
		tx.Date,
		tx.Description,
		tx.Amount.String(),
		tx.Category,
		tx.Account,
		string(tx.NeedsWants),
	}
}

// ExportFiltered lists the transactions under f and hands them to exp.
func ExportFiltered(ctx context.Context, src TransactionLister, exp Exporter, f filter.Filter) (int, error) {
	txs, err := src.List(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("list transactions: %w", err)
	}
	n, err := exp.Export(ctx, txs)
	if err != nil {
		return 0, fmt.Errorf("export: %w", err)
	}
	return n, nil
}
