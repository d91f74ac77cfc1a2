// Package present renders query results for the client: an HTML table
// fragment for the transaction list and JSON envelopes for everything else.
package present

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"

	"dosh/internal/core"
	appweb "dosh/web"
)

const tableTemplate = "transactions_table.html"

type tableRow struct {
	ID          int64
	Date        string
	Description string
	Category    string
	Amount      string
	Class       string
}

type accountGroup struct {
	Account string
	Rows    []tableRow
}

// Renderer turns transactions into HTML fragments.
type Renderer struct {
	tmpl     *template.Template
	currency Currency
}

// NewRenderer parses the table template from the embedded web assets.
func NewRenderer(currency Currency) (*Renderer, error) {
	return NewRendererFS(appweb.TemplatesFS, currency)
}

// NewRendererFS parses the table template from fsys.
func NewRendererFS(fsys fs.FS, currency Currency) (*Renderer, error) {
	if currency == "" {
		currency = DefaultCurrency
	}
	t, err := template.ParseFS(fsys, "templates/"+tableTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", tableTemplate, err)
	}
	return &Renderer{tmpl: t, currency: currency}, nil
}

// TransactionsTable renders table rows grouped by account, accounts in the
// order they first appear in txs. Each row carries a category select with the
// transaction's category selected.
func (r *Renderer) TransactionsTable(txs []core.Transaction, categories []string) (string, error) {
	var groups []*accountGroup
	byAccount := make(map[string]*accountGroup)
	for _, tx := range txs {
		g, ok := byAccount[tx.Account]
		if !ok {
			g = &accountGroup{Account: tx.Account}
			byAccount[tx.Account] = g
			groups = append(groups, g)
		}
		class := "row-credit"
		if tx.IsDebit() {
			class = "row-debit"
		}
		g.Rows = append(g.Rows, tableRow{
			ID:          tx.ID,
			Date:        tx.Date,
			Description: tx.Description,
			Category:    tx.Category,
			Amount:      r.currency.Format(tx.Amount),
			Class:       class,
		})
	}

	data := struct {
		Groups     []*accountGroup
		Categories []string
	}{Groups: groups, Categories: categories}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, tableTemplate, data); err != nil {
		return "", fmt.Errorf("render transactions table: %w", err)
	}
	return buf.String(), nil
}
