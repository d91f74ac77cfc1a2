// Package memory is an Exporter that keeps the last export in memory, or
// writes it as CSV when given a writer.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sync"

	"dosh/internal/core"
	"dosh/internal/sheets"
)

var _ sheets.Exporter = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	rows [][]string
	out  io.Writer
}

func New() *Store {
	return &Store{}
}

// NewWriter returns a store that also writes each export to w as CSV.
func NewWriter(w io.Writer) *Store {
	return &Store{out: w}
}

// Export replaces the stored rows with a header and one row per transaction.
func (s *Store) Export(ctx context.Context, txs []core.Transaction) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows := make([][]string, 0, len(txs)+1)
	rows = append(rows, sheets.Header)
	for _, tx := range txs {
		rows = append(rows, sheets.Row(tx))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		w := csv.NewWriter(s.out)
		if err := w.WriteAll(rows); err != nil {
			return 0, fmt.Errorf("write csv: %w", err)
		}
	}
	s.rows = rows
	return len(txs), nil
}

// Rows returns a copy of the last export, header included.
func (s *Store) Rows() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
