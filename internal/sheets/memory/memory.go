// Package memory is an in-process TransactionExporter for development
// and tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"
)

// Row is one exported transaction.
type Row struct {
	UserID      string
	Transaction core.Transaction
}

type Exporter struct {
	mu   sync.Mutex
	rows []Row
}

var _ sheets.TransactionExporter = (*Exporter)(nil)

func New() *Exporter {
	return &Exporter{}
}

func (e *Exporter) AppendTransaction(_ context.Context, userID string, tx core.Transaction) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.indexLocked(tx.ID) >= 0 {
		return nil
	}
	e.rows = append(e.rows, Row{UserID: userID, Transaction: tx})
	return nil
}

func (e *Exporter) DeleteTransaction(_ context.Context, _ string, transactionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i := e.indexLocked(transactionID); i >= 0 {
		e.rows = slices.Delete(e.rows, i, i+1)
	}
	return nil
}

func (e *Exporter) ExportedIDs(context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.rows))
	for _, r := range e.rows {
		ids = append(ids, r.Transaction.ID)
	}
	return ids, nil
}

// Rows returns a copy of the exported rows in insertion order.
func (e *Exporter) Rows() []Row {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.rows)
}

func (e *Exporter) indexLocked(id string) int {
	return slices.IndexFunc(e.rows, func(r Row) bool { return r.Transaction.ID == id })
}
