// Package sheets defines the spreadsheet export port fed by ledger events.
package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// TransactionExporter mirrors ledger mutations into an external sheet.
// Both operations are idempotent: re-delivered events must not duplicate
// or fail.
type TransactionExporter interface {
	AppendTransaction(ctx context.Context, userID string, tx core.Transaction) error
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	// ExportedIDs lists the transaction ids currently in the sheet.
	ExportedIDs(ctx context.Context) ([]string, error)
}

// Header is the column layout of the export sheet.
var Header = []string{"ID", "User", "Date", "Type", "Description", "Amount"}
