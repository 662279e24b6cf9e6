// Package worker mirrors ledger events into the spreadsheet exporter.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/kv"
	"kakeibo/internal/sheets"
)

type ExportWorker struct {
	exporter sheets.TransactionExporter
}

func NewExportWorker(exporter sheets.TransactionExporter) *ExportWorker {
	return &ExportWorker{exporter: exporter}
}

// HandleLedgerEvent applies one message to the exporter. A returned error
// makes the consumer requeue the message.
func (w *ExportWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	switch msg.Event {
	case amqp.EventTransactionAdded:
		if err := w.exporter.AppendTransaction(ctx, msg.UserID, msg.Transaction); err != nil {
			return fmt.Errorf("export transaction %s: %w", msg.Transaction.ID, err)
		}
		slog.InfoContext(ctx, "Exported transaction",
			"user_id", msg.UserID,
			"transaction_id", msg.Transaction.ID,
			"type", msg.Transaction.Type,
			"amount", msg.Transaction.Amount.String())

	case amqp.EventTransactionDeleted:
		if err := w.exporter.DeleteTransaction(ctx, msg.UserID, msg.Transaction.ID); err != nil {
			return fmt.Errorf("remove exported transaction %s: %w", msg.Transaction.ID, err)
		}
		slog.InfoContext(ctx, "Removed exported transaction",
			"user_id", msg.UserID,
			"transaction_id", msg.Transaction.ID)

	default:
		// Validated upstream; kept for messages built by hand.
		return fmt.Errorf("%w: unknown event %q", amqp.ErrInvalidMessage, msg.Event)
	}
	return nil
}

// BackfillResult summarises a Backfill run.
type BackfillResult struct {
	Users    int
	Exported int
	Pruned   int
	Failed   int
}

// Backfill exports every stored transaction of every registered user and
// removes exported rows whose transaction no longer exists, so adds and
// deletes missed while the worker was down both converge. Pruning is
// skipped when any ledger could not be read.
func (w *ExportWorker) Backfill(ctx context.Context, store kv.Store) (BackfillResult, error) {
	var res BackfillResult

	// Snapshot before reading ledgers: rows exported after this point are
	// never pruned by this run.
	exported, err := w.exporter.ExportedIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list exported transactions: %w", err)
	}

	users, _, err := kv.GetJSON[[]core.User](ctx, store, kv.KeyUsers)
	if err != nil {
		return res, fmt.Errorf("load users: %w", err)
	}

	live := make(map[string]struct{})
	complete := true
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		txs, _, err := kv.GetJSON[[]core.Transaction](ctx, store, kv.TransactionsKey(u.ID))
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load transactions for backfill", "user_id", u.ID, "error", err)
			res.Failed++
			complete = false
			continue
		}
		res.Users++
		for _, tx := range txs {
			live[tx.ID] = struct{}{}
			if err := w.exporter.AppendTransaction(ctx, u.ID, tx); err != nil {
				slog.ErrorContext(ctx, "Failed to backfill transaction",
					"user_id", u.ID, "transaction_id", tx.ID, "error", err)
				res.Failed++
				continue
			}
			res.Exported++
		}
	}

	if complete {
		for _, id := range exported {
			if _, ok := live[id]; ok {
				continue
			}
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if err := w.exporter.DeleteTransaction(ctx, "", id); err != nil {
				slog.ErrorContext(ctx, "Failed to prune exported transaction", "transaction_id", id, "error", err)
				res.Failed++
				continue
			}
			live[id] = struct{}{}
			res.Pruned++
		}
	}

	slog.InfoContext(ctx, "Backfill completed",
		"users", res.Users,
		"exported", res.Exported,
		"pruned", res.Pruned,
		"errors", res.Failed)
	return res, nil
}
