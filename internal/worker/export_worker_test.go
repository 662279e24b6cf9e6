package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/kv"
	kvmemory "kakeibo/internal/kv/memory"
	"kakeibo/internal/sheets/memory"
)

func sampleTx(id string) core.Transaction {
	return core.Transaction{
		ID:          id,
		Date:        core.NewDate(2024, 5, 10),
		Description: "Salary",
		Type:        core.Income,
		Amount:      core.Money{Cents: 300000},
	}
}

func TestHandleLedgerEvent(t *testing.T) {
	ctx := context.Background()
	exp := memory.New()
	w := NewExportWorker(exp)

	added := amqp.NewLedgerEventMessage(amqp.EventTransactionAdded, "u1", sampleTx("t1"))
	require.NoError(t, w.HandleLedgerEvent(ctx, added))
	// Redelivery does not duplicate.
	require.NoError(t, w.HandleLedgerEvent(ctx, added))
	require.Len(t, exp.Rows(), 1)

	deleted := amqp.NewLedgerEventMessage(amqp.EventTransactionDeleted, "u1", sampleTx("t1"))
	require.NoError(t, w.HandleLedgerEvent(ctx, deleted))
	require.Empty(t, exp.Rows())

	unknown := &amqp.LedgerEventMessage{Event: "transaction.updated", UserID: "u1", Transaction: sampleTx("t2")}
	require.ErrorIs(t, w.HandleLedgerEvent(ctx, unknown), amqp.ErrInvalidMessage)
}

type failingExporter struct{ err error }

func (f failingExporter) AppendTransaction(context.Context, string, core.Transaction) error {
	return f.err
}
func (f failingExporter) DeleteTransaction(context.Context, string, string) error {
	return f.err
}
func (f failingExporter) ExportedIDs(context.Context) ([]string, error) {
	return nil, f.err
}

func TestHandleLedgerEvent_ExporterErrorIsReturned(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewExportWorker(failingExporter{err: boom})

	err := w.HandleLedgerEvent(context.Background(), amqp.NewLedgerEventMessage(amqp.EventTransactionAdded, "u1", sampleTx("t1")))
	require.ErrorIs(t, err, boom)
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	require.NoError(t, kv.SetJSON(ctx, store, kv.KeyUsers, []core.User{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}))
	require.NoError(t, kv.SetJSON(ctx, store, kv.TransactionsKey("u1"), []core.Transaction{sampleTx("a"), sampleTx("b")}))
	require.NoError(t, kv.SetJSON(ctx, store, kv.TransactionsKey("u2"), []core.Transaction{sampleTx("c")}))
	require.NoError(t, store.Set(ctx, kv.TransactionsKey("u3"), []byte("corrupt")))

	exp := memory.New()
	require.NoError(t, exp.AppendTransaction(ctx, "u1", sampleTx("a")))

	res, err := NewExportWorker(exp).Backfill(ctx, store)
	require.NoError(t, err)
	require.Equal(t, BackfillResult{Users: 2, Exported: 3, Failed: 1}, res)
	require.Len(t, exp.Rows(), 3)
}

func TestBackfill_PrunesDeletedTransactions(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	require.NoError(t, kv.SetJSON(ctx, store, kv.KeyUsers, []core.User{{ID: "u1"}}))
	require.NoError(t, kv.SetJSON(ctx, store, kv.TransactionsKey("u1"), []core.Transaction{sampleTx("a")}))

	exp := memory.New()
	// "gone" was deleted while the worker was down.
	require.NoError(t, exp.AppendTransaction(ctx, "u1", sampleTx("gone")))
	require.NoError(t, exp.AppendTransaction(ctx, "u1", sampleTx("a")))

	res, err := NewExportWorker(exp).Backfill(ctx, store)
	require.NoError(t, err)
	require.Equal(t, BackfillResult{Users: 1, Exported: 1, Pruned: 1}, res)

	ids, err := exp.ExportedIDs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, ids)
}

func TestBackfill_SkipsPruningWhenALedgerIsUnreadable(t *testing.T) {
	ctx := context.Background()
	store := kvmemory.New()
	require.NoError(t, kv.SetJSON(ctx, store, kv.KeyUsers, []core.User{{ID: "u1"}}))
	require.NoError(t, store.Set(ctx, kv.TransactionsKey("u1"), []byte("corrupt")))

	exp := memory.New()
	require.NoError(t, exp.AppendTransaction(ctx, "u1", sampleTx("kept")))

	res, err := NewExportWorker(exp).Backfill(ctx, store)
	require.NoError(t, err)
	require.Equal(t, BackfillResult{Failed: 1}, res)
	require.Len(t, exp.Rows(), 1)
}

func TestBackfill_ExporterListErrorIsReturned(t *testing.T) {
	boom := errors.New("quota exceeded")
	_, err := NewExportWorker(failingExporter{err: boom}).Backfill(context.Background(), kvmemory.New())
	require.ErrorIs(t, err, boom)
}

func TestBackfill_NoUsers(t *testing.T) {
	res, err := NewExportWorker(memory.New()).Backfill(context.Background(), kvmemory.New())
	require.NoError(t, err)
	require.Zero(t, res)
}
