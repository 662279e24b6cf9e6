package memory

import (
	"context"
	"testing"

	"kakeibo/internal/core"
)

func TestExporter_AppendAndDeleteAreIdempotent(t *testing.T) {
	ctx := context.Background()
	e := New()
	tx := core.Transaction{ID: "t1", Date: core.NewDate(2024, 5, 1), Description: "Food", Type: core.Expense, Amount: core.Money{Cents: 100000}}

	for i := 0; i < 2; i++ {
		if err := e.AppendTransaction(ctx, "u1", tx); err != nil {
			t.Fatalf("AppendTransaction: %v", err)
		}
	}
	if ids, _ := e.ExportedIDs(ctx); len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("ExportedIDs = %v, want [t1]", ids)
	}
	rows := e.Rows()
	if len(rows) != 1 || rows[0].UserID != "u1" {
		t.Fatalf("rows = %+v", rows)
	}

	for i := 0; i < 2; i++ {
		if err := e.DeleteTransaction(ctx, "u1", "t1"); err != nil {
			t.Fatalf("DeleteTransaction: %v", err)
		}
	}
	if len(e.Rows()) != 0 {
		t.Fatalf("expected no rows, got %+v", e.Rows())
	}
}
