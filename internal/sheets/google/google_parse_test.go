package google

import (
	"testing"

	"kakeibo/internal/core"

	gsheet "google.golang.org/api/sheets/v4"
)

func TestRowFor(t *testing.T) {
	tx := core.Transaction{
		ID:          "t1",
		Date:        core.NewDate(2024, 5, 10),
		Description: "給料",
		Type:        core.Income,
		Amount:      core.Money{Cents: 300050},
	}
	row := rowFor("u1", tx)
	want := []any{"t1", "u1", "2024-05-10", "income", "給料", "3000.5"}
	if len(row) != len(want) {
		t.Fatalf("row has %d cells, want %d", len(row), len(want))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("cell %d = %v, want %v", i, row[i], want[i])
		}
	}
	if lastColumn != "F" {
		t.Errorf("lastColumn = %q, want F", lastColumn)
	}
}

func TestFindRow(t *testing.T) {
	values := [][]any{
		{"ID"},
		{},
		{"t1"},
		{" t2 "},
	}
	tests := map[string]int{"t1": 2, "t2": 3, "ID": 0, "missing": -1}
	for id, want := range tests {
		if got := findRow(values, id); got != want {
			t.Errorf("findRow(%q) = %d, want %d", id, got, want)
		}
	}
	if findRow(nil, "t1") != -1 {
		t.Error("empty sheet should not match")
	}
}

func TestIDsFrom(t *testing.T) {
	values := [][]any{
		{"ID", "User"},
		{"t1", "u1"},
		{},
		{"  "},
		{" t2 "},
	}
	got := idsFrom(values)
	if len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Fatalf("idsFrom = %v, want [t1 t2]", got)
	}
	if ids := idsFrom(nil); len(ids) != 0 {
		t.Errorf("empty sheet should yield no ids, got %v", ids)
	}
}

func TestSheetID(t *testing.T) {
	tabs := []*gsheet.Sheet{
		nil,
		{Properties: &gsheet.SheetProperties{Title: "Summary", SheetId: 0}},
		{Properties: &gsheet.SheetProperties{Title: "Transactions", SheetId: 42}},
	}
	if id, ok := sheetID(tabs, "Transactions"); !ok || id != 42 {
		t.Errorf("sheetID = %d, %v", id, ok)
	}
	if _, ok := sheetID(tabs, "Missing"); ok {
		t.Error("unexpected match")
	}
}

func TestRanges(t *testing.T) {
	if got := columnRange("Transactions"); got != "Transactions!A:F" {
		t.Errorf("columnRange = %q", got)
	}
	if got := idColumnRange("家計 2024"); got != "'家計 2024'!A:A" {
		t.Errorf("idColumnRange = %q", got)
	}
	if got := quoteSheet("Bob's"); got != "'Bob''s'" {
		t.Errorf("quoteSheet = %q", got)
	}
}

func TestDeleteRowRequest(t *testing.T) {
	req := deleteRowRequest(42, 3)
	r := req.DeleteDimension.Range
	if r.SheetId != 42 || r.Dimension != "ROWS" || r.StartIndex != 3 || r.EndIndex != 4 {
		t.Errorf("unexpected range %+v", r)
	}
}
