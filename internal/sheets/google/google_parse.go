package google

import (
	"fmt"
	"strings"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets"

	gsheet "google.golang.org/api/sheets/v4"
)

// lastColumn is the column letter of the final Header entry.
var lastColumn = string(rune('A' + len(sheets.Header) - 1))

// rowFor renders tx in Header order. Amount is a plain decimal so the sheet
// can sum it.
func rowFor(userID string, tx core.Transaction) []any {
	return []any{
		tx.ID,
		userID,
		tx.Date.String(),
		string(tx.Type),
		tx.Description,
		tx.Amount.String(),
	}
}

func headerRow() []any {
	out := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		out[i] = h
	}
	return out
}

// findRow returns the 0-based index of the row whose first cell is id, or -1.
func findRow(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

// idsFrom returns the non-empty first cells of values, skipping the header.
func idsFrom(values [][]any) []string {
	var ids []string
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && id == sheets.Header[0]) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// sheetID resolves a tab title to its numeric id.
func sheetID(tabs []*gsheet.Sheet, title string) (int64, bool) {
	for _, s := range tabs {
		if s == nil || s.Properties == nil {
			continue
		}
		if s.Properties.Title == title {
			return s.Properties.SheetId, true
		}
	}
	return 0, false
}

// quoteSheet quotes a tab name for A1 notation when it needs it.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func columnRange(sheet string) string {
	return fmt.Sprintf("%s!A:%s", quoteSheet(sheet), lastColumn)
}

func idColumnRange(sheet string) string {
	return fmt.Sprintf("%s!A:A", quoteSheet(sheet))
}

// deleteRowRequest removes the 0-based row index from the tab.
func deleteRowRequest(tabID int64, row int) *gsheet.Request {
	return &gsheet.Request{
		DeleteDimension: &gsheet.DeleteDimensionRequest{
			Range: &gsheet.DimensionRange{
				SheetId:    tabID,
				Dimension:  "ROWS",
				StartIndex: int64(row),
				EndIndex:   int64(row + 1),
			},
		},
	}
}
