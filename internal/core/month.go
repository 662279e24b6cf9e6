package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MonthIndex converts a calendar month to the 0-based index the ledger
// uses (January = 0).
func MonthIndex(m time.Month) int {
	return int(m) - 1
}

// ParseMonthFilter reads a "YYYY-MM" filter value (1-based month, as the
// month picker sends it) and returns the year and 0-based month index.
// Missing or malformed input falls back to the month of now.
//
// This is the only place where the 1-based form value becomes a ledger
// month index.
func ParseMonthFilter(v string, now time.Time) (year, month0 int) {
	year, month0 = now.Year(), MonthIndex(now.Month())
	y, m, ok := strings.Cut(strings.TrimSpace(v), "-")
	if !ok {
		return year, month0
	}
	yy, err := strconv.Atoi(y)
	if err != nil || yy < 1 || yy > 9999 {
		return year, month0
	}
	mm, err := strconv.Atoi(m)
	if err != nil || mm < 1 || mm > 12 {
		return year, month0
	}
	return yy, mm - 1
}

// FormatMonthFilter is the inverse of ParseMonthFilter.
func FormatMonthFilter(year, month0 int) string {
	return fmt.Sprintf("%04d-%02d", year, month0+1)
}
