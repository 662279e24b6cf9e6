package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"kakeibo/internal/core"
)

// MonthParams is the dashboard period: a year and a 0-based month index.
type MonthParams struct {
	Year   int
	Month0 int
}

// Filter returns the YYYY-MM value for the month picker and redirects.
func (p MonthParams) Filter() string {
	return core.FormatMonthFilter(p.Year, p.Month0)
}

// ParseMonthParams reads the "month" value (YYYY-MM) from values, defaulting
// to the month of now.
func ParseMonthParams(values url.Values, now time.Time) MonthParams {
	y, m := core.ParseMonthFilter(values.Get("month"), now)
	return MonthParams{Year: y, Month0: m}
}

// TransactionForm is the raw add-transaction form.
type TransactionForm struct {
	Date        string
	Description string
	Type        string
	Amount      string
}

func ReadTransactionForm(form url.Values) TransactionForm {
	return TransactionForm{
		Date:        strings.TrimSpace(form.Get("date")),
		Description: sanitizeInput(form.Get("description")),
		Type:        strings.TrimSpace(form.Get("type")),
		Amount:      strings.TrimSpace(form.Get("amount")),
	}
}

// Transaction converts the form into a transaction ready for the ledger.
// An empty field is reported as the matching core validation error.
func (f TransactionForm) Transaction() (core.Transaction, error) {
	if f.Date == "" {
		return core.Transaction{}, core.ErrInvalidDate
	}
	date, err := core.ParseDate(f.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	if f.Description == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}
	cents, err := core.ParseDecimalToCents(f.Amount)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		Date:        date,
		Description: f.Description,
		Type:        core.TransactionType(f.Type),
		Amount:      core.Money{Cents: cents},
	}
	return tx, tx.Validate()
}

// RequireMethod checks if the request method matches one of methods and
// returns a 405 response otherwise.
func RequireMethod(r *http.Request, methods ...string) *ResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *ResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseFormOrFail parses the request form and returns a 400 response on
// failure.
func ParseFormOrFail(r *http.Request) *ResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("リクエストの形式が正しくありません")
	}
	return nil
}
