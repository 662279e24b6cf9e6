package http

import (
	"bytes"
	"errors"
	"net/http"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
)

type pageData struct {
	Authenticated bool
	Login         loginView
	Dashboard     dashboardView
}

type loginView struct {
	Email string
	Error string

	ShowRegister  bool
	RegisterName  string
	RegisterEmail string
	RegisterError string
}

type dashboardView struct {
	UserName string
	// Month is the YYYY-MM value of the month picker.
	Month string
	Today string

	Income          string
	Expense         string
	Balance         string
	Total           string
	BalanceNegative bool
	TotalNegative   bool

	Rows          []transactionRow
	EmptyMessage  string
	DeleteConfirm string

	FormError string
	Form      TransactionForm
}

type transactionRow struct {
	ID          string
	Date        string
	Description string
	Type        string
	TypeClass   string
	Amount      string
}

// handleIndex shows the login page without a session, otherwise the
// dashboard for the requested month.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireMethod(r, http.MethodGet, http.MethodHead); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	sess, err := s.app.Session(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		s.renderLogin(w, r, http.StatusOK, loginView{})
		return
	}
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to read session", applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}

	month := ParseMonthParams(r.URL.Query(), s.now())
	s.renderDashboard(w, r, http.StatusOK, sess, month, "", TransactionForm{})
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, view loginView) {
	s.render(w, r, status, pageData{Login: view})
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, status int, sess core.Session, month MonthParams, formError string, form TransactionForm) {
	ctx := r.Context()
	summary, err := s.app.Book.For(sess.ID).Summary(ctx, month.Year, month.Month0)
	if err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentLedger).ErrorContext(ctx, "Failed to load month summary",
			applog.FieldUserID, sess.ID,
			applog.FieldYear, month.Year,
			applog.FieldMonth, month.Month0,
			applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}

	if form.Date == "" {
		form.Date = s.now().Format(core.DateLayout)
	}

	view := dashboardView{
		UserName:        sess.Name,
		Month:           month.Filter(),
		Today:           s.now().Format(core.DateLayout),
		Income:          formatYen(summary.Income),
		Expense:         formatYen(summary.Expense),
		Balance:         formatYen(summary.Balance),
		Total:           formatYen(summary.Total),
		BalanceNegative: summary.Balance.Cents < 0,
		TotalNegative:   summary.Total.Cents < 0,
		EmptyMessage:    msgNoData,
		DeleteConfirm:   msgDeleteConfirm,
		FormError:       formError,
		Form:            form,
	}
	for _, tx := range summary.Items {
		view.Rows = append(view.Rows, transactionRow{
			ID:          tx.ID,
			Date:        formatDate(tx.Date),
			Description: tx.Description,
			Type:        typeLabel(tx.Type),
			TypeClass:   string(tx.Type),
			Amount:      formatYen(tx.Amount),
		})
	}

	s.render(w, r, status, pageData{Authenticated: true, Dashboard: view})
}

// render executes the page into a buffer first so a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		ctx := r.Context()
		applog.FromContext(ctx).WithComponent(applog.ComponentTemplate).ErrorContext(ctx, "Template execution failed",
			"template", "index.html", applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
