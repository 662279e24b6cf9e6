package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"kakeibo/internal/auth"
	applog "kakeibo/internal/log"
)

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentLedger)

	sess, err := s.app.Session(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		RedirectTo("/").Write(w)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read session", applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}

	month := ParseMonthParams(r.PostForm, s.now())
	form := ReadTransactionForm(r.PostForm)

	tx, err := form.Transaction()
	if err == nil {
		tx, err = s.app.Book.For(sess.ID).Add(ctx, tx)
	}
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			logger.ErrorContext(ctx, "Failed to add transaction",
				applog.FieldOperation, applog.OpAdd, applog.FieldUserID, sess.ID, applog.FieldError, err)
			InternalServerError(msg).Write(w)
			return
		}
		logger.WarnContext(ctx, "Transaction rejected",
			applog.FieldOperation, applog.OpAdd, applog.FieldUserID, sess.ID, applog.FieldError, err)
		s.renderDashboard(w, r, http.StatusUnprocessableEntity, sess, month, msg, form)
		return
	}

	logger.Fields(ctx, slog.LevelInfo, "Transaction recorded", applog.NewFields().
		WithOperation(applog.OpAdd).
		WithUser(sess.ID).
		WithTransaction(tx.ID, string(tx.Type), tx.Amount.String()))
	RedirectTo("/?month=" + month.Filter()).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentLedger)

	l, err := s.app.Ledger(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		RedirectTo("/").Write(w)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read session", applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}

	month := ParseMonthParams(r.PostForm, s.now())
	id := strings.TrimSpace(r.PostForm.Get("id"))
	if err := l.Delete(ctx, id); err != nil {
		fields := applog.NewFields().WithOperation(applog.OpDelete).WithUser(l.UserID()).WithError(err)
		fields[applog.FieldTransactionID] = id
		logger.Fields(ctx, slog.LevelError, "Failed to delete transaction", fields)
		InternalServerError(msgInternal).Write(w)
		return
	}
	RedirectTo("/?month=" + month.Filter()).Write(w)
}
