package http

import (
	"errors"
	"net/http"

	"kakeibo/internal/auth"
	applog "kakeibo/internal/log"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)
	email := sanitizeInput(r.PostForm.Get("email"))

	sess, err := s.app.Credentials.Login(ctx, email, r.PostForm.Get("password"))
	if err != nil {
		msg, ok := userMessage(err)
		if !ok {
			logger.ErrorContext(ctx, "Login failed", applog.FieldOperation, applog.OpLogin, applog.FieldError, err)
			s.renderLogin(w, r, http.StatusInternalServerError, loginView{Email: email, Error: msg})
			return
		}
		status := http.StatusUnprocessableEntity
		if errors.Is(err, auth.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
		logger.WarnContext(ctx, "Login rejected", applog.FieldOperation, applog.OpLogin, applog.FieldError, err)
		s.renderLogin(w, r, status, loginView{Email: email, Error: msg})
		return
	}

	logger.InfoContext(ctx, "User logged in", applog.FieldOperation, applog.OpLogin, applog.FieldUserID, sess.ID)
	RedirectTo("/").Write(w)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)
	name := sanitizeInput(r.PostForm.Get("name"))
	email := sanitizeInput(r.PostForm.Get("email"))

	sess, err := s.app.Credentials.Register(ctx, name, email,
		r.PostForm.Get("password"), r.PostForm.Get("confirm_password"))
	if err != nil {
		view := loginView{RegisterName: name, RegisterEmail: email, ShowRegister: true}
		msg, ok := userMessage(err)
		view.RegisterError = msg
		if !ok {
			logger.ErrorContext(ctx, "Registration failed", applog.FieldOperation, applog.OpRegister, applog.FieldError, err)
			s.renderLogin(w, r, http.StatusInternalServerError, view)
			return
		}
		status := http.StatusUnprocessableEntity
		if errors.Is(err, auth.ErrEmailAlreadyRegistered) {
			status = http.StatusConflict
		}
		logger.WarnContext(ctx, "Registration rejected", applog.FieldOperation, applog.OpRegister, applog.FieldError, err)
		s.renderLogin(w, r, status, view)
		return
	}

	logger.InfoContext(ctx, "User registered", applog.FieldOperation, applog.OpRegister, applog.FieldUserID, sess.ID)
	RedirectTo("/").Write(w)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx := r.Context()
	if err := s.app.Credentials.Logout(ctx); err != nil {
		applog.FromContext(ctx).WithComponent(applog.ComponentAuth).ErrorContext(ctx, "Logout failed",
			applog.FieldOperation, applog.OpLogout, applog.FieldError, err)
		InternalServerError(msgInternal).Write(w)
		return
	}
	RedirectTo("/").Write(w)
}
