// Package app holds the application context shared by the HTTP layer:
// the credential store and the ledger book over one key-value store.
package app

import (
	"context"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/kv"
	"kakeibo/internal/ledger"
)

type App struct {
	Credentials *auth.Store
	Book        *ledger.Book
}

type options struct {
	authOpts   []auth.Option
	ledgerOpts []ledger.Option
}

type Option func(*options)

func WithAuthOptions(opts ...auth.Option) Option {
	return func(o *options) { o.authOpts = append(o.authOpts, opts...) }
}

func WithLedgerOptions(opts ...ledger.Option) Option {
	return func(o *options) { o.ledgerOpts = append(o.ledgerOpts, opts...) }
}

func New(store kv.Store, opts ...Option) *App {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &App{
		Credentials: auth.NewStore(store, o.authOpts...),
		Book:        ledger.NewBook(store, o.ledgerOpts...),
	}
}

// Session returns the current session or auth.ErrNotAuthenticated.
func (a *App) Session(ctx context.Context) (core.Session, error) {
	sess, ok, err := a.Credentials.Current(ctx)
	if err != nil {
		return core.Session{}, err
	}
	if !ok {
		return core.Session{}, auth.ErrNotAuthenticated
	}
	return sess, nil
}

// Ledger returns the current user's ledger or auth.ErrNotAuthenticated.
func (a *App) Ledger(ctx context.Context) (*ledger.Ledger, error) {
	sess, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}
	return a.Book.For(sess.ID), nil
}
