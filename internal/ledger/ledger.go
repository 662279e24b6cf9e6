// Package ledger stores each user's transactions under a per-user key and
// computes monthly and all-time aggregates over them.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	"kakeibo/internal/kv"
)

const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 10 * time.Minute
)

// Book hands out per-user ledgers over a shared store.
type Book struct {
	store     kv.Store
	cache     *cache.LRUCache[[]core.Transaction]
	publisher Publisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Book)

func WithPublisher(p Publisher) Option {
	return func(b *Book) {
		if p != nil {
			b.publisher = p
		}
	}
}

// WithCache replaces the default list cache.
func WithCache(c *cache.LRUCache[[]core.Transaction]) Option {
	return func(b *Book) {
		if c != nil {
			b.cache = c
		}
	}
}

func NewBook(store kv.Store, opts ...Option) *Book {
	b := &Book{
		store:     store,
		cache:     cache.NewLRUCache[[]core.Transaction](DefaultCacheSize, DefaultCacheTTL),
		publisher: noopPublisher{},
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cache exposes the list cache so it can be registered for expiry sweeps.
func (b *Book) Cache() *cache.LRUCache[[]core.Transaction] {
	return b.cache
}

// For returns the ledger of userID.
func (b *Book) For(userID string) *Ledger {
	return &Ledger{book: b, userID: userID, key: kv.TransactionsKey(userID)}
}

func (b *Book) lock(userID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		b.locks[userID] = m
	}
	return m
}

// Ledger is one user's transaction list.
type Ledger struct {
	book   *Book
	userID string
	key    string
}

func (l *Ledger) UserID() string { return l.userID }

// Add validates tx, assigns an id when empty and appends it.
func (l *Ledger) Add(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.ID == "" {
		tx.ID = core.NewID()
	}

	err := l.mutate(ctx, func(txs []core.Transaction) ([]core.Transaction, bool) {
		return append(txs, tx), true
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("add transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction added",
		"user_id", l.userID, "transaction_id", tx.ID, "type", tx.Type, "amount", tx.Amount.String())
	l.publish(ctx, Event{Kind: EventTransactionAdded, UserID: l.userID, Transaction: tx})
	return tx, nil
}

// Delete removes every transaction with id. Unknown ids are a no-op.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	var removed core.Transaction
	err := l.mutate(ctx, func(txs []core.Transaction) ([]core.Transaction, bool) {
		i := slices.IndexFunc(txs, func(t core.Transaction) bool { return t.ID == id })
		if i < 0 {
			return txs, false
		}
		removed = txs[i]
		return slices.DeleteFunc(txs, func(t core.Transaction) bool { return t.ID == id }), true
	})
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if removed.ID == "" {
		slog.DebugContext(ctx, "Delete of unknown transaction ignored", "user_id", l.userID, "transaction_id", id)
		return nil
	}

	slog.InfoContext(ctx, "Transaction deleted", "user_id", l.userID, "transaction_id", id)
	l.publish(ctx, Event{Kind: EventTransactionDeleted, UserID: l.userID, Transaction: removed})
	return nil
}

// All returns every transaction in insertion order.
func (l *Ledger) All(ctx context.Context) ([]core.Transaction, error) {
	return l.load(ctx)
}

// ByMonth returns the transactions of year and 0-based month0.
func (l *Ledger) ByMonth(ctx context.Context, year, month0 int) ([]core.Transaction, error) {
	all, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return InMonth(all, year, month0), nil
}

func (l *Ledger) MonthlyIncome(ctx context.Context, year, month0 int) (core.Money, error) {
	return l.monthlySum(ctx, year, month0, core.Income)
}

func (l *Ledger) MonthlyExpense(ctx context.Context, year, month0 int) (core.Money, error) {
	return l.monthlySum(ctx, year, month0, core.Expense)
}

// MonthlyBalance is MonthlyIncome minus MonthlyExpense.
func (l *Ledger) MonthlyBalance(ctx context.Context, year, month0 int) (core.Money, error) {
	items, err := l.ByMonth(ctx, year, month0)
	if err != nil {
		return core.Money{}, err
	}
	return SumType(items, core.Income).Sub(SumType(items, core.Expense)), nil
}

// TotalBalance is the running balance over all time.
func (l *Ledger) TotalBalance(ctx context.Context) (core.Money, error) {
	all, err := l.load(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return Balance(all), nil
}

// Summary reads the list once and computes the whole month view.
func (l *Ledger) Summary(ctx context.Context, year, month0 int) (core.MonthSummary, error) {
	all, err := l.load(ctx)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return Summarize(all, year, month0), nil
}

func (l *Ledger) monthlySum(ctx context.Context, year, month0 int, typ core.TransactionType) (core.Money, error) {
	items, err := l.ByMonth(ctx, year, month0)
	if err != nil {
		return core.Money{}, err
	}
	return SumType(items, typ), nil
}

// load returns a copy of the list; callers may modify it freely.
func (l *Ledger) load(ctx context.Context) ([]core.Transaction, error) {
	if txs, ok := l.book.cache.Get(l.key); ok {
		return slices.Clone(txs), nil
	}
	txs, _, err := kv.GetJSON[[]core.Transaction](ctx, l.book.store, l.key)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	l.book.cache.Set(l.key, slices.Clone(txs))
	return txs, nil
}

// mutate runs fn under the user's lock and persists the result when fn
// reports a change.
func (l *Ledger) mutate(ctx context.Context, fn func([]core.Transaction) ([]core.Transaction, bool)) error {
	m := l.book.lock(l.userID)
	m.Lock()
	defer m.Unlock()

	txs, err := l.load(ctx)
	if err != nil {
		return err
	}
	next, changed := fn(txs)
	if !changed {
		return nil
	}
	if err := kv.SetJSON(ctx, l.book.store, l.key, next); err != nil {
		l.book.cache.Delete(l.key)
		return fmt.Errorf("save transactions: %w", err)
	}
	l.book.cache.Set(l.key, slices.Clone(next))
	return nil
}

func (l *Ledger) publish(ctx context.Context, e Event) {
	if err := l.book.publisher.Publish(ctx, e); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event", e.Kind, "user_id", e.UserID, "transaction_id", e.Transaction.ID, "error", err)
	}
}
