package ledger

import (
	"context"

	"kakeibo/internal/core"
)

const (
	EventTransactionAdded   = "transaction.added"
	EventTransactionDeleted = "transaction.deleted"
)

// Event describes a committed ledger mutation.
type Event struct {
	Kind        string
	UserID      string
	Transaction core.Transaction
}

// Publisher forwards ledger events to other systems.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
