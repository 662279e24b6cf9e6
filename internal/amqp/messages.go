package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kakeibo/internal/core"
)

const (
	EventTransactionAdded   = "transaction.added"
	EventTransactionDeleted = "transaction.deleted"
)

var ErrInvalidMessage = errors.New("invalid ledger event message")

// LedgerEventMessage announces a committed ledger mutation. It carries the
// full transaction so consumers never read the owner's store.
type LedgerEventMessage struct {
	Event       string           `json:"event"`
	UserID      string           `json:"user_id"`
	Transaction core.Transaction `json:"transaction"`
	Timestamp   time.Time        `json:"timestamp"`
}

func NewLedgerEventMessage(event, userID string, tx core.Transaction) *LedgerEventMessage {
	return &LedgerEventMessage{
		Event:       event,
		UserID:      userID,
		Transaction: tx,
		Timestamp:   time.Now().UTC(),
	}
}

func (m *LedgerEventMessage) Validate() error {
	switch m.Event {
	case EventTransactionAdded, EventTransactionDeleted:
	default:
		return fmt.Errorf("%w: unknown event %q", ErrInvalidMessage, m.Event)
	}
	if m.UserID == "" {
		return fmt.Errorf("%w: missing user_id", ErrInvalidMessage)
	}
	if m.Transaction.ID == "" {
		return fmt.Errorf("%w: missing transaction id", ErrInvalidMessage)
	}
	return nil
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes and validates a message body.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
