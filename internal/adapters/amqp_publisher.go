// Package adapters connects the ledger to outbound transports.
package adapters

import (
	"context"
	"log/slog"

	"kakeibo/internal/amqp"
	"kakeibo/internal/ledger"
)

// EventSink is the part of amqp.Client the publisher needs.
type EventSink interface {
	PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// AMQPPublisher turns ledger events into AMQP messages.
type AMQPPublisher struct {
	sink EventSink
}

var _ ledger.Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher returns a publisher over sink. A nil sink yields a
// publisher that drops events, so the app runs without a broker.
func NewAMQPPublisher(sink EventSink) *AMQPPublisher {
	return &AMQPPublisher{sink: sink}
}

func (p *AMQPPublisher) Publish(ctx context.Context, e ledger.Event) error {
	if p.sink == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping ledger event", "event", e.Kind)
		return nil
	}
	return p.sink.PublishLedgerEvent(ctx, amqp.NewLedgerEventMessage(e.Kind, e.UserID, e.Transaction))
}
