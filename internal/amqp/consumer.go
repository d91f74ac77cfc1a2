package amqp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rabbitmq/amqp091-go"
)

// EventHandler processes one decoded event. An error requeues the message.
type EventHandler func(ctx context.Context, ev *TransactionEvent) error

// outcome tells the consumer how to settle a delivery.
type outcome int

const (
	ack outcome = iota
	requeue
	reject
)

// ConsumeTransactionEvents delivers events from the client's queue to handler
// until ctx is cancelled or the channel closes.
func (c *Client) ConsumeTransactionEvents(ctx context.Context, handler EventHandler) error {
	c.mu.Lock()
	if c.channel == nil || c.channel.IsClosed() {
		if err := c.connectLocked(); err != nil {
			c.mu.Unlock()
			return err
		}
	}
	msgs, err := c.channel.Consume(
		c.routingKey, // queue
		"",           // consumer
		false,        // auto-ack (we want manual ack)
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming transaction events", "queue", c.routingKey)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping event consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			settle(delivery, handleDelivery(ctx, delivery.Body, handler))
		}
	}
}

func settle(d amqp091.Delivery, o outcome) {
	switch o {
	case ack:
		_ = d.Ack(false)
	case requeue:
		_ = d.Nack(false, true)
	default:
		_ = d.Nack(false, false)
	}
}

// handleDelivery decodes body and runs handler. Undecodable messages are
// rejected without requeueing.
func handleDelivery(ctx context.Context, body []byte, handler EventHandler) outcome {
	ev, err := TransactionEventFromJSON(body)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to unmarshal event", "error", err)
		return reject
	}
	if err := handler(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to handle event",
			"error", err,
			"type", ev.Type,
			"id", ev.ID)
		return requeue
	}
	return ack
}
