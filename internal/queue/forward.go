package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"kerno/internal/event"
)

// Message is the JSON body of a forwarded event.
type Message[E any] struct {
	Pattern string `json:"pattern"`
	Data    E      `json:"data"`
}

// Forward subscribes a handler publishing every event of type E as JSON
// under routingKey. The handler is named "amqp:" followed by the key.
func Forward[E any](hub *event.Hub, pub Publisher, routingKey string) error {
	return event.Subscribe(hub, "amqp:"+routingKey, func(ctx context.Context, e E) error {
		body, err := json.Marshal(Message[E]{Pattern: routingKey, Data: e})
		if err != nil {
			return fmt.Errorf("encoding %T: %w", e, err)
		}
		return pub.Publish(ctx, routingKey, body)
	})
}

// Declare returns a worker declaring the durable queue name on every
// connection, so forwarded events are kept until someone consumes them.
func Declare(name string) WorkerFunc {
	return func(_ context.Context, conn *amqp.Connection) error {
		ch, err := EnsureQueueExists(conn, name)
		if err != nil {
			return err
		}
		return ch.Close()
	}
}
