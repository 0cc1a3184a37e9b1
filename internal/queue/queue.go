// Package queue talks to RabbitMQ: it keeps a connection alive, runs the
// consumers registered on it and publishes JSON messages.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConnected is returned when publishing before the connection is up.
var ErrNotConnected = errors.New("connection is not open yet")

// Publisher publishes a message body under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// WorkerFunc runs on every (re)connection until its context is cancelled.
type WorkerFunc func(context.Context, *amqp.Connection) error

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
}

type Queue struct {
	config  *Config
	conn    *amqp.Connection
	workers []WorkerFunc
	cancel  context.CancelFunc
	mu      sync.Mutex
	log     *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config: config,
		log:    slog.With("component", "queue"),
	}
}

// Start connects and reconnects until ctx is done.
func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("starting the queue manager")
	defer q.log.Info("stopping the queue manager")

	return q.reconnectLoop(ctx)
}

// RegisterWorker stores a worker invoked every time the connection is (re)created.
func (q *Queue) RegisterWorker(w WorkerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.workers = append(q.workers, w)
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.cleanup()
			return ctx.Err()
		default:
		}

		q.log.Info("connecting to RabbitMQ")
		conn, err := q.connect(ctx)
		if err != nil {
			q.log.Error("connection to RabbitMQ failed", "error", err)
			if !sleep(ctx, q.config.ReconnectInterval) {
				return ctx.Err()
			}
			continue
		}
		q.log.Info("connected to RabbitMQ")

		connErrors := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			q.cleanup()
			return ctx.Err()
		case err := <-connErrors:
			q.log.Error("RabbitMQ connection closed", "error", err)
		}

		q.cleanup()
		if !sleep(ctx, q.config.ReconnectInterval) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (q *Queue) connect(ctx context.Context) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, err
	}

	workerCtx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.conn = conn
	q.cancel = cancel
	workers := append([]WorkerFunc{}, q.workers...)
	q.mu.Unlock()

	for _, w := range workers {
		go func(w WorkerFunc) {
			if err := w(workerCtx, conn); err != nil && !errors.Is(err, context.Canceled) {
				q.log.Error("queue worker stopped", "error", err)
			}
		}(w)
	}
	return conn, nil
}

func (q *Queue) cleanup() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	if q.conn != nil && !q.conn.IsClosed() {
		_ = q.conn.Close()
	}
	q.conn = nil
}

// Publish sends body to the queue named routingKey on the default exchange.
func (q *Queue) Publish(ctx context.Context, routingKey string, body []byte) error {
	q.mu.Lock()
	conn := q.conn
	q.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("couldn't open channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		"",         // exchange: empty means default (direct to queue)
		routingKey, // routing key = queue name
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		q.log.Error("failed to publish", "routing_key", routingKey, "error", err)
		return err
	}
	return nil
}

// EnsureQueueExists declares the durable queue name and returns the
// channel used to declare it.
func EnsureQueueExists(conn *amqp.Connection, name string) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declaring queue %s: %w", name, err)
	}
	return ch, nil
}
