package email

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/gomail.v2"

	"kerno/internal/config"
	"kerno/internal/queue"
)

// Args are the computed parts of a message, JSON-encodable so they can
// travel through a queue.
type Args struct {
	Subject    string   `json:"subject"`
	HTML       string   `json:"html"`
	Body       string   `json:"body"`
	Recipients []string `json:"recipients"`
	Sender     string   `json:"sender"`
	CC         []string `json:"cc"`
	BCC        []string `json:"bcc"`
	ReplyTo    string   `json:"reply_to,omitempty"`
}

// ToGomail converts the args into a gomail message with a plain text body
// and an HTML alternative.
func (a Args) ToGomail() *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", a.Sender)
	m.SetHeader("To", a.Recipients...)
	if len(a.CC) > 0 {
		m.SetHeader("Cc", a.CC...)
	}
	if len(a.BCC) > 0 {
		m.SetHeader("Bcc", a.BCC...)
	}
	if a.ReplyTo != "" {
		m.SetHeader("Reply-To", a.ReplyTo)
	}
	m.SetHeader("Subject", a.Subject)
	m.SetBody("text/plain", a.Body)
	if a.HTML != "" {
		m.AddAlternative("text/html", a.HTML)
	}
	return m
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, a Args) error
}

// SMTPSender delivers messages right away through an SMTP server.
type SMTPSender struct {
	send func(m ...*gomail.Message) error
	log  *slog.Logger
}

func NewSMTPSender(cfg *config.SMTPConfig) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &SMTPSender{send: d.DialAndSend, log: slog.With("component", "email")}
}

// NewSenderFunc delivers through fn instead of an SMTP server.
func NewSenderFunc(fn gomail.SendFunc) *SMTPSender {
	return &SMTPSender{
		send: func(m ...*gomail.Message) error { return gomail.Send(fn, m...) },
		log:  slog.With("component", "email"),
	}
}

func (s *SMTPSender) Send(ctx context.Context, a Args) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.send(a.ToGomail()); err != nil {
		return fmt.Errorf("sending %q: %w", a.Subject, err)
	}
	s.log.Info("email sent", "subject", a.Subject, "recipients", len(a.Recipients)+len(a.CC)+len(a.BCC))
	return nil
}

// QueueSender publishes messages for a Worker to deliver.
type QueueSender struct {
	pub   queue.Publisher
	queue string
}

func NewQueueSender(pub queue.Publisher, queueName string) *QueueSender {
	return &QueueSender{pub: pub, queue: queueName}
}

func (s *QueueSender) Send(ctx context.Context, a Args) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding email args: %w", err)
	}
	return s.pub.Publish(ctx, s.queue, body)
}

// ErrMalformed marks queued bodies that will never decode.
var ErrMalformed = errors.New("malformed email args")

// Deliver decodes a queued body and sends it.
func Deliver(ctx context.Context, s Sender, body []byte) error {
	var a Args
	if err := json.Unmarshal(body, &a); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(a.Recipients) == 0 {
		return fmt.Errorf("%w: %v", ErrMalformed, ErrNoRecipients)
	}
	return s.Send(ctx, a)
}

// Worker consumes the queue named queueName and delivers every message
// through s. Malformed messages are dropped; failed deliveries go back to
// the queue.
func Worker(queueName string, s Sender) queue.WorkerFunc {
	log := slog.With("component", "email", "queue", queueName)
	return func(ctx context.Context, conn *amqp.Connection) error {
		ch, err := queue.EnsureQueueExists(conn, queueName)
		if err != nil {
			return err
		}
		defer ch.Close()

		if err := ch.Qos(1, 0, false); err != nil {
			return err
		}
		deliveries, err := ch.ConsumeWithContext(ctx,
			queueName, // queue
			"mailer",  // consumer
			false,     // autoAck
			false,     // exclusive
			false,     // noLocal
			false,     // no wait
			nil,       // args
		)
		if err != nil {
			return err
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case d, ok := <-deliveries:
				if !ok {
					return fmt.Errorf("queue %s is closed", queueName)
				}
				err := Deliver(ctx, s, d.Body)
				switch {
				case err == nil:
					err = d.Ack(false)
				case errors.Is(err, ErrMalformed):
					log.Error("dropping email", "error", err)
					err = d.Nack(false, false)
				default:
					log.Error("email delivery failed", "error", err)
					err = d.Nack(false, true)
				}
				if err != nil {
					return fmt.Errorf("acknowledging delivery: %w", err)
				}
			}
		}
	}
}
