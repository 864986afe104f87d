// Package rabbitmq publishes session lifecycle notifications to a topic exchange.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Envelope is the message body consumers receive.
type Envelope struct {
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Notifier implements app.LifecycleNotifier. With an empty URL it logs and drops.
type Notifier struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
	logger   *slog.Logger
	now      func() time.Time
}

func NewNotifier(url, exchange string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{exchange: exchange, logger: logger, now: time.Now}
	if url == "" {
		logger.Warn("rabbitmq url empty, lifecycle notifications disabled")
		return n, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	n.conn = conn
	n.channel = ch
	n.enabled = true
	logger.Info("lifecycle notifier ready", "exchange", exchange)
	return n, nil
}

func (n *Notifier) Notify(ctx context.Context, eventType string, payload any) error {
	msg, err := n.publishing(eventType, payload)
	if err != nil {
		return err
	}
	if !n.enabled {
		n.logger.Debug("notification dropped", "type", eventType)
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.channel.PublishWithContext(ctx, n.exchange, eventType, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// publishing builds the AMQP message; the routing key is the event type.
func (n *Notifier) publishing(eventType string, payload any) (amqp091.Publishing, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	now := n.now().UTC()
	body, err := json.Marshal(Envelope{EventType: eventType, OccurredAt: now, Payload: raw})
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}
	return amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    now,
		Type:         eventType,
		Body:         body,
		Headers:      amqp091.Table{"event_type": eventType},
	}, nil
}

func (n *Notifier) Close() error {
	if !n.enabled {
		return nil
	}
	if err := n.channel.Close(); err != nil {
		n.logger.Warn("close rabbitmq channel", "err", err)
	}
	if err := n.conn.Close(); err != nil {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}
	return nil
}
