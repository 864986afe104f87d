package rabbitmq

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestPublishingEnvelope(t *testing.T) {
	n, err := NewNotifier("", "quiz.sessions", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	fixed := time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	msg, err := n.publishing("session.ended", map[string]string{"sessionId": "s1"})
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("unexpected message properties %+v", msg)
	}
	if msg.Type != "session.ended" || msg.Headers["event_type"] != "session.ended" {
		t.Fatalf("event type not carried: %+v", msg)
	}

	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if env.EventType != "session.ended" || !env.OccurredAt.Equal(fixed) {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if string(env.Payload) != `{"sessionId":"s1"}` {
		t.Fatalf("unexpected payload %s", env.Payload)
	}
}

func TestDisabledNotifierDrops(t *testing.T) {
	n, err := NewNotifier("", "quiz.sessions", nil)
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := n.Notify(context.Background(), "session.started", struct{}{}); err != nil {
		t.Fatalf("disabled notify should not fail: %v", err)
	}
	if err := n.Notify(context.Background(), "session.started", make(chan int)); err == nil {
		t.Fatalf("expected marshal error for unencodable payload")
	}
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
