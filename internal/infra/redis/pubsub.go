package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

const eventChannelPrefix = "quiz:events:"

// Broadcaster publishes session events to Redis so every instance can deliver them to its
// own websocket subscribers. Channel name: quiz:events:{sessionID}:{participants|moderators}.
type Broadcaster struct {
	client *redis.Client
}

func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

func (b *Broadcaster) Publish(ctx context.Context, event domain.Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := b.client.Publish(ctx, eventChannel(event.SessionID, event.Channel), raw).Err(); err != nil {
		return domain.Transient(fmt.Errorf("publish event: %w", err))
	}
	return nil
}

func eventChannel(sessionID string, channel domain.Channel) string {
	return eventChannelPrefix + sessionID + ":" + string(channel)
}

// Deliverer hands a relayed event to local subscribers.
type Deliverer interface {
	Deliver(event domain.Event)
}

// Relay pattern-subscribes to every session channel and feeds events into the local hub.
type Relay struct {
	client *redis.Client
	local  Deliverer
	logger *slog.Logger
	ready  chan struct{}
}

func NewRelay(client *redis.Client, local Deliverer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{client: client, local: local, logger: logger, ready: make(chan struct{})}
}

// Ready is closed once the subscription is confirmed by Redis.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, eventChannelPrefix+"*")
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to session events: %w", err)
	}
	close(r.ready)
	r.logger.Info("redis event relay subscribed")

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			event, err := decodeEvent(msg.Channel, msg.Payload)
			if err != nil {
				r.logger.Warn("dropping relayed event", slog.String("channel", msg.Channel), slog.Any("error", err))
				continue
			}
			r.local.Deliver(event)
		}
	}
}

type wireEvent struct {
	SessionID string           `json:"sessionId"`
	Channel   domain.Channel   `json:"channel"`
	Type      domain.EventType `json:"type"`
	Payload   json.RawMessage  `json:"payload"`
}

func decodeEvent(channel, payload string) (domain.Event, error) {
	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return domain.Event{}, err
	}
	if !strings.HasPrefix(channel, eventChannelPrefix+w.SessionID+":") {
		return domain.Event{}, fmt.Errorf("event for session %q arrived on %q", w.SessionID, channel)
	}
	return domain.Event{
		SessionID: w.SessionID,
		Channel:   w.Channel,
		Type:      w.Type,
		Payload:   w.Payload,
	}, nil
}
