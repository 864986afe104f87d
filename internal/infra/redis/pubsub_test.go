package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestRelayDeliversPublishedEvents(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	hub := app.NewHub()
	moderators, cancelSub := hub.Subscribe("s1", domain.ChannelModerators)
	defer cancelSub()
	participants, cancelP := hub.Subscribe("s1", domain.ChannelParticipants)
	defer cancelP()

	relay := NewRelay(newClient(mr), hub, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case <-relay.Ready():
	case err := <-done:
		t.Fatalf("relay stopped early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not subscribe")
	}

	publisher := NewBroadcaster(newClient(mr))
	notice := domain.AnswerNotice{SessionID: "s1", UserID: "u1", DisplayName: "Alice", QuestionIndex: 0, ElapsedMs: 1200}
	if err := publisher.Publish(ctx, domain.Event{
		SessionID: "s1",
		Channel:   domain.ChannelModerators,
		Type:      domain.EventAnswerSubmitted,
		Payload:   notice,
	}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case ev := <-moderators:
		if ev.Type != domain.EventAnswerSubmitted || ev.SessionID != "s1" {
			t.Fatalf("unexpected event %+v", ev)
		}
		raw, ok := ev.Payload.(json.RawMessage)
		if !ok {
			t.Fatalf("expected raw payload, got %T", ev.Payload)
		}
		var got domain.AnswerNotice
		if err := json.Unmarshal(raw, &got); err != nil || got != notice {
			t.Fatalf("payload mismatch: %+v %v", got, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not relayed")
	}

	select {
	case ev := <-participants:
		t.Fatalf("participant channel received moderator event %s", ev.Type)
	default:
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("relay returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("relay did not stop")
	}
}

func TestDecodeEventRejectsMismatchedChannel(t *testing.T) {
	raw, _ := json.Marshal(domain.Event{SessionID: "s1", Channel: domain.ChannelParticipants, Type: domain.EventQuizEnded})
	if _, err := decodeEvent(eventChannel("s2", domain.ChannelParticipants), string(raw)); err == nil {
		t.Fatalf("expected mismatch error")
	}
	ev, err := decodeEvent(eventChannel("s1", domain.ChannelParticipants), string(raw))
	if err != nil || ev.Type != domain.EventQuizEnded {
		t.Fatalf("decode: %+v %v", ev, err)
	}
}
