package app

import (
	"context"
	"sync"

	"live-quiz-service/internal/domain"
)

type hubKey struct {
	sessionID string
	channel   domain.Channel
}

// Hub is the in-process broadcast fabric: two logical channels per session (participants and
// moderators), each a set of buffered subscriber channels. Delivery is fire-and-forget.
type Hub struct {
	buffer int

	mu   sync.Mutex
	subs map[hubKey]map[chan domain.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		buffer: 16,
		subs:   make(map[hubKey]map[chan domain.Event]struct{}),
	}
}

// Subscribe returns a channel that receives events for one session channel.
// The caller must invoke the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(sessionID string, channel domain.Channel) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, h.buffer)
	key := hubKey{sessionID: sessionID, channel: channel}

	h.mu.Lock()
	set, ok := h.subs[key]
	if !ok {
		set = make(map[chan domain.Event]struct{})
		h.subs[key] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set, ok := h.subs[key]
		if !ok {
			return
		}
		if _, ok := set[ch]; ok {
			delete(set, ch)
			close(ch)
		}
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
	return ch, cancel
}

// Publish implements Publisher for single-instance deployments.
func (h *Hub) Publish(_ context.Context, event domain.Event) error {
	h.Deliver(event)
	return nil
}

// Deliver pushes an event to every local subscriber of its session channel.
func (h *Hub) Deliver(event domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[hubKey{sessionID: event.SessionID, channel: event.Channel}] {
		select {
		case ch <- event:
		default:
			// slow subscriber: drop its oldest event so the newest state gets through
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// Subscribers counts local subscribers of a session channel.
func (h *Hub) Subscribers(sessionID string, channel domain.Channel) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[hubKey{sessionID: sessionID, channel: channel}])
}
