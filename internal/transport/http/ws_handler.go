package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const maxMessageBytes = 64 << 10

// Identifier resolves the caller of an HTTP request.
type Identifier interface {
	Identify(r *http.Request) (domain.Identity, error)
}

type WSHandler struct {
	service  *app.SessionService
	hub      *app.Hub
	identify Identifier
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService, hub *app.Hub, identify Identifier, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:  service,
		hub:      hub,
		identify: identify,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type joinPayload struct {
	Code        string `json:"code"`
	DisplayName string `json:"displayName"`
}

type codePayload struct {
	Code string `json:"code"`
}

type sessionPayload struct {
	SessionID string `json:"sessionId"`
}

type answerPayload struct {
	SessionID     string `json:"sessionId"`
	QuestionIndex int    `json:"questionIndex"`
	Selections    []int  `json:"selections"`
	ElapsedMs     int64  `json:"elapsedMs"`
}

type nextPayload struct {
	SessionID string `json:"sessionId"`
	FromIndex *int   `json:"fromIndex"`
}

type subscription struct {
	sessionID string
	channel   domain.Channel
}

// wsConn is one websocket client. Only the writer goroutine touches the socket for writes.
type wsConn struct {
	h    *WSHandler
	conn *websocket.Conn
	who  domain.Identity

	send       chan outboundMessage[any]
	closing    chan struct{}
	writerDone chan struct{}

	forwarders sync.WaitGroup
	subs       map[subscription]func()

	// shown is the question index last delivered to this moderator, per session; a
	// next-question without fromIndex advances from it.
	mu    sync.Mutex
	shown map[string]int
}

// ServeWS authenticates the upgrade request, then serves the message catalog until the client
// disconnects. Broadcast subscriptions open after a successful join or teacher-join.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	who, err := h.identify.Identify(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	metrics.Connections.Inc()
	defer metrics.Connections.Dec()

	c := &wsConn{
		h:          h,
		conn:       conn,
		who:        who,
		send:       make(chan outboundMessage[any], 32),
		closing:    make(chan struct{}),
		writerDone: make(chan struct{}),
		subs:       make(map[subscription]func()),
		shown:      make(map[string]int),
	}

	go c.writeLoop()

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("ws read ended", "user", who.UserID, "err", err)
			}
			break
		}
		c.dispatch(ctx, inbound)
	}

	close(c.closing)
	for _, cancel := range c.subs {
		cancel()
	}
	c.forwarders.Wait()
	close(c.send)
	<-c.writerDone
}

func (c *wsConn) writeLoop() {
	defer close(c.writerDone)
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			c.h.logger.Debug("ws write failed", "user", c.who.UserID, "err", err)
			// unblocks the reader; remaining messages are drained and dropped
			_ = c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

func (c *wsConn) reply(msgType string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: msgType, Payload: payload}:
	case <-c.writerDone:
	}
}

func (c *wsConn) fail(err error) {
	if domain.KindOf(err) == domain.KindInternal {
		c.h.logger.Error("ws request failed", "user", c.who.UserID, "err", err)
	}
	c.reply("error", errorBody(err))
}

func (c *wsConn) subscribe(sessionID string, channel domain.Channel) {
	key := subscription{sessionID: sessionID, channel: channel}
	if _, ok := c.subs[key]; ok {
		return
	}
	events, cancel := c.h.hub.Subscribe(sessionID, channel)
	c.subs[key] = cancel

	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if channel == domain.ChannelModerators && (ev.Type == domain.EventQuestionStarted || ev.Type == domain.EventQuestionAdvanced) {
					if idx, ok := questionIndexOf(ev.Payload); ok {
						c.markShown(sessionID, idx)
					}
				}
				select {
				case c.send <- outboundMessage[any]{Type: string(ev.Type), Payload: ev.Payload}:
				case <-c.closing:
					return
				case <-c.writerDone:
					return
				}
			case <-c.closing:
				return
			}
		}
	}()
}

func (c *wsConn) markShown(sessionID string, idx int) {
	c.mu.Lock()
	c.shown[sessionID] = idx
	c.mu.Unlock()
}

func (c *wsConn) lastShown(sessionID string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.shown[sessionID]
	return idx, ok
}

// questionIndexOf reads the question index carried by a moderator broadcast. Relayed events
// arrive with raw JSON payloads.
func questionIndexOf(payload any) (int, bool) {
	switch p := payload.(type) {
	case domain.ModeratorQuestionView:
		return p.QuestionIndex, true
	case app.AdvanceResult:
		return p.CurrentIndex, !p.Ended
	case json.RawMessage:
		var v struct {
			QuestionIndex *int `json:"questionIndex"`
			CurrentIndex  *int `json:"currentQuestionIndex"`
			Ended         bool `json:"ended"`
		}
		if err := json.Unmarshal(p, &v); err != nil || v.Ended {
			return 0, false
		}
		if v.CurrentIndex != nil {
			return *v.CurrentIndex, true
		}
		if v.QuestionIndex != nil {
			return *v.QuestionIndex, true
		}
	}
	return 0, false
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, domain.Validationf("payload is required")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, domain.Validationf("invalid payload: %v", err)
	}
	return v, nil
}

func (c *wsConn) dispatch(ctx context.Context, in inboundMessage) {
	svc := c.h.service
	switch in.Type {
	case "ping":
		c.reply("pong", struct{}{})

	case "join":
		p, err := decode[joinPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		res, err := svc.Join(ctx, p.Code, c.who, p.DisplayName)
		if err != nil {
			c.fail(err)
			return
		}
		c.subscribe(res.Session.ID, domain.ChannelParticipants)
		c.reply("joined", res)

	case "teacher-join":
		p, err := decode[codePayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		snap, err := svc.ModeratorJoin(ctx, p.Code, c.who)
		if err != nil {
			c.fail(err)
			return
		}
		c.subscribe(snap.Session.ID, domain.ChannelModerators)
		if snap.Question != nil {
			c.markShown(snap.Session.ID, snap.Question.QuestionIndex)
		}
		c.reply("moderator-joined", snap)

	case "start":
		p, err := decode[sessionPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		q, err := svc.Start(ctx, p.SessionID, c.who)
		if err != nil {
			c.fail(err)
			return
		}
		c.markShown(p.SessionID, q.QuestionIndex)
		c.reply("started", q)

	case "answer":
		p, err := decode[answerPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		ack, err := svc.SubmitAnswer(ctx, c.who, domain.AnswerSubmission{
			SessionID:     p.SessionID,
			QuestionIndex: p.QuestionIndex,
			Selected:      p.Selections,
			ElapsedMs:     p.ElapsedMs,
		})
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("answer-received", ack)

	case "next-question":
		p, err := decode[nextPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		from, ok := c.lastShown(p.SessionID)
		if p.FromIndex != nil {
			from, ok = *p.FromIndex, true
		}
		if !ok {
			c.fail(domain.Validationf("fromIndex is required before a question has been shown on this connection"))
			return
		}
		res, err := svc.Advance(ctx, p.SessionID, c.who, from)
		if err != nil {
			c.fail(err)
			return
		}
		if !res.Ended {
			c.markShown(p.SessionID, res.CurrentIndex)
		}
		c.reply("question-advanced", res)

	case "pause":
		p, err := decode[sessionPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		sess, err := svc.Pause(ctx, p.SessionID, c.who)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("quiz-paused", domain.ViewOf(sess))

	case "resume":
		p, err := decode[sessionPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		sess, err := svc.Resume(ctx, p.SessionID, c.who)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("quiz-resumed", domain.ViewOf(sess))

	case "end-quiz":
		p, err := decode[sessionPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		lb, err := svc.End(ctx, p.SessionID, c.who)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("leaderboard", lb)

	case "get-leaderboard":
		p, err := decode[sessionPayload](in.Payload)
		if err != nil {
			c.fail(err)
			return
		}
		lb, err := svc.Leaderboard(ctx, p.SessionID, c.who)
		if err != nil {
			c.fail(err)
			return
		}
		c.reply("leaderboard", lb)

	default:
		c.fail(domain.Validationf("unsupported message type %q", in.Type))
	}
}
