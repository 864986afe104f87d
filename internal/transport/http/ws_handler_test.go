package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*httptest.Server
	store *memory.SessionStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewSessionStore()
	quizRepo := memory.NewQuizRepository(memory.NewStaticQuizLoader(sampleQuiz()), time.Minute)
	hub := app.NewHub()
	service := app.NewSessionService(store, quizRepo, app.Options{
		Answers:   memory.NewAnswerLog(),
		Cache:     memory.NewSummaryCache(),
		Publisher: hub,
		Logger:    logger,
		Shuffle:   func(int, func(i, j int)) {},
	})
	router := NewRouter(RouterConfig{
		Service:    service,
		Hub:        hub,
		Identifier: auth.NewVerifier("", "", []string{"root"}, true),
		Logger:     logger,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testServer{Server: server, store: store}
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	header := http.Header{}
	header.Set(auth.UserHeader, userID)
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *testServer) createSession(t *testing.T, userID string) domain.SessionView {
	t.Helper()
	resp := s.do(t, "POST", "/api/sessions", userID, `{"quizId":"quiz-1"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session: status %d", resp.StatusCode)
	}
	var view domain.SessionView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return view
}

func (s *testServer) do(t *testing.T, method, path, userID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.URL+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(auth.UserHeader, userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

type frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": msgType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads frames until one of the wanted type arrives, skipping broadcasts it is not after.
func readUntil(t *testing.T, conn *websocket.Conn, want string, into any) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if f.Type == "error" && want != "error" {
			t.Fatalf("waiting for %s, got error %s", want, f.Payload)
		}
		if f.Type != want {
			continue
		}
		if into != nil {
			if err := json.Unmarshal(f.Payload, into); err != nil {
				t.Fatalf("decode %s: %v", want, err)
			}
		}
		return
	}
}

func TestWebSocketQuizFlow(t *testing.T) {
	srv := newTestServer(t)
	view := srv.createSession(t, "teacher-1")

	teacherConn := srv.dial(t, "teacher-1")
	send(t, teacherConn, "teacher-join", map[string]any{"code": view.Code})
	var snap app.ModeratorSnapshot
	readUntil(t, teacherConn, "moderator-joined", &snap)
	if snap.Session.ID != view.ID || snap.Session.Status != domain.StatusWaiting {
		t.Fatalf("unexpected moderator snapshot %+v", snap.Session)
	}

	student := srv.dial(t, "u-alice")
	send(t, student, "join", map[string]any{"code": view.Code, "displayName": "Alice"})
	var joined app.JoinResult
	readUntil(t, student, "joined", &joined)
	if joined.Participant.UserID != "u-alice" || joined.Rejoined {
		t.Fatalf("unexpected join result %+v", joined)
	}

	var notice domain.ParticipantSummary
	readUntil(t, teacherConn, "participant-joined", &notice)
	if notice.DisplayName != "Alice" {
		t.Fatalf("unexpected participant-joined payload %+v", notice)
	}

	send(t, teacherConn, "start", map[string]any{"sessionId": view.ID})
	var started domain.ModeratorQuestionView
	readUntil(t, teacherConn, "started", &started)
	if started.QuestionIndex != 0 || !started.Options[1].Correct {
		t.Fatalf("moderator view must carry correctness: %+v", started)
	}

	var question domain.ParticipantQuestionView
	readUntil(t, student, "question-started", &question)
	if question.QuestionIndex != 0 || len(question.Options) != 3 {
		t.Fatalf("unexpected participant view %+v", question)
	}

	send(t, student, "answer", map[string]any{
		"sessionId":     view.ID,
		"questionIndex": 0,
		"selections":    []int{1},
		"elapsedMs":     0,
	})
	var ack domain.AnswerAck
	readUntil(t, student, "answer-received", &ack)
	if !ack.Correct || ack.Points != 100 || ack.TotalScore != 100 {
		t.Fatalf("unexpected ack %+v", ack)
	}
	readUntil(t, teacherConn, "answer-submitted", nil)

	send(t, student, "answer", map[string]any{"sessionId": view.ID, "questionIndex": 0, "selections": []int{1}})
	var errFrame errorPayload
	readUntil(t, student, "error", &errFrame)
	if errFrame.Kind != domain.KindState {
		t.Fatalf("duplicate answer should be a state error, got %+v", errFrame)
	}

	send(t, teacherConn, "end-quiz", map[string]any{"sessionId": view.ID})
	var lb domain.Leaderboard
	readUntil(t, teacherConn, "leaderboard", &lb)
	if len(lb.Entries) != 1 || lb.Entries[0].Score != 100 || lb.Entries[0].Rank != 1 {
		t.Fatalf("unexpected final leaderboard %+v", lb)
	}
	readUntil(t, student, "quiz-ended", nil)
}

func TestWebSocketRejectsUnauthorizedControl(t *testing.T) {
	srv := newTestServer(t)
	view := srv.createSession(t, "teacher-1")

	student := srv.dial(t, "u-bob")
	send(t, student, "start", map[string]any{"sessionId": view.ID})
	var errFrame errorPayload
	readUntil(t, student, "error", &errFrame)
	if errFrame.Kind != domain.KindAuthorization {
		t.Fatalf("expected authorization error, got %+v", errFrame)
	}

	sess, err := srv.store.GetByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != domain.StatusWaiting {
		t.Fatalf("unauthorized start changed status to %s", sess.Status)
	}

	send(t, student, "teacher-join", map[string]any{"code": view.Code})
	readUntil(t, student, "error", &errFrame)
	if errFrame.Kind != domain.KindAuthorization {
		t.Fatalf("expected authorization error on teacher-join, got %+v", errFrame)
	}
}

func TestWebSocketProtocolErrors(t *testing.T) {
	srv := newTestServer(t)
	conn := srv.dial(t, "u-carol")

	send(t, conn, "ping", nil)
	readUntil(t, conn, "pong", nil)

	send(t, conn, "dance", map[string]any{})
	var errFrame errorPayload
	readUntil(t, conn, "error", &errFrame)
	if errFrame.Kind != domain.KindValidation {
		t.Fatalf("unknown type should be a validation error, got %+v", errFrame)
	}

	send(t, conn, "join", "not-an-object")
	readUntil(t, conn, "error", &errFrame)
	if errFrame.Kind != domain.KindValidation {
		t.Fatalf("bad payload should be a validation error, got %+v", errFrame)
	}

	send(t, conn, "join", map[string]any{"code": "000000", "displayName": "Carol"})
	readUntil(t, conn, "error", &errFrame)
	if errFrame.Kind != domain.KindNotFound {
		t.Fatalf("unknown code should be not_found, got %+v", errFrame)
	}
}

func TestWebSocketConcurrentNextQuestionWithoutIndexAdvancesOnce(t *testing.T) {
	srv := newTestServer(t)
	view := srv.createSession(t, "teacher-1")

	teacherConn := srv.dial(t, "teacher-1")
	adminConn := srv.dial(t, "root")

	send(t, adminConn, "next-question", map[string]any{"sessionId": view.ID})
	var errFrame errorPayload
	readUntil(t, adminConn, "error", &errFrame)
	if errFrame.Kind != domain.KindValidation {
		t.Fatalf("next-question before any question was shown should be a validation error, got %+v", errFrame)
	}

	for _, conn := range []*websocket.Conn{teacherConn, adminConn} {
		send(t, conn, "teacher-join", map[string]any{"code": view.Code})
		readUntil(t, conn, "moderator-joined", nil)
	}
	send(t, teacherConn, "start", map[string]any{"sessionId": view.ID})
	readUntil(t, teacherConn, "started", nil)
	readUntil(t, adminConn, "question-started", nil)

	// Both moderators press next on question 0 without naming it.
	done := make(chan struct{}, 2)
	for _, conn := range []*websocket.Conn{teacherConn, adminConn} {
		go func(conn *websocket.Conn) {
			_ = conn.WriteJSON(map[string]any{"type": "next-question", "payload": map[string]any{"sessionId": view.ID}})
			done <- struct{}{}
		}(conn)
	}
	<-done
	<-done

	// Each connection sees its own reply plus the broadcast of the single advance.
	for _, conn := range []*websocket.Conn{teacherConn, adminConn} {
		for i := 0; i < 2; i++ {
			var res app.AdvanceResult
			readUntil(t, conn, "question-advanced", &res)
			if res.Ended || res.CurrentIndex != 1 {
				t.Fatalf("expected question 1 to be current, got %+v", res)
			}
		}
	}

	sess, err := srv.store.GetByID(context.Background(), view.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Status != domain.StatusActive || sess.CurrentQuestionIndex != 1 {
		t.Fatalf("expected a single advance, session is %s at %d", sess.Status, sess.CurrentQuestionIndex)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	srv := newTestServer(t)
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial without identity to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

func sampleQuiz() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Arithmetic",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Type:   domain.QuestionMultipleChoice,
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5"},
					},
					TimeLimitMs: 10000,
					Points:      100,
				},
				{
					ID:     "q2",
					Prompt: "The sky is green.",
					Type:   domain.QuestionTrueFalse,
					Options: []domain.Option{
						{ID: "t", Text: "True"},
						{ID: "f", Text: "False", Correct: true},
					},
					TimeLimitMs: 5000,
					Points:      50,
				},
			},
		},
	}
}
