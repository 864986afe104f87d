package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"live-quiz-service/internal/domain"
)

func TestRESTCreateAndLookup(t *testing.T) {
	srv := newTestServer(t)
	view := srv.createSession(t, "teacher-1")
	if view.Status != domain.StatusWaiting || view.CurrentQuestionIndex != -1 || view.TotalQuestions != 2 {
		t.Fatalf("unexpected created session %+v", view)
	}

	again := srv.createSession(t, "teacher-1")
	if again.ID != view.ID || again.Code != view.Code {
		t.Fatalf("expected the live session to be returned, got %s vs %s", again.ID, view.ID)
	}

	for _, path := range []string{"/api/sessions/" + view.ID, "/api/sessions/code/" + view.Code} {
		resp := srv.do(t, "GET", path, "u-anyone", "")
		var got domain.SessionView
		err := json.NewDecoder(resp.Body).Decode(&got)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || err != nil || got.ID != view.ID {
			t.Fatalf("GET %s: status %d err %v id %s", path, resp.StatusCode, err, got.ID)
		}
	}

	resp := srv.do(t, "GET", "/api/quizzes/quiz-1/sessions", "u-anyone", "")
	var list struct {
		Sessions []domain.SessionView `json:"sessions"`
	}
	err := json.NewDecoder(resp.Body).Decode(&list)
	resp.Body.Close()
	if err != nil || len(list.Sessions) != 1 {
		t.Fatalf("list sessions: %v %+v", err, list)
	}
}

func TestRESTErrorStatuses(t *testing.T) {
	srv := newTestServer(t)
	view := srv.createSession(t, "teacher-1")

	cases := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		status int
		kind   domain.Kind
	}{
		{"no identity", "GET", "/api/sessions/" + view.ID, "", "", http.StatusUnauthorized, domain.KindAuthorization},
		{"malformed code", "GET", "/api/sessions/code/12ab56", "u1", "", http.StatusBadRequest, domain.KindValidation},
		{"unknown code", "GET", "/api/sessions/code/000000", "u1", "", http.StatusNotFound, domain.KindNotFound},
		{"unknown id", "GET", "/api/sessions/nope", "u1", "", http.StatusNotFound, domain.KindNotFound},
		{"unknown quiz", "POST", "/api/sessions", "u1", `{"quizId":"missing"}`, http.StatusNotFound, domain.KindNotFound},
		{"missing quiz id", "POST", "/api/sessions", "u1", `{}`, http.StatusBadRequest, domain.KindValidation},
		{"bad body", "POST", "/api/sessions", "u1", `{`, http.StatusBadRequest, domain.KindValidation},
		{"leaderboard by stranger", "GET", "/api/sessions/" + view.ID + "/leaderboard", "u1", "", http.StatusForbidden, domain.KindAuthorization},
	}
	for _, tc := range cases {
		resp := srv.do(t, tc.method, tc.path, tc.user, tc.body)
		var body struct {
			Error errorPayload `json:"error"`
		}
		err := json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, resp.StatusCode)
		}
		if err != nil || body.Error.Kind != tc.kind {
			t.Fatalf("%s: expected kind %s, got %+v (%v)", tc.name, tc.kind, body.Error, err)
		}
	}

	resp := srv.do(t, "GET", "/api/sessions/"+view.ID+"/leaderboard", "root", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin leaderboard: status %d", resp.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		resp := srv.do(t, "GET", path, "", "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
	}
}
