package auth

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"live-quiz-service/internal/domain"
)

func TestIdentifyFromBearerToken(t *testing.T) {
	v := NewVerifier("secret", "quiz", nil, false)
	token, err := v.Issue("teacher-1", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/sessions/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, err := v.Identify(req)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id.UserID != "teacher-1" || !id.Admin {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestIdentifyFromQueryToken(t *testing.T) {
	v := NewVerifier("secret", "", []string{"boss"}, false)
	token, err := v.Issue("boss", "", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest("GET", "/ws?token="+token, nil)
	id, err := v.Identify(req)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if id.UserID != "boss" || !id.Admin {
		t.Fatalf("admin list not applied: %+v", id)
	}
}

func TestRejectsBadTokens(t *testing.T) {
	v := NewVerifier("secret", "quiz", nil, true)
	other := NewVerifier("different", "quiz", nil, false)
	forged, _ := other.Issue("mallory", RoleAdmin, time.Minute)
	expired, _ := v.Issue("u1", "", -time.Minute)
	wrongIssuer, _ := NewVerifier("secret", "elsewhere", nil, false).Issue("u1", "", time.Minute)

	for name, token := range map[string]string{
		"forged":       forged,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"garbage":      "not.a.token",
	} {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(UserHeader, "u-header")
		if _, err := v.Identify(req); domain.KindOf(err) != domain.KindAuthorization {
			t.Fatalf("%s: expected authorization error, got %v", name, err)
		}
	}
}

func TestGatewayHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(UserHeader, " u-1 ")

	id, err := NewVerifier("", "", nil, true).Identify(req)
	if err != nil || id.UserID != "u-1" || id.Admin {
		t.Fatalf("unexpected header identity %+v %v", id, err)
	}

	if _, err := NewVerifier("", "", nil, false).Identify(req); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("untrusted header must be ignored, got %v", err)
	}
}
