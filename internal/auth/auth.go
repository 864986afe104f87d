// Package auth resolves the caller identity from a bearer token or a trusted gateway header.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"live-quiz-service/internal/domain"
)

const (
	RoleAdmin = "admin"

	// UserHeader carries the user id when an upstream gateway already authenticated the caller.
	UserHeader = "X-User-ID"
)

var ErrUnauthenticated = &domain.Error{Kind: domain.KindAuthorization, Message: "authentication required"}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Verifier turns requests into identities.
type Verifier struct {
	secret      []byte
	issuer      string
	admins      map[string]bool
	trustHeader bool
}

func NewVerifier(secret, issuer string, admins []string, trustHeader bool) *Verifier {
	set := make(map[string]bool, len(admins))
	for _, id := range admins {
		set[id] = true
	}
	return &Verifier{
		secret:      []byte(secret),
		issuer:      issuer,
		admins:      set,
		trustHeader: trustHeader,
	}
}

// Identify reads Authorization: Bearer, then the token query parameter (browsers cannot set
// headers on websocket upgrades), then the gateway header if trusted.
func (v *Verifier) Identify(r *http.Request) (domain.Identity, error) {
	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token != "" {
		return v.Verify(token)
	}
	if v.trustHeader {
		if userID := strings.TrimSpace(r.Header.Get(UserHeader)); userID != "" {
			return v.identity(userID, ""), nil
		}
	}
	return domain.Identity{}, ErrUnauthenticated
}

// Verify validates a signed token and returns its identity.
func (v *Verifier) Verify(tokenString string) (domain.Identity, error) {
	if len(v.secret) == 0 {
		return domain.Identity{}, &domain.Error{Kind: domain.KindAuthorization, Message: "token authentication is not configured"}
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, &domain.Error{Kind: domain.KindAuthorization, Message: "invalid token", Err: err}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, &domain.Error{Kind: domain.KindAuthorization, Message: "invalid token"}
	}
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return domain.Identity{}, &domain.Error{Kind: domain.KindAuthorization, Message: "token has no subject"}
	}
	return v.identity(userID, claims.Role), nil
}

// Issue signs a token; used by tooling and tests.
func (v *Verifier) Issue(userID, role string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (v *Verifier) identity(userID, role string) domain.Identity {
	return domain.Identity{
		UserID: userID,
		Admin:  role == RoleAdmin || v.admins[userID],
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
