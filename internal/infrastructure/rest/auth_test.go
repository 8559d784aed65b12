package rest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
)

type memoryCache struct {
	sess    *ports.AuthSession
	cleared int
}

func (m *memoryCache) Load(context.Context) (*ports.AuthSession, error) { return m.sess, nil }
func (m *memoryCache) Save(_ context.Context, s *ports.AuthSession) error {
	m.sess = s
	return nil
}
func (m *memoryCache) Clear(context.Context) error {
	m.sess = nil
	m.cleared++
	return nil
}

func signedToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("server-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func goTrue(t *testing.T, access string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "password":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  access,
				"refresh_token": "r1",
				"expires_in":    3600,
				"user":          map[string]any{"id": "u1", "email": "siti@example.com"},
			})
		case r.URL.Path == "/auth/v1/token" && r.URL.Query().Get("grant_type") == "refresh_token":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  signedToken(t, "u1", time.Now().Add(time.Hour)),
				"refresh_token": "r2",
			})
		case r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusOK, []any{})
		}
	}
}

func TestAuthBackend_SignInAuthorizesTableRequests(t *testing.T) {
	access := signedToken(t, "u1", time.Now().Add(time.Hour))
	f := newFakeBackend(t, goTrue(t, access))
	c := f.client()
	cache := &memoryCache{}
	b := NewAuthBackend(c, cache, zerolog.Nop())

	var events []ports.SessionEventKind
	b.OnSessionChange(func(ev ports.SessionEvent) { events = append(events, ev.Kind) })

	sess, err := b.SignInWithPassword(context.Background(), "siti@example.com", "rahasia")
	if err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	if sess.UserID != "u1" || sess.ExpiresAt.IsZero() {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if req := f.last(); req.body["email"] != "siti@example.com" || req.header.Get("Authorization") != "Bearer anon" {
		t.Fatalf("unexpected sign-in request: %+v", req)
	}
	if cache.sess == nil || cache.sess.AccessToken != access {
		t.Fatalf("session should be cached")
	}
	if len(events) != 1 || events[0] != ports.SessionSignedIn {
		t.Fatalf("expected SIGNED_IN, got %v", events)
	}

	if _, err := NewRoomRepository(c).List(context.Background(), ports.RoomFilter{}); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := f.last().header.Get("Authorization"); got != "Bearer "+access {
		t.Fatalf("table requests should carry the session token, got %q", got)
	}
}

func TestAuthBackend_InvalidCredentials(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
	})
	b := NewAuthBackend(f.client(), nil, zerolog.Nop())

	_, err := b.SignInWithPassword(context.Background(), "siti@example.com", "salah")

	var be *ports.BackendError
	if !errors.Is(err, domain.ErrInvalidCredentials) || !errors.As(err, &be) || be.Message != "Invalid login credentials" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthBackend_SessionFromTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	b := NewAuthBackend(NewClient(Config{}, zerolog.Nop()), nil, zerolog.Nop())

	sess, err := b.sessionFrom(tokenResponse{AccessToken: signedToken(t, "u9", exp)})
	if err != nil {
		t.Fatalf("sessionFrom returned error: %v", err)
	}
	if sess.UserID != "u9" || !sess.ExpiresAt.Equal(exp) {
		t.Fatalf("claims not used: %+v", sess)
	}

	if _, err := b.sessionFrom(tokenResponse{AccessToken: "garbage"}); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestAuthBackend_RestoresAndRefreshesCachedSession(t *testing.T) {
	f := newFakeBackend(t, goTrue(t, ""))
	cache := &memoryCache{sess: &ports.AuthSession{
		UserID:       "u1",
		AccessToken:  "old",
		RefreshToken: "r1",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}}
	b := NewAuthBackend(f.client(), cache, zerolog.Nop())

	var events []ports.SessionEventKind
	b.OnSessionChange(func(ev ports.SessionEvent) { events = append(events, ev.Kind) })

	sess, err := b.GetCurrentSession(context.Background())
	if err != nil || sess == nil {
		t.Fatalf("expired session should be refreshed: %+v %v", sess, err)
	}
	if sess.RefreshToken != "r2" || sess.Expired(time.Now()) {
		t.Fatalf("unexpected refreshed session: %+v", sess)
	}
	if req := f.last(); req.body["refresh_token"] != "r1" {
		t.Fatalf("unexpected refresh request: %+v", req.body)
	}
	if len(events) != 1 || events[0] != ports.SessionTokenRefreshed {
		t.Fatalf("expected TOKEN_REFRESHED, got %v", events)
	}
}

func TestAuthBackend_DropsUnrefreshableSession(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error_description": "Invalid Refresh Token"})
	})
	cache := &memoryCache{sess: &ports.AuthSession{UserID: "u1", AccessToken: "old", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)}}
	b := NewAuthBackend(f.client(), cache, zerolog.Nop())

	sess, err := b.GetCurrentSession(context.Background())
	if err != nil || sess != nil {
		t.Fatalf("expected no session, got %+v %v", sess, err)
	}
	if cache.cleared != 1 {
		t.Fatalf("dead session should be cleared from the cache")
	}
}

func TestAuthBackend_SignOut(t *testing.T) {
	access := signedToken(t, "u1", time.Now().Add(time.Hour))
	f := newFakeBackend(t, goTrue(t, access))
	cache := &memoryCache{}
	b := NewAuthBackend(f.client(), cache, zerolog.Nop())

	if _, err := b.SignInWithPassword(context.Background(), "siti@example.com", "rahasia"); err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	var events []ports.SessionEventKind
	b.OnSessionChange(func(ev ports.SessionEvent) { events = append(events, ev.Kind) })

	if err := b.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut returned error: %v", err)
	}
	if req := f.last(); req.path != "/auth/v1/logout" || req.header.Get("Authorization") != "Bearer "+access {
		t.Fatalf("unexpected logout request: %+v", req)
	}
	if sess, _ := b.GetCurrentSession(context.Background()); sess != nil {
		t.Fatalf("no session expected after sign out")
	}
	if cache.sess != nil || len(events) != 1 || events[0] != ports.SessionSignedOut {
		t.Fatalf("sign out should clear the cache and emit SIGNED_OUT: %v", events)
	}
}

func TestAuthBackend_RefreshNearExpiry(t *testing.T) {
	access := signedToken(t, "u1", time.Now().Add(time.Hour))
	f := newFakeBackend(t, goTrue(t, access))
	b := NewAuthBackend(f.client(), nil, zerolog.Nop())

	if _, err := b.SignInWithPassword(context.Background(), "siti@example.com", "rahasia"); err != nil {
		t.Fatalf("SignInWithPassword returned error: %v", err)
	}
	before := f.count()
	if err := b.Refresh(context.Background()); err != nil || f.count() != before {
		t.Fatalf("fresh session should not be refreshed: %v", err)
	}

	b.now = func() time.Time { return time.Now().Add(time.Hour - 30*time.Second) }
	if err := b.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if f.count() != before+1 {
		t.Fatalf("session close to expiry should be refreshed")
	}
}
