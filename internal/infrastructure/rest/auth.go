package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/infrastructure/auth"
)

// refreshMargin is how long before expiry a session is refreshed.
const refreshMargin = time.Minute

// AuthBackend implements ports.AuthBackend on the GoTrue endpoints. The
// access token of the current session authorizes the table requests of the
// shared Client.
type AuthBackend struct {
	c     *Client
	cache ports.SessionCache
	log   zerolog.Logger
	now   func() time.Time

	mu      sync.Mutex
	current *ports.AuthSession
	loaded  bool
	events  auth.Broadcaster
}

var _ ports.AuthBackend = (*AuthBackend)(nil)

// NewAuthBackend returns a backend with no active session. cache may be nil.
func NewAuthBackend(c *Client, cache ports.SessionCache, log zerolog.Logger) *AuthBackend {
	return &AuthBackend{
		c:     c,
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// GetCurrentSession returns the live session. An expired session with a
// refresh token is refreshed first; one that cannot be refreshed is dropped.
func (b *AuthBackend) GetCurrentSession(ctx context.Context) (*ports.AuthSession, error) {
	b.mu.Lock()
	if !b.loaded && b.cache != nil {
		sess, err := b.cache.Load(ctx)
		if err != nil {
			b.mu.Unlock()
			return nil, fmt.Errorf("load cached session: %w", err)
		}
		b.current = sess
		if sess != nil {
			b.c.setAccessToken(sess.AccessToken)
		}
	}
	b.loaded = true
	cur := copySession(b.current)
	b.mu.Unlock()

	if cur == nil {
		return nil, nil
	}
	if !cur.Expired(b.now()) {
		return cur, nil
	}
	if cur.RefreshToken == "" {
		b.drop(ctx)
		return nil, nil
	}
	sess, err := b.refresh(ctx, cur.RefreshToken)
	if err != nil {
		var be *ports.BackendError
		if errors.As(err, &be) && be.Status != 0 {
			b.log.Warn().Err(err).Msg("stored session could not be refreshed")
			b.drop(ctx)
			return nil, nil
		}
		return nil, err
	}
	b.events.Publish(ports.SessionEvent{Kind: ports.SessionTokenRefreshed, Session: copySession(sess)})
	return copySession(sess), nil
}

func (b *AuthBackend) SignInWithPassword(ctx context.Context, email, password string) (*ports.AuthSession, error) {
	q := url.Values{}
	q.Set("grant_type", "password")
	var tr tokenResponse
	err := b.c.do(ctx, request{
		op: "auth.sign_in", method: http.MethodPost, path: "/auth/v1/token", query: q,
		body:  map[string]string{"email": email, "password": password},
		token: b.c.anonKey,
	}, &tr)
	if err != nil {
		var be *ports.BackendError
		if errors.As(err, &be) && (be.Status == http.StatusBadRequest || be.Status == http.StatusUnauthorized) {
			be.Err = domain.ErrInvalidCredentials
		}
		return nil, err
	}

	sess, err := b.sessionFrom(tr)
	if err != nil {
		return nil, &ports.BackendError{Op: "auth.sign_in", Err: err}
	}
	b.store(ctx, sess)
	b.events.Publish(ports.SessionEvent{Kind: ports.SessionSignedIn, Session: copySession(sess)})
	return copySession(sess), nil
}

// SignOut revokes the session remotely and always forgets it locally.
func (b *AuthBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	cur := b.current
	b.mu.Unlock()

	var err error
	if cur != nil {
		err = b.c.do(ctx, request{op: "auth.sign_out", method: http.MethodPost, path: "/auth/v1/logout", token: cur.AccessToken}, nil)
	}
	b.drop(ctx)
	b.events.Publish(ports.SessionEvent{Kind: ports.SessionSignedOut})
	return err
}

func (b *AuthBackend) OnSessionChange(fn func(ports.SessionEvent)) func() {
	return b.events.Subscribe(fn)
}

// Refresh renews the current session when it is about to expire. It is a
// no-op without a session.
func (b *AuthBackend) Refresh(ctx context.Context) error {
	b.mu.Lock()
	cur := copySession(b.current)
	b.mu.Unlock()
	if cur == nil || cur.RefreshToken == "" || cur.ExpiresAt.IsZero() {
		return nil
	}
	if cur.ExpiresAt.Sub(b.now()) > refreshMargin {
		return nil
	}

	sess, err := b.refresh(ctx, cur.RefreshToken)
	if err != nil {
		return err
	}
	b.events.Publish(ports.SessionEvent{Kind: ports.SessionTokenRefreshed, Session: copySession(sess)})
	return nil
}

func (b *AuthBackend) refresh(ctx context.Context, refreshToken string) (*ports.AuthSession, error) {
	q := url.Values{}
	q.Set("grant_type", "refresh_token")
	var tr tokenResponse
	err := b.c.do(ctx, request{
		op: "auth.refresh", method: http.MethodPost, path: "/auth/v1/token", query: q,
		body:  map[string]string{"refresh_token": refreshToken},
		token: b.c.anonKey,
	}, &tr)
	if err != nil {
		return nil, err
	}
	sess, err := b.sessionFrom(tr)
	if err != nil {
		return nil, &ports.BackendError{Op: "auth.refresh", Err: err}
	}
	b.store(ctx, sess)
	return sess, nil
}

// sessionFrom reads identity and expiry from the token response, falling
// back to the unverified access token claims.
func (b *AuthBackend) sessionFrom(tr tokenResponse) (*ports.AuthSession, error) {
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", domain.ErrInvalidPayload)
	}
	sess := &ports.AuthSession{
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	switch {
	case tr.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		sess.ExpiresAt = b.now().Add(time.Duration(tr.ExpiresIn) * time.Second).Truncate(time.Second)
	}

	if sess.UserID == "" || sess.ExpiresAt.IsZero() {
		var c jwt.RegisteredClaims
		if _, _, err := jwt.NewParser().ParseUnverified(tr.AccessToken, &c); err != nil {
			return nil, fmt.Errorf("%w: access token: %v", domain.ErrInvalidPayload, err)
		}
		if sess.UserID == "" {
			sess.UserID = c.Subject
		}
		if sess.ExpiresAt.IsZero() && c.ExpiresAt != nil {
			sess.ExpiresAt = c.ExpiresAt.Time
		}
	}
	if sess.UserID == "" {
		return nil, fmt.Errorf("%w: session without user", domain.ErrInvalidPayload)
	}
	return sess, nil
}

func (b *AuthBackend) store(ctx context.Context, sess *ports.AuthSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = sess
	b.loaded = true
	b.c.setAccessToken(sess.AccessToken)
	if b.cache == nil {
		return
	}
	if err := b.cache.Save(ctx, sess); err != nil {
		b.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("session not persisted")
	}
}

func (b *AuthBackend) drop(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = nil
	b.loaded = true
	b.c.setAccessToken("")
	if b.cache == nil {
		return
	}
	if err := b.cache.Clear(ctx); err != nil {
		b.log.Warn().Err(err).Msg("cached session not cleared")
	}
}

func copySession(s *ports.AuthSession) *ports.AuthSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
