// Package auth signs users in against password hashes kept in the database
// backends and issues the HS256 tokens that identify the session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
)

const (
	defaultTokenTTL = 24 * time.Hour

	opSignIn              = "auth.sign_in"
	msgInvalidCredentials = "Invalid login credentials"
)

// Credentials is the sign-in record of one user.
type Credentials struct {
	UserID       string
	Email        string
	PasswordHash string
}

// CredentialStore looks credentials up by email. It returns
// domain.ErrUserNotFound when nobody uses that email.
type CredentialStore interface {
	FindCredentials(ctx context.Context, email string) (*Credentials, error)
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// PasswordBackend implements ports.AuthBackend with bcrypt hashes and
// locally minted tokens.
type PasswordBackend struct {
	creds    CredentialStore
	cache    ports.SessionCache
	secret   []byte
	tokenTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *ports.AuthSession
	events  Broadcaster
}

var _ ports.AuthBackend = (*PasswordBackend)(nil)

// NewPasswordBackend returns a backend with no active session. cache may be
// nil, in which case sessions only live in memory.
func NewPasswordBackend(creds CredentialStore, cache ports.SessionCache, jwtSecret string, tokenTTL time.Duration, log zerolog.Logger) *PasswordBackend {
	if tokenTTL <= 0 {
		tokenTTL = defaultTokenTTL
	}
	return &PasswordBackend{
		creds:    creds,
		cache:    cache,
		secret:   []byte(jwtSecret),
		tokenTTL: tokenTTL,
		log:      log,
		now:      time.Now,
	}
}

// HashPassword returns the bcrypt hash stored alongside a user.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (b *PasswordBackend) GetCurrentSession(ctx context.Context) (*ports.AuthSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil && b.cache != nil {
		sess, err := b.cache.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cached session: %w", err)
		}
		if sess != nil {
			if _, err := b.VerifyToken(sess.AccessToken); err != nil {
				b.log.Warn().Err(err).Msg("discarding cached session")
				_ = b.cache.Clear(ctx)
				return nil, nil
			}
			b.current = sess
		}
	}
	if b.current == nil || b.current.Expired(b.now()) {
		return nil, nil
	}
	sess := *b.current
	return &sess, nil
}

func (b *PasswordBackend) SignInWithPassword(ctx context.Context, email, password string) (*ports.AuthSession, error) {
	if email == "" || password == "" {
		return nil, signInError(domain.ErrInvalidCredentials)
	}

	cred, err := b.creds.FindCredentials(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, signInError(domain.ErrInvalidCredentials)
		}
		return nil, signInError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)) != nil {
		return nil, signInError(domain.ErrInvalidCredentials)
	}

	sess, err := b.issue(cred.UserID, cred.Email)
	if err != nil {
		return nil, signInError(err)
	}
	b.store(ctx, sess)
	b.events.Publish(ports.SessionEvent{Kind: ports.SessionSignedIn, Session: copySession(sess)})
	return copySession(sess), nil
}

// signInError reports a failed sign-in as a backend error. Repository errors
// that already are one pass through unchanged.
func signInError(err error) error {
	var be *ports.BackendError
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		return &ports.BackendError{Op: opSignIn, Status: 401, Message: msgInvalidCredentials, Err: err}
	}
	return &ports.BackendError{Op: opSignIn, Err: err}
}

func (b *PasswordBackend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.current = nil
	var err error
	if b.cache != nil {
		err = b.cache.Clear(ctx)
	}
	b.mu.Unlock()

	b.events.Publish(ports.SessionEvent{Kind: ports.SessionSignedOut})
	if err != nil {
		return fmt.Errorf("clear cached session: %w", err)
	}
	return nil
}

func (b *PasswordBackend) OnSessionChange(fn func(ports.SessionEvent)) func() {
	return b.events.Subscribe(fn)
}

// Refresh reissues the token of the current session once it has used up
// three quarters of its lifetime. It is a no-op without a session.
func (b *PasswordBackend) Refresh(ctx context.Context) error {
	b.mu.Lock()
	cur := b.current
	b.mu.Unlock()
	if cur == nil || cur.Expired(b.now()) {
		return nil
	}
	if cur.ExpiresAt.Sub(b.now()) > b.tokenTTL/4 {
		return nil
	}

	sess, err := b.issue(cur.UserID, cur.Email)
	if err != nil {
		return err
	}
	b.store(ctx, sess)
	b.events.Publish(ports.SessionEvent{Kind: ports.SessionTokenRefreshed, Session: copySession(sess)})
	return nil
}

// VerifyToken checks the signature and expiry of a token issued by this
// backend and returns the session it describes.
func (b *PasswordBackend) VerifyToken(token string) (*ports.AuthSession, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	sess := &ports.AuthSession{UserID: c.Subject, Email: c.Email, AccessToken: token}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, nil
}

func (b *PasswordBackend) issue(userID, email string) (*ports.AuthSession, error) {
	now := b.now()
	exp := now.Add(b.tokenTTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := t.SignedString(b.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &ports.AuthSession{
		UserID:       userID,
		Email:        email,
		AccessToken:  signed,
		RefreshToken: uuid.NewString(),
		ExpiresAt:    exp.Truncate(time.Second),
	}, nil
}

func (b *PasswordBackend) store(ctx context.Context, sess *ports.AuthSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = sess
	if b.cache == nil {
		return
	}
	if err := b.cache.Save(ctx, sess); err != nil {
		b.log.Warn().Err(err).Str("user_id", sess.UserID).Msg("session not persisted")
	}
}

func copySession(s *ports.AuthSession) *ports.AuthSession {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
