package ports

import (
	"context"
	"time"

	"github.com/inventaris/inventory-state/internal/core/domain"
)

// AuthSession is the remote authentication session. It carries identity only;
// the profile is resolved separately through ProfileRepository.
type AuthSession struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry. A zero expiry never expires.
func (s *AuthSession) Expired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SessionEventKind names a session-change notification.
type SessionEventKind string

const (
	SessionSignedIn       SessionEventKind = "SIGNED_IN"
	SessionSignedOut      SessionEventKind = "SIGNED_OUT"
	SessionTokenRefreshed SessionEventKind = "TOKEN_REFRESHED"
	SessionUserUpdated    SessionEventKind = "USER_UPDATED"
)

// SessionEvent is delivered to OnSessionChange subscribers. Session is nil on sign-out.
type SessionEvent struct {
	Kind    SessionEventKind
	Session *AuthSession
}

// AuthBackend is the session half of the remote backend.
type AuthBackend interface {
	// GetCurrentSession returns the live session, or nil when there is none.
	GetCurrentSession(ctx context.Context) (*AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignOut(ctx context.Context) error
	// OnSessionChange registers fn for every future session change, delivered
	// sequentially in event order. The returned func unsubscribes.
	OnSessionChange(fn func(SessionEvent)) (unsubscribe func())
}

// ProfileRepository reads and writes the "users" profile rows.
type ProfileRepository interface {
	FindProfile(ctx context.Context, id string) (*domain.User, error)
	// UpdateProfile applies the update and returns the canonical row.
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error)
}

// SessionCache persists the auth session so it survives a restart.
type SessionCache interface {
	// Load returns the stored session, or nil when there is none.
	Load(ctx context.Context) (*AuthSession, error)
	Save(ctx context.Context, session *AuthSession) error
	Clear(ctx context.Context) error
}
