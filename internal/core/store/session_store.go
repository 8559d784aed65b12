package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

// SessionStore holds the profile of the acting user and follows the remote
// session as it changes.
type SessionStore struct {
	auth     ports.AuthBackend
	profiles ports.ProfileRepository
	log      zerolog.Logger

	mu           sync.RWMutex
	user         *domain.User
	loading      bool
	errMsg       string
	initializing bool
	initialized  bool

	notifier

	// eventMu serializes session-change handling so state changes once per
	// event, in event order.
	eventMu     sync.Mutex
	subOnce     sync.Once
	unsubscribe func()
	ctx         context.Context
	cancel      context.CancelFunc
}

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// NewSessionStore returns a store with no session. Call Initialize to pick up
// an existing remote session.
func NewSessionStore(auth ports.AuthBackend, profiles ports.ProfileRepository, log zerolog.Logger) *SessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionStore{
		auth:     auth,
		profiles: profiles,
		log:      log.With().Str("store", "session").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// User returns a copy of the profile, or nil when nobody is signed in.
func (s *SessionStore) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

func (s *SessionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *SessionStore) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *SessionStore) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsAdmin()
}

func (s *SessionStore) IsOperator() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.IsOperator()
}

// Initialize resolves the current remote session once. Calls made while a
// resolution is running, or after one succeeded, return immediately.
// Failures are logged and leave the session absent.
func (s *SessionStore) Initialize(ctx context.Context) {
	s.mu.Lock()
	if s.initializing || s.initialized {
		s.mu.Unlock()
		return
	}
	s.initializing = true
	s.loading = true
	s.mu.Unlock()
	s.notify()

	s.subscribe()

	user, err := s.resolveCurrent(ctx)

	s.mu.Lock()
	s.initializing = false
	s.loading = false
	if err == nil {
		s.initialized = true
	}
	if user != nil {
		s.user = user
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Error().Err(err).Msg("session initialization failed")
		return
	}
	if user != nil {
		s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("session restored")
	}
}

func (s *SessionStore) resolveCurrent(ctx context.Context) (*domain.User, error) {
	sess, err := s.auth.GetCurrentSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("get current session: %w", err)
	}
	if sess == nil || sess.Expired(time.Now()) {
		return nil, nil
	}
	user, err := s.profiles.FindProfile(ctx, sess.UserID)
	if err != nil {
		// the session exists but is unusable without a profile
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("profile resolution failed")
		return nil, nil
	}
	return user, nil
}

// Login signs in and resolves the profile. The profile is only stored once
// both steps succeeded; otherwise the error message is set and false returned.
func (s *SessionStore) Login(ctx context.Context, email, password string) bool {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()

	s.subscribe()
	user, err := s.login(ctx, email, password)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.errMsg = userMessage(err, domain.MsgLoginFailed)
	} else {
		s.user = user
		s.initialized = true
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Warn().Err(err).Str("email", email).Msg("login failed")
		return false
	}
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("signed in")
	return true
}

func (s *SessionStore) login(ctx context.Context, email, password string) (*domain.User, error) {
	if err := validate.Input(credentials{Email: email, Password: password}); err != nil {
		return nil, err
	}
	sess, err := s.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if sess == nil {
		return nil, domain.ErrNoSession
	}
	user, err := s.profiles.FindProfile(ctx, sess.UserID)
	if err == nil && user == nil {
		err = domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve profile: %w", err)
	}
	return user, nil
}

// Logout asks the backend to end the session and clears the local profile
// whatever the backend answered.
func (s *SessionStore) Logout(ctx context.Context) {
	if err := s.auth.SignOut(ctx); err != nil {
		s.log.Error().Err(err).Msg("remote sign out failed")
	}
	s.setUser(nil)
	s.log.Info().Msg("signed out")
}

// UpdateProfile sends update and, once the backend confirms, replaces the
// profile with the returned row. Nothing changes locally before that.
func (s *SessionStore) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) bool {
	s.mu.Lock()
	current := s.user
	if current == nil {
		s.mu.Unlock()
		return false
	}
	id := current.ID
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.notify()

	updated, err := s.updateProfile(ctx, id, update)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.errMsg = userMessage(err, domain.MsgUpdateProfileFailed)
	} else if s.user != nil && s.user.ID == id {
		s.user = updated
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.log.Error().Err(err).Str("user_id", id).Msg("profile update failed")
		return false
	}
	return true
}

func (s *SessionStore) updateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	if err := validate.Input(update); err != nil {
		return nil, err
	}
	updated, err := s.profiles.UpdateProfile(ctx, id, update)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if updated == nil {
		return nil, domain.ErrUserNotFound
	}
	return updated, nil
}

// Authorize checks the session against what a resource requires, resolving
// the session first if that has not happened yet.
func (s *SessionStore) Authorize(ctx context.Context, access domain.Access) error {
	if !access.RequiresAuth && !access.RequiresAdmin {
		return nil
	}
	s.mu.RLock()
	resolved := s.initialized || s.user != nil
	s.mu.RUnlock()
	if !resolved {
		s.Initialize(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.ErrUnauthenticated
	}
	if access.RequiresAdmin && !s.user.IsAdmin() {
		return domain.ErrForbidden
	}
	return nil
}

// Close drops the session-change subscription. The store keeps its last
// state but no longer follows the backend.
func (s *SessionStore) Close() {
	s.cancel()
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

func (s *SessionStore) subscribe() {
	s.subOnce.Do(func() {
		unsub := s.auth.OnSessionChange(s.handleEvent)
		s.eventMu.Lock()
		s.unsubscribe = unsub
		s.eventMu.Unlock()
	})
}

func (s *SessionStore) handleEvent(ev ports.SessionEvent) {
	s.eventMu.Lock()
	defer s.eventMu.Unlock()
	if s.ctx.Err() != nil {
		return
	}

	log := s.log.With().Str("event", string(ev.Kind)).Logger()
	switch ev.Kind {
	case ports.SessionSignedOut:
		s.setUser(nil)
		log.Debug().Msg("session cleared")
	case ports.SessionSignedIn, ports.SessionTokenRefreshed, ports.SessionUserUpdated:
		if ev.Session == nil {
			return
		}
		user, err := s.profiles.FindProfile(s.ctx, ev.Session.UserID)
		if err == nil && user == nil {
			err = domain.ErrUserNotFound
		}
		if err != nil {
			log.Error().Err(err).Str("user_id", ev.Session.UserID).Msg("profile resolution failed")
			// a profile belonging to another identity must not outlive the switch
			if current := s.User(); current != nil && current.ID != ev.Session.UserID {
				s.setUser(nil)
			}
			return
		}
		s.setUser(user)
		log.Debug().Str("user_id", user.ID).Msg("profile refreshed")
	}
}

func (s *SessionStore) setUser(u *domain.User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
	s.notify()
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	c.ProfilePicture = cloneString(u.ProfilePicture)
	c.SampulImg = cloneString(u.SampulImg)
	return &c
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
