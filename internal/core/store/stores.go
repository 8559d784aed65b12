package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/ports"
)

// Deps are the collaborators shared by every store.
type Deps struct {
	Auth     ports.AuthBackend
	Profiles ports.ProfileRepository
	Rooms    ports.RoomRepository
	Assets   ports.AssetRepository
	Queue    ports.MutationQueue
	Observer ports.MutationObserver
	Logger   zerolog.Logger
}

// Stores is the explicit context object handed to consumers in place of
// process-wide singletons.
type Stores struct {
	Session *SessionStore
	Rooms   *RoomStore
	Assets  *AssetStore

	mu          sync.Mutex
	identity    string
	unsubscribe func()
}

// NewStores builds the three stores around one session. The cached
// collections are emptied whenever the signed-in identity changes.
func NewStores(d Deps) *Stores {
	session := NewSessionStore(d.Auth, d.Profiles, d.Logger)
	s := &Stores{
		Session: session,
		Rooms:   NewRoomStore(d.Rooms, session, d.Queue, d.Observer, d.Logger),
		Assets:  NewAssetStore(d.Assets, session, d.Queue, d.Observer, d.Logger),
	}
	s.unsubscribe = session.Subscribe(s.onSessionChange)
	return s
}

func (s *Stores) onSessionChange() {
	var id string
	if u := s.Session.User(); u != nil {
		id = u.ID
	}
	s.mu.Lock()
	changed := id != s.identity
	previous := s.identity
	s.identity = id
	s.mu.Unlock()

	if changed && previous != "" {
		s.Rooms.reset()
		s.Assets.reset()
	}
}

// Refresh reloads rooms and every visible asset. It does nothing while
// nobody is signed in.
func (s *Stores) Refresh(ctx context.Context) error {
	if !s.Session.IsAuthenticated() {
		return nil
	}
	return errors.Join(
		s.Rooms.FetchAll(ctx),
		s.Assets.FetchAll(ctx, 0),
	)
}

// Dispose detaches from the session backend and waits for every pending
// mutation to settle or for ctx to end.
func (s *Stores) Dispose(ctx context.Context) error {
	s.unsubscribe()
	s.Session.Close()
	if err := s.Rooms.Settle(ctx); err != nil {
		return fmt.Errorf("settle rooms: %w", err)
	}
	if err := s.Assets.Settle(ctx); err != nil {
		return fmt.Errorf("settle assets: %w", err)
	}
	return nil
}
