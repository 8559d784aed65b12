package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
)

var errOffline = errors.New("network unreachable")

// serialQueue runs jobs one at a time on a single goroutine, in enqueue order.
type serialQueue struct {
	jobs chan func(context.Context)
	done chan struct{}
}

func newSerialQueue(t *testing.T) *serialQueue {
	t.Helper()
	q := &serialQueue{jobs: make(chan func(context.Context), 64), done: make(chan struct{})}
	go func() {
		defer close(q.done)
		for job := range q.jobs {
			job(context.Background())
		}
	}()
	t.Cleanup(func() {
		close(q.jobs)
		<-q.done
	})
	return q
}

func (q *serialQueue) Enqueue(_ string, job func(context.Context)) error {
	q.jobs <- job
	return nil
}

type closedQueue struct{}

func (closedQueue) Enqueue(string, func(context.Context)) error { return ports.ErrQueueClosed }

type stubSession struct{ user *domain.User }

func (s stubSession) User() *domain.User { return s.user }

// gate holds background calls until released.
type gate chan struct{}

func (g gate) wait() {
	if g != nil {
		<-g
	}
}

func (g gate) release() { close(g) }

type stubRoomRepo struct {
	mu      sync.Mutex
	rows    []domain.Room
	listErr error
	err     error
	gate    gate
	nextID  int64
	owner   *domain.RoomOwner
	filters []ports.RoomFilter
}

func (r *stubRoomRepo) List(_ context.Context, f ports.RoomFilter) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]domain.Room, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *stubRoomRepo) Insert(_ context.Context, in domain.RoomInput) (*domain.Room, error) {
	r.gate.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.nextID++
	room := domain.Room{ID: r.nextID, UserID: in.UserID, Name: in.Name, HeaderImg: in.HeaderImg, User: r.owner}
	return &room, nil
}

func (r *stubRoomRepo) Update(_ context.Context, id int64, p domain.RoomPatch) (*domain.Room, error) {
	r.gate.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, row := range r.rows {
		if row.ID == id {
			room := p.Apply(row)
			room.User = r.owner
			return &room, nil
		}
	}
	return nil, domain.ErrRoomNotFound
}

func (r *stubRoomRepo) Delete(context.Context, int64) error {
	r.gate.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *stubRoomRepo) lastFilter() ports.RoomFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filters[len(r.filters)-1]
}

type stubAssetRepo struct {
	mu      sync.Mutex
	rows    []domain.Asset
	err     error
	gate    gate
	filters []ports.AssetFilter
}

func (r *stubAssetRepo) List(_ context.Context, f ports.AssetFilter) ([]domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.filters = append(r.filters, f)
	out := make([]domain.Asset, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *stubAssetRepo) Insert(_ context.Context, in domain.AssetInput) (*domain.Asset, error) {
	r.gate.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Asset{
		ID:        "a-server",
		RuanganID: in.RuanganID,
		Name:      in.Name,
		Jumlah:    in.Jumlah,
		Kondisi:   in.Kondisi,
		Ruangan:   &domain.Room{ID: in.RuanganID, Name: "Gudang"},
	}, nil
}

func (r *stubAssetRepo) Update(_ context.Context, id string, p domain.AssetPatch) (*domain.Asset, error) {
	r.gate.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, row := range r.rows {
		if row.ID == id {
			a := p.Apply(row)
			return &a, nil
		}
	}
	return nil, domain.ErrAssetNotFound
}

func (r *stubAssetRepo) Delete(context.Context, string) error {
	r.gate.wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

type stubAuth struct {
	mu         sync.Mutex
	current    *ports.AuthSession
	currentErr error
	signInErr  error
	signOutErr error
	getCalls   int
	listeners  map[int]func(ports.SessionEvent)
	next       int
}

func newStubAuth() *stubAuth {
	return &stubAuth{listeners: make(map[int]func(ports.SessionEvent))}
}

func (a *stubAuth) GetCurrentSession(context.Context) (*ports.AuthSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getCalls++
	return a.current, a.currentErr
}

func (a *stubAuth) SignInWithPassword(_ context.Context, email, _ string) (*ports.AuthSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signInErr != nil {
		return nil, a.signInErr
	}
	a.current = &ports.AuthSession{UserID: "u-" + email, Email: email, ExpiresAt: time.Now().Add(time.Hour)}
	return a.current, nil
}

func (a *stubAuth) SignOut(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = nil
	return a.signOutErr
}

func (a *stubAuth) OnSessionChange(fn func(ports.SessionEvent)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *stubAuth) emit(ev ports.SessionEvent) {
	a.mu.Lock()
	fns := make([]func(ports.SessionEvent), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (a *stubAuth) subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.listeners)
}

type stubProfiles struct {
	mu        sync.Mutex
	users     map[string]*domain.User
	findErr   error
	updateErr error
}

func newStubProfiles(users ...*domain.User) *stubProfiles {
	p := &stubProfiles{users: make(map[string]*domain.User)}
	for _, u := range users {
		p.users[u.ID] = u
	}
	return p
}

func (p *stubProfiles) FindProfile(_ context.Context, id string) (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.findErr != nil {
		return nil, p.findErr
	}
	u, ok := p.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (p *stubProfiles) UpdateProfile(_ context.Context, id string, upd domain.ProfileUpdate) (*domain.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	u, ok := p.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.ProfilePicture != nil {
		u.ProfilePicture = upd.ProfilePicture
	}
	if upd.SampulImg != nil {
		u.SampulImg = upd.SampulImg
	}
	return cloneUser(u), nil
}

func ptr[T any](v T) *T { return &v }

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}
