package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/api/middleware"
	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/core/store"
	"github.com/inventaris/inventory-state/internal/infrastructure/queue"
)

var errOffline = errors.New("network unreachable")

type sessionUser struct{ u *domain.User }

func (s sessionUser) User() *domain.User { return s.u }

var admin = &domain.User{ID: "a1", Name: "Admin", Role: domain.RoleAdmin}

type stubRoomRepo struct {
	mu     sync.Mutex
	rows   []domain.Room
	err    error
	nextID int64
}

func (r *stubRoomRepo) List(context.Context, ports.RoomFilter) ([]domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return append([]domain.Room(nil), r.rows...), nil
}

func (r *stubRoomRepo) Insert(_ context.Context, in domain.RoomInput) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.nextID++
	now := time.Now().UTC()
	return &domain.Room{ID: r.nextID, UserID: in.UserID, Name: in.Name, CreatedAt: now, UpdatedAt: now}, nil
}

func (r *stubRoomRepo) Update(_ context.Context, id int64, p domain.RoomPatch) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	room := p.Apply(domain.Room{ID: id, Name: "Lab"})
	return &room, nil
}

func (r *stubRoomRepo) Delete(context.Context, int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

type stubAssetRepo struct {
	rows       []domain.Asset
	err        error
	lastFilter ports.AssetFilter
}

func (r *stubAssetRepo) List(_ context.Context, f ports.AssetFilter) ([]domain.Asset, error) {
	r.lastFilter = f
	return r.rows, r.err
}

func (r *stubAssetRepo) Insert(_ context.Context, in domain.AssetInput) (*domain.Asset, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Asset{ID: "a-1", RuanganID: in.RuanganID, Name: in.Name, Jumlah: in.Jumlah, Kondisi: in.Kondisi}, nil
}

func (r *stubAssetRepo) Update(_ context.Context, id string, p domain.AssetPatch) (*domain.Asset, error) {
	if r.err != nil {
		return nil, r.err
	}
	a := p.Apply(domain.Asset{ID: id, RuanganID: 1, Name: "x", Kondisi: domain.KondisiBaik})
	return &a, nil
}

func (r *stubAssetRepo) Delete(context.Context, string) error { return r.err }

func newQueue(t *testing.T) *queue.Dispatcher {
	t.Helper()
	d := queue.NewDispatcher(2, zerolog.Nop())
	d.Start(context.Background())
	t.Cleanup(d.Close)
	return d
}

// serve runs h for a single request. Errors are returned for the router's
// error handler to render.
func serve(t *testing.T, h echo.HandlerFunc, method, target, body string, params map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.ContextUserKey, admin)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}

	return rec, h(c)
}

func newRoomStore(t *testing.T, repo ports.RoomRepository) *store.RoomStore {
	t.Helper()
	return store.NewRoomStore(repo, sessionUser{admin}, newQueue(t), ports.NopObserver{}, zerolog.Nop())
}

func newAssetStore(t *testing.T, repo ports.AssetRepository) *store.AssetStore {
	t.Helper()
	return store.NewAssetStore(repo, sessionUser{admin}, newQueue(t), ports.NopObserver{}, zerolog.Nop())
}
