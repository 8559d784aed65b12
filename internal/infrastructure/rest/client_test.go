package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/inventaris/inventory-state/internal/core/domain"
	"github.com/inventaris/inventory-state/internal/core/ports"
)

type recorded struct {
	method string
	path   string
	query  string
	header http.Header
	body   map[string]any
}

// fakeBackend records every request and answers with the registered handler.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []recorded
	handle   func(w http.ResponseWriter, r *http.Request)
}

func newFakeBackend(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) *fakeBackend {
	t.Helper()
	f := &fakeBackend{t: t, handle: handle}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone()}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &rec.body)
		}
		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()
		f.handle(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) client() *Client {
	c := NewClient(Config{BaseURL: f.srv.URL + "/", AnonKey: "anon", Timeout: 2 * time.Second, Retries: 3}, zerolog.Nop())
	c.backOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func (f *fakeBackend) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		f.t.Fatalf("no request recorded")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeBackend) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClient_RetriesReadsOnServerError(t *testing.T) {
	var calls atomic.Int32
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream down"})
			return
		}
		writeJSON(w, http.StatusOK, []any{})
	})

	rooms, err := NewRoomRepository(f.client()).List(context.Background(), ports.RoomFilter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(rooms) != 0 || f.count() != 3 {
		t.Fatalf("expected success on third attempt, got %d requests", f.count())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"code": "PGRST100", "message": "failed to parse filter"})
	})

	_, err := NewRoomRepository(f.client()).List(context.Background(), ports.RoomFilter{})

	var be *ports.BackendError
	if !errors.As(err, &be) || be.Status != http.StatusBadRequest || be.Message != "failed to parse filter" {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.count() != 1 {
		t.Fatalf("client errors must not be retried, got %d requests", f.count())
	}
}

func TestClient_DoesNotRetryWrites(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "maintenance"})
	})

	_, err := NewRoomRepository(f.client()).Insert(context.Background(), domain.RoomInput{UserID: "u1", Name: "Lab"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if f.count() != 1 {
		t.Fatalf("writes must be sent once, got %d requests", f.count())
	}
}

func TestClient_UnauthorizedWrapsSentinel(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT expired"})
	})

	_, err := NewAssetRepository(f.client()).List(context.Background(), ports.AssetFilter{})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestClient_InvalidJSONIsInvalidPayload(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"not":"an array"`))
	})

	_, err := NewRoomRepository(f.client()).List(context.Background(), ports.RoomFilter{})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestClient_Ping(t *testing.T) {
	f := newFakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	if err := f.client().Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
	if got := f.last(); got.path != "/rest/v1/" || got.header.Get("apikey") != "anon" {
		t.Fatalf("unexpected ping request: %+v", got)
	}
}
