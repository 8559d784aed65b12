package refresh

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskFunc func(ctx context.Context) error

func (f taskFunc) Refresh(ctx context.Context) error { return f(ctx) }

type recorder struct{ runs []error }

func (r *recorder) ObserveRefresh(err error) { r.runs = append(r.runs, err) }

func TestScheduler_RunOnce_RunsTasksInOrder(t *testing.T) {
	rec := &recorder{}
	s, err := NewScheduler("@every 5m", rec, zerolog.Nop())
	require.NoError(t, err)

	var order []string
	s.Add("token", taskFunc(func(context.Context) error { order = append(order, "token"); return nil }))
	s.Add("stores", taskFunc(func(context.Context) error { order = append(order, "stores"); return nil }))

	require.NoError(t, s.RunOnce(t.Context()))
	assert.Equal(t, []string{"token", "stores"}, order)
	require.Len(t, rec.runs, 1)
	assert.NoError(t, rec.runs[0])
}

func TestScheduler_RunOnce_FailureDoesNotStopLaterTasks(t *testing.T) {
	rec := &recorder{}
	s, err := NewScheduler("*/10 * * * *", rec, zerolog.Nop())
	require.NoError(t, err)

	boom := errors.New("backend unavailable")
	ranStores := false
	s.Add("token", taskFunc(func(context.Context) error { return boom }))
	s.Add("stores", taskFunc(func(context.Context) error { ranStores = true; return nil }))

	err = s.RunOnce(t.Context())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "token")
	assert.True(t, ranStores)
	require.Len(t, rec.runs, 1)
	assert.ErrorIs(t, rec.runs[0], boom)
}

func TestScheduler_RunOnce_BoundsEachRun(t *testing.T) {
	s, err := NewScheduler("@hourly", nil, zerolog.Nop())
	require.NoError(t, err)
	s.timeout = 10 * time.Millisecond

	s.Add("slow", taskFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	assert.ErrorIs(t, s.RunOnce(t.Context()), context.DeadlineExceeded)
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	_, err := NewScheduler("every now and then", nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	s, err := NewScheduler("@every 1h", nil, zerolog.Nop())
	require.NoError(t, err)
	s.Start()

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	s.Stop(ctx)
	assert.ErrorIs(t, s.ctx.Err(), context.Canceled)
}
