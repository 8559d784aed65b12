// Package refresh runs the periodic background work of the process: token
// renewal ahead of expiry and re-fetching the room and asset lists.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const defaultRunTimeout = time.Minute

// Task is one unit of refresh work. Token backends and the store registry
// both satisfy it.
type Task interface {
	Refresh(ctx context.Context) error
}

// Observer records the outcome of every run.
type Observer interface {
	ObserveRefresh(err error)
}

type namedTask struct {
	name string
	task Task
}

// Scheduler runs its tasks in registration order on a cron schedule. A run
// that is still going when the next tick fires makes that tick a no-op.
type Scheduler struct {
	cron     *cron.Cron
	tasks    []namedTask
	observer Observer
	timeout  time.Duration
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler parses spec (standard five-field cron or a descriptor such as
// "@every 5m"). observer may be nil.
func NewScheduler(spec string, observer Observer, log zerolog.Logger) (*Scheduler, error) {
	clog := cronLogger{log: log}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(clog),
			cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
		),
		observer: observer,
		timeout:  defaultRunTimeout,
		log:      log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, func() { _ = s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// Add registers a task. Tasks must be added before Start.
func (s *Scheduler) Add(name string, t Task) {
	s.tasks = append(s.tasks, namedTask{name: name, task: t})
}

func (s *Scheduler) Start() {
	s.log.Info().Int("tasks", len(s.tasks)).Msg("refresh scheduler started")
	s.cron.Start()
}

// Stop cancels the running job, if any, and waits for it to return or for
// ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce runs every task once. A failing task does not stop the ones after
// it; the returned error joins all failures.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	var errs []error
	for _, t := range s.tasks {
		if err := t.task.Refresh(ctx); err != nil {
			s.log.Warn().Err(err).Str("task", t.name).Msg("refresh failed")
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	err := errors.Join(errs...)
	if s.observer != nil {
		s.observer.ObserveRefresh(err)
	}
	s.log.Debug().Dur("took", time.Since(start)).Bool("ok", err == nil).Msg("refresh run finished")
	return err
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
