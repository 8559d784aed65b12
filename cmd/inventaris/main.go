// Command inventaris keeps the signed-in session, the room list and the asset
// list in memory, applies edits optimistically and reconciles them with the
// configured backend. A local HTTP API exposes the state for inspection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inventaris/inventory-state/internal/api"
	"github.com/inventaris/inventory-state/internal/api/metrics"
	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/core/store"
	"github.com/inventaris/inventory-state/internal/infrastructure/auth"
	mongodb "github.com/inventaris/inventory-state/internal/infrastructure/db/mongo"
	"github.com/inventaris/inventory-state/internal/infrastructure/db/postgres"
	redisdb "github.com/inventaris/inventory-state/internal/infrastructure/db/redis"
	"github.com/inventaris/inventory-state/internal/infrastructure/queue"
	"github.com/inventaris/inventory-state/internal/infrastructure/refresh"
	"github.com/inventaris/inventory-state/internal/infrastructure/rest"
	"github.com/inventaris/inventory-state/internal/pkg/config"
	"github.com/inventaris/inventory-state/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	hash := flag.String("hash-password", "", "print the bcrypt hash of the given password and exit")
	flag.Parse()

	if *hash != "" {
		h, err := auth.HashPassword(*hash)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(h)
		return
	}

	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "inventaris",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("inventaris stopped")
	}
}

// backend is everything the stores talk to, plus what has to be closed on
// the way out.
type backend struct {
	auth      ports.AuthBackend
	tokens    refresh.Task
	profiles  ports.ProfileRepository
	rooms     ports.RoomRepository
	assets    ports.AssetRepository
	readiness map[string]ports.Pinger
	closers   []func(context.Context)
}

func (b *backend) close(ctx context.Context) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i](ctx)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("main")
	b := &backend{readiness: map[string]ports.Pinger{}}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		b.close(cctx)
	}()

	cache, err := sessionCache(ctx, cfg, b)
	if err != nil {
		return err
	}
	if err := openBackend(ctx, cfg, cache, b); err != nil {
		return err
	}

	var observer ports.MutationObserver = ports.NopObserver{}
	rec := metrics.Recorder{}
	if cfg.Metrics {
		observer = rec
	}

	q := queue.NewDispatcher(cfg.QueueWorkers, logger.Component("mutation_queue"))
	q.Start(context.WithoutCancel(ctx))

	stores := store.NewStores(store.Deps{
		Auth:     b.auth,
		Profiles: b.profiles,
		Rooms:    b.rooms,
		Assets:   b.assets,
		Queue:    q,
		Observer: observer,
		Logger:   logger.Component("stores"),
	})
	if cfg.Metrics {
		defer b.auth.OnSessionChange(rec.ObserveSessionEvent)()
	}
	stores.Session.Initialize(ctx)

	var sched *refresh.Scheduler
	if cfg.RefreshSchedule != "" {
		var obs refresh.Observer
		if cfg.Metrics {
			obs = rec
		}
		sched, err = refresh.NewScheduler(cfg.RefreshSchedule, obs, logger.Component("refresh"))
		if err != nil {
			return err
		}
		sched.Add("token", b.tokens)
		sched.Add("stores", stores)
		sched.Start()
	}

	e := api.NewRouter(api.RouterDeps{
		Stores:    stores,
		Readiness: b.readiness,
		Logger:    logger.Component("http"),
		Metrics:   cfg.Metrics,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("backend", cfg.Backend).Msg("inspector listening")
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if sched != nil {
		sched.Stop(sctx)
	}
	if err := stores.Dispose(sctx); err != nil {
		log.Warn().Err(err).Msg("pending mutations left unsettled")
	}
	q.Close()
	return nil
}

// sessionCache connects to Redis when REDIS_ADDR is set. A nil cache keeps
// the session in memory only.
func sessionCache(ctx context.Context, cfg *config.Config, b *backend) (ports.SessionCache, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	client, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		return nil, err
	}
	b.closers = append(b.closers, func(context.Context) { _ = client.Close() })

	cache := redisdb.NewSessionCache(client, cfg.Backend, cfg.SessionTTL)
	b.readiness["redis"] = cache
	return cache, nil
}

func openBackend(ctx context.Context, cfg *config.Config, cache ports.SessionCache, b *backend) error {
	switch cfg.Backend {
	case config.BackendREST:
		client := rest.NewClient(rest.Config{
			BaseURL: cfg.REST.URL,
			AnonKey: cfg.REST.AnonKey,
			Timeout: cfg.REST.Timeout,
			Retries: cfg.REST.Retries,
		}, logger.Component("rest_client"))
		ab := rest.NewAuthBackend(client, cache, logger.Component("rest_auth"))
		b.auth, b.tokens = ab, ab
		b.profiles = rest.NewProfileRepository(client)
		b.rooms = rest.NewRoomRepository(client)
		b.assets = rest.NewAssetRepository(client)
		b.readiness["rest"] = client

	case config.BackendMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func(ctx context.Context) { _ = client.Disconnect(ctx) })
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		profiles := mongodb.NewProfileRepository(db)
		pb := auth.NewPasswordBackend(profiles, cache, cfg.JWTSecret, cfg.SessionTTL, logger.Component("password_auth"))
		b.auth, b.tokens = pb, pb
		b.profiles = profiles
		b.rooms = mongodb.NewRoomRepository(db)
		b.assets = mongodb.NewAssetRepository(db)
		b.readiness["mongo"] = mongodb.NewPinger(client)

	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, func(context.Context) { pool.Close() })
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		profiles := postgres.NewProfileRepository(pool)
		pb := auth.NewPasswordBackend(profiles, cache, cfg.JWTSecret, cfg.SessionTTL, logger.Component("password_auth"))
		b.auth, b.tokens = pb, pb
		b.profiles = profiles
		b.rooms = postgres.NewRoomRepository(pool)
		b.assets = postgres.NewAssetRepository(pool)
		b.readiness["postgres"] = postgres.NewPinger(pool)

	default:
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}
