// Package postgres implements the repositories on a PostgreSQL schema that
// mirrors the hosted backend: users, ruangans and assets.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inventaris/inventory-state/internal/core/ports"
	"github.com/inventaris/inventory-state/internal/pkg/validate"
)

const defaultTimeout = 10 * time.Second

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

const schema = `
create extension if not exists pgcrypto;

create table if not exists users (
  id              uuid primary key default gen_random_uuid(),
  name            text not null default '',
  email           text not null unique,
  profile_picture text,
  sampul_img      text,
  role            text not null default 'operator' check (role in ('admin', 'operator')),
  password_hash   text not null default '',
  created_at      timestamptz not null default now(),
  updated_at      timestamptz not null default now()
);

create table if not exists ruangans (
  id         bigserial primary key,
  user_id    uuid references users(id) on delete set null,
  name       text not null check (name <> ''),
  header_img text,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create table if not exists assets (
  id         uuid primary key default gen_random_uuid(),
  ruangan_id bigint not null references ruangans(id) on delete cascade,
  name       text not null check (name <> ''),
  merk       text,
  tahun      int,
  kode       text,
  nup        text,
  milik      text,
  jumlah     int not null default 0 check (jumlah >= 0),
  kondisi    text not null check (kondisi in ('baik', 'rusak_ringan', 'rusak_berat')),
  foto       text,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create index if not exists ruangans_user_id_idx on ruangans(user_id);
create index if not exists assets_ruangan_id_idx on assets(ruangan_id);
`

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Pinger reports database reachability for the readiness probe.
type Pinger struct {
	pool *pgxpool.Pool
}

func NewPinger(pool *pgxpool.Pool) *Pinger { return &Pinger{pool: pool} }

func (p *Pinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// rowTo lets a single-row scanner collect a result set.
func rowTo[T any](scan func(pgx.Row) (T, error)) pgx.RowToFunc[T] {
	return func(row pgx.CollectableRow) (T, error) { return scan(row) }
}

// backendError wraps a driver failure. notFound becomes the wrapped error when
// the query matched no row.
func backendError(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return &ports.BackendError{Op: op, Status: 404, Err: notFound}
	}
	var ve *validate.Error
	if errors.As(err, &ve) {
		return &ports.BackendError{Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		status := 400
		switch pgErr.Code {
		case "23505", "23503":
			status = 409
		}
		return &ports.BackendError{Op: op, Status: status, Message: pgErr.Message, Err: err}
	}
	return &ports.BackendError{Op: op, Err: err}
}

// setList accumulates "col = $n" assignments for an UPDATE.
type setList struct {
	cols []string
	args []any
}

func (s *setList) add(col string, v any) {
	s.args = append(s.args, v)
	s.cols = append(s.cols, fmt.Sprintf("%s = $%d", col, len(s.args)))
}

// update renders "update <table> set ... where <key> = $n returning *" with
// updated_at always touched, and returns it with its arguments.
func (s *setList) update(table, key string, id any) (string, []any) {
	cols := append(append([]string(nil), s.cols...), "updated_at = now()")
	args := append(append([]any(nil), s.args...), id)
	q := fmt.Sprintf("update %s set %s where %s = $%d returning *", table, strings.Join(cols, ", "), key, len(args))
	return q, args
}
