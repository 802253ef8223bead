// Package postgres implements store.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"kyri56xcaesar/tasktracker/internal/store"
)

//go:embed init.sql
var initSQL string

type Options struct {
	Address  string
	User     string
	Password string
	Name     string
	// Timeout bounds connection setup and every statement.
	Timeout time.Duration
}

func (o Options) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=disable",
		o.User,
		o.Password,
		o.Address,
		o.Name,
	)
}

type Store struct {
	pool *pgxpool.Pool
	log  *logrus.Logger
}

var _ store.Store = (*Store)(nil)

func Open(ctx context.Context, opts Options, log *logrus.Logger) (*Store, error) {
	return OpenDSN(ctx, opts.DSN(), opts.Timeout, log)
}

// OpenDSN connects, pings and applies the schema.
func OpenDSN(ctx context.Context, dsn string, timeout time.Duration, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.New()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if timeout > 0 {
		cfg.ConnConfig.ConnectTimeout = timeout
		cfg.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(timeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("could not connect to the database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping the db: %w", err)
	}

	s := &Store{pool: pool, log: log}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	s.log.Info("executing initialization script...")
	if _, err := s.pool.Exec(ctx, initSQL); err != nil {
		return fmt.Errorf("failed to execute init sql: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return store.ErrDuplicate
		case "23503":
			return store.ErrNotFound
		}
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// where accumulates AND-ed conditions with numbered placeholders.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	out := "WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		out += " AND " + c
	}
	return out
}
