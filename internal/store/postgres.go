package store

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const referralCodeConstraint = "users_referral_code_key"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Postgres struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
}

var _ Repository = (*Postgres)(nil)

func NewPostgres(ctx context.Context, connString string, insecureTLS bool) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}
	if insecureTLS && config.ConnConfig.TLSConfig == nil {
		config.ConnConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{pool: pool, db: pool}, nil
}

// Pool exposes the connection pool for tooling such as the seeder.
func (s *Postgres) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Postgres) Migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}

func (s *Postgres) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Warn("tx rollback failed", "err", err)
		}
	}()

	if err := fn(&Postgres{pool: s.pool, db: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

// savepoint isolates fn inside a nested transaction so a failed insert does
// not abort the surrounding unit of work.
func (s *Postgres) savepoint(ctx context.Context, fn func(q querier) error) error {
	if !s.inTx {
		return fn(s.db)
	}
	sp, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint failed: %w", err)
	}
	if err := fn(sp); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if pgErr.ConstraintName == referralCodeConstraint {
			return ErrReferralCodeTaken
		}
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
