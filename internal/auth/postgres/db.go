// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package postgres provides PostgreSQL implementations of the auth
// collaborators: the account directory, the reset token store and the
// schema migrations they depend on.
package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/cinebook/authcore/internal/auth"
)

// DB is the subset of pgxpool.Pool used by the repositories. pgxmock pools
// satisfy it in unit tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connection retry policy used by Connect.
const (
	connectRetries     = 5
	connectBaseBackoff = 200 * time.Millisecond
)

// Connect opens a pool and waits for the database to answer a ping,
// retrying with exponential backoff. maxConns <= 0 keeps the pgx default.
func Connect(ctx context.Context, databaseURL string, maxConns int32, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").With("operation", "parse database url").Wrap(err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectRetries, retry.NewExponential(connectBaseBackoff))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready",
				"attempt", attempt,
				"error", err.Error())
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}
	return pool, nil
}

// queryError converts a driver error into an oops error. Unique violations
// become auth.ErrAccountExists so the flows can detect them with errors.Is.
func queryError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return oops.Code("ACCOUNT_EXISTS").
			With("operation", operation).
			With("constraint", pgErr.ConstraintName).
			Wrap(auth.ErrAccountExists)
	}
	return oops.Code("DB_QUERY_FAILED").
		With("operation", operation).
		Wrap(err)
}
