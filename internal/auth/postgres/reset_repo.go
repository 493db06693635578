// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/cinebook/authcore/internal/auth"
)

// ResetTokenStore implements auth.ResetTokenStore using PostgreSQL.
type ResetTokenStore struct {
	db DB
}

// NewResetTokenStore creates a new ResetTokenStore.
func NewResetTokenStore(db DB) *ResetTokenStore {
	return &ResetTokenStore{db: db}
}

// Put stores a new password reset record.
func (s *ResetTokenStore) Put(ctx context.Context, rec *auth.ResetRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO password_resets (id, token_hash, account_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID.String(), rec.TokenHash, rec.AccountID, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("account_id", rec.AccountID).
			Wrap(err)
	}
	return nil
}

// Get retrieves a reset record by its token hash.
func (s *ResetTokenStore) Get(ctx context.Context, tokenHash string) (*auth.ResetRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, token_hash, account_id, expires_at, created_at, consumed_at
		FROM password_resets
		WHERE token_hash = $1
	`, tokenHash)

	rec, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// TryConsume marks the record consumed in a single conditional update, so
// concurrent callers race inside the database and only one row update wins.
func (s *ResetTokenStore) TryConsume(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	result, err := s.db.Exec(ctx, `
		UPDATE password_resets
		SET consumed_at = $2
		WHERE token_hash = $1 AND consumed_at IS NULL AND expires_at > $2
	`, tokenHash, now)
	if err != nil {
		return false, oops.Code("RESET_CONSUME_FAILED").
			With("operation", "consume password_reset").
			Wrap(err)
	}
	return result.RowsAffected() == 1, nil
}

// DeleteExpired removes records that expired before the given time.
func (s *ResetTokenStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at < $1
	`, before)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a ResetRecord.
// Callers are responsible for handling pgx.ErrNoRows.
func scanReset(row pgx.Row) (*auth.ResetRecord, error) {
	var (
		idStr string
		rec   auth.ResetRecord
	)

	err := row.Scan(&idStr, &rec.TokenHash, &rec.AccountID, &rec.ExpiresAt, &rec.CreatedAt, &rec.ConsumedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset").
			Wrap(err)
	}

	rec.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset id").
			With("id", idStr).
			Wrap(err)
	}
	return &rec, nil
}

// Compile-time interface checks.
var (
	_ auth.ResetTokenStore  = (*ResetTokenStore)(nil)
	_ auth.ResetTokenPurger = (*ResetTokenStore)(nil)
)
