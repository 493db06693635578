// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/pkg/errutil"
)

var resetCols = []string{"id", "token_hash", "account_id", "expires_at", "created_at", "consumed_at"}

func TestResetTokenStore_Put(t *testing.T) {
	rec := &auth.ResetRecord{
		ID:        ulid.Make(),
		TokenHash: "abc123",
		AccountID: 7,
		ExpiresAt: created.Add(auth.DefaultResetTTL),
		CreatedAt: created,
	}

	t.Run("inserted", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(rec.ID.String(), "abc123", int64(7), rec.ExpiresAt, rec.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewResetTokenStore(mock).Put(context.Background(), rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		err := NewResetTokenStore(mock).Put(context.Background(), rec)
		errutil.AssertErrorCode(t, err, "RESET_CREATE_FAILED")
		errutil.AssertErrorContext(t, err, "account_id", int64(7))
	})
}

func TestResetTokenStore_Get(t *testing.T) {
	id := ulid.Make()
	consumed := created.Add(time.Minute)

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(resetCols).
			AddRow(id.String(), "abc123", int64(7), created.Add(15*time.Minute), created, &consumed)
		mock.ExpectQuery(`FROM password_resets\s+WHERE token_hash = \$1`).
			WithArgs("abc123").
			WillReturnRows(rows)

		got, err := NewResetTokenStore(mock).Get(context.Background(), "abc123")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, int64(7), got.AccountID)
		require.NotNil(t, got.ConsumedAt)
		assert.False(t, got.Usable(created.Add(2*time.Minute)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`FROM password_resets`).
			WithArgs("nope").
			WillReturnRows(pgxmock.NewRows(resetCols))

		_, err := NewResetTokenStore(mock).Get(context.Background(), "nope")
		require.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "RESET_NOT_FOUND")
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(resetCols).
			AddRow("not-a-ulid", "abc123", int64(7), created, created, (*time.Time)(nil))
		mock.ExpectQuery(`FROM password_resets`).WithArgs("abc123").WillReturnRows(rows)

		_, err := NewResetTokenStore(mock).Get(context.Background(), "abc123")
		errutil.AssertErrorCode(t, err, "RESET_INVALID_ID")
		assert.NotErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestResetTokenStore_TryConsume(t *testing.T) {
	now := created.Add(time.Minute)

	tests := []struct {
		name     string
		result   pgxmockResult
		err      error
		want     bool
		wantCode string
	}{
		{name: "first consumer wins", result: pgxmockResult{"UPDATE", 1}, want: true},
		{name: "already consumed or expired", result: pgxmockResult{"UPDATE", 0}, want: false},
		{name: "driver failure", err: errors.New("deadlock detected"), wantCode: "RESET_CONSUME_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			exp := mock.ExpectExec(`UPDATE password_resets\s+SET consumed_at = \$2\s+WHERE token_hash = \$1 AND consumed_at IS NULL AND expires_at > \$2`).
				WithArgs("abc123", now)
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(pgxmock.NewResult(tt.result.tag, tt.result.rows))
			}

			got, err := NewResetTokenStore(mock).TryConsume(context.Background(), "abc123", now)
			if tt.wantCode != "" {
				errutil.AssertErrorCode(t, err, tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type pgxmockResult struct {
	tag  string
	rows int64
}

func TestResetTokenStore_DeleteExpired(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec(`DELETE FROM password_resets WHERE expires_at < \$1`).
		WithArgs(created).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := NewResetTokenStore(mock).DeleteExpired(context.Background(), created)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
