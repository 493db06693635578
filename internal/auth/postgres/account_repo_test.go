// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/pkg/errutil"
)

var accountCols = []string{"id", "email", "first_name", "last_name", "password_hash", "role", "federated_id", "created_at", "updated_at"}

var created = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func TestAccountDirectory_FindByEmail(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      *auth.Account
		wantErr   error
		wantCode  string
	}{
		{
			name: "password account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountCols).
					AddRow(int64(7), "ada@example.com", "Ada", "Lovelace", strPtr("$argon2id$hash"), "ADMIN", (*string)(nil), created, created)
				mock.ExpectQuery(`FROM accounts\s+WHERE lower\(email\) = lower\(\$1\)`).
					WithArgs("ada@example.com").
					WillReturnRows(rows)
			},
			want: &auth.Account{
				ID: 7, Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace",
				PasswordHash: strPtr("$argon2id$hash"), Role: auth.RoleAdmin,
				CreatedAt: created, UpdatedAt: created,
			},
		},
		{
			name: "no rows is not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM accounts`).
					WithArgs("ada@example.com").
					WillReturnRows(pgxmock.NewRows(accountCols))
			},
			wantErr:  auth.ErrNotFound,
			wantCode: "ACCOUNT_NOT_FOUND",
		},
		{
			name: "driver failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM accounts`).
					WithArgs("ada@example.com").
					WillReturnError(errors.New("connection refused"))
			},
			wantCode: "DB_QUERY_FAILED",
		},
		{
			name: "unknown stored role",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				rows := pgxmock.NewRows(accountCols).
					AddRow(int64(7), "ada@example.com", "Ada", "Lovelace", strPtr("h"), "ROOT", (*string)(nil), created, created)
				mock.ExpectQuery(`FROM accounts`).
					WithArgs("ada@example.com").
					WillReturnRows(rows)
			},
			wantCode: "AUTH_INVALID_ROLE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			got, err := NewAccountDirectory(mock).FindByEmail(context.Background(), "  Ada@Example.COM ")

			if tt.wantCode != "" {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.NotErrorIs(t, err, auth.ErrNotFound)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestAccountDirectory_FindByID(t *testing.T) {
	mock := newMock(t)
	rows := pgxmock.NewRows(accountCols).
		AddRow(int64(3), "grace@example.com", "Grace", "Hopper", (*string)(nil), "CUSTOMER", strPtr("g-123"), created, created)
	mock.ExpectQuery(`FROM accounts\s+WHERE id = \$1`).WithArgs(int64(3)).WillReturnRows(rows)

	got, err := NewAccountDirectory(mock).FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
	assert.False(t, got.HasPassword())
	require.NotNil(t, got.FederatedID)
	assert.Equal(t, "g-123", *got.FederatedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountDirectory_FindByFederatedID(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM accounts\s+WHERE federated_id = \$1`).
		WithArgs("g-404").
		WillReturnRows(pgxmock.NewRows(accountCols))

	_, err := NewAccountDirectory(mock).FindByFederatedID(context.Background(), "g-404")
	require.ErrorIs(t, err, auth.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountDirectory_CreateFederatedAccount(t *testing.T) {
	in := auth.FederatedAccountInput{
		Email: "Grace@Example.com", FirstName: "Grace", LastName: "Hopper", ProviderSubjectID: "g-123",
	}

	t.Run("returns stored row", func(t *testing.T) {
		mock := newMock(t)
		rows := pgxmock.NewRows(accountCols).
			AddRow(int64(11), "grace@example.com", "Grace", "Hopper", (*string)(nil), "CUSTOMER", strPtr("g-123"), created, created)
		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("grace@example.com", "Grace", "Hopper", "CUSTOMER", "g-123").
			WillReturnRows(rows)

		got, err := NewAccountDirectory(mock).CreateFederatedAccount(context.Background(), in)
		require.NoError(t, err)
		assert.Equal(t, int64(11), got.ID)
		assert.Equal(t, auth.RoleCustomer, got.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation is account exists", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectQuery(`INSERT INTO accounts`).
			WithArgs("grace@example.com", "Grace", "Hopper", "CUSTOMER", "g-123").
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "accounts_email_lower_key"})

		_, err := NewAccountDirectory(mock).CreateFederatedAccount(context.Background(), in)
		require.ErrorIs(t, err, auth.ErrAccountExists)
		errutil.AssertErrorCode(t, err, "ACCOUNT_EXISTS")
		errutil.AssertErrorContext(t, err, "constraint", "accounts_email_lower_key")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountDirectory_LinkFederatedID(t *testing.T) {
	t.Run("linked", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE accounts\s+SET federated_id = \$2`).
			WithArgs(int64(7), "g-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, NewAccountDirectory(mock).LinkFederatedID(context.Background(), 7, "g-123"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("linked to another subject", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(7), "g-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		rows := pgxmock.NewRows(accountCols).
			AddRow(int64(7), "ada@example.com", "Ada", "Lovelace", strPtr("h"), "CUSTOMER", strPtr("g-999"), created, created)
		mock.ExpectQuery(`WHERE id = \$1`).WithArgs(int64(7)).WillReturnRows(rows)

		err := NewAccountDirectory(mock).LinkFederatedID(context.Background(), 7, "g-123")
		require.ErrorIs(t, err, auth.ErrAccountExists)
		errutil.AssertErrorCode(t, err, "ACCOUNT_ALREADY_LINKED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing account", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs(int64(7), "g-123").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectQuery(`WHERE id = \$1`).WithArgs(int64(7)).WillReturnRows(pgxmock.NewRows(accountCols))

		err := NewAccountDirectory(mock).LinkFederatedID(context.Background(), 7, "g-123")
		require.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountDirectory_UpdatePasswordHash(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		wantErr   error
		wantCode  string
	}{
		{
			name: "updated",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts\s+SET password_hash = \$2`).
					WithArgs(int64(7), "new-hash").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			},
		},
		{
			name: "no such account",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts`).
					WithArgs(int64(7), "new-hash").
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
			},
			wantErr:  auth.ErrNotFound,
			wantCode: "ACCOUNT_NOT_FOUND",
		},
		{
			name: "driver failure",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectExec(`UPDATE accounts`).
					WithArgs(int64(7), "new-hash").
					WillReturnError(errors.New("broken pipe"))
			},
			wantCode: "DB_QUERY_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			tt.setupMock(mock)

			err := NewAccountDirectory(mock).UpdatePasswordHash(context.Background(), 7, "new-hash")
			if tt.wantCode == "" {
				require.NoError(t, err)
			} else {
				errutil.AssertErrorCode(t, err, tt.wantCode)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
