// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/cinebook/authcore/internal/auth"
)

const accountColumns = `id, email, first_name, last_name, password_hash, role, federated_id, created_at, updated_at`

// AccountDirectory implements auth.AccountDirectory using PostgreSQL.
type AccountDirectory struct {
	db DB
}

// NewAccountDirectory creates a new AccountDirectory.
func NewAccountDirectory(db DB) *AccountDirectory {
	return &AccountDirectory{db: db}
}

// FindByEmail retrieves an account by email, case-insensitively.
func (r *AccountDirectory) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE lower(email) = lower($1)
	`, auth.NormalizeEmail(email))
	return r.one(row, "select account by email")
}

// FindByID retrieves an account by id.
func (r *AccountDirectory) FindByID(ctx context.Context, id int64) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id)
	return r.one(row, "select account by id")
}

// FindByFederatedID retrieves an account by provider subject id.
func (r *AccountDirectory) FindByFederatedID(ctx context.Context, subject string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE federated_id = $1
	`, subject)
	return r.one(row, "select account by federated id")
}

// CreateFederatedAccount inserts a CUSTOMER account without a password.
// Email or subject collisions return auth.ErrAccountExists.
func (r *AccountDirectory) CreateFederatedAccount(ctx context.Context, in auth.FederatedAccountInput) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (email, first_name, last_name, role, federated_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+accountColumns,
		auth.NormalizeEmail(in.Email), in.FirstName, in.LastName, string(auth.RoleCustomer), in.ProviderSubjectID)

	account, err := scanAccount(row)
	if err != nil {
		return nil, queryError("insert federated account", err)
	}
	return account, nil
}

// LinkFederatedID attaches subject to an account that has no federated id
// yet, or already has this one.
func (r *AccountDirectory) LinkFederatedID(ctx context.Context, id int64, subject string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET federated_id = $2, updated_at = now()
		WHERE id = $1 AND (federated_id IS NULL OR federated_id = $2)
	`, id, subject)
	if err != nil {
		return queryError("link federated id", err)
	}
	if result.RowsAffected() == 1 {
		return nil
	}

	// Either the account is gone or it is linked to another subject.
	if _, err := r.FindByID(ctx, id); err != nil {
		return err
	}
	return oops.Code("ACCOUNT_ALREADY_LINKED").
		With("account_id", id).
		Wrap(auth.ErrAccountExists)
}

// UpdatePasswordHash replaces the password hash of an account.
func (r *AccountDirectory) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET password_hash = $2, updated_at = now()
		WHERE id = $1
	`, id, hash)
	if err != nil {
		return queryError("update password hash", err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", id).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *AccountDirectory) one(row pgx.Row, operation string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("operation", operation).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, queryError(operation, err)
	}
	return account, nil
}

// scanAccount scans a single row in accountColumns order.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		a         auth.Account
		role      string
		createdAt time.Time
		updatedAt time.Time
	)
	err := row.Scan(&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &role, &a.FederatedID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	a.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").
			With("account_id", a.ID).
			Wrap(err)
	}
	a.CreatedAt = createdAt
	a.UpdatedAt = updatedAt
	return &a, nil
}

// Compile-time interface check.
var _ auth.AccountDirectory = (*AccountDirectory)(nil)
