// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Role is the authorization role carried in every issued token.
type Role string

// Known roles.
const (
	RoleCustomer Role = "CUSTOMER"
	RoleAdmin    Role = "ADMIN"
	RoleWorker   Role = "WORKER"
)

// ParseRole converts a stored role name into a Role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleCustomer, RoleAdmin, RoleWorker:
		return r, nil
	default:
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Errorf("unknown role %q", s)
	}
}

// Account is a principal known to the account directory.
type Account struct {
	ID           int64
	Email        string
	FirstName    string
	LastName     string
	PasswordHash *string // nil for federation-only accounts
	Role         Role
	FederatedID  *string // provider subject id, e.g. the Google "sub"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether the account can log in with a password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// Validate checks the account invariants.
func (a *Account) Validate() error {
	if a.Email == "" {
		return oops.Code("AUTH_INVALID_ACCOUNT").Errorf("email cannot be empty")
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	if !a.HasPassword() && (a.FederatedID == nil || *a.FederatedID == "") {
		return oops.Code("AUTH_INVALID_ACCOUNT").
			With("account_id", a.ID).
			Errorf("account without password must have a federated identity")
	}
	return nil
}

// NormalizeEmail returns the canonical form used for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FederatedAccountInput holds the fields projected from a verified
// third-party identity when creating an account.
type FederatedAccountInput struct {
	Email             string
	FirstName         string
	LastName          string
	ProviderSubjectID string
}

// AccountDirectory is the external store of accounts.
//
// Lookups return ErrNotFound (possibly wrapped) when nothing matches. Creating
// or linking an account whose email or federated id is already taken returns
// ErrAccountExists. Any other error is treated as transient.
type AccountDirectory interface {
	// FindByEmail retrieves an account by normalized email.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByID retrieves an account by id.
	FindByID(ctx context.Context, id int64) (*Account, error)

	// FindByFederatedID retrieves an account by provider subject id.
	FindByFederatedID(ctx context.Context, subject string) (*Account, error)

	// CreateFederatedAccount creates a CUSTOMER account without a password.
	CreateFederatedAccount(ctx context.Context, in FederatedAccountInput) (*Account, error)

	// LinkFederatedID attaches a provider subject id to an existing account.
	LinkFederatedID(ctx context.Context, id int64, subject string) error

	// UpdatePasswordHash replaces the password hash of an account.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}
