// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"errors"
)

// dummyPasswordHash is verified when the account does not exist or has no
// password, so every failed login costs one argon2id evaluation.
//
//nolint:gosec // G101: fake hash used only to equalize timing, never matches.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// CredentialAuthenticator logs an account in with email and password.
type CredentialAuthenticator struct {
	directory AccountDirectory
	hasher    PasswordHasher
	issuer    *SessionIssuer
	opts      options
}

// NewCredentialAuthenticator creates a CredentialAuthenticator.
func NewCredentialAuthenticator(directory AccountDirectory, hasher PasswordHasher, issuer *SessionIssuer, opts ...Option) (*CredentialAuthenticator, error) {
	if err := requireDep(directory != nil, "account directory"); err != nil {
		return nil, err
	}
	if err := requireDep(hasher != nil, "password hasher"); err != nil {
		return nil, err
	}
	if err := requireDep(issuer != nil, "session issuer"); err != nil {
		return nil, err
	}
	return &CredentialAuthenticator{
		directory: directory,
		hasher:    hasher,
		issuer:    issuer,
		opts:      newOptions(opts),
	}, nil
}

// Authenticate verifies email and password and issues a session. An unknown
// email and a wrong password fail with the same InvalidCredentials error.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	defer func() { recordLogin(MethodPassword, outcomeOf(err)) }()

	email = NormalizeEmail(email)

	callCtx, cancel := a.opts.call(ctx)
	account, lookupErr := a.directory.FindByEmail(callCtx, email)
	cancel()
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, directoryUnavailable("find account by email", lookupErr)
	}
	if lookupErr != nil {
		account = nil
	}

	// Always verify, even for unknown accounts.
	target, reason := dummyPasswordHash, ReasonNoSuchUser
	if account != nil {
		reason = ReasonBadPassword
		if account.HasPassword() {
			target = *account.PasswordHash
		}
	}
	valid := a.hasher.Verify(password, target)

	if account == nil || !account.HasPassword() || !valid {
		a.opts.sink.RecordLoginFailure(ctx, email, reason)
		return nil, invalidCredentials()
	}

	a.upgradeHash(ctx, account, password)

	pair, err = a.issuer.Issue(ctx, account)
	if err != nil {
		return nil, err
	}
	a.opts.sink.RecordLoginSuccess(ctx, account.ID, account.Email, account.Role)
	return pair, nil
}

// upgradeHash replaces a legacy or weak hash after a successful login.
// Failures are logged and never affect the login.
func (a *CredentialAuthenticator) upgradeHash(ctx context.Context, account *Account, password string) {
	if !a.hasher.NeedsUpgrade(*account.PasswordHash) {
		return
	}
	newHash, err := a.hasher.Hash(password)
	if err != nil {
		a.opts.logger.WarnContext(ctx, "best-effort password rehash failed",
			"account_id", account.ID,
			"operation", "hash_password",
			"error", err.Error())
		return
	}

	callCtx, cancel := a.opts.call(ctx)
	defer cancel()
	if err := a.directory.UpdatePasswordHash(callCtx, account.ID, newHash); err != nil {
		a.opts.logger.WarnContext(ctx, "best-effort password rehash failed",
			"account_id", account.ID,
			"operation", "update_password_hash",
			"error", err.Error())
	}
}
