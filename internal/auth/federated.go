// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/samber/oops"
)

// ProviderGoogle names the Google identity provider in events and metrics.
const ProviderGoogle = "google"

// FederatedIdentity is the verified payload of a provider identity token.
// It is projected onto an Account and never stored itself.
type FederatedIdentity struct {
	Subject       string
	Email         string
	GivenName     string
	FamilyName    string
	EmailVerified bool
}

// IdentityVerifier checks a provider identity token (signature, audience,
// issuer, expiry) and returns the identity it asserts.
type IdentityVerifier interface {
	VerifyIdentityToken(ctx context.Context, token string) (*FederatedIdentity, error)
}

// FederatedAuthenticator logs in, links or registers an account from a
// provider identity token.
type FederatedAuthenticator struct {
	verifier  IdentityVerifier
	directory AccountDirectory
	issuer    *SessionIssuer
	opts      options
}

// NewFederatedAuthenticator creates a FederatedAuthenticator.
func NewFederatedAuthenticator(verifier IdentityVerifier, directory AccountDirectory, issuer *SessionIssuer, opts ...Option) (*FederatedAuthenticator, error) {
	if err := requireDep(verifier != nil, "identity verifier"); err != nil {
		return nil, err
	}
	if err := requireDep(directory != nil, "account directory"); err != nil {
		return nil, err
	}
	if err := requireDep(issuer != nil, "session issuer"); err != nil {
		return nil, err
	}
	return &FederatedAuthenticator{
		verifier:  verifier,
		directory: directory,
		issuer:    issuer,
		opts:      newOptions(opts),
	}, nil
}

// Authenticate verifies providerToken and issues a session for the matching
// account, creating or linking one on first login.
func (a *FederatedAuthenticator) Authenticate(ctx context.Context, providerToken string) (pair *TokenPair, err error) {
	defer func() { recordLogin(MethodGoogle, outcomeOf(err)) }()

	identity, err := a.verify(ctx, providerToken)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := a.opts.call(ctx)
	account, err := a.directory.FindByFederatedID(callCtx, identity.Subject)
	cancel()
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		account, err = a.provision(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, a.reject(ctx, "find account by federated id", err)
	}

	pair, err = a.issuer.Issue(ctx, account)
	if err != nil {
		return nil, err
	}
	a.opts.sink.RecordLoginSuccess(ctx, account.ID, account.Email, account.Role)
	return pair, nil
}

func (a *FederatedAuthenticator) verify(ctx context.Context, providerToken string) (*FederatedIdentity, error) {
	invalid := oops.Code(CodeInvalidToken).Public("invalid identity token")
	if providerToken == "" {
		return nil, invalid.Errorf("identity token is empty")
	}

	callCtx, cancel := a.opts.call(ctx)
	identity, err := a.verifier.VerifyIdentityToken(callCtx, providerToken)
	cancel()
	if err != nil {
		a.opts.logger.DebugContext(ctx, "identity token rejected", "error", err.Error())
		a.opts.sink.RecordEvent(ctx, EventFederatedRejected, map[string]string{
			"provider": ProviderGoogle,
			"reason":   "invalid_token",
		})
		return nil, invalid.Wrapf(opaque(err), "verify identity token")
	}
	if identity == nil || identity.Subject == "" {
		return nil, invalid.Errorf("identity token has no subject")
	}

	if identity.Email == "" || identity.GivenName == "" || identity.FamilyName == "" {
		return nil, badRequest("identity token is missing email or name")
	}
	id := *identity
	id.Email = NormalizeEmail(id.Email)
	return &id, nil
}

// provision links the identity to an existing account with the same
// verified email, or creates a new account.
func (a *FederatedAuthenticator) provision(ctx context.Context, identity *FederatedIdentity) (*Account, error) {
	callCtx, cancel := a.opts.call(ctx)
	existing, err := a.directory.FindByEmail(callCtx, identity.Email)
	cancel()
	switch {
	case err == nil:
		return a.link(ctx, existing, identity)
	case errors.Is(err, ErrNotFound):
		return a.create(ctx, identity)
	default:
		return nil, directoryUnavailable("find account by email", err)
	}
}

func (a *FederatedAuthenticator) link(ctx context.Context, account *Account, identity *FederatedIdentity) (*Account, error) {
	if !identity.EmailVerified {
		return nil, a.reject(ctx, "link account", errors.New("provider email is not verified"))
	}

	callCtx, cancel := a.opts.call(ctx)
	err := a.directory.LinkFederatedID(callCtx, account.ID, identity.Subject)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return a.reread(ctx, identity)
		}
		return nil, directoryUnavailable("link federated id", err)
	}

	subject := identity.Subject
	account.FederatedID = &subject
	a.opts.sink.RecordEvent(ctx, EventAccountLinked, map[string]string{
		"account_id": strconv.FormatInt(account.ID, 10),
		"provider":   ProviderGoogle,
	})
	return account, nil
}

func (a *FederatedAuthenticator) create(ctx context.Context, identity *FederatedIdentity) (*Account, error) {
	callCtx, cancel := a.opts.call(ctx)
	account, err := a.directory.CreateFederatedAccount(callCtx, FederatedAccountInput{
		Email:             identity.Email,
		FirstName:         identity.GivenName,
		LastName:          identity.FamilyName,
		ProviderSubjectID: identity.Subject,
	})
	cancel()
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			// A concurrent first login for the same subject won the insert.
			return a.reread(ctx, identity)
		}
		return nil, directoryUnavailable("create federated account", err)
	}

	recordAccountCreated(ProviderGoogle)
	a.opts.sink.RecordEvent(ctx, EventUserRegistration, map[string]string{
		"account_id": strconv.FormatInt(account.ID, 10),
		"email":      account.Email,
		"provider":   ProviderGoogle,
	})
	return account, nil
}

// reread resolves a uniqueness conflict by loading the account that now owns
// the subject. A conflict on email alone is rejected.
func (a *FederatedAuthenticator) reread(ctx context.Context, identity *FederatedIdentity) (*Account, error) {
	callCtx, cancel := a.opts.call(ctx)
	account, err := a.directory.FindByFederatedID(callCtx, identity.Subject)
	cancel()
	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, ErrNotFound):
		return nil, a.reject(ctx, "resolve account conflict", err)
	default:
		return nil, directoryUnavailable("find account by federated id", err)
	}
}

func (a *FederatedAuthenticator) reject(ctx context.Context, operation string, cause error) error {
	a.opts.logger.WarnContext(ctx, "federated login rejected",
		"operation", operation,
		"error", cause.Error())
	a.opts.sink.RecordEvent(ctx, EventFederatedRejected, map[string]string{
		"provider": ProviderGoogle,
		"reason":   reasonCode(cause),
	})
	return unauthorized()
}
