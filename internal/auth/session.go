// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 3600 * time.Second
	DefaultRefreshTTL = 86400 * time.Second
)

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "Bearer"

// TokenTTLs holds the access and refresh token lifetimes. Values are used
// literally; zero or negative lifetimes produce already-expired tokens.
type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

// DefaultTokenTTLs returns one hour for access and one day for refresh.
func DefaultTokenTTLs() TokenTTLs {
	return TokenTTLs{Access: DefaultAccessTTL, Refresh: DefaultRefreshTTL}
}

// TokenPair is the session handed to an authenticated caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// SessionIssuer mints access/refresh token pairs for an account.
type SessionIssuer struct {
	signer TokenSigner
	ttls   TokenTTLs
}

// NewSessionIssuer creates a SessionIssuer.
func NewSessionIssuer(signer TokenSigner, ttls TokenTTLs) (*SessionIssuer, error) {
	if err := requireDep(signer != nil, "token signer"); err != nil {
		return nil, err
	}
	return &SessionIssuer{signer: signer, ttls: ttls}, nil
}

// TTLs returns the configured lifetimes.
func (i *SessionIssuer) TTLs() TokenTTLs {
	return i.ttls
}

// Issue signs an access and a refresh token for account. Both tokens are
// signed concurrently; if either fails no pair is returned.
func (i *SessionIssuer) Issue(ctx context.Context, account *Account) (*TokenPair, error) {
	if account == nil {
		return nil, oops.Code(CodeTokenSignFailed).Errorf("account is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, oops.Code(CodeTokenSignFailed).With("account_id", account.ID).Wrap(err)
	}

	start := time.Now()
	defer func() { observeIssue(time.Since(start)) }()

	sub := strconv.FormatInt(account.ID, 10)
	access := Claims{ClaimSubject: sub, ClaimRole: string(account.Role), ClaimTokenUse: TokenUseAccess}
	if account.Email != "" {
		access[ClaimEmail] = account.Email
	}
	refresh := Claims{ClaimSubject: sub, ClaimRole: string(account.Role)}

	pair := &TokenPair{TokenType: TokenTypeBearer, ExpiresIn: int64(i.ttls.Access / time.Second)}

	var g errgroup.Group
	g.Go(func() error {
		tok, err := i.signer.Sign(access, i.ttls.Access)
		pair.AccessToken = tok
		return err
	})
	g.Go(func() error {
		tok, err := i.signer.Sign(refresh, i.ttls.Refresh)
		pair.RefreshToken = tok
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, oops.Code(CodeTokenSignFailed).
			With("account_id", account.ID).
			Wrapf(opaque(err), "issue token pair")
	}
	return pair, nil
}

// SessionRefresher exchanges a valid refresh token for a new pair. Refresh
// tokens are not revoked; the old one stays valid until it expires.
type SessionRefresher struct {
	signer    TokenSigner
	directory AccountDirectory
	issuer    *SessionIssuer
	opts      options
}

// NewSessionRefresher creates a SessionRefresher.
func NewSessionRefresher(signer TokenSigner, directory AccountDirectory, issuer *SessionIssuer, opts ...Option) (*SessionRefresher, error) {
	if err := requireDep(signer != nil, "token signer"); err != nil {
		return nil, err
	}
	if err := requireDep(directory != nil, "account directory"); err != nil {
		return nil, err
	}
	if err := requireDep(issuer != nil, "session issuer"); err != nil {
		return nil, err
	}
	return &SessionRefresher{
		signer:    signer,
		directory: directory,
		issuer:    issuer,
		opts:      newOptions(opts),
	}, nil
}

// Refresh verifies refreshToken, re-reads the account and issues a new pair
// carrying the account's current role.
func (r *SessionRefresher) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	defer func() { recordRefresh(outcomeOf(err)) }()

	claims, err := r.signer.Verify(refreshToken)
	if err != nil {
		return nil, r.reject(ctx, "verify refresh token", err)
	}
	if use, _ := claims.String(ClaimTokenUse); use == TokenUseAccess {
		return nil, r.reject(ctx, "check token use", oops.Code(CodeTokenWrongUse).Errorf("access token presented for refresh"))
	}

	sub, _ := claims.String(ClaimSubject)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, r.reject(ctx, "parse subject", err)
	}

	callCtx, cancel := r.opts.call(ctx)
	account, err := r.directory.FindByID(callCtx, id)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, r.reject(ctx, "find account by id", err)
		}
		return nil, directoryUnavailable("find account by id", err)
	}

	return r.issuer.Issue(ctx, account)
}

func (r *SessionRefresher) reject(ctx context.Context, operation string, cause error) error {
	r.opts.logger.DebugContext(ctx, "refresh rejected",
		"operation", operation,
		"code", ErrorCode(cause),
		"error", cause)
	r.opts.sink.RecordEvent(ctx, EventRefreshRejected, map[string]string{"reason": reasonCode(cause)})
	return unauthorized()
}

// reasonCode returns the error code of cause, or "invalid" when it has none.
func reasonCode(cause error) string {
	if code := ErrorCode(cause); code != "" {
		return code
	}
	if errors.Is(cause, ErrNotFound) {
		return "not_found"
	}
	return "invalid"
}
