// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// Deps are the collaborators of a Service.
type Deps struct {
	Directory  AccountDirectory
	Hasher     PasswordHasher
	Signer     TokenSigner
	ResetStore ResetTokenStore

	// Verifier enables AuthenticateFederated. Optional.
	Verifier IdentityVerifier
	// Dispatcher delivers reset links for RequestPasswordReset. Defaults to LogDispatcher.
	Dispatcher EmailDispatcher
	// Sink receives security events. Defaults to NopSink.
	Sink SecurityEventSink
}

// Options tunes a Service. The zero value selects every default.
type Options struct {
	// TTLs are the token lifetimes, used literally; nil selects DefaultTokenTTLs.
	TTLs *TokenTTLs
	// ResetTTL is the reset-token lifetime; zero selects DefaultResetTTL.
	ResetTTL time.Duration
	// CallTimeout bounds each collaborator call; zero selects
	// DefaultCallTimeout and a negative value disables the bound.
	CallTimeout time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

// Service is the entry point used by transport layers.
type Service struct {
	issuer     *SessionIssuer
	credential *CredentialAuthenticator
	refresher  *SessionRefresher
	federated  *FederatedAuthenticator
	reset      *PasswordResetFlow
	dispatcher EmailDispatcher
	logger     *slog.Logger
}

// NewService wires the flows from deps.
func NewService(deps Deps, o Options) (*Service, error) {
	if err := requireDep(deps.Directory != nil, "account directory"); err != nil {
		return nil, err
	}
	if err := requireDep(deps.Hasher != nil, "password hasher"); err != nil {
		return nil, err
	}
	if err := requireDep(deps.Signer != nil, "token signer"); err != nil {
		return nil, err
	}
	if err := requireDep(deps.ResetStore != nil, "reset token store"); err != nil {
		return nil, err
	}

	ttls := DefaultTokenTTLs()
	if o.TTLs != nil {
		ttls = *o.TTLs
	}
	switch {
	case o.CallTimeout == 0:
		o.CallTimeout = DefaultCallTimeout
	case o.CallTimeout < 0:
		o.CallTimeout = 0
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []Option{
		WithLogger(logger),
		WithEventSink(deps.Sink),
		WithCallTimeout(o.CallTimeout),
		WithNow(o.Now),
	}

	s := &Service{dispatcher: deps.Dispatcher, logger: logger}
	if s.dispatcher == nil {
		s.dispatcher = LogDispatcher{Logger: logger}
	}

	var err error
	if s.issuer, err = NewSessionIssuer(deps.Signer, ttls); err != nil {
		return nil, err
	}
	if s.credential, err = NewCredentialAuthenticator(deps.Directory, deps.Hasher, s.issuer, opts...); err != nil {
		return nil, err
	}
	if s.refresher, err = NewSessionRefresher(deps.Signer, deps.Directory, s.issuer, opts...); err != nil {
		return nil, err
	}
	if s.reset, err = NewPasswordResetFlow(deps.Directory, deps.ResetStore, deps.Hasher, o.ResetTTL, opts...); err != nil {
		return nil, err
	}
	if deps.Verifier != nil {
		if s.federated, err = NewFederatedAuthenticator(deps.Verifier, deps.Directory, s.issuer, opts...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AuthenticateByCredentials logs in with email and password.
func (s *Service) AuthenticateByCredentials(ctx context.Context, email, password string) (*TokenPair, error) {
	return s.credential.Authenticate(ctx, email, password)
}

// RefreshSession exchanges a refresh token for a new pair.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return s.refresher.Refresh(ctx, refreshToken)
}

// AuthenticateFederated logs in with a Google identity token.
func (s *Service) AuthenticateFederated(ctx context.Context, providerToken string) (*TokenPair, error) {
	if s.federated == nil {
		return nil, oops.Code(CodeInvalidConfig).Errorf("federated login is not configured")
	}
	return s.federated.Authenticate(ctx, providerToken)
}

// CreateResetToken issues a reset ticket for email.
func (s *Service) CreateResetToken(ctx context.Context, email string) (*ResetTicket, error) {
	return s.reset.CreateResetToken(ctx, email)
}

// ValidateResetToken reports whether token can still be used.
func (s *Service) ValidateResetToken(ctx context.Context, token string) bool {
	return s.reset.ValidateResetToken(ctx, token)
}

// ResetPassword consumes token and sets a new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	return s.reset.ResetPassword(ctx, token, newPassword)
}

// RequestPasswordReset creates a reset token and mails it when the account
// exists. The returned message is the same for known and unknown addresses,
// and a delivery failure is only logged.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	ticket, err := s.reset.CreateResetToken(ctx, email)
	if err != nil {
		return "", err
	}
	if ticket.Deliverable {
		if err := s.dispatcher.SendResetEmail(ctx, ticket.Email, ticket.Token); err != nil {
			s.logger.WarnContext(ctx, "best-effort reset email failed",
				"operation", "send_reset_email",
				"error", err.Error())
		}
	}
	return ResetRequestedMessage, nil
}

// Issuer returns the session issuer, for tooling that mints tokens directly.
func (s *Service) Issuer() *SessionIssuer {
	return s.issuer
}
