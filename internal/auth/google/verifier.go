// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package google verifies Google Sign-In ID tokens.
package google

import (
	"context"

	"github.com/samber/oops"
	"google.golang.org/api/idtoken"

	"github.com/cinebook/authcore/internal/auth"
)

// Issuers Google uses in the "iss" claim.
var validIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// ValidateFunc checks signature, audience and expiry of an ID token.
// idtoken.Validator.Validate satisfies it.
type ValidateFunc func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Verifier implements auth.IdentityVerifier for one OAuth client id.
type Verifier struct {
	clientID string
	validate ValidateFunc
}

// NewVerifier creates a Verifier that fetches Google's signing keys over
// the network.
func NewVerifier(ctx context.Context, clientID string, opts ...idtoken.ClientOption) (*Verifier, error) {
	validator, err := idtoken.NewValidator(ctx, opts...)
	if err != nil {
		return nil, oops.Code("GOOGLE_VERIFIER_INIT_FAILED").Wrap(err)
	}
	return NewVerifierWithFunc(clientID, validator.Validate)
}

// NewVerifierWithFunc creates a Verifier around an arbitrary validation
// function.
func NewVerifierWithFunc(clientID string, validate ValidateFunc) (*Verifier, error) {
	if clientID == "" {
		return nil, oops.Code(auth.CodeInvalidConfig).Errorf("google client id is required")
	}
	if validate == nil {
		return nil, oops.Code(auth.CodeInvalidConfig).Errorf("validate function is required")
	}
	return &Verifier{clientID: clientID, validate: validate}, nil
}

// VerifyIdentityToken implements auth.IdentityVerifier.
func (v *Verifier) VerifyIdentityToken(ctx context.Context, token string) (*auth.FederatedIdentity, error) {
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, oops.Code("GOOGLE_TOKEN_INVALID").With("operation", "validate id token").Wrap(err)
	}
	if !validIssuers[payload.Issuer] {
		return nil, oops.Code("GOOGLE_TOKEN_INVALID").
			With("issuer", payload.Issuer).
			Errorf("unexpected issuer")
	}

	return &auth.FederatedIdentity{
		Subject:       payload.Subject,
		Email:         stringClaim(payload.Claims, "email"),
		GivenName:     stringClaim(payload.Claims, "given_name"),
		FamilyName:    stringClaim(payload.Claims, "family_name"),
		EmailVerified: boolClaim(payload.Claims, "email_verified"),
	}, nil
}

func stringClaim(claims map[string]any, name string) string {
	s, _ := claims[name].(string)
	return s
}

// boolClaim accepts both JSON booleans and the "true" strings some older
// Google tokens carry.
func boolClaim(claims map[string]any, name string) bool {
	switch v := claims[name].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

var _ auth.IdentityVerifier = (*Verifier)(nil)
