// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"errors"
	"maps"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Token verification failure codes.
const (
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeTokenBadSignature = "TOKEN_BAD_SIGNATURE"
	CodeTokenBadAudience  = "TOKEN_BAD_AUDIENCE"
	CodeTokenBadIssuer    = "TOKEN_BAD_ISSUER"
	CodeTokenMalformed    = "TOKEN_MALFORMED"
	CodeTokenWrongUse     = "TOKEN_WRONG_USE"
)

// Claim names set by callers.
const (
	ClaimSubject = "sub"
	ClaimRole    = "role"
	ClaimEmail   = "email"
	// ClaimTokenUse marks access tokens so they cannot be refreshed.
	ClaimTokenUse = "token_use"
)

// TokenUseAccess is the ClaimTokenUse value of access tokens.
const TokenUseAccess = "access"

// reservedClaims are owned by the signer; caller values are overwritten on
// Sign and removed on Verify.
var reservedClaims = []string{"iat", "exp", "nbf", "aud", "iss", "jti"}

// MinSecretLength is the minimum HMAC secret size accepted by NewJWTSigner.
const MinSecretLength = 32

// Claims is the caller-defined payload of a signed token.
type Claims map[string]any

// String returns the claim value if it is a string.
func (c Claims) String(name string) (string, bool) {
	v, ok := c[name].(string)
	return v, ok
}

// TokenSigner creates and verifies signed, expiring tokens.
type TokenSigner interface {
	// Sign returns a token carrying claims plus issued-at, expiry, audience and
	// issuer. ttl is applied literally, so zero or negative values mint tokens
	// that are already expired.
	Sign(claims Claims, ttl time.Duration) (string, error)

	// Verify checks signature, expiry, audience and issuer and returns the
	// caller claims. Failures carry one of the CodeToken* codes.
	Verify(token string) (Claims, error)
}

// JWTSigner implements TokenSigner with HS256 JSON Web Tokens.
type JWTSigner struct {
	secret   []byte
	audience string
	issuer   string
	now      func() time.Time
	parser   *jwt.Parser
}

// SignerOption configures a JWTSigner.
type SignerOption func(*JWTSigner)

// WithSignerClock overrides the time source used for iat/exp and for validation.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *JWTSigner) {
		s.now = now
	}
}

// NewJWTSigner creates a JWTSigner bound to one secret/audience/issuer triple.
func NewJWTSigner(secret []byte, audience, issuer string, opts ...SignerOption) (*JWTSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, oops.Code(CodeInvalidConfig).
			With("min_length", MinSecretLength).
			Errorf("signing secret must be at least %d bytes", MinSecretLength)
	}
	if audience == "" {
		return nil, oops.Code(CodeInvalidConfig).Errorf("token audience is required")
	}
	if issuer == "" {
		return nil, oops.Code(CodeInvalidConfig).Errorf("token issuer is required")
	}

	s := &JWTSigner{
		secret:   append([]byte(nil), secret...),
		audience: audience,
		issuer:   issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	return s, nil
}

// Sign implements TokenSigner.
func (s *JWTSigner) Sign(claims Claims, ttl time.Duration) (string, error) {
	now := s.now()

	mc := make(jwt.MapClaims, len(claims)+5)
	maps.Copy(mc, claims)
	delete(mc, "nbf")
	mc["iat"] = now.Unix()
	mc["exp"] = now.Add(ttl).Unix()
	mc["aud"] = s.audience
	mc["iss"] = s.issuer
	mc["jti"] = ulid.Make().String()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.secret)
	if err != nil {
		return "", oops.Code(CodeTokenSignFailed).With("operation", "sign jwt").Wrap(err)
	}
	return signed, nil
}

// Verify implements TokenSigner.
func (s *JWTSigner) Verify(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	_, err := s.parser.ParseWithClaims(token, mc, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classifyJWTError(err)
	}

	claims := Claims(mc)
	for _, name := range reservedClaims {
		delete(claims, name)
	}
	return claims, nil
}

// classifyJWTError maps jwt/v5 validation errors onto token codes. Signature
// problems take precedence so a forged token is never reported as expired.
func classifyJWTError(err error) error {
	var code string
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		code = CodeTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		code = CodeTokenBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		code = CodeTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		code = CodeTokenBadAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		code = CodeTokenBadIssuer
	default:
		code = CodeTokenMalformed
	}
	return oops.Code(code).Wrap(err)
}

var _ TokenSigner = (*JWTSigner)(nil)
