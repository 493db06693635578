// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"
)

// ErrNotFound is returned by collaborators when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAccountExists is returned by an AccountDirectory when a create or link
// would violate email or federated-id uniqueness.
var ErrAccountExists = errors.New("account already exists")

// Error codes surfaced by the flows.
const (
	CodeInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	CodeUnauthorized         = "AUTH_UNAUTHORIZED"
	CodeBadRequest           = "AUTH_BAD_REQUEST"
	CodeInvalidToken         = "AUTH_INVALID_TOKEN"
	CodeDirectoryUnavailable = "AUTH_DIRECTORY_UNAVAILABLE"
	CodeHashingFailed        = "AUTH_HASHING_FAILED"
	CodeTokenSignFailed      = "AUTH_TOKEN_SIGN_FAILED"
	CodeInvalidConfig        = "AUTH_INVALID_CONFIG"
)

// Public messages. These are the only texts callers ever see for the
// corresponding failures.
const (
	MsgInvalidCredentials = "invalid email or password"
	MsgUnauthorized       = "unauthorized"
	MsgInvalidResetToken  = "Token invalide ou expiré"
	ResetRequestedMessage = "if this address exists, a reset link has been sent"
)

// ErrorCode returns the oops code attached to err, or "" if there is none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// IsRetryable reports whether err is a transient directory failure that the
// caller may retry. Authorization failures are never retryable.
func IsRetryable(err error) bool {
	return ErrorCode(err) == CodeDirectoryUnavailable
}

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf(MsgInvalidCredentials)
}

// unauthorized carries no cause so that every rejected token or missing
// account produces the same error text. Callers log the cause themselves.
func unauthorized() error {
	return oops.Code(CodeUnauthorized).Public(MsgUnauthorized).Errorf(MsgUnauthorized)
}

func badRequest(msg string) error {
	return oops.Code(CodeBadRequest).Public(msg).Errorf("%s", msg)
}

func invalidResetToken() error {
	return badRequest(MsgInvalidResetToken)
}

func directoryUnavailable(operation string, cause error) error {
	return oops.Code(CodeDirectoryUnavailable).
		With("operation", operation).
		Wrap(opaque(cause))
}

// causeError hides a collaborator's own oops code from the wrapping error.
// oops reports the deepest code in a chain, so without this the flow code
// would be replaced by whatever code an adapter attached. errors.Is still
// reaches the original error.
type causeError struct {
	err error
}

func opaque(err error) error {
	return causeError{err: err}
}

func (c causeError) Error() string { return c.err.Error() }

func (c causeError) Is(target error) bool { return errors.Is(c.err, target) }

func requireDep(present bool, name string) error {
	if present {
		return nil
	}
	return oops.Code(CodeInvalidConfig).Errorf("%s is required", name)
}
