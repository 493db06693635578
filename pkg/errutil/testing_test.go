// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/cinebook/authcore/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("TOKEN_EXPIRED").Errorf("token is expired")
	errutil.AssertErrorCode(t, err, "TOKEN_EXPIRED")
}

func TestAssertErrorCode_WrappedKeepsDeepestCode(t *testing.T) {
	inner := oops.Code("RESET_NOT_FOUND").Errorf("no such token")
	err := oops.With("operation", "get reset token").Wrap(inner)
	errutil.AssertErrorCode(t, err, "RESET_NOT_FOUND")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("account_id", int64(42)).Errorf("test error")
	errutil.AssertErrorContext(t, err, "account_id", int64(42))
}

func TestAssertPublicMessage(t *testing.T) {
	err := oops.Public("Token invalide ou expiré").Errorf("reset token consumed")
	errutil.AssertPublicMessage(t, err, "Token invalide ou expiré")
}
