// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package mocks_test

import (
	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/mocks"
)

var (
	_ auth.AccountDirectory  = (*mocks.MockAccountDirectory)(nil)
	_ auth.EmailDispatcher   = (*mocks.MockEmailDispatcher)(nil)
	_ auth.IdentityVerifier  = (*mocks.MockIdentityVerifier)(nil)
	_ auth.PasswordHasher    = (*mocks.MockPasswordHasher)(nil)
	_ auth.ResetTokenStore   = (*mocks.MockResetTokenStore)(nil)
	_ auth.SecurityEventSink = (*mocks.MockSecurityEventSink)(nil)
	_ auth.TokenSigner       = (*mocks.MockTokenSigner)(nil)
)
