// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

// Package auth provides account authentication and token issuance for Cinebook.
//
// # Flows
//
// Four entry points terminate in a signed access/refresh token pair or an error:
//   - CredentialAuthenticator - email + password login
//   - FederatedAuthenticator - Google ID token login with create-or-link
//   - SessionRefresher - exchange a refresh token for a new pair
//   - PasswordResetFlow - single-use reset tokens and the password change
//
// Service bundles them behind one facade and adds the caller-side email
// dispatch for password resets.
//
// # Collaborators
//
// The core owns no storage. AccountDirectory, ResetTokenStore,
// SecurityEventSink, IdentityVerifier and EmailDispatcher are interfaces
// implemented by the adapter packages (postgres, redis, google, kafka) or by
// the in-memory doubles in authtest.
//
// # Errors
//
// Every error returned by a flow is an oops error carrying one of the Code*
// constants. Failure messages never reveal whether an account exists or
// whether a reset token was ever issued. Only CodeDirectoryUnavailable is
// retryable; see IsRetryable.
package auth
