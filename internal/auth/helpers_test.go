// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth_test

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cinebook/authcore/internal/auth"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testAudience = "cinebook-api"
	testIssuer   = "authcore"
)

func newTestSigner(t *testing.T, opts ...auth.SignerOption) *auth.JWTSigner {
	t.Helper()
	signer, err := auth.NewJWTSigner([]byte(testSecret), testAudience, testIssuer, opts...)
	require.NoError(t, err)
	return signer
}

// newFastHasher returns an argon2id hasher with a small work factor.
func newFastHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Iterations: 1, MemoryKiB: 1024, Parallelism: 1})
	require.NoError(t, err)
	return h
}

func newTestIssuer(t *testing.T, signer auth.TokenSigner) *auth.SessionIssuer {
	t.Helper()
	issuer, err := auth.NewSessionIssuer(signer, auth.DefaultTokenTTLs())
	require.NoError(t, err)
	return issuer
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable time source safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func strPtr(s string) *string { return &s }
