// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/authtest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// captureDispatcher records the last reset email instead of sending it.
type captureDispatcher struct {
	mu    sync.Mutex
	email string
	token string
}

func (d *captureDispatcher) SendResetEmail(_ context.Context, email, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.email, d.token = email, token
	return nil
}

func (d *captureDispatcher) last() (string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.email, d.token
}

type testEnv struct {
	deps       *AppDeps
	directory  *authtest.Directory
	store      *authtest.ResetStore
	sink       *authtest.RecordingSink
	dispatcher *captureDispatcher
	hasher     *auth.Argon2idHasher
}

// newTestEnv configures signing through the environment and returns
// in-memory collaborators for the commands.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("AUTHCORE_TOKEN__SECRET", testSecret)
	t.Setenv("AUTHCORE_TOKEN__AUDIENCE", "cinebook-api")
	t.Setenv("AUTHCORE_HASHER__MEMORY_KIB", "64")
	t.Setenv("AUTHCORE_HASHER__ITERATIONS", "1")
	t.Setenv("AUTHCORE_HASHER__PARALLELISM", "1")
	t.Setenv("AUTHCORE_METRICS__ADDR", "")
	t.Setenv("AUTHCORE_LOG__LEVEL", "error")

	hasher, err := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Iterations: 1, MemoryKiB: 64, Parallelism: 1})
	require.NoError(t, err)

	env := &testEnv{
		directory:  authtest.NewDirectory(),
		store:      authtest.NewResetStore(),
		sink:       &authtest.RecordingSink{},
		dispatcher: &captureDispatcher{},
		hasher:     hasher,
	}
	env.deps = &AppDeps{
		Directory:  env.directory,
		ResetStore: env.store,
		Sink:       env.sink,
		Dispatcher: env.dispatcher,
		Verifier: authtest.StaticVerifier{
			"google-token": {Subject: "g-1", Email: "new@example.com", GivenName: "Ada", FamilyName: "Byron", EmailVerified: true},
		},
	}
	return env
}

func (e *testEnv) addAccount(t *testing.T, email, password string, role auth.Role) *auth.Account {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	return e.directory.AddPasswordAccount(email, hash, role)
}

// run executes the command tree with args and stdin and returns stdout.
func run(t *testing.T, deps *AppDeps, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(deps)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
