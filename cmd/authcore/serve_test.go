// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/config"
	"github.com/cinebook/authcore/internal/observability"
)

func TestServe_StopsWhenContextCancelled(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cmd := newRootCmd(env.deps)
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve", "--metrics-addr", "127.0.0.1:0"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "authcore started")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type failingPurger struct{ *fakeStoreBase }

type fakeStoreBase struct{ auth.ResetTokenStore }

func (failingPurger) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("store down")
}

func newPurgeApp(store auth.ResetTokenStore) *app {
	return &app{
		cfg:    &config.Config{Reset: config.ResetConfig{PurgeEvery: time.Hour}},
		logger: slog.New(slog.DiscardHandler),
		store:  store,
	}
}

func TestPurgeOnce_CountsRemovedRecords(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Put(t.Context(), &auth.ResetRecord{
		ID:        ulid.Make(),
		TokenHash: auth.HashResetToken(strings.Repeat("c", 64)),
		AccountID: 7,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-time.Hour),
	}))
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	purgeOnce(t.Context(), newPurgeApp(env.store), metrics)

	assert.Equal(t, 0, env.store.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResetTokensPurged), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.ResetPurgeFailures), 0)
}

func TestPurgeOnce_CountsFailures(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	purgeOnce(t.Context(), newPurgeApp(failingPurger{&fakeStoreBase{}}), metrics)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResetPurgeFailures), 0)
}

func TestPurgeOnce_UnsupportedStoreIsAFailure(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	purgeOnce(t.Context(), newPurgeApp(&fakeStoreBase{}), metrics)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ResetPurgeFailures), 0)
}
