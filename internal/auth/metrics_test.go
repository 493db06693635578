// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/authtest"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { auth.RegisterMetrics(reg) })
	assert.Panics(t, func() { auth.RegisterMetrics(reg) }, "double registration must panic")
}

func TestLoginMetrics(t *testing.T) {
	ctx := context.Background()
	f := newCredentialFixture(t)
	f.addAccount(t, "m@example.com", "pw", auth.RoleCustomer)

	success := auth.LoginsTotal.WithLabelValues(auth.MethodPassword, auth.OutcomeSuccess)
	rejected := auth.LoginsTotal.WithLabelValues(auth.MethodPassword, auth.OutcomeRejected)
	beforeSuccess := testutil.ToFloat64(success)
	beforeRejected := testutil.ToFloat64(rejected)

	_, err := f.authn.Authenticate(ctx, "m@example.com", "pw")
	require.NoError(t, err)
	_, err = f.authn.Authenticate(ctx, "m@example.com", "nope")
	require.Error(t, err)

	assert.Equal(t, beforeSuccess+1, testutil.ToFloat64(success))
	assert.Equal(t, beforeRejected+1, testutil.ToFloat64(rejected))
}

func TestAccountsCreatedMetric(t *testing.T) {
	created := auth.AccountsCreatedTotal.WithLabelValues(auth.ProviderGoogle)
	before := testutil.ToFloat64(created)

	f := newFederatedFixture(t, authtest.StaticVerifier{"tok": ada})
	_, err := f.authn.Authenticate(context.Background(), "tok")
	require.NoError(t, err)

	assert.Equal(t, before+1, testutil.ToFloat64(created))
}
