// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess     = "success"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// Login method labels.
const (
	MethodPassword = "password"
	MethodGoogle   = "google"
)

// Password reset stage labels.
const (
	StageRequest = "request"
	StageApply   = "apply"
)

// LoginsTotal counts authentication attempts.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_logins_total",
		Help: "Total number of login attempts by method and outcome",
	},
	[]string{"method", "outcome"},
)

// TokenRefreshesTotal counts refresh attempts.
var TokenRefreshesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_token_refreshes_total",
		Help: "Total number of session refresh attempts by outcome",
	},
	[]string{"outcome"},
)

// PasswordResetsTotal counts reset requests and applications.
var PasswordResetsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_password_resets_total",
		Help: "Total number of password reset operations by stage and outcome",
	},
	[]string{"stage", "outcome"},
)

// AccountsCreatedTotal counts accounts created through federation.
var AccountsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "authcore_accounts_created_total",
		Help: "Total number of accounts created by identity provider",
	},
	[]string{"provider"},
)

// TokenIssueDuration observes how long signing a token pair takes.
var TokenIssueDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "authcore_token_issue_duration_seconds",
		Help:    "Time spent signing an access/refresh token pair",
		Buckets: prometheus.DefBuckets,
	},
)

// RegisterMetrics registers auth metrics with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginsTotal)
	reg.MustRegister(TokenRefreshesTotal)
	reg.MustRegister(PasswordResetsTotal)
	reg.MustRegister(AccountsCreatedTotal)
	reg.MustRegister(TokenIssueDuration)
}

func recordLogin(method, outcome string) {
	LoginsTotal.WithLabelValues(method, outcome).Inc()
}

func recordRefresh(outcome string) {
	TokenRefreshesTotal.WithLabelValues(outcome).Inc()
}

func recordReset(stage, outcome string) {
	PasswordResetsTotal.WithLabelValues(stage, outcome).Inc()
}

func recordAccountCreated(provider string) {
	AccountsCreatedTotal.WithLabelValues(provider).Inc()
}

func observeIssue(d time.Duration) {
	TokenIssueDuration.Observe(d.Seconds())
}

// outcomeOf maps a flow error onto an outcome label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case IsRetryable(err):
		return OutcomeUnavailable
	case ErrorCode(err) == CodeHashingFailed, ErrorCode(err) == CodeTokenSignFailed:
		return OutcomeError
	default:
		return OutcomeRejected
	}
}
