// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Security event names.
const (
	EventLoginSuccess      = "successful_login"
	EventLoginFailure      = "failed_login"
	EventUserRegistration  = "user_registration"
	EventAccountLinked     = "account_linked"
	EventPasswordReset     = "password_reset"
	EventResetRequested    = "password_reset_requested"
	EventRefreshRejected   = "refresh_rejected"
	EventFederatedRejected = "federated_login_rejected"
)

// Login failure reasons.
const (
	ReasonNoSuchUser  = "no_such_user"
	ReasonBadPassword = "bad_password"
)

// SecurityEventSink records security-relevant outcomes. Implementations must
// not block the calling flow; failures are swallowed.
type SecurityEventSink interface {
	RecordLoginFailure(ctx context.Context, email, reason string)
	RecordLoginSuccess(ctx context.Context, accountID int64, email string, role Role)
	RecordEvent(ctx context.Context, name string, attrs map[string]string)
}

// SecurityEvent is the serialized form of a sink call, used by sinks that
// ship events elsewhere.
type SecurityEvent struct {
	Name       string            `json:"name"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// LoginFailureEvent builds the SecurityEvent for RecordLoginFailure.
func LoginFailureEvent(email, reason string, at time.Time) SecurityEvent {
	return SecurityEvent{
		Name:       EventLoginFailure,
		OccurredAt: at,
		Attributes: map[string]string{"email": email, "reason": reason},
	}
}

// LoginSuccessEvent builds the SecurityEvent for RecordLoginSuccess.
func LoginSuccessEvent(accountID int64, email string, role Role, at time.Time) SecurityEvent {
	return SecurityEvent{
		Name:       EventLoginSuccess,
		OccurredAt: at,
		Attributes: map[string]string{
			"account_id": strconv.FormatInt(accountID, 10),
			"email":      email,
			"role":       string(role),
		},
	}
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) RecordLoginFailure(context.Context, string, string)      {}
func (NopSink) RecordLoginSuccess(context.Context, int64, string, Role) {}
func (NopSink) RecordEvent(context.Context, string, map[string]string)  {}

// SafeSink wraps a sink and recovers from panics raised by it.
type SafeSink struct {
	Sink   SecurityEventSink
	Logger *slog.Logger
}

func (s SafeSink) recover(ctx context.Context, event string) {
	if r := recover(); r != nil {
		logger := s.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "best-effort security event failed",
			"event", event,
			"operation", "record_event",
			"panic", r)
	}
}

// RecordLoginFailure implements SecurityEventSink.
func (s SafeSink) RecordLoginFailure(ctx context.Context, email, reason string) {
	defer s.recover(ctx, EventLoginFailure)
	s.Sink.RecordLoginFailure(ctx, email, reason)
}

// RecordLoginSuccess implements SecurityEventSink.
func (s SafeSink) RecordLoginSuccess(ctx context.Context, accountID int64, email string, role Role) {
	defer s.recover(ctx, EventLoginSuccess)
	s.Sink.RecordLoginSuccess(ctx, accountID, email, role)
}

// RecordEvent implements SecurityEventSink.
func (s SafeSink) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	defer s.recover(ctx, name)
	s.Sink.RecordEvent(ctx, name, attrs)
}

// LogSink writes events as structured log records.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// RecordLoginFailure implements SecurityEventSink.
func (s LogSink) RecordLoginFailure(ctx context.Context, email, reason string) {
	s.logger().InfoContext(ctx, "security event",
		"event", EventLoginFailure,
		"email", email,
		"reason", reason)
}

// RecordLoginSuccess implements SecurityEventSink.
func (s LogSink) RecordLoginSuccess(ctx context.Context, accountID int64, email string, role Role) {
	s.logger().InfoContext(ctx, "security event",
		"event", EventLoginSuccess,
		"account_id", accountID,
		"email", email,
		"role", string(role))
}

// RecordEvent implements SecurityEventSink.
func (s LogSink) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	args := make([]any, 0, 2+2*len(attrs))
	args = append(args, "event", name)
	for k, v := range attrs {
		args = append(args, k, v)
	}
	s.logger().InfoContext(ctx, "security event", args...)
}

// MultiSink fans every event out to each sink in order.
type MultiSink []SecurityEventSink

// RecordLoginFailure implements SecurityEventSink.
func (m MultiSink) RecordLoginFailure(ctx context.Context, email, reason string) {
	for _, s := range m {
		s.RecordLoginFailure(ctx, email, reason)
	}
}

// RecordLoginSuccess implements SecurityEventSink.
func (m MultiSink) RecordLoginSuccess(ctx context.Context, accountID int64, email string, role Role) {
	for _, s := range m {
		s.RecordLoginSuccess(ctx, accountID, email, role)
	}
}

// RecordEvent implements SecurityEventSink.
func (m MultiSink) RecordEvent(ctx context.Context, name string, attrs map[string]string) {
	for _, s := range m {
		s.RecordEvent(ctx, name, attrs)
	}
}

// EmailDispatcher delivers password-reset links. It is invoked by the caller
// layer, never by PasswordResetFlow.
type EmailDispatcher interface {
	SendResetEmail(ctx context.Context, email, token string) error
}

// LogDispatcher is a development EmailDispatcher that logs the reset link
// instead of sending mail.
type LogDispatcher struct {
	Logger  *slog.Logger
	LinkURL string // reset page; the token is appended as ?token=
}

// SendResetEmail implements EmailDispatcher.
func (d LogDispatcher) SendResetEmail(ctx context.Context, email, token string) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "password reset link",
		"email", email,
		"link", d.LinkURL+"?token="+token)
	return nil
}

var (
	_ SecurityEventSink = NopSink{}
	_ SecurityEventSink = SafeSink{}
	_ SecurityEventSink = LogSink{}
	_ SecurityEventSink = MultiSink(nil)
	_ EmailDispatcher   = LogDispatcher{}
)
