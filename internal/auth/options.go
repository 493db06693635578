// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// DefaultCallTimeout bounds every call to an external collaborator.
const DefaultCallTimeout = 5 * time.Second

// Option configures the authentication flows.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	sink        SecurityEventSink
	callTimeout time.Duration
	now         func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		logger:      slog.Default(),
		sink:        NopSink{},
		callTimeout: DefaultCallTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.sink = SafeSink{Sink: o.sink, Logger: o.logger}
	return o
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventSink sets the security event sink. The sink is always wrapped in
// SafeSink. A nil sink is ignored.
func WithEventSink(sink SecurityEventSink) Option {
	return func(o *options) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// WithCallTimeout bounds each collaborator call. Zero or negative disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		o.callTimeout = d
	}
}

// WithNow overrides the clock used for reset-token expiry.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// call derives the context for one collaborator call.
func (o *options) call(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.callTimeout)
}
