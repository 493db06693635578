// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/auth/google"
	"github.com/cinebook/authcore/internal/auth/kafka"
	"github.com/cinebook/authcore/internal/auth/postgres"
	"github.com/cinebook/authcore/internal/auth/redis"
	"github.com/cinebook/authcore/internal/config"
)

// AppDeps replaces configured collaborators. Nil fields use the
// implementation selected by configuration.
type AppDeps struct {
	// Directory defaults to postgres.AccountDirectory on database.url.
	Directory auth.AccountDirectory
	// ResetStore defaults to the store named by reset.store.
	ResetStore auth.ResetTokenStore
	// Verifier defaults to google.Verifier when google.client_id is set.
	Verifier auth.IdentityVerifier
	// Dispatcher defaults to auth.LogDispatcher.
	Dispatcher auth.EmailDispatcher
	// Sink defaults to auth.LogSink, plus kafka.Sink when brokers are set.
	Sink auth.SecurityEventSink
}

// pinger is a dependency whose health gates readiness.
type pinger func(ctx context.Context) error

// app holds the wired service and everything that must be closed with it.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	service *auth.Service
	store   auth.ResetTokenStore
	checks  []pinger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// ready reports the first failing dependency.
func (a *app) ready(ctx context.Context) error {
	for _, check := range a.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func newSigner(cfg *config.Config) (*auth.JWTSigner, error) {
	return auth.NewJWTSigner([]byte(cfg.Token.Secret), cfg.Token.Audience, cfg.Token.Issuer)
}

// buildApp wires an auth.Service from cfg. The caller must Close the result.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *AppDeps) (_ *app, err error) {
	if deps == nil {
		deps = &AppDeps{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Hasher.Params())
	if err != nil {
		return nil, err
	}
	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	var pool *pgxpool.Pool
	connect := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		dbURL, err := requireDatabaseURL(cfg)
		if err != nil {
			return nil, err
		}
		p, err := postgres.Connect(ctx, dbURL, cfg.Database.MaxConns, logger)
		if err != nil {
			return nil, err
		}
		pool = p
		a.closers = append(a.closers, p.Close)
		a.checks = append(a.checks, p.Ping)
		return p, nil
	}

	directory := deps.Directory
	if directory == nil {
		p, err := connect()
		if err != nil {
			return nil, err
		}
		directory = postgres.NewAccountDirectory(p)
	}

	a.store = deps.ResetStore
	if a.store == nil {
		if a.store, err = newResetStore(a, cfg, connect); err != nil {
			return nil, err
		}
	}

	verifier := deps.Verifier
	if verifier == nil && cfg.Google.ClientID != "" {
		v, err := google.NewVerifier(ctx, cfg.Google.ClientID)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	sink := deps.Sink
	if sink == nil {
		sink = newEventSink(a, cfg, logger)
	}

	dispatcher := deps.Dispatcher
	if dispatcher == nil {
		dispatcher = auth.LogDispatcher{Logger: logger, LinkURL: cfg.Reset.LinkURL}
	}

	ttls := cfg.Token.TTLs()
	a.service, err = auth.NewService(auth.Deps{
		Directory:  directory,
		Hasher:     hasher,
		Signer:     signer,
		ResetStore: a.store,
		Verifier:   verifier,
		Dispatcher: dispatcher,
		Sink:       sink,
	}, auth.Options{
		TTLs:        &ttls,
		ResetTTL:    cfg.Reset.TTL,
		CallTimeout: cfg.CallTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newResetStore(a *app, cfg *config.Config, connect func() (*pgxpool.Pool, error)) (auth.ResetTokenStore, error) {
	switch cfg.Reset.Store {
	case config.StoreRedis:
		client, err := redis.NewClient(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks = append(a.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		return redis.NewResetTokenStore(client), nil
	default:
		p, err := connect()
		if err != nil {
			return nil, err
		}
		return postgres.NewResetTokenStore(p), nil
	}
}

func newEventSink(a *app, cfg *config.Config, logger *slog.Logger) auth.SecurityEventSink {
	logSink := auth.LogSink{Logger: logger}
	if len(cfg.Events.KafkaBrokers) == 0 {
		return logSink
	}

	writer := kafka.NewWriter(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic, logger)
	// NewSink only fails on a nil writer.
	kafkaSink, _ := kafka.NewSink(writer, logger) //nolint:errcheck // writer is non-nil
	a.closers = append(a.closers, func() {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("best-effort kafka flush failed", "operation", "close_kafka_sink", "error", err.Error())
		}
	})
	return auth.MultiSink{logSink, kafkaSink}
}
