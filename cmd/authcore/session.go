// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/pkg/errutil"
)

// NewSessionCmd creates the session command group.
func NewSessionCmd(deps *AppDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Authenticate and refresh sessions",
		Long: `Run the login flows against the configured account directory and print
the resulting token pair as JSON. Secrets are read from the first line of stdin.`,
	}

	var email string
	login := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and a password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, deps, "password", func(ctx context.Context, svc *auth.Service, password string) (*auth.TokenPair, error) {
				return svc.AuthenticateByCredentials(ctx, email, password)
			})
		},
	}
	login.Flags().StringVar(&email, "email", "", "account email")
	_ = login.MarkFlagRequired("email")
	cmd.AddCommand(login)

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token read from stdin for a new pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, deps, "refresh token", func(ctx context.Context, svc *auth.Service, token string) (*auth.TokenPair, error) {
				return svc.RefreshSession(ctx, token)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "google",
		Short: "Log in with a Google ID token read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, deps, "identity token", func(ctx context.Context, svc *auth.Service, token string) (*auth.TokenPair, error) {
				return svc.AuthenticateFederated(ctx, token)
			})
		},
	})

	return cmd
}

type sessionFunc func(ctx context.Context, svc *auth.Service, secret string) (*auth.TokenPair, error)

func runSession(cmd *cobra.Command, deps *AppDeps, secretName string, login sessionFunc) error {
	a, err := openApp(cmd, deps)
	if err != nil {
		return err
	}
	defer a.Close()

	secret, err := readSecret(cmd, secretName)
	if err != nil {
		return err
	}
	pair, err := login(cmd.Context(), a.service, secret)
	if err != nil {
		errutil.LogErrorContext(cmd.Context(), a.logger, slog.LevelWarn, "session request rejected", err)
		return err
	}
	return printJSON(cmd, pair)
}

// openApp loads configuration and wires the service for one command.
func openApp(cmd *cobra.Command, deps *AppDeps) (*app, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return buildApp(cmd.Context(), cfg, logger, deps)
}
