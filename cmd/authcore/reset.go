// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/pkg/errutil"
)

// NewResetCmd creates the reset command group.
func NewResetCmd(deps *AppDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Run the password reset flow",
		Long: `Request, validate and apply single-use password reset tokens, and purge
expired ones from the configured reset store.`,
	}

	var email string
	request := &cobra.Command{
		Use:   "request",
		Short: "Create a reset token and send the reset email",
		Long: `Create a reset token for --email and hand it to the email dispatcher. The
output is the same whether or not the address belongs to an account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			msg, err := a.service.RequestPasswordReset(cmd.Context(), email)
			if err != nil {
				return err
			}
			cmd.Println(msg)
			return nil
		},
	}
	request.Flags().StringVar(&email, "email", "", "account email")
	_ = request.MarkFlagRequired("email")
	cmd.AddCommand(request)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check a reset token read from stdin without consuming it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := readSecret(cmd, "reset token")
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]bool{"valid": a.service.ValidateResetToken(cmd.Context(), token)})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "apply",
		Short: "Consume a reset token and set a new password",
		Long: `Read the reset token from the first line of stdin and the new password
from the second, then consume the token and replace the account password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			in, err := readSecrets(cmd, "reset token", "new password")
			if err != nil {
				return err
			}
			if err := a.service.ResetPassword(cmd.Context(), in[0], in[1]); err != nil {
				errutil.LogErrorContext(cmd.Context(), a.logger, slog.LevelWarn, "password reset rejected", err)
				return err
			}
			cmd.Println("Password updated")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired reset tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, deps)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := purgeExpired(cmd.Context(), a, time.Now())
			if err != nil {
				return err
			}
			cmd.Printf("Purged %d expired reset tokens\n", n)
			return nil
		},
	})

	return cmd
}

// purgeExpired deletes reset tokens that expired before now.
func purgeExpired(ctx context.Context, a *app, now time.Time) (int64, error) {
	purger, ok := a.store.(auth.ResetTokenPurger)
	if !ok {
		return 0, oops.Code("PURGE_UNSUPPORTED").Errorf("reset store %T cannot purge", a.store)
	}
	return purger.DeleteExpired(ctx, now)
}
