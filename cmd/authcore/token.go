// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/auth"
	"github.com/cinebook/authcore/internal/config"
)

// NewTokenCmd creates the token command group.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect signed session tokens",
	}
	cmd.AddCommand(newTokenIssueCmd())
	cmd.AddCommand(newTokenVerifyCmd())
	return cmd
}

type tokenIssueFlags struct {
	accountID int64
	email     string
	role      string
}

func newTokenIssueCmd() *cobra.Command {
	f := &tokenIssueFlags{}
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Mint a token pair for an account without authenticating",
		Long: `Mint an access/refresh token pair for the given account id, email and role.
The account directory is not consulted; use it for service accounts and tests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSignerConfig(cmd)
			if err != nil {
				return err
			}
			role, err := auth.ParseRole(f.role)
			if err != nil {
				return err
			}
			signer, err := newSigner(cfg)
			if err != nil {
				return err
			}
			issuer, err := auth.NewSessionIssuer(signer, cfg.Token.TTLs())
			if err != nil {
				return err
			}
			pair, err := issuer.Issue(cmd.Context(), &auth.Account{
				ID:    f.accountID,
				Email: auth.NormalizeEmail(f.email),
				Role:  role,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, pair)
		},
	}
	cmd.Flags().Int64Var(&f.accountID, "account-id", 0, "account id placed in the subject claim")
	cmd.Flags().StringVar(&f.email, "email", "", "email claim")
	cmd.Flags().StringVar(&f.role, "role", string(auth.RoleCustomer), "role claim (CUSTOMER, ADMIN or WORKER)")
	_ = cmd.MarkFlagRequired("account-id")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newTokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Verify a token read from stdin and print its claims",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSignerConfig(cmd)
			if err != nil {
				return err
			}
			signer, err := newSigner(cfg)
			if err != nil {
				return err
			}
			token, err := readSecret(cmd, "token")
			if err != nil {
				return err
			}
			claims, err := signer.Verify(token)
			if err != nil {
				return err
			}
			return printJSON(cmd, claims)
		},
	}
}

// loadSignerConfig loads and validates configuration for commands that only
// need the signing settings.
func loadSignerConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
