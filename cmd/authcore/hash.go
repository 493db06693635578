// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/auth"
)

// NewHashPasswordCmd creates the hash-password command.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Hash a password read from stdin",
		Long: `Read a password from the first line of stdin and print its argon2id hash
using the configured work factor. Use it to seed password accounts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			hasher, err := auth.NewArgon2idHasherWithParams(cfg.Hasher.Params())
			if err != nil {
				return err
			}
			password, err := readSecret(cmd, "password")
			if err != nil {
				return err
			}
			hash, err := hasher.Hash(password)
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}
