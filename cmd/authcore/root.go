// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/config"
	"github.com/cinebook/authcore/internal/logging"
	"github.com/cinebook/authcore/internal/xdg"
)

// serviceName labels logs and metrics.
const serviceName = "authcore"

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

// newRootCmd builds the command tree. deps replaces collaborators in tests;
// nil selects the configured implementations.
func newRootCmd(deps *AppDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "authcore - account authentication and token issuance",
		Long: `authcore authenticates accounts by password or Google identity token,
issues and refreshes signed session tokens, and runs the password reset flow.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default $XDG_CONFIG_HOME/authcore/config.yaml when present)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewHashPasswordCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewSessionCmd(deps))
	cmd.AddCommand(NewResetCmd(deps))
	cmd.AddCommand(NewServeCmd(deps))

	return cmd
}

// loadConfig reads configuration for cmd and installs the default logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level, cmd.ErrOrStderr())
	return cfg, logger, nil
}

// readSecret reads one line from stdin. Secrets are never taken from flags
// so they stay out of shell history and process listings.
func readSecret(cmd *cobra.Command, what string) (string, error) {
	secrets, err := readSecrets(cmd, what)
	if err != nil {
		return "", err
	}
	return secrets[0], nil
}

// readSecrets reads one stdin line per name, in order.
func readSecrets(cmd *cobra.Command, names ...string) ([]string, error) {
	r := bufio.NewReader(cmd.InOrStdin())
	out := make([]string, 0, len(names))
	for _, what := range names {
		line, err := r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if err != nil {
				return nil, oops.Code("INPUT_MISSING").With("input", what).Wrapf(err, "read %s from stdin", what)
			}
			return nil, oops.Code("INPUT_MISSING").With("input", what).Errorf("%s is required on stdin", what)
		}
		out = append(out, line)
	}
	return out, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
