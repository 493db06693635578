// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/cinebook/authcore/internal/auth/postgres"
	"github.com/cinebook/authcore/internal/config"
)

// schemaMigrator is the subset of postgres.Migrator used by the CLI.
type schemaMigrator interface {
	Up() error
	Steps(n int) error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (schemaMigrator, error) {
	return postgres.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the account database schema",
		Long: `Apply, roll back and inspect the embedded PostgreSQL migrations for the
accounts and password_resets tables. Without a subcommand all pending
migrations are applied.`,
		RunE: withMigrator(func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			return migrateUp(cmd, m)
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			return migrateUp(cmd, m)
		}),
	})

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Long:  `Roll back the latest migration. With --all every migration is rolled back and all account data is dropped.`,
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			if all {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			}
			if err := m.Steps(-1); err != nil {
				return err
			}
			cmd.Println("Rolled back one migration")
			return nil
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m schemaMigrator, _ []string) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			pending, err := m.Pending()
			if err != nil {
				return err
			}
			cmd.Printf("Version: %d\n", version)
			if dirty {
				cmd.Println("State:   dirty (run 'migrate force <version>' after fixing the schema)")
			}
			cmd.Printf("Pending: %d\n", len(pending))
			for _, v := range pending {
				cmd.Printf("  %06d\n", v)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Mark a schema version as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m schemaMigrator, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(version); err != nil {
				return err
			}
			cmd.Printf("Forced schema version %d\n", version)
			return nil
		}),
	})

	return cmd
}

func migrateUp(cmd *cobra.Command, m schemaMigrator) error {
	cmd.Println("Running migrations...")
	if err := m.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

// withMigrator loads configuration, opens a migrator and closes it after run.
func withMigrator(run func(*cobra.Command, schemaMigrator, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dbURL, err := requireDatabaseURL(cfg)
		if err != nil {
			return err
		}
		m, err := newMigrator(dbURL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return run(cmd, m, args)
	}
}

func requireDatabaseURL(cfg *config.Config) (string, error) {
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database.url is required (set %sDATABASE__URL)", config.EnvPrefix)
	}
	return cfg.Database.URL, nil
}

// parseForceVersion parses the version argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(arg), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", arg).Wrapf(err, "invalid version %q", arg)
	}
	return version, nil
}
