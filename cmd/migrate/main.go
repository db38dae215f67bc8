package main

import (
	"os"

	"github.com/geocoder89/hypnohub/internal/config"
	"github.com/geocoder89/hypnohub/internal/db"
	"github.com/geocoder89/hypnohub/internal/observability"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		observability.LogError(observability.NewLogger("prod"), "migrate failed", err)
		os.Exit(1)
	}
}

// NewRootCmd creates the migrate CLI with its subcommands.
func NewRootCmd() *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the hypnohub PostgreSQL schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "postgres URL (defaults to DATABASE_URL)")

	open := func() (*db.Migrator, error) {
		url := databaseURL
		if url == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, oops.Code("CONFIG_INVALID").Wrap(err)
			}
			url = cfg.DBURL
		}
		return db.NewMigrator(url)
	}

	cmd.AddCommand(
		newUpCmd(open),
		newDownCmd(open),
		newStepsCmd(open),
		newVersionCmd(open),
	)

	return cmd
}

type openFunc func() (*db.Migrator, error)

func withMigrator(open openFunc, fn func(m *db.Migrator) error) error {
	m, err := open()
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}

func newUpCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(open, func(m *db.Migrator) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			})
		},
	}
}

func newDownCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(open, func(m *db.Migrator) error {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("Rolled back all migrations")
				return nil
			})
		},
	}
}

func newStepsCmd(open openFunc) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Apply (n > 0) or roll back (n < 0) n migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if n == 0 {
				return oops.Code("INVALID_ARGUMENT").Errorf("--n must be non-zero")
			}
			return withMigrator(open, func(m *db.Migrator) error {
				if err := m.Steps(n); err != nil {
					return err
				}
				cmd.Printf("Migrated %d step(s)\n", n)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&n, "n", 0, "number of steps")

	return cmd
}

func newVersionCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(open, func(m *db.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				cmd.Printf("version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	}
}
