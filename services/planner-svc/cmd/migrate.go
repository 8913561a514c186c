package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"redistrict/pkg/database"
	"redistrict/services/planner-svc/migrations"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run storage schema",
	}
	cmd.AddCommand(
		newMigrateActionCmd("up", "Apply all pending migrations", func(cmd *cobra.Command, m *database.Migrator) error {
			return m.Up(cmd.Context())
		}),
		newMigrateActionCmd("down", "Roll back the last migration", func(cmd *cobra.Command, m *database.Migrator) error {
			return m.Down(cmd.Context())
		}),
		newMigrateActionCmd("status", "Show migration status", printMigrationStatus),
	)
	return cmd
}

func newMigrateActionCmd(use, short string, fn func(cmd *cobra.Command, m *database.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}

			m, err := database.NewMigrator(db.Pool(), migrations.FS, migrations.Dir)
			if err != nil {
				return err
			}
			defer m.Close()

			return fn(cmd, m)
		},
	}
}

func printMigrationStatus(cmd *cobra.Command, m *database.Migrator) error {
	states, err := m.Status(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tAPPLIED\tPATH")
	for _, s := range states {
		fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Path)
	}
	return w.Flush()
}
