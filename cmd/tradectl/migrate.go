package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/jjckrbbt/pharmatrade/internal/migrations"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := migrations.Up(cmd.Context(), rt.db.Pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they have been applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			statuses, err := migrations.List(cmd.Context(), rt.db.Pool)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tFILE\tAPPLIED")
			for _, s := range statuses {
				fmt.Fprintf(w, "%d\t%s\t%t\n", s.Version, s.File, s.Applied)
			}
			return w.Flush()
		},
	})
	return cmd
}
