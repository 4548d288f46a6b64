package main

import (
	"fmt"
	"path/filepath"

	"github.com/jjckrbbt/pharmatrade/internal/reports"
	"github.com/spf13/cobra"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Manage generated reports",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired reports and their artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), false, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			meta, err := reports.NewMetaStore(filepath.Join(rt.cfg.ReportDir, "jobs"))
			if err != nil {
				return err
			}
			// Purging reads only metadata and blobs; no rows or templates.
			svc := reports.NewService(nil, meta, rt.blobs, nil, rt.cfg.ReportTTL, rt.log)

			n, err := svc.Purge(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d expired report(s).\n", n)
			return err
		},
	})
	return cmd
}
