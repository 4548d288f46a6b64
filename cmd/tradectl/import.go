package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jjckrbbt/pharmatrade/internal/embedding"
	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/jjckrbbt/pharmatrade/internal/processing"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/spf13/cobra"
)

var errImportFailed = errors.New("import failed")

func importCmd() *cobra.Command {
	var (
		importType  string
		requestedBy string
		noEmbed     bool
	)

	cmd := &cobra.Command{
		Use:   "import [csv-file]",
		Short: "Load a shipment CSV through the configured import pipeline",
		Long: `Load a shipment CSV the same way an admin upload does, but synchronously.

The file is stored in the blob store, an ingestion job is recorded, and the
rows are parsed, triaged and upserted before the command returns.

Examples:
  tradectl import exports-2024-01.csv --type SHIPMENTS_V1
  tradectl import exports.csv --type SHIPMENTS_V1 --no-embed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := setup(ctx, true, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			loader, err := processing.NewConfigLoader(filepath.Join(rt.cfg.ConfigDir, "imports"))
			if err != nil {
				return err
			}
			if !slices.Contains(loader.ImportTypes(), importType) {
				return fmt.Errorf("unknown import type '%s' (known: %s)", importType, strings.Join(loader.ImportTypes(), ", "))
			}

			var embedder embedding.Func
			if rt.cfg.EmbeddingServiceURL != "" && !noEmbed {
				embedder = embedding.NewClient(rt.cfg.EmbeddingServiceURL, rt.log).Embed
			}

			ingestionService := ingestion.NewService(rt.db.Pool, rt.blobs, rt.log)
			store := shipments.NewStore(rt.db.Pool, rt.log)
			processor := processing.NewService(ingestionService, loader, store, embedder, rt.log)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[0], err)
			}
			defer f.Close()

			job, err := ingestionService.StartJob(ctx, f, filepath.Base(args[0]), importType, requestedBy)
			if err != nil {
				return err
			}
			processor.RunJob(ctx, job)

			done, err := ingestionService.GetJob(ctx, job.ID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s: %s\n", done.ID, done.Status)
			fmt.Fprintf(out, "  upserted: %d\n  triaged:  %d\n  blank:    %d\n", done.RowsUpserted, done.RowsTriaged, done.BlankRows)
			if done.ErrorDetails != "" {
				fmt.Fprintf(out, "  details:  %s\n", done.ErrorDetails)
			}
			if done.Status == ingestion.StatusFailed {
				return errImportFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&importType, "type", "t", "", "import configuration to apply, e.g. SHIPMENTS_V1")
	cmd.Flags().StringVar(&requestedBy, "by", "tradectl", "who the job is recorded as requested by")
	cmd.Flags().BoolVar(&noEmbed, "no-embed", false, "skip product embeddings even when the service is configured")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}
