// Command tradectl runs maintenance tasks against the trade-data database
// and report store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jjckrbbt/pharmatrade/internal/blobstore"
	"github.com/jjckrbbt/pharmatrade/internal/config"
	"github.com/jjckrbbt/pharmatrade/internal/connections"
	"github.com/jjckrbbt/pharmatrade/internal/logger"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "tradectl",
		Short:         "Maintenance commands for the trade-data service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(reportsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// appEnv is what every subcommand needs: configuration and a logger, plus
// whichever of the database and blob store it asked for.
type appEnv struct {
	cfg    *config.Config
	log    *slog.Logger
	db     *connections.Client
	blobs  blobstore.Store
	closer []func()
}

func (r *appEnv) Close() {
	for i := len(r.closer) - 1; i >= 0; i-- {
		r.closer[i]()
	}
}

func setup(ctx context.Context, withDB, withBlobs bool) (*appEnv, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger.InitLogger(cfg.AppEnv)
	rt := &appEnv{cfg: cfg, log: logger.L().With("command", "tradectl")}

	if withDB {
		db, err := connections.ConnectDB(ctx, cfg.DatabaseURL, rt.log.With("component", "database_connector"))
		if err != nil {
			return nil, err
		}
		rt.db = db
		rt.closer = append(rt.closer, db.Close)
	}
	if withBlobs {
		blobs, closeBlobs, err := blobstore.Open(ctx, cfg.GCSBucketName, filepath.Join(cfg.ReportDir, "blobs"), rt.log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.blobs = blobs
		rt.closer = append(rt.closer, closeBlobs)
	}
	return rt, nil
}
