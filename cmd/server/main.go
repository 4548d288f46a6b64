// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/api"
	"github.com/jjckrbbt/pharmatrade/internal/blobstore"
	"github.com/jjckrbbt/pharmatrade/internal/config"
	"github.com/jjckrbbt/pharmatrade/internal/connections"
	"github.com/jjckrbbt/pharmatrade/internal/embedding"
	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/jjckrbbt/pharmatrade/internal/logger"
	"github.com/jjckrbbt/pharmatrade/internal/metrics"
	"github.com/jjckrbbt/pharmatrade/internal/migrations"
	"github.com/jjckrbbt/pharmatrade/internal/processing"
	"github.com/jjckrbbt/pharmatrade/internal/reports"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/jjckrbbt/pharmatrade/internal/summarycache"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	purgeInterval    = 15 * time.Minute
	summaryCacheSize = 1000
	shutdownTimeout  = 30 * time.Second
)

func main() {
	// 1. Load application configuration FIRST.
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Sentry.
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		TracesSampleRate: 1.0,
	}); err != nil {
		fmt.Printf("Sentry initialization failed: %v\n", err)
	}
	defer sentry.Flush(2 * time.Second)

	// 3. Initialize the Logger.
	logger.InitLogger(cfg.AppEnv)
	appLogger := logger.L()
	appLogger.Info("Application starting up...", "environment", cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("Server exited with error", slog.Any("error", err))
		sentry.CaptureException(err)
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
	appLogger.Info("HTTP Server stopped gracefully.")
}

func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	// 4. Connect to the Database and bring the schema up to date.
	dbClient, err := connections.ConnectDB(ctx, cfg.DatabaseURL, appLogger.With("component", "database_connector"))
	if err != nil {
		return fmt.Errorf("failed to connect to database at startup: %w", err)
	}
	defer dbClient.Close()

	if err := migrations.Up(ctx, dbClient.Pool); err != nil {
		return err
	}
	dbClient.Refresh()
	appLogger.Info("Database migrations applied.")

	blobs, closeBlobs, err := blobstore.Open(ctx, cfg.GCSBucketName, filepath.Join(cfg.ReportDir, "blobs"), appLogger)
	if err != nil {
		return err
	}
	defer closeBlobs()

	// 5. Initialize Core Application Components.
	serviceLogger := appLogger.With("service", "api_handlers")
	store := shipments.NewStore(dbClient.Pool, serviceLogger)
	ingestionService := ingestion.NewService(dbClient.Pool, blobs, serviceLogger)

	configLoader, err := processing.NewConfigLoader(filepath.Join(cfg.ConfigDir, "imports"))
	if err != nil {
		return fmt.Errorf("failed to load import configs: %w", err)
	}
	appLogger.Info("Import configs loaded.", "types", configLoader.ImportTypes())

	var embedder embedding.Func
	if cfg.EmbeddingServiceURL != "" {
		embedder = embedding.NewClient(cfg.EmbeddingServiceURL, serviceLogger).Embed
	} else {
		appLogger.Warn("EMBEDDING_SERVICE_URL not set; semantic search and import embeddings are disabled")
	}

	processingService := processing.NewService(ingestionService, configLoader, store, embedder, appLogger.With("service", "shipment_processor"))

	templates, err := reports.LoadTemplates(filepath.Join(cfg.ConfigDir, "reports"))
	if err != nil {
		return fmt.Errorf("failed to load report templates: %w", err)
	}
	meta, err := reports.NewMetaStore(filepath.Join(cfg.ReportDir, "jobs"))
	if err != nil {
		return err
	}
	reportService := reports.NewService(store, meta, blobs, templates, cfg.ReportTTL, appLogger.With("service", "report_generator"))

	profiles, err := summarycache.New[analytics.Profile](summaryCacheSize, cfg.SummaryCacheTTL)
	if err != nil {
		return err
	}
	defer profiles.Close()

	searchHandler := api.NewSearchHandler(store, embedder, serviceLogger)
	analyticsHandler := api.NewAnalyticsHandler(store, serviceLogger)
	quickSummaryHandler := api.NewQuickSummaryHandler(store, api.DefaultKinds(), profiles, serviceLogger)
	reportsHandler := api.NewReportsHandler(reportService, serviceLogger)
	uploadHandler := api.NewUploadHandler(ingestionService, processingService, configLoader, serviceLogger)
	triageHandler := api.NewTriageHandler(ingestionService, serviceLogger)
	appLogger.Info("API handlers initialized.")

	// 6. Initialize Echo.
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(io.Discard)
	e.Validator = api.NewRequestValidator()

	// 7. Register Middleware.
	e.Use(api.SlogRecover(appLogger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type", "Accept", "Authorization"},
	}))
	e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	e.Use(api.RequestLogger(appLogger))
	e.Use(metrics.Middleware())

	// 8. Register Routes.
	e.GET("/health", func(c echo.Context) error {
		if err := dbClient.Ping(c.Request().Context()); err != nil {
			appLogger.ErrorContext(c.Request().Context(), "Database ping failed during health check",
				"request_id", api.RequestID(c), slog.Any("error", err))
			sentry.CaptureException(err)
			return c.String(http.StatusInternalServerError, "DB Not Ready")
		}
		return c.String(http.StatusOK, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := e.Group("/api")
	searchHandler.RegisterRoutes(apiGroup)
	analyticsHandler.RegisterRoutes(apiGroup)
	quickSummaryHandler.RegisterRoutes(apiGroup)
	reportsHandler.RegisterRoutes(apiGroup)

	adminGroup := apiGroup.Group("/admin", api.AdminToken(cfg.AdminToken, appLogger))
	adminGroup.POST("/shipments/upload/:importType", uploadHandler.HandleUpload)
	triageHandler.RegisterRoutes(adminGroup)

	if cfg.AdminToken == "" {
		appLogger.Warn("ADMIN_TOKEN not set; admin routes will refuse every request")
	}

	go purgeLoop(ctx, reportService, appLogger)

	// 9. Start the HTTP server.
	address := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP Server starting on port", "port", cfg.Port)
		if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server shutdown failed", slog.Any("error", err))
	}

	// Background imports and report builds finish before the pool closes.
	processingService.Wait()
	reportService.Wait()
	return nil
}

func purgeLoop(ctx context.Context, svc *reports.Service, appLogger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.Purge(ctx)
			if err != nil {
				appLogger.Error("Report purge failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				appLogger.Info("Expired reports purged", "count", n)
			}
		}
	}
}
