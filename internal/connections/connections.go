package connections

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

// Client holds the database connection pool.
type Client struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// ConnectDB establishes a connection to the PostgreSQL database. The vector
// type is registered on every new connection once the extension exists.
func ConnectDB(ctx context.Context, databaseURL string, logger *slog.Logger) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvec.RegisterTypes(ctx, conn); err != nil {
			// Expected before the first migration has created the extension.
			logger.Debug("pgvector types not registered on connection", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool with custom config: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logger.Info("Database connection established")
	return &Client{Pool: pool, logger: logger}, nil
}

// Refresh drops idle connections so new ones pick up types created by
// migrations.
func (c *Client) Refresh() {
	c.Pool.Reset()
	c.logger.Debug("Database connection pool reset")
}

// Close gracefully closes the database connection pool.
func (c *Client) Close() {
	c.Pool.Close()
}

// Ping verifies the connection to the database is still alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}
