//go:build integration

// Package testinfra starts throwaway dependencies for integration tests.
// Run them with: go test -tags integration ./...
package testinfra

import (
	"context"
	"fmt"
	"os/exec"
	"testing"
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/connections"
	"github.com/jjckrbbt/pharmatrade/internal/logger"
	"github.com/jjckrbbt/pharmatrade/internal/migrations"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "pgvector/pgvector:pg16"
	postgresPort  = "5432/tcp"
	startTimeout  = 2 * time.Minute
)

// SkipIfNoDocker skips the test if the Docker daemon is not reachable.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if exec.CommandContext(ctx, "docker", "info").Run() != nil {
		t.Skip("Skipping test: Docker not available")
	}
}

// Postgres starts a pgvector-enabled PostgreSQL, applies the migrations and
// returns a connected client. Everything is torn down with the test.
func Postgres(t *testing.T) *connections.Client {
	t.Helper()
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{postgresPort},
			Env: map[string]string{
				"POSTGRES_USER":     "trade",
				"POSTGRES_PASSWORD": "trade",
				"POSTGRES_DB":       "trade",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(postgresPort),
				// The entrypoint restarts the server once after init.
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(startTimeout),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, postgresPort)
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}
	url := fmt.Sprintf("postgres://trade:trade@%s:%s/trade?sslmode=disable", host, port.Port())

	client, err := connections.ConnectDB(ctx, url, logger.Discard())
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(client.Close)

	if err := migrations.Up(ctx, client.Pool); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	client.Refresh()
	return client
}
