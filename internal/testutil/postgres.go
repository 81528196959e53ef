// Package testutil provides test helpers, including PostgreSQL container
// management for repository integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gametablehq/gametable/internal/config"
	"github.com/gametablehq/gametable/internal/storage/postgres"
)

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

// NewPostgresContainer starts a PostgreSQL test container and returns
// a connected Pool. The calling test is skipped when no Docker daemon is
// reachable.
//
// Postcondition: Returns a running container with a connected pool,
// skips the test without Docker, or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	skipWithoutDocker(t)
	ctx := context.Background()
	start := time.Now()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v [%s]", err, time.Since(start))
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("getting container host: %v", err)
	}

	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("getting mapped port: %v", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v [%s]", err, time.Since(start))
	}

	t.Logf("postgres container started [%s]", time.Since(start))

	pc := &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}

	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(ctx)
	})

	return pc
}

// skipWithoutDocker skips the calling test when no Docker daemon is
// reachable, so the integration suite degrades to a skip instead of a
// failure on hosts without Docker.
func skipWithoutDocker(t *testing.T) {
	t.Helper()
	if reason := dockerUnavailable(); reason != "" {
		t.Skipf("skipping integration test: %s", reason)
	}
}

// dockerUnavailable probes for a healthy Docker daemon. Provider discovery
// can panic on hosts with no Docker at all, so the probe recovers that into
// a skip reason too.
func dockerUnavailable() (reason string) {
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprintf("docker probe failed: %v", r)
		}
	}()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return fmt.Sprintf("docker not available: %v", err)
	}
	defer provider.Close()

	if err := provider.Health(context.Background()); err != nil {
		return fmt.Sprintf("docker not healthy: %v", err)
	}
	return ""
}

// ApplyMigrations runs the schema creation SQL directly for tests.
// This avoids requiring the migrate tool in the test environment.
//
// Precondition: Pool must be connected.
// Postcondition: The campaign, character, and session record tables exist
// in the test database.
func (pc *PostgresContainer) ApplyMigrations(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT         PRIMARY KEY,
			name       VARCHAR(128) NOT NULL,
			role       VARCHAR(32)  NOT NULL DEFAULT 'player',
			active     BOOLEAN      NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS campaigns (
			id          TEXT         PRIMARY KEY,
			owner_id    TEXT         NOT NULL,
			name        VARCHAR(128) NOT NULL,
			description TEXT         NOT NULL DEFAULT '',
			ruleset     VARCHAR(64)  NOT NULL DEFAULT 'dnd5e',
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (owner_id, name)
		);
		CREATE INDEX IF NOT EXISTS idx_campaigns_owner ON campaigns (owner_id);

		CREATE TABLE IF NOT EXISTS characters (
			id          TEXT         PRIMARY KEY,
			owner_id    TEXT         NOT NULL,
			campaign_id TEXT         NOT NULL DEFAULT '',
			name        VARCHAR(128) NOT NULL,
			class       VARCHAR(64)  NOT NULL DEFAULT '',
			level       INTEGER      NOT NULL DEFAULT 1,
			sheet       JSONB        NOT NULL DEFAULT '{}',
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_characters_owner ON characters (owner_id);
		CREATE INDEX IF NOT EXISTS idx_characters_campaign ON characters (campaign_id);

		CREATE TABLE IF NOT EXISTS session_records (
			id          TEXT        PRIMARY KEY,
			campaign_id TEXT        NOT NULL DEFAULT '',
			name        VARCHAR(128) NOT NULL DEFAULT '',
			creator_id  TEXT        NOT NULL,
			mode        VARCHAR(16) NOT NULL,
			ruleset     VARCHAR(64) NOT NULL DEFAULT '',
			status      VARCHAR(16) NOT NULL DEFAULT 'waiting',
			started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ended_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_session_records_campaign ON session_records (campaign_id);
	`

	_, err := pc.RawPool.Exec(ctx, schema)
	if err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	t.Logf("migrations applied [%s]", time.Since(start))
}

// NewPool starts a disposable PostgreSQL container with the schema applied
// and returns the raw pool. The container is terminated on test cleanup.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := NewPostgresContainer(t)
	pc.ApplyMigrations(t)
	return pc.RawPool
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.Config.User, pc.Config.Password,
		pc.Config.Host, pc.Config.Port,
		pc.Config.Name, pc.Config.SSLMode,
	)
}
