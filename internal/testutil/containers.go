//go:build e2e

// Package testutil starts the backing services used by e2e tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	postgresImage = "postgres:16-alpine"
	redisImage    = "redis:7-alpine"

	startupTimeout = 30 * time.Second
)

// tenantsSchema stands in for the platform-owned tenants table the
// migrations extend with budget columns
const tenantsSchema = `CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL
)`

// Postgres is a running PostgreSQL container with an open connection
type Postgres struct {
	container *postgres.PostgresContainer

	DB         *sql.DB
	ConnString string
}

// StartPostgres starts PostgreSQL and creates the tenants table. Migrations
// are left to the caller.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("aigen_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start PostgreSQL container: %w", err)
	}

	p := &Postgres{container: container}

	p.ConnString, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		p.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	p.DB, err = sql.Open("postgres", p.ConnString)
	if err != nil {
		p.Terminate(ctx)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := p.DB.PingContext(ctx); err != nil {
		p.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := p.DB.ExecContext(ctx, tenantsSchema); err != nil {
		p.Terminate(ctx)
		return nil, fmt.Errorf("failed to create tenants table: %w", err)
	}

	return p, nil
}

// CreateTenant inserts a tenant with the given budget and returns its id.
// The budget columns come from the migrations, so run them first.
func (p *Postgres) CreateTenant(ctx context.Context, limit, usage float64) (string, error) {
	id := uuid.NewString()
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO tenants (id, name, ai_budget_limit, ai_usage_current) VALUES ($1, 'acme', $2, $3)`,
		id, limit, usage,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create tenant: %w", err)
	}
	return id, nil
}

// Terminate closes the connection and removes the container
func (p *Postgres) Terminate(ctx context.Context) error {
	if p.DB != nil {
		p.DB.Close()
	}
	return p.container.Terminate(ctx)
}

// Redis is a running Redis container
type Redis struct {
	container testcontainers.Container

	URL string
}

// StartRedis starts Redis and returns its redis:// URL
func StartRedis(ctx context.Context) (*Redis, error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(startupTimeout),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Redis container: %w", err)
	}

	r := &Redis{container: container}

	host, err := container.Host(ctx)
	if err != nil {
		r.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		r.Terminate(ctx)
		return nil, fmt.Errorf("failed to get Redis port: %w", err)
	}
	r.URL = fmt.Sprintf("redis://%s:%s/0", host, port.Port())

	return r, nil
}

// Terminate removes the container
func (r *Redis) Terminate(ctx context.Context) error {
	return r.container.Terminate(ctx)
}
