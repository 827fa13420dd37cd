package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Config holds database connection configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// ConfigFromEnv creates a Config from environment variables with sensible defaults
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:     getEnvOrDefault("DATABASE_HOST", "localhost"),
		User:     getEnvOrDefault("DATABASE_USER", "postgres"),
		Password: os.Getenv("DATABASE_PASSWORD"),
		Database: getEnvOrDefault("DATABASE_NAME", "aigen"),
		SSLMode:  getEnvOrDefault("DATABASE_SSLMODE", "disable"),
	}

	var err error
	if cfg.Port, err = envInt("DATABASE_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.MaxOpenConns, err = envInt("DATABASE_MAX_OPEN_CONNS", 25); err != nil {
		return Config{}, err
	}
	if cfg.MaxIdleConns, err = envInt("DATABASE_MAX_IDLE_CONNS", 5); err != nil {
		return Config{}, err
	}

	lifetime, err := time.ParseDuration(getEnvOrDefault("DATABASE_CONN_MAX_LIFETIME", "30m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_CONN_MAX_LIFETIME: %w", err)
	}
	cfg.ConnMaxLifetime = lifetime

	cfg.AutoMigrate, err = strconv.ParseBool(getEnvOrDefault("DATABASE_AUTO_MIGRATE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid DATABASE_AUTO_MIGRATE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that required configuration fields are set
func (c Config) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive, got %d", c.Port)
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("connection pool sizes must not be negative")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c Config) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Connect establishes a database connection with OpenTelemetry instrumentation
func Connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	driverName, err := otelsql.Register(
		"pgx",
		otelsql.WithAttributes(
			semconv.DBSystemPostgreSQL,
			attribute.String("db.name", cfg.Database),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql driver: %w", err)
	}

	db, err := sql.Open(driverName, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// Migrate applies every embedded up migration in file name order. The
// migrations are idempotent, so running them on every start is safe.
func Migrate(ctx context.Context, db Querier) ([]string, error) {
	names, err := upMigrations()
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		body, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return nil, fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return names, nil
}

func upMigrations() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string, defaultValue int) (int, error) {
	v, err := strconv.Atoi(getEnvOrDefault(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
