package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbEnvKeys = []string{
	"DATABASE_HOST",
	"DATABASE_PORT",
	"DATABASE_USER",
	"DATABASE_PASSWORD",
	"DATABASE_NAME",
	"DATABASE_SSLMODE",
	"DATABASE_MAX_OPEN_CONNS",
	"DATABASE_MAX_IDLE_CONNS",
	"DATABASE_CONN_MAX_LIFETIME",
	"DATABASE_AUTO_MIGRATE",
}

func TestConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    Config
		wantErr bool
	}{
		{
			name: "all environment variables set",
			envVars: map[string]string{
				"DATABASE_HOST":              "db.example.com",
				"DATABASE_PORT":              "5433",
				"DATABASE_USER":              "testuser",
				"DATABASE_PASSWORD":          "testpass",
				"DATABASE_NAME":              "testdb",
				"DATABASE_SSLMODE":           "require",
				"DATABASE_MAX_OPEN_CONNS":    "50",
				"DATABASE_MAX_IDLE_CONNS":    "10",
				"DATABASE_CONN_MAX_LIFETIME": "1h",
				"DATABASE_AUTO_MIGRATE":      "true",
			},
			want: Config{
				Host:            "db.example.com",
				Port:            5433,
				User:            "testuser",
				Password:        "testpass",
				Database:        "testdb",
				SSLMode:         "require",
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
				AutoMigrate:     true,
			},
		},
		{
			name: "defaults applied when vars not set",
			envVars: map[string]string{
				"DATABASE_PASSWORD": "testpass",
			},
			want: Config{
				Host:            "localhost",
				Port:            5432,
				User:            "postgres",
				Password:        "testpass",
				Database:        "aigen",
				SSLMode:         "disable",
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		{
			name:    "missing password returns error",
			envVars: map[string]string{},
			wantErr: true,
		},
		{
			name: "invalid port number",
			envVars: map[string]string{
				"DATABASE_PASSWORD": "testpass",
				"DATABASE_PORT":     "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid pool size",
			envVars: map[string]string{
				"DATABASE_PASSWORD":       "testpass",
				"DATABASE_MAX_OPEN_CONNS": "many",
			},
			wantErr: true,
		},
		{
			name: "invalid lifetime",
			envVars: map[string]string{
				"DATABASE_PASSWORD":          "testpass",
				"DATABASE_CONN_MAX_LIFETIME": "forever",
			},
			wantErr: true,
		},
		{
			name: "invalid auto migrate flag",
			envVars: map[string]string{
				"DATABASE_PASSWORD":     "testpass",
				"DATABASE_AUTO_MIGRATE": "sometimes",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range dbEnvKeys {
				t.Setenv(k, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			got, err := ConfigFromEnv()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Database: "aigen",
		SSLMode:  "disable",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(c *Config) {}},
		{name: "missing password", mutate: func(c *Config) { c.Password = "" }, wantErr: true},
		{name: "invalid port (zero)", mutate: func(c *Config) { c.Port = 0 }, wantErr: true},
		{name: "invalid port (negative)", mutate: func(c *Config) { c.Port = -1 }, wantErr: true},
		{name: "negative pool size", mutate: func(c *Config) { c.MaxIdleConns = -1 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigConnectionString(t *testing.T) {
	cfg := Config{
		Host:     "db.example.com",
		Port:     5433,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.example.com port=5433 user=testuser password=testpass dbname=testdb sslmode=require",
		cfg.ConnectionString())
}

// execRecorder is a Querier that records executed statements
type execRecorder struct {
	statements []string
	err        error
}

func (r *execRecorder) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (r *execRecorder) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (r *execRecorder) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.statements = append(r.statements, query)
	return nil, nil
}

func TestMigrate(t *testing.T) {
	t.Run("applies up migrations in order", func(t *testing.T) {
		rec := &execRecorder{}
		applied, err := Migrate(context.Background(), rec)
		require.NoError(t, err)

		assert.Equal(t, []string{"001_ai_requests.up.sql"}, applied)
		require.Len(t, rec.statements, 1)
		assert.Contains(t, rec.statements[0], "CREATE TABLE IF NOT EXISTS ai_requests")
		assert.NotContains(t, rec.statements[0], "DROP TABLE")
	})

	t.Run("stops on the first failure", func(t *testing.T) {
		rec := &execRecorder{err: errors.New("permission denied")}
		_, err := Migrate(context.Background(), rec)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "001_ai_requests.up.sql")
	})
}
