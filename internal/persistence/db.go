// Package persistence writes dispatched events to the fixed relational
// schema (session, test_execution, step_execution, http_call, and the
// optional sidecar_raw_event mirror) and best-effort mirrors committed
// records onto Kafka.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/sidecar-io/sidecar/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
	postgresDriver         = "postgres"
	pingTimeout            = 5 * time.Second
)

// ErrDatabaseURLEmpty is returned when no DATABASE_URL is configured.
var ErrDatabaseURLEmpty = errors.New("persistence: DATABASE_URL is empty")

// DBConfig holds the PostgreSQL connection settings. These are loaded once
// from the environment at startup and never move through the hot-reload
// Snapshot: a live connection pool cannot be swapped atomically the way a
// plain config struct can.
type DBConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadDBConfig reads DATABASE_URL and pool-tuning overrides from the
// environment, separately from the hot-reloadable sidecar config.
func LoadDBConfig() DBConfig {
	return DBConfig{
		DatabaseURL:     config.GetEnvStr("DATABASE_URL", ""),
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// Validate checks that the configuration is usable.
func (c DBConfig) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrDatabaseURLEmpty
	}
	return nil
}

// MaskDatabaseURL returns the connection string with userinfo credentials
// stripped, safe to include in logs.
func (c DBConfig) MaskDatabaseURL() string {
	schemeEnd := strings.Index(c.DatabaseURL, "://")
	if schemeEnd == -1 {
		return c.DatabaseURL
	}

	afterScheme := c.DatabaseURL[schemeEnd+3:]
	lastAt := strings.LastIndex(afterScheme, "@")
	if lastAt == -1 {
		return c.DatabaseURL
	}

	return c.DatabaseURL[:schemeEnd+3] + "***@" + afterScheme[lastAt+1:]
}

// Connection wraps a pooled *sql.DB bound to the sidecar schema.
type Connection struct {
	*sql.DB
}

// NewConnection opens and pings a PostgreSQL connection pool.
func NewConnection(cfg DBConfig) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(postgresDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}

	return &Connection{db}, nil
}

// HealthCheck pings the database with a bounded timeout.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
	}
	return c.PingContext(ctx)
}

// Close closes the underlying pool. Safe to call multiple times.
func (c *Connection) Close() error {
	return c.DB.Close()
}
