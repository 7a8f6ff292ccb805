package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chainview-network/chainview/pkg/retry"
	"github.com/chainview-network/chainview/pkg/utils"
	"go.uber.org/zap"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Client wraps a ClickHouse connection together with the logger and the
// database it targets.
type Client struct {
	Logger         *zap.Logger
	Db             driver.Conn
	TargetDatabase string
}

// PoolConfig defines connection pool settings for a specific component.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Component       string // For logging/debugging
}

const (
	MergeTree          = "MergeTree"
	ReplacingMergeTree = "ReplacingMergeTree"
)

// New initializes and returns a new ClickHouse client. The address comes
// from CLICKHOUSE_ADDR; the initial connection is retried with backoff
// because the store may still be starting when the query app boots.
func New(ctx context.Context, logger *zap.Logger, dbName string, poolConfig ...*PoolConfig) (client Client, e error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	client.Logger = logger
	retryConfig := retry.DefaultConfig()

	dsn := utils.Env("CLICKHOUSE_ADDR", "clickhouse://localhost:9000?sslmode=disable")
	username, password := extractCredentials(dsn)
	replicas := extractReplicas(dsn)

	var config PoolConfig
	if len(poolConfig) > 0 && poolConfig[0] != nil {
		config = *poolConfig[0]
	} else {
		config = PoolConfig{
			MaxOpenConns:    utils.EnvInt("CLICKHOUSE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    utils.EnvInt("CLICKHOUSE_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: time.Hour,
			Component:       "unknown",
		}
	}

	options := &clickhouse.Options{
		Addr: replicas,
		Auth: clickhouse.Auth{
			Database: "default",
			Username: username,
			Password: password,
		},
		DialTimeout:     30 * time.Second,
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		Settings: clickhouse.Settings{
			"prefer_column_name_to_alias": 1,
		},
	}

	if logger != nil && logger.Core().Enabled(zap.DebugLevel) {
		sugar := logger.Named("clickhouse.driver").Sugar()
		options.Debugf = sugar.Debugf
	}

	err := retry.WithBackoff(connCtx, retryConfig, logger, "clickhouse_connection", func() error {
		conn, err := clickhouse.Open(options)
		if err != nil {
			return fmt.Errorf("failed to open clickhouse connection: %w", err)
		}

		client.Db = conn

		if err := client.Db.Ping(connCtx); err != nil {
			return fmt.Errorf("failed to ping clickhouse: %w", err)
		}

		client.TargetDatabase = dbName

		client.Logger.Info("ClickHouse connection pool configured",
			zap.String("database", dbName),
			zap.String("component", config.Component),
			zap.Strings("replicas", replicas),
			zap.Int("max_open_conns", config.MaxOpenConns),
			zap.Int("max_idle_conns", config.MaxIdleConns))
		return nil
	})

	if err != nil {
		return Client{}, err
	}

	return client, nil
}

// extractReplicas pulls the host list out of a clickhouse:// DSN.
// Multiple hosts may be comma-separated: clickhouse://a:9000,b:9000
func extractReplicas(dsn string) []string {
	s := dsn
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.Index(s, "@"); idx >= 0 {
		s = s[idx+1:]
	}
	if idx := strings.IndexAny(s, "/?"); idx >= 0 {
		s = s[:idx]
	}
	hosts := strings.Split(s, ",")
	replicas := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h != "" {
			replicas = append(replicas, h)
		}
	}
	if len(replicas) == 0 {
		replicas = []string{"localhost:9000"}
	}
	return replicas
}

// extractCredentials pulls username/password out of a clickhouse:// DSN.
func extractCredentials(dsn string) (string, string) {
	s := dsn
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	at := strings.Index(s, "@")
	if at < 0 {
		return utils.Env("CLICKHOUSE_USER", "default"), utils.Env("CLICKHOUSE_PASSWORD", "")
	}
	creds := s[:at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return creds[:colon], creds[colon+1:]
	}
	return creds, ""
}

// SanitizeName sanitizes the provided database name to be compatible with
// ClickHouse.
func SanitizeName(id string) string {
	s := strings.ToLower(id)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return s
}

// Engine renders a table engine clause. For ReplacingMergeTree the version
// column decides which duplicate of a primary key survives a merge.
func Engine(engine, versionCol string) string {
	if engine == ReplacingMergeTree && versionCol != "" {
		return fmt.Sprintf("ReplacingMergeTree(%s)", versionCol)
	}
	return engine
}

// Exec executes a statement against the connection.
func (c *Client) Exec(ctx context.Context, query string, args ...interface{}) error {
	return c.Db.Exec(ctx, query, args...)
}

// QueryRow runs a query expected to return a single row.
func (c *Client) QueryRow(ctx context.Context, query string, args ...interface{}) driver.Row {
	return c.Db.QueryRow(ctx, query, args...)
}

// Query runs a query returning a row iterator.
func (c *Client) Query(ctx context.Context, query string, args ...interface{}) (driver.Rows, error) {
	return c.Db.Query(ctx, query, args...)
}

// PrepareBatch prepares a batch insert.
func (c *Client) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Db.PrepareBatch(ctx, query)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.Db == nil {
		return nil
	}
	return c.Db.Close()
}

// CreateDbIfNotExists creates the named database when missing.
func (c *Client) CreateDbIfNotExists(ctx context.Context, dbName string) error {
	return c.Db.Exec(ctx, fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, dbName))
}

// IsNoRows reports whether the error is the driver's empty-result marker.
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
