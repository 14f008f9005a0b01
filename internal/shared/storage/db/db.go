package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"skill-recommender/internal/shared/telemetry"
)

// Options controls the pool and how hard Connect tries to reach Postgres.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	// ConnectAttempts is how many pings Connect makes before giving up.
	ConnectAttempts int
	RetryDelay      time.Duration
}

var openDB = sql.Open

// DefaultServerOptions suits the API and retrain worker. Connect keeps
// retrying for about half a minute so the process can start before Postgres.
func DefaultServerOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
		ConnectAttempts: 6,
		RetryDelay:      5 * time.Second,
	}
}

// DefaultCLIOptions returns a small pool that fails fast.
func DefaultCLIOptions() Options {
	return Options{
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
		ConnectAttempts: 1,
	}
}

func DefaultMigrateOptions() Options {
	opts := DefaultCLIOptions()
	opts.MaxOpenConns = 1
	opts.PingTimeout = 5 * time.Second
	opts.ConnectAttempts = 3
	opts.RetryDelay = 2 * time.Second
	return opts
}

// OptionsFromEnv overrides defaults with DB_* variables when set.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	if v, ok := readEnvInt("DB_MAX_OPEN_CONNS"); ok {
		opts.MaxOpenConns = v
	}
	if v, ok := readEnvInt("DB_MAX_IDLE_CONNS"); ok {
		opts.MaxIdleConns = v
	}
	if v, ok := readEnvDuration("DB_CONN_MAX_LIFETIME"); ok {
		opts.ConnMaxLifetime = v
	}
	if v, ok := readEnvDuration("DB_CONN_MAX_IDLE_TIME"); ok {
		opts.ConnMaxIdleTime = v
	}
	if v, ok := readEnvDuration("DB_PING_TIMEOUT"); ok {
		opts.PingTimeout = v
	}
	if v, ok := readEnvInt("DB_CONNECT_ATTEMPTS"); ok {
		opts.ConnectAttempts = v
	}
	if v, ok := readEnvDuration("DB_CONNECT_RETRY_DELAY"); ok {
		opts.RetryDelay = v
	}
	return opts
}

// Connect opens the pool and pings until Postgres answers or the attempts
// run out. The returned *sql.DB is meant to be shared for the process.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	attempts := max(opts.ConnectAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := connectOnce(ctx, databaseURL, opts)
		if err == nil {
			logPoolStats(db, attempt)
			return db, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		telemetry.Warn("db.connect_retry", map[string]any{
			"attempt": attempt,
			"of":      attempts,
			"error":   err,
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryDelay):
		}
	}
	return nil, lastErr
}

func connectOnce(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	db, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(db, opts)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func applyOptions(db *sql.DB, opts Options) {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = time.Hour
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func logPoolStats(db *sql.DB, attempt int) {
	stats := db.Stats()
	telemetry.Info("db.connected", map[string]any{
		"attempt":  attempt,
		"open":     stats.OpenConnections,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpenConnections,
	})
}

func readEnvInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err})
		return 0, false
	}
	return val, true
}

func readEnvDuration(key string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env_invalid", map[string]any{"key": key, "error": err})
		return 0, false
	}
	return val, true
}
