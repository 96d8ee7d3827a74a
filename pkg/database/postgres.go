package database

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/futsync/internal/domain"
	"github.com/wonny/futsync/pkg/config"
	"github.com/wonny/futsync/pkg/logger"
)

// DB wraps the pgxpool.Pool and owns connection lifecycle
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	mu   sync.Mutex
	pool *pgxpool.Pool
	cfg  config.DatabaseConfig
	log  *logger.Logger
}

// New validates the connection parameters and establishes the pool,
// retrying up to cfg.ConnectRetries times with cfg.ConnectDelay between
// attempts. Invalid parameters fail immediately without retrying.
func New(cfg *config.Config, log *logger.Logger) (*DB, error) {
	dbCfg := cfg.Database

	if err := dbCfg.Validate(); err != nil {
		return nil, domain.NewConfigError("invalid database configuration", err)
	}

	db := &DB{cfg: dbCfg, log: log.WithField("module", "database")}

	if err := db.connect(context.Background()); err != nil {
		return nil, err
	}
	return db, nil
}

// connect dials the store with bounded retries. Error classes are
// distinguished for logging only; every class retries identically.
func (db *DB) connect(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= db.cfg.ConnectRetries; attempt++ {
		db.log.WithFields(map[string]interface{}{
			"attempt": attempt,
			"max":     db.cfg.ConnectRetries,
		}).Info("Connecting to database")

		pool, err := db.dial(ctx)
		if err == nil {
			db.mu.Lock()
			db.pool = pool
			db.mu.Unlock()
			db.log.Info("Database connected")
			return nil
		}

		lastErr = err
		db.log.WithError(err).WithField("class", classifyConnError(err)).
			Warn("Database connection attempt failed")

		if attempt < db.cfg.ConnectRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(db.cfg.ConnectDelay):
			}
		}
	}

	return domain.NewTransientError(
		fmt.Sprintf("database connection failed after %d attempts", db.cfg.ConnectRetries), lastErr)
}

func (db *DB) dial(ctx context.Context) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(db.cfg.MaxConns)
	poolConfig.MinConns = int32(db.cfg.MinConns)
	poolConfig.MaxConnLifetime = db.cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// classifyConnError buckets a connection error for log readability.
func classifyConnError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "28P01", "28000":
			return "authentication_failed"
		case "3D000":
			return "unknown_database"
		}
		return "server_error"
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return "host_unreachable"
	}

	return "connection_error"
}

// Pool returns the underlying pool for repository use.
func (db *DB) Pool() *pgxpool.Pool {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.pool
}

// Close closes the database connection pool
func (db *DB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	pool := db.Pool()
	if pool == nil {
		return domain.NewTransientError("database pool not connected", nil)
	}
	return pool.Ping(ctx)
}

// EnsureConnected probes the connection and transparently reconnects
// when the probe fails.
func (db *DB) EnsureConnected(ctx context.Context) error {
	if err := db.Ping(ctx); err == nil {
		return nil
	}

	db.log.Warn("Database liveness probe failed, reconnecting")

	db.mu.Lock()
	if db.pool != nil {
		db.pool.Close()
		db.pool = nil
	}
	db.mu.Unlock()

	return db.connect(ctx)
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	AcquireCount  int64 `json:"acquire_count"`
	AcquiredConns int32 `json:"acquired_conns"`
	IdleConns     int32 `json:"idle_conns"`
	MaxConns      int32 `json:"max_conns"`
	TotalConns    int32 `json:"total_conns"`
}

// HealthCheck returns detailed health information about the database
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Healthy:   false,
		Timestamp: time.Now(),
	}

	start := time.Now()
	if err := db.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	stats := db.Pool().Stat()
	status.Stats = PoolStats{
		AcquireCount:  stats.AcquireCount(),
		AcquiredConns: stats.AcquiredConns(),
		IdleConns:     stats.IdleConns(),
		MaxConns:      stats.MaxConns(),
		TotalConns:    stats.TotalConns(),
	}

	status.Healthy = true
	return status, nil
}
