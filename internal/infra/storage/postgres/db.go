package postgres

import (
	"context"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"

	"github.com/vietddude/zkagent/internal/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// DB wraps the PostgreSQL connection.
type DB struct {
	*sqlx.DB
}

// Journal writes are one row per observed event, so a small pool suffices.
const (
	defaultMaxConns = 4
	defaultMinConns = 1
	healthTimeout   = 2 * time.Second
	metricsInterval = 15 * time.Second
)

// NewDB opens the journal database and verifies it is reachable.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	db, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxConns, minConns := cfg.MaxConns, cfg.MinConns
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}
	if minConns <= 0 || minConns > maxConns {
		minConns = min(defaultMinConns, maxConns)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Migrate applies the embedded goose migrations.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}
	return nil
}

// StartMetricsCollector reports pool usage until ctx is done.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(metricsInterval)
		defer ticker.Stop()

		for {
			db.recordPoolUsage()
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (db *DB) recordPoolUsage() {
	stats := db.Stats()
	if stats.MaxOpenConnections == 0 {
		return
	}
	metrics.DBConnectionPoolUsage.Set(float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100)
}

// Health pings the database with a short deadline.
func (db *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("journal unreachable: %w", err)
	}
	return nil
}
