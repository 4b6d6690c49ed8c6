// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	// WAD fixed-point values are stored as DECIMAL(60, 18); fee values are
	// integer pips. Durations are stored in seconds.
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pool_type_parameters (
			params_id SERIAL PRIMARY KEY,
			version INTEGER NOT NULL DEFAULT 1,
			pool_type VARCHAR(64) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			min_fee_pips BIGINT NOT NULL,
			max_fee_pips BIGINT NOT NULL,
			base_max_delta_pips BIGINT NOT NULL,
			smoothing_window INTEGER NOT NULL,
			cooldown_seconds BIGINT NOT NULL,
			ratio_tolerance DECIMAL(60, 18) NOT NULL,
			linear_slope DECIMAL(60, 18) NOT NULL,
			max_current_ratio DECIMAL(60, 18) NOT NULL,
			upper_side_factor DECIMAL(60, 18) NOT NULL,
			lower_side_factor DECIMAL(60, 18) NOT NULL,
			CONSTRAINT uq_pool_type_parameters_type_version UNIQUE (pool_type, version)
		);
		CREATE INDEX IF NOT EXISTS idx_pool_type_parameters_type_active ON pool_type_parameters(pool_type, is_active, activated_at DESC);

		CREATE TABLE IF NOT EXISTS fee_update_events (
			event_id SERIAL PRIMARY KEY,
			event_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pool_id BIGINT NOT NULL,
			old_fee_pips BIGINT NOT NULL,
			new_fee_pips BIGINT NOT NULL,
			old_target DECIMAL(60, 18) NOT NULL,
			current_ratio DECIMAL(60, 18) NOT NULL,
			new_target DECIMAL(60, 18) NOT NULL,
			direction VARCHAR(8) NOT NULL,
			streak INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_fee_update_events_pool_timestamp ON fee_update_events(pool_id, event_timestamp DESC);

		CREATE TABLE IF NOT EXISTS reserve_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pool_id BIGINT NOT NULL,
			pool_status VARCHAR(16) NOT NULL,
			current_price DECIMAL(60, 18) NOT NULL,
			total_shares DECIMAL(40, 0) NOT NULL,
			reserve_value0 DECIMAL(40, 0) NOT NULL,
			reserve_value1 DECIMAL(40, 0) NOT NULL,
			yield_tax_pips BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_reserve_snapshots_pool_timestamp ON reserve_snapshots(pool_id, snapshot_timestamp DESC);
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
