package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, logger zerolog.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log := logger.With().Str("component", "database").Logger()
	log.Info().Str("database", cfg.Database).Msg("connected to PostgreSQL")

	return &DB{Pool: pool, logger: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.logger.Info().Msg("running database migrations")

	migrations := []string{
		// Dashboard users
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Linked MT4/MT5 accounts; soft-deleted while orders reference them
		`CREATE TABLE IF NOT EXISTS trading_accounts (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id),
			login VARCHAR(50) NOT NULL,
			broker VARCHAR(100) NOT NULL,
			server VARCHAR(100) NOT NULL,
			platform VARCHAR(10) NOT NULL DEFAULT 'MT5',
			start_balance DECIMAL(20, 2) NOT NULL DEFAULT 0,
			current_balance DECIMAL(20, 2) NOT NULL DEFAULT 0,
			equity DECIMAL(20, 2) NOT NULL DEFAULT 0,
			currency VARCHAR(10) NOT NULL DEFAULT 'USD',
			lock_mode VARCHAR(10) NOT NULL DEFAULT 'HARD',
			max_currency_exposure DECIMAL(10, 4) NOT NULL DEFAULT 0,
			timezone VARCHAR(50) NOT NULL DEFAULT '',
			deleted_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trading_accounts_user ON trading_accounts(user_id)`,

		// One challenge setup per account; immutable once locked except counters
		`CREATE TABLE IF NOT EXISTS challenge_setups (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL UNIQUE REFERENCES trading_accounts(id),
			provider VARCHAR(100) NOT NULL DEFAULT '',
			phase VARCHAR(50) NOT NULL DEFAULT '',
			over_roll_max_percent DECIMAL(10, 4) NOT NULL,
			daily_max_percent DECIMAL(10, 4) NOT NULL,
			user_risk_per_trade_percent DECIMAL(10, 4) NOT NULL,
			user_risk_per_asset_percent DECIMAL(10, 4) NOT NULL,
			max_orders_per_asset INT NOT NULL,
			min_time_between_orders_sec INT NOT NULL DEFAULT 0,
			max_lot_size DECIMAL(10, 4) NOT NULL DEFAULT 0,
			max_open_trades INT NOT NULL DEFAULT 0,
			min_trading_days INT NOT NULL DEFAULT 0,
			daily_budget_dollars DECIMAL(20, 2) NOT NULL,
			over_roll_budget_dollars DECIMAL(20, 2) NOT NULL,
			max_trade_risk_dollars DECIMAL(20, 2) NOT NULL,
			max_asset_allocation_dollars DECIMAL(20, 2) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'LOCKED',
			is_locked BOOLEAN NOT NULL DEFAULT TRUE,
			current_daily_loss DECIMAL(20, 2) NOT NULL DEFAULT 0,
			current_total_drawdown DECIMAL(20, 2) NOT NULL DEFAULT 0,
			current_profit DECIMAL(20, 2) NOT NULL DEFAULT 0,
			trading_days_completed INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Broker instrument specs pushed by the agent's symbol sync
		`CREATE TABLE IF NOT EXISTS broker_symbol_specs (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES trading_accounts(id),
			symbol VARCHAR(50) NOT NULL,
			digits INT NOT NULL DEFAULT 5,
			point DECIMAL(20, 10) NOT NULL DEFAULT 0,
			contract_size DECIMAL(20, 2) NOT NULL DEFAULT 100000,
			min_lot DECIMAL(10, 4) NOT NULL,
			max_lot DECIMAL(10, 4) NOT NULL,
			lot_step DECIMAL(10, 4) NOT NULL,
			stop_level INT NOT NULL DEFAULT 0,
			freeze_level INT NOT NULL DEFAULT 0,
			trade_mode VARCHAR(20) NOT NULL DEFAULT 'FULL',
			leverage INT NOT NULL DEFAULT 0,
			margin_initial DECIMAL(20, 4) NOT NULL DEFAULT 0,
			margin_maintenance DECIMAL(20, 4) NOT NULL DEFAULT 0,
			synced_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (account_id, symbol)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbol_specs_account ON broker_symbol_specs(account_id)`,

		// Standard-to-broker symbol mappings; execution requires an exact row
		`CREATE TABLE IF NOT EXISTS symbol_mappings (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES trading_accounts(id),
			standard_symbol VARCHAR(50) NOT NULL,
			broker_symbol VARCHAR(50) NOT NULL,
			category VARCHAR(20) NOT NULL DEFAULT 'forex',
			confidence DECIMAL(5, 4) NOT NULL DEFAULT 1.0,
			source VARCHAR(10) NOT NULL DEFAULT 'manual',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (account_id, standard_symbol)
		)`,

		// Guardian-authorized orders; mutated by the execution feedback pipeline
		`CREATE TABLE IF NOT EXISTS trade_orders (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES trading_accounts(id),
			standard_symbol VARCHAR(50) NOT NULL,
			broker_symbol VARCHAR(50) NOT NULL,
			direction VARCHAR(4) NOT NULL,
			lot_size DECIMAL(10, 4) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			stop_loss DECIMAL(20, 8) NOT NULL,
			take_profit DECIMAL(20, 8),
			risk_dollars DECIMAL(20, 2) NOT NULL,
			risk_percent DECIMAL(10, 4) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			ticket BIGINT,
			fill_price DECIMAL(20, 8),
			fail_reason TEXT,
			close_price DECIMAL(20, 8),
			close_reason VARCHAR(50),
			realized_pnl DECIMAL(20, 2),
			executed_at TIMESTAMP,
			closed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_orders_account ON trade_orders(account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_orders_status ON trade_orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_orders_account_status ON trade_orders(account_id, status)`,

		// Violations the agent detected terminal-side
		`CREATE TABLE IF NOT EXISTS agent_violations (
			id BIGSERIAL PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES trading_accounts(id),
			order_id UUID REFERENCES trade_orders(id),
			rule VARCHAR(100) NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			reported_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_violations_account ON agent_violations(account_id)`,

		// Per-account API credentials for the polling agent
		`CREATE TABLE IF NOT EXISTS agent_credentials (
			id UUID PRIMARY KEY,
			account_id UUID NOT NULL REFERENCES trading_accounts(id),
			label VARCHAR(100) NOT NULL DEFAULT '',
			key_hash VARCHAR(64) NOT NULL UNIQUE,
			last_used_at TIMESTAMP,
			revoked_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_credentials_account ON agent_credentials(account_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.logger.Info().Msg("database migrations completed")
	return nil
}
