package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// ==================== USERS ====================

// CreateUser creates a new dashboard user
func (db *DB) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`

	now := time.Now()
	_, err := db.Pool.Exec(ctx, query, user.ID, user.Email, user.PasswordHash, user.IsAdmin, now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// GetUserByEmail retrieves a user by email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, is_admin, created_at, updated_at
		FROM users WHERE email = $1`

	user := &User{}
	err := db.Pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.IsAdmin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// ==================== TRADING ACCOUNTS ====================

// CreateTradingAccount creates a new trading account link
func (db *DB) CreateTradingAccount(ctx context.Context, account *TradingAccount) error {
	query := `
		INSERT INTO trading_accounts (
			id, user_id, login, broker, server, platform,
			start_balance, current_balance, equity, currency,
			lock_mode, max_currency_exposure, timezone, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`

	now := time.Now()
	_, err := db.Pool.Exec(ctx, query,
		account.ID, account.UserID, account.Login, account.Broker, account.Server,
		account.Platform, account.StartBalance, account.CurrentBalance, account.Equity,
		account.Currency, account.LockMode, account.MaxCurrencyExposure, account.Timezone, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create trading account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// GetTradingAccount retrieves a non-deleted account by ID
func (db *DB) GetTradingAccount(ctx context.Context, id string) (*TradingAccount, error) {
	query := `
		SELECT id, user_id, login, broker, server, platform,
			start_balance, current_balance, equity, currency,
			lock_mode, max_currency_exposure, timezone, deleted_at, created_at, updated_at
		FROM trading_accounts
		WHERE id = $1 AND deleted_at IS NULL`

	account := &TradingAccount{}
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&account.ID, &account.UserID, &account.Login, &account.Broker, &account.Server,
		&account.Platform, &account.StartBalance, &account.CurrentBalance, &account.Equity,
		&account.Currency, &account.LockMode, &account.MaxCurrencyExposure, &account.Timezone,
		&account.DeletedAt, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trading account: %w", err)
	}

	return account, nil
}

// ListTradingAccounts returns all non-deleted accounts for a user
func (db *DB) ListTradingAccounts(ctx context.Context, userID string) ([]*TradingAccount, error) {
	query := `
		SELECT id, user_id, login, broker, server, platform,
			start_balance, current_balance, equity, currency,
			lock_mode, max_currency_exposure, timezone, deleted_at, created_at, updated_at
		FROM trading_accounts
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`

	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trading accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*TradingAccount
	for rows.Next() {
		account := &TradingAccount{}
		err := rows.Scan(
			&account.ID, &account.UserID, &account.Login, &account.Broker, &account.Server,
			&account.Platform, &account.StartBalance, &account.CurrentBalance, &account.Equity,
			&account.Currency, &account.LockMode, &account.MaxCurrencyExposure, &account.Timezone,
			&account.DeletedAt, &account.CreatedAt, &account.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trading account: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

// UpdateAccountBalances updates balances pushed by the sync pipeline
func (db *DB) UpdateAccountBalances(ctx context.Context, id string, balance, equity float64) error {
	query := `
		UPDATE trading_accounts
		SET current_balance = $2, equity = $3, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := db.Pool.Exec(ctx, query, id, balance, equity, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update account balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAccountLockMode updates the per-account enforcement strictness
func (db *DB) UpdateAccountLockMode(ctx context.Context, id, lockMode string) error {
	query := `
		UPDATE trading_accounts
		SET lock_mode = $2, updated_at = $3
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := db.Pool.Exec(ctx, query, id, lockMode, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update lock mode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteTradingAccount marks an account as deleted. Accounts are
// never hard-deleted while orders reference them.
func (db *DB) SoftDeleteTradingAccount(ctx context.Context, id string) error {
	query := `
		UPDATE trading_accounts
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	tag, err := db.Pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete trading account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== AGENT CREDENTIALS ====================

// CreateAgentCredential stores a new agent API key hash
func (db *DB) CreateAgentCredential(ctx context.Context, cred *AgentCredential) error {
	query := `
		INSERT INTO agent_credentials (id, account_id, label, key_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	now := time.Now()
	_, err := db.Pool.Exec(ctx, query, cred.ID, cred.AccountID, cred.Label, cred.KeyHash, now)
	if err != nil {
		return fmt.Errorf("failed to create agent credential: %w", err)
	}

	cred.CreatedAt = now
	return nil
}

// GetAgentCredentialByHash looks up an active credential by key hash and
// stamps last_used_at
func (db *DB) GetAgentCredentialByHash(ctx context.Context, keyHash string) (*AgentCredential, error) {
	query := `
		UPDATE agent_credentials
		SET last_used_at = $2
		WHERE key_hash = $1 AND revoked_at IS NULL
		RETURNING id, account_id, label, key_hash, last_used_at, revoked_at, created_at`

	cred := &AgentCredential{}
	err := db.Pool.QueryRow(ctx, query, keyHash, time.Now()).Scan(
		&cred.ID, &cred.AccountID, &cred.Label, &cred.KeyHash,
		&cred.LastUsedAt, &cred.RevokedAt, &cred.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up agent credential: %w", err)
	}

	return cred, nil
}

// RevokeAgentCredential revokes an agent API key
func (db *DB) RevokeAgentCredential(ctx context.Context, id string) error {
	query := `UPDATE agent_credentials SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`

	tag, err := db.Pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke agent credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
