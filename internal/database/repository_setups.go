package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrSetupExists is returned when an account already has an active setup
var ErrSetupExists = errors.New("challenge setup already exists for account")

// CreateChallengeSetup inserts a validated setup, locked at creation.
// Creation is all-or-nothing; an account can hold at most one setup.
func (db *DB) CreateChallengeSetup(ctx context.Context, setup *ChallengeSetup) error {
	query := `
		INSERT INTO challenge_setups (
			account_id, provider, phase,
			over_roll_max_percent, daily_max_percent,
			user_risk_per_trade_percent, user_risk_per_asset_percent,
			max_orders_per_asset, min_time_between_orders_sec,
			max_lot_size, max_open_trades, min_trading_days,
			daily_budget_dollars, over_roll_budget_dollars,
			max_trade_risk_dollars, max_asset_allocation_dollars,
			status, is_locked, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19
		)
		ON CONFLICT (account_id) DO NOTHING
		RETURNING id`

	now := time.Now()
	err := db.Pool.QueryRow(ctx, query,
		setup.AccountID, setup.Provider, setup.Phase,
		setup.OverRollMaxPercent, setup.DailyMaxPercent,
		setup.UserRiskPerTradePercent, setup.UserRiskPerAssetPercent,
		setup.MaxOrdersPerAsset, setup.MinTimeBetweenOrdersSec,
		setup.MaxLotSize, setup.MaxOpenTrades, setup.MinTradingDays,
		setup.DailyBudgetDollars, setup.OverRollBudgetDollars,
		setup.MaxTradeRiskDollars, setup.MaxAssetAllocationDollars,
		setup.Status, setup.IsLocked, now,
	).Scan(&setup.ID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSetupExists
		}
		return fmt.Errorf("failed to create challenge setup: %w", err)
	}

	setup.CreatedAt = now
	setup.UpdatedAt = now
	return nil
}

// GetChallengeSetupByAccount retrieves the setup for an account
func (db *DB) GetChallengeSetupByAccount(ctx context.Context, accountID string) (*ChallengeSetup, error) {
	query := `
		SELECT id, account_id, provider, phase,
			over_roll_max_percent, daily_max_percent,
			user_risk_per_trade_percent, user_risk_per_asset_percent,
			max_orders_per_asset, min_time_between_orders_sec,
			max_lot_size, max_open_trades, min_trading_days,
			daily_budget_dollars, over_roll_budget_dollars,
			max_trade_risk_dollars, max_asset_allocation_dollars,
			status, is_locked,
			current_daily_loss, current_total_drawdown, current_profit,
			trading_days_completed, created_at, updated_at
		FROM challenge_setups WHERE account_id = $1`

	setup := &ChallengeSetup{}
	err := db.Pool.QueryRow(ctx, query, accountID).Scan(
		&setup.ID, &setup.AccountID, &setup.Provider, &setup.Phase,
		&setup.OverRollMaxPercent, &setup.DailyMaxPercent,
		&setup.UserRiskPerTradePercent, &setup.UserRiskPerAssetPercent,
		&setup.MaxOrdersPerAsset, &setup.MinTimeBetweenOrdersSec,
		&setup.MaxLotSize, &setup.MaxOpenTrades, &setup.MinTradingDays,
		&setup.DailyBudgetDollars, &setup.OverRollBudgetDollars,
		&setup.MaxTradeRiskDollars, &setup.MaxAssetAllocationDollars,
		&setup.Status, &setup.IsLocked,
		&setup.CurrentDailyLoss, &setup.CurrentTotalDrawdown, &setup.CurrentProfit,
		&setup.TradingDaysCompleted, &setup.CreatedAt, &setup.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get challenge setup: %w", err)
	}

	return setup, nil
}

// ApplyCloseFeedback updates the running counters after the agent reports
// a position close. A losing close increases the daily loss and drawdown;
// a winning close increases profit and unwinds drawdown toward zero.
func (db *DB) ApplyCloseFeedback(ctx context.Context, accountID string, realizedPnL float64) error {
	query := `
		UPDATE challenge_setups SET
			current_profit = current_profit + $2,
			current_daily_loss = CASE WHEN $2 < 0 THEN current_daily_loss - $2 ELSE current_daily_loss END,
			current_total_drawdown = GREATEST(current_total_drawdown - $2, 0),
			updated_at = $3
		WHERE account_id = $1`

	tag, err := db.Pool.Exec(ctx, query, accountID, realizedPnL, time.Now())
	if err != nil {
		return fmt.Errorf("failed to apply close feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetDailyLoss zeroes the daily loss counter and credits a completed
// trading day. Invoked by the day-rollover job, external to the Guardian.
func (db *DB) ResetDailyLoss(ctx context.Context, accountID string, tradedToday bool) error {
	query := `
		UPDATE challenge_setups SET
			current_daily_loss = 0,
			trading_days_completed = trading_days_completed + CASE WHEN $2 THEN 1 ELSE 0 END,
			updated_at = $3
		WHERE account_id = $1`

	tag, err := db.Pool.Exec(ctx, query, accountID, tradedToday, time.Now())
	if err != nil {
		return fmt.Errorf("failed to reset daily loss: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// EndChallenge removes the setup so a new one can be created. Replacing
// rules requires ending the challenge; there is no unlock transition.
func (db *DB) EndChallenge(ctx context.Context, accountID string) error {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM challenge_setups WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to end challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
