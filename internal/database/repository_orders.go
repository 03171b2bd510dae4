package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, account_id, standard_symbol, broker_symbol, direction,
	lot_size, entry_price, stop_loss, take_profit, risk_dollars, risk_percent,
	status, ticket, fill_price, fail_reason, close_price, close_reason,
	realized_pnl, executed_at, closed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*TradeOrder, error) {
	order := &TradeOrder{}
	err := row.Scan(
		&order.ID, &order.AccountID, &order.StandardSymbol, &order.BrokerSymbol,
		&order.Direction, &order.LotSize, &order.EntryPrice, &order.StopLoss,
		&order.TakeProfit, &order.RiskDollars, &order.RiskPercent, &order.Status,
		&order.Ticket, &order.FillPrice, &order.FailReason, &order.ClosePrice,
		&order.CloseReason, &order.RealizedPnL, &order.ExecutedAt, &order.ClosedAt,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CreateTradeOrder persists a Guardian-authorized order in PENDING status
func (db *DB) CreateTradeOrder(ctx context.Context, order *TradeOrder) error {
	query := `
		INSERT INTO trade_orders (
			id, account_id, standard_symbol, broker_symbol, direction,
			lot_size, entry_price, stop_loss, take_profit,
			risk_dollars, risk_percent, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`

	now := time.Now()
	_, err := db.Pool.Exec(ctx, query,
		order.ID, order.AccountID, order.StandardSymbol, order.BrokerSymbol,
		order.Direction, order.LotSize, order.EntryPrice, order.StopLoss,
		order.TakeProfit, order.RiskDollars, order.RiskPercent, order.Status, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create trade order: %w", err)
	}

	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

// GetTradeOrder retrieves an order by ID
func (db *DB) GetTradeOrder(ctx context.Context, id string) (*TradeOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM trade_orders WHERE id = $1`

	order, err := scanOrder(db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trade order: %w", err)
	}
	return order, nil
}

// ListOrdersByAccount returns recent orders for an account
func (db *DB) ListOrdersByAccount(ctx context.Context, accountID string, limit int) ([]*TradeOrder, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + orderColumns + `
		FROM trade_orders
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trade orders: %w", err)
	}
	defer rows.Close()

	var orders []*TradeOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// ListPollableOrders returns orders the agent should pick up
// (status PENDING or APPROVED)
func (db *DB) ListPollableOrders(ctx context.Context, accountID string) ([]*TradeOrder, error) {
	query := `SELECT ` + orderColumns + `
		FROM trade_orders
		WHERE account_id = $1 AND status IN ($2, $3)
		ORDER BY created_at`

	rows, err := db.Pool.Query(ctx, query, accountID, OrderStatusPending, OrderStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list pollable orders: %w", err)
	}
	defer rows.Close()

	var orders []*TradeOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade order: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}

// RecordOrderExecution applies the agent's execution report. A fill moves
// the order to ACTIVE; a failure reason moves it to FAILED.
func (db *DB) RecordOrderExecution(ctx context.Context, id string, ticket *int64, fillPrice *float64, failReason *string) error {
	status := OrderStatusActive
	if failReason != nil && *failReason != "" {
		status = OrderStatusFailed
	}

	query := `
		UPDATE trade_orders SET
			status = $2, ticket = $3, fill_price = $4, fail_reason = $5,
			executed_at = $6, updated_at = $6
		WHERE id = $1 AND status IN ($7, $8)`

	tag, err := db.Pool.Exec(ctx, query, id, status, ticket, fillPrice, failReason,
		time.Now(), OrderStatusPending, OrderStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to record order execution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordOrderClose applies the agent's closure report and returns the
// closed order. Only ACTIVE or EXECUTED orders can close.
func (db *DB) RecordOrderClose(ctx context.Context, id string, closePrice float64, closeReason string, realizedPnL float64) (*TradeOrder, error) {
	query := `
		UPDATE trade_orders SET
			status = $2, close_price = $3, close_reason = $4, realized_pnl = $5,
			closed_at = $6, updated_at = $6
		WHERE id = $1 AND status IN ($7, $8)
		RETURNING ` + orderColumns

	order, err := scanOrder(db.Pool.QueryRow(ctx, query, id, OrderStatusClosed,
		closePrice, closeReason, realizedPnL, time.Now(),
		OrderStatusActive, OrderStatusExecuted))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to record order close: %w", err)
	}
	return order, nil
}

// CancelTradeOrder cancels an order that has not reached the terminal
// states yet
func (db *DB) CancelTradeOrder(ctx context.Context, id string) error {
	query := `
		UPDATE trade_orders SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5)`

	tag, err := db.Pool.Exec(ctx, query, id, OrderStatusCanceled, time.Now(),
		OrderStatusPending, OrderStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to cancel trade order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOpenExposures projects currently open orders into the correlation
// check's input shape
func (db *DB) ListOpenExposures(ctx context.Context, accountID string) ([]OpenExposure, error) {
	query := `
		SELECT standard_symbol, direction, risk_percent
		FROM trade_orders
		WHERE account_id = $1 AND status IN ($2, $3)`

	rows, err := db.Pool.Query(ctx, query, accountID, OrderStatusActive, OrderStatusExecuted)
	if err != nil {
		return nil, fmt.Errorf("failed to list open exposures: %w", err)
	}
	defer rows.Close()

	var exposures []OpenExposure
	for rows.Next() {
		var e OpenExposure
		if err := rows.Scan(&e.Symbol, &e.Direction, &e.RiskPercent); err != nil {
			return nil, fmt.Errorf("failed to scan open exposure: %w", err)
		}
		exposures = append(exposures, e)
	}

	return exposures, rows.Err()
}

// CountOpenOrdersForSymbol counts in-flight and open orders against one
// standard symbol, for the per-asset cap
func (db *DB) CountOpenOrdersForSymbol(ctx context.Context, accountID, standardSymbol string) (int, error) {
	query := `
		SELECT COUNT(*) FROM trade_orders
		WHERE account_id = $1 AND standard_symbol = $2 AND status IN ($3, $4, $5, $6)`

	var count int
	err := db.Pool.QueryRow(ctx, query, accountID, standardSymbol,
		OrderStatusPending, OrderStatusApproved, OrderStatusActive, OrderStatusExecuted,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open orders for symbol: %w", err)
	}
	return count, nil
}

// GetLastOrderTime returns the creation time of the account's most recent
// order, or nil if none exists
func (db *DB) GetLastOrderTime(ctx context.Context, accountID string) (*time.Time, error) {
	query := `SELECT MAX(created_at) FROM trade_orders WHERE account_id = $1`

	var last *time.Time
	if err := db.Pool.QueryRow(ctx, query, accountID).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last order time: %w", err)
	}
	return last, nil
}

// TradeHistoryEntry is the slice of order history the behavioral pattern
// detector consumes
type TradeHistoryEntry struct {
	Symbol      string     `json:"symbol"`
	OpenedAt    time.Time  `json:"opened_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	RealizedPnL *float64   `json:"realized_pnl,omitempty"`
}

// ListTradeHistory returns executed orders opened since the cutoff plus
// the most recently closed ones, newest first
func (db *DB) ListTradeHistory(ctx context.Context, accountID string, since time.Time, limit int) ([]TradeHistoryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT standard_symbol, COALESCE(executed_at, created_at), closed_at, realized_pnl
		FROM trade_orders
		WHERE account_id = $1
			AND status IN ($2, $3, $4)
			AND COALESCE(executed_at, created_at) >= $5
		ORDER BY COALESCE(executed_at, created_at) DESC
		LIMIT $6`

	rows, err := db.Pool.Query(ctx, query, accountID,
		OrderStatusActive, OrderStatusExecuted, OrderStatusClosed, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trade history: %w", err)
	}
	defer rows.Close()

	var entries []TradeHistoryEntry
	for rows.Next() {
		var e TradeHistoryEntry
		if err := rows.Scan(&e.Symbol, &e.OpenedAt, &e.ClosedAt, &e.RealizedPnL); err != nil {
			return nil, fmt.Errorf("failed to scan trade history entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// ==================== AGENT VIOLATIONS ====================

// CreateAgentViolation persists a rule breach the agent reported
func (db *DB) CreateAgentViolation(ctx context.Context, v *AgentViolation) error {
	query := `
		INSERT INTO agent_violations (account_id, order_id, rule, details, reported_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`

	now := time.Now()
	if v.ReportedAt.IsZero() {
		v.ReportedAt = now
	}
	err := db.Pool.QueryRow(ctx, query, v.AccountID, v.OrderID, v.Rule, v.Details, v.ReportedAt, now).Scan(&v.ID)
	if err != nil {
		return fmt.Errorf("failed to create agent violation: %w", err)
	}

	v.CreatedAt = now
	return nil
}

// ListAgentViolations returns reported violations for an account
func (db *DB) ListAgentViolations(ctx context.Context, accountID string, limit int) ([]*AgentViolation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, account_id, order_id, rule, details, reported_at, created_at
		FROM agent_violations
		WHERE account_id = $1
		ORDER BY reported_at DESC
		LIMIT $2`

	rows, err := db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent violations: %w", err)
	}
	defer rows.Close()

	var violations []*AgentViolation
	for rows.Next() {
		v := &AgentViolation{}
		if err := rows.Scan(&v.ID, &v.AccountID, &v.OrderID, &v.Rule, &v.Details, &v.ReportedAt, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent violation: %w", err)
		}
		violations = append(violations, v)
	}

	return violations, rows.Err()
}
