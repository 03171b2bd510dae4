package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ==================== BROKER SYMBOL SPECS ====================

// ReplaceSymbolSpecs overwrites the full instrument list for an account
// in one transaction, as pushed by the agent's symbol sync.
func (db *DB) ReplaceSymbolSpecs(ctx context.Context, accountID string, specs []*BrokerSymbolSpec) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin symbol sync transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM broker_symbol_specs WHERE account_id = $1`, accountID); err != nil {
		return fmt.Errorf("failed to clear symbol specs: %w", err)
	}

	query := `
		INSERT INTO broker_symbol_specs (
			account_id, symbol, digits, point, contract_size,
			min_lot, max_lot, lot_step, stop_level, freeze_level,
			trade_mode, leverage, margin_initial, margin_maintenance, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	now := time.Now()
	for _, spec := range specs {
		_, err := tx.Exec(ctx, query,
			accountID, spec.Symbol, spec.Digits, spec.Point, spec.ContractSize,
			spec.MinLot, spec.MaxLot, spec.LotStep, spec.StopLevel, spec.FreezeLevel,
			spec.TradeMode, spec.Leverage, spec.MarginInitial, spec.MarginMaintenance, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert symbol spec %s: %w", spec.Symbol, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit symbol sync: %w", err)
	}
	return nil
}

// GetSymbolSpec retrieves the broker spec for (account, symbol)
func (db *DB) GetSymbolSpec(ctx context.Context, accountID, symbol string) (*BrokerSymbolSpec, error) {
	query := `
		SELECT id, account_id, symbol, digits, point, contract_size,
			min_lot, max_lot, lot_step, stop_level, freeze_level,
			trade_mode, leverage, margin_initial, margin_maintenance, synced_at
		FROM broker_symbol_specs
		WHERE account_id = $1 AND symbol = $2`

	spec := &BrokerSymbolSpec{}
	err := db.Pool.QueryRow(ctx, query, accountID, symbol).Scan(
		&spec.ID, &spec.AccountID, &spec.Symbol, &spec.Digits, &spec.Point,
		&spec.ContractSize, &spec.MinLot, &spec.MaxLot, &spec.LotStep,
		&spec.StopLevel, &spec.FreezeLevel, &spec.TradeMode, &spec.Leverage,
		&spec.MarginInitial, &spec.MarginMaintenance, &spec.SyncedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get symbol spec: %w", err)
	}

	return spec, nil
}

// ListSymbolSpecs returns all synced specs for an account
func (db *DB) ListSymbolSpecs(ctx context.Context, accountID string) ([]*BrokerSymbolSpec, error) {
	query := `
		SELECT id, account_id, symbol, digits, point, contract_size,
			min_lot, max_lot, lot_step, stop_level, freeze_level,
			trade_mode, leverage, margin_initial, margin_maintenance, synced_at
		FROM broker_symbol_specs
		WHERE account_id = $1
		ORDER BY symbol`

	rows, err := db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbol specs: %w", err)
	}
	defer rows.Close()

	var specs []*BrokerSymbolSpec
	for rows.Next() {
		spec := &BrokerSymbolSpec{}
		err := rows.Scan(
			&spec.ID, &spec.AccountID, &spec.Symbol, &spec.Digits, &spec.Point,
			&spec.ContractSize, &spec.MinLot, &spec.MaxLot, &spec.LotStep,
			&spec.StopLevel, &spec.FreezeLevel, &spec.TradeMode, &spec.Leverage,
			&spec.MarginInitial, &spec.MarginMaintenance, &spec.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol spec: %w", err)
		}
		specs = append(specs, spec)
	}

	return specs, rows.Err()
}

// ==================== SYMBOL MAPPINGS ====================

// UpsertSymbolMapping creates or replaces the mapping for
// (account, standard symbol). The broker symbol must have a synced spec.
func (db *DB) UpsertSymbolMapping(ctx context.Context, mapping *SymbolMapping) error {
	// Refuse a mapping whose target has no synced spec; the Guardian
	// would reject every order against it anyway.
	if _, err := db.GetSymbolSpec(ctx, mapping.AccountID, mapping.BrokerSymbol); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("broker symbol %s has no synced spec for this account: %w", mapping.BrokerSymbol, ErrNotFound)
		}
		return err
	}

	query := `
		INSERT INTO symbol_mappings (
			account_id, standard_symbol, broker_symbol, category, confidence, source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (account_id, standard_symbol) DO UPDATE SET
			broker_symbol = EXCLUDED.broker_symbol,
			category = EXCLUDED.category,
			confidence = EXCLUDED.confidence,
			source = EXCLUDED.source,
			updated_at = EXCLUDED.updated_at
		RETURNING id`

	now := time.Now()
	err := db.Pool.QueryRow(ctx, query,
		mapping.AccountID, mapping.StandardSymbol, mapping.BrokerSymbol,
		mapping.Category, mapping.Confidence, mapping.Source, now,
	).Scan(&mapping.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert symbol mapping: %w", err)
	}

	mapping.UpdatedAt = now
	return nil
}

// GetSymbolMapping retrieves the mapping for (account, standard symbol)
func (db *DB) GetSymbolMapping(ctx context.Context, accountID, standardSymbol string) (*SymbolMapping, error) {
	query := `
		SELECT id, account_id, standard_symbol, broker_symbol, category, confidence, source, created_at, updated_at
		FROM symbol_mappings
		WHERE account_id = $1 AND standard_symbol = $2`

	mapping := &SymbolMapping{}
	err := db.Pool.QueryRow(ctx, query, accountID, standardSymbol).Scan(
		&mapping.ID, &mapping.AccountID, &mapping.StandardSymbol, &mapping.BrokerSymbol,
		&mapping.Category, &mapping.Confidence, &mapping.Source,
		&mapping.CreatedAt, &mapping.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get symbol mapping: %w", err)
	}

	return mapping, nil
}

// ListSymbolMappings returns all mappings for an account
func (db *DB) ListSymbolMappings(ctx context.Context, accountID string) ([]*SymbolMapping, error) {
	query := `
		SELECT id, account_id, standard_symbol, broker_symbol, category, confidence, source, created_at, updated_at
		FROM symbol_mappings
		WHERE account_id = $1
		ORDER BY standard_symbol`

	rows, err := db.Pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list symbol mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*SymbolMapping
	for rows.Next() {
		mapping := &SymbolMapping{}
		err := rows.Scan(
			&mapping.ID, &mapping.AccountID, &mapping.StandardSymbol, &mapping.BrokerSymbol,
			&mapping.Category, &mapping.Confidence, &mapping.Source,
			&mapping.CreatedAt, &mapping.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}

	return mappings, rows.Err()
}

// DeleteSymbolMapping removes a mapping
func (db *DB) DeleteSymbolMapping(ctx context.Context, accountID, standardSymbol string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM symbol_mappings WHERE account_id = $1 AND standard_symbol = $2`,
		accountID, standardSymbol,
	)
	if err != nil {
		return fmt.Errorf("failed to delete symbol mapping: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
