// Package guardian implements the Trade Risk Guardian: budget derivation
// and setup locking, symbol/lot resolution, and the trade validation
// engine. All functions here are pure with respect to their inputs; data
// is fetched by the caller and passed in.
package guardian

import (
	"fmt"
	"math"
)

// MaxRiskPerTradeCeiling is the absolute per-trade risk ceiling in
// percent. No configuration can raise it; risking more than this per
// trade destroys accounts.
const MaxRiskPerTradeCeiling = 5.0

// Setup status values. LOCKED is terminal: replacing rules requires
// ending the challenge and creating a new setup.
const (
	SetupStatusDraft  = "DRAFT"
	SetupStatusLocked = "LOCKED"
	SetupStatusActive = "ACTIVE"
)

// SetupInput is the challenge configuration submitted by the wizard
type SetupInput struct {
	Provider                string  `json:"provider"`
	Phase                   string  `json:"phase"`
	AccountSize             float64 `json:"account_size"`
	OverRollMaxPercent      float64 `json:"over_roll_max_percent"`
	DailyMaxPercent         float64 `json:"daily_max_percent"`
	UserRiskPerTradePercent float64 `json:"user_risk_per_trade_percent"`
	UserRiskPerAssetPercent float64 `json:"user_risk_per_asset_percent"`
	MaxOrdersPerAsset       int     `json:"max_orders_per_asset"`
	MinTimeBetweenOrdersSec int     `json:"min_time_between_orders_sec"`
}

// DerivedValues are the dollar budgets computed from the percentage rules
type DerivedValues struct {
	DailyBudgetDollars        float64 `json:"daily_budget_dollars"`
	OverRollBudgetDollars     float64 `json:"over_roll_budget_dollars"`
	MaxTradeRiskDollars       float64 `json:"max_trade_risk_dollars"`
	MaxAssetAllocationDollars float64 `json:"max_asset_allocation_dollars"`
}

// SetupValidation is the result of validating a setup input
type SetupValidation struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// CalculateDerivedValues turns the percentage rules into dollar budgets.
// Pure function: identical input always yields identical output.
func CalculateDerivedValues(input SetupInput) DerivedValues {
	return DerivedValues{
		DailyBudgetDollars:        roundCents(input.AccountSize * input.DailyMaxPercent / 100),
		OverRollBudgetDollars:     roundCents(input.AccountSize * input.OverRollMaxPercent / 100),
		MaxTradeRiskDollars:       roundCents(input.AccountSize * input.UserRiskPerTradePercent / 100),
		MaxAssetAllocationDollars: roundCents(input.AccountSize * input.UserRiskPerAssetPercent / 100),
	}
}

// ValidateSetup enforces the setup-level invariants. Errors block
// creation; warnings never do.
func ValidateSetup(input SetupInput) SetupValidation {
	result := SetupValidation{
		Errors:   []string{},
		Warnings: []string{},
	}

	derived := CalculateDerivedValues(input)

	if input.AccountSize <= 0 {
		result.Errors = append(result.Errors, "account size must be positive")
	}

	// Absolute account-destruction guard
	if input.UserRiskPerTradePercent > MaxRiskPerTradeCeiling {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"risk per trade %.2f%% exceeds the %.0f%% per-trade ceiling",
			input.UserRiskPerTradePercent, MaxRiskPerTradeCeiling))
	}

	if derived.DailyBudgetDollars > 0 && derived.MaxTradeRiskDollars > derived.DailyBudgetDollars/3 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"a single trade can risk $%.2f, more than a third of the $%.2f daily budget",
			derived.MaxTradeRiskDollars, derived.DailyBudgetDollars))
	}

	// An asset cap tighter than the trade cap makes the trade cap unreachable
	if input.UserRiskPerAssetPercent < input.UserRiskPerTradePercent {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"per-asset risk %.2f%% is below per-trade risk %.2f%%; a single trade could never use its full budget",
			input.UserRiskPerAssetPercent, input.UserRiskPerTradePercent))
	}

	// Daily is a resettable sub-budget of the cumulative limit
	if input.DailyMaxPercent > input.OverRollMaxPercent {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"daily limit %.2f%% exceeds the over-roll limit %.2f%%",
			input.DailyMaxPercent, input.OverRollMaxPercent))
	}

	if derived.OverRollBudgetDollars > 0 && derived.DailyBudgetDollars > 0 &&
		derived.DailyBudgetDollars < 0.3*derived.OverRollBudgetDollars {
		days := int(math.Floor(derived.OverRollBudgetDollars / derived.DailyBudgetDollars))
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"daily budget is under 30%% of the over-roll budget; roughly %d full losing days before the challenge fails",
			days))
	}

	if input.MaxOrdersPerAsset == 0 {
		result.Errors = append(result.Errors, "max orders per asset cannot be zero")
	} else if input.MaxOrdersPerAsset > 10 {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"%d simultaneous orders on one asset is unusually high", input.MaxOrdersPerAsset))
	}

	// Worst-case simultaneous risk on one asset must fit its allocation
	if input.MaxOrdersPerAsset > 0 &&
		derived.MaxTradeRiskDollars*float64(input.MaxOrdersPerAsset) > derived.MaxAssetAllocationDollars {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"%d orders at $%.2f each ($%.2f) would exceed the $%.2f asset allocation cap",
			input.MaxOrdersPerAsset, derived.MaxTradeRiskDollars,
			derived.MaxTradeRiskDollars*float64(input.MaxOrdersPerAsset),
			derived.MaxAssetAllocationDollars))
	}

	if input.AccountSize > 0 && input.AccountSize < 1000 {
		result.Warnings = append(result.Warnings,
			"account under $1,000 may not reach broker minimum lot sizes")
	} else if input.AccountSize > 10000000 {
		result.Warnings = append(result.Warnings,
			"account size over $10,000,000; please confirm this is intentional")
	}

	if input.MinTimeBetweenOrdersSec > 3600 {
		result.Warnings = append(result.Warnings,
			"more than an hour between orders may over-constrain entries")
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// ValidateSetupMutability is consulted by every would-be mutation path.
// There is no unlock transition.
func ValidateSetupMutability(status string, isLocked bool) error {
	if isLocked || status == SetupStatusLocked || status == SetupStatusActive {
		return fmt.Errorf("challenge setup is locked and cannot be modified; end the challenge and create a new setup")
	}
	return nil
}

// roundCents rounds a dollar amount to two decimal places
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
