package guardian

import (
	"strings"
	"testing"
)

func validSetupInput() SetupInput {
	return SetupInput{
		Provider:                "FTMO",
		Phase:                   "challenge",
		AccountSize:             10000,
		OverRollMaxPercent:      10,
		DailyMaxPercent:         5,
		UserRiskPerTradePercent: 1,
		UserRiskPerAssetPercent: 2,
		MaxOrdersPerAsset:       2,
		MinTimeBetweenOrdersSec: 60,
	}
}

func TestCalculateDerivedValues(t *testing.T) {
	derived := CalculateDerivedValues(validSetupInput())

	if derived.DailyBudgetDollars != 500.00 {
		t.Errorf("Expected daily budget 500.00, got %v", derived.DailyBudgetDollars)
	}
	if derived.OverRollBudgetDollars != 1000.00 {
		t.Errorf("Expected over-roll budget 1000.00, got %v", derived.OverRollBudgetDollars)
	}
	if derived.MaxTradeRiskDollars != 100.00 {
		t.Errorf("Expected max trade risk 100.00, got %v", derived.MaxTradeRiskDollars)
	}
	if derived.MaxAssetAllocationDollars != 200.00 {
		t.Errorf("Expected asset allocation 200.00, got %v", derived.MaxAssetAllocationDollars)
	}
}

func TestCalculateDerivedValuesIdempotent(t *testing.T) {
	input := validSetupInput()
	first := CalculateDerivedValues(input)
	second := CalculateDerivedValues(input)

	if first != second {
		t.Errorf("Expected identical output for identical input: %+v vs %+v", first, second)
	}
}

func TestValidateSetupAccepts(t *testing.T) {
	result := ValidateSetup(validSetupInput())

	if !result.IsValid {
		t.Fatalf("Expected valid setup, got errors: %v", result.Errors)
	}
}

func TestValidateSetupRiskCeiling(t *testing.T) {
	input := validSetupInput()
	input.UserRiskPerTradePercent = 6
	input.UserRiskPerAssetPercent = 12

	result := ValidateSetup(input)
	if result.IsValid {
		t.Fatal("Expected 6% per-trade risk to be rejected")
	}

	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "5%") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an error referencing the 5%% ceiling, got %v", result.Errors)
	}
}

func TestValidateSetupAssetBelowTrade(t *testing.T) {
	input := validSetupInput()
	input.UserRiskPerAssetPercent = 0.5

	result := ValidateSetup(input)
	if result.IsValid {
		t.Error("Expected per-asset risk below per-trade risk to be rejected")
	}
}

func TestValidateSetupDailyExceedsOverRoll(t *testing.T) {
	input := validSetupInput()
	input.DailyMaxPercent = 12

	result := ValidateSetup(input)
	if result.IsValid {
		t.Error("Expected daily limit above over-roll limit to be rejected")
	}
}

func TestValidateSetupZeroOrdersPerAsset(t *testing.T) {
	input := validSetupInput()
	input.MaxOrdersPerAsset = 0

	result := ValidateSetup(input)
	if result.IsValid {
		t.Error("Expected zero max orders per asset to be rejected")
	}
}

func TestValidateSetupWorstCaseExceedsAllocation(t *testing.T) {
	input := validSetupInput()
	input.MaxOrdersPerAsset = 3 // 3 x $100 > $200 allocation

	result := ValidateSetup(input)
	if result.IsValid {
		t.Error("Expected worst-case simultaneous risk above asset allocation to be rejected")
	}
}

func TestValidateSetupInvariants(t *testing.T) {
	// Any input validateSetup accepts must satisfy the budget invariants
	inputs := []SetupInput{
		validSetupInput(),
		{AccountSize: 50000, OverRollMaxPercent: 8, DailyMaxPercent: 4,
			UserRiskPerTradePercent: 0.5, UserRiskPerAssetPercent: 1.5, MaxOrdersPerAsset: 3},
		{AccountSize: 200000, OverRollMaxPercent: 12, DailyMaxPercent: 6,
			UserRiskPerTradePercent: 2, UserRiskPerAssetPercent: 4, MaxOrdersPerAsset: 2},
	}

	for _, input := range inputs {
		result := ValidateSetup(input)
		if !result.IsValid {
			continue
		}
		derived := CalculateDerivedValues(input)
		if derived.DailyBudgetDollars > derived.OverRollBudgetDollars {
			t.Errorf("Accepted setup with daily budget %v above over-roll budget %v",
				derived.DailyBudgetDollars, derived.OverRollBudgetDollars)
		}
		worstCase := derived.MaxTradeRiskDollars * float64(input.MaxOrdersPerAsset)
		if worstCase > derived.MaxAssetAllocationDollars {
			t.Errorf("Accepted setup with worst-case risk %v above allocation %v",
				worstCase, derived.MaxAssetAllocationDollars)
		}
	}
}

func TestValidateSetupWarnings(t *testing.T) {
	input := validSetupInput()
	input.AccountSize = 500
	input.MaxOrdersPerAsset = 1

	result := ValidateSetup(input)
	if !result.IsValid {
		t.Fatalf("Warnings must not block creation, got errors: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a small-account warning")
	}
}

func TestValidateSetupMutability(t *testing.T) {
	if err := ValidateSetupMutability(SetupStatusDraft, false); err != nil {
		t.Errorf("Expected draft setup to be mutable, got %v", err)
	}
	if err := ValidateSetupMutability(SetupStatusLocked, true); err == nil {
		t.Error("Expected locked setup to be immutable")
	}
	if err := ValidateSetupMutability(SetupStatusDraft, true); err == nil {
		t.Error("Expected is_locked flag alone to block mutation")
	}
}
