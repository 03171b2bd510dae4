package guardian

import (
	"testing"

	"github.com/rs/zerolog"

	"mt-trading-dashboard/internal/database"
)

func baseTradeInput() TradeInput {
	return TradeInput{
		Symbol:          "EURUSD",
		Direction:       "BUY",
		EntryPrice:      1.1000,
		StopLoss:        1.0950,
		RiskPercent:     1.0,
		LotSize:         0.5,
		AccountBalance:  10000,
		AccountCurrency: "USD",
	}
}

func hasViolation(verdict Verdict, code string) bool {
	for _, v := range verdict.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

func TestValidateTradeAllows(t *testing.T) {
	verdict := ValidateTrade(baseTradeInput())

	if !verdict.CanExecute {
		t.Fatalf("Expected clean trade to pass, got violations: %+v", verdict.Violations)
	}
	if verdict.RiskMetrics.RiskDollars != 100.00 {
		t.Errorf("Expected risk 100.00, got %v", verdict.RiskMetrics.RiskDollars)
	}
}

func TestValidateTradeRiskCeiling(t *testing.T) {
	input := baseTradeInput()
	input.RiskPercent = 6

	verdict := ValidateTrade(input)
	if verdict.CanExecute {
		t.Error("Expected 6% risk to be blocked")
	}
	if !hasViolation(verdict, ViolationRiskCeiling) {
		t.Errorf("Expected %s violation, got %+v", ViolationRiskCeiling, verdict.Violations)
	}
}

func TestValidateTradeCorrelation(t *testing.T) {
	// Open EURUSD BUY at 1.5%, candidate GBPUSD BUY at 1.0%. Both quote
	// in USD, so combined USD exposure is 2.5% against a 2.0% cap.
	input := baseTradeInput()
	input.Symbol = "GBPUSD"
	input.RiskPercent = 1.0
	input.MaxCurrencyExposure = 2.0
	input.OpenExposures = []database.OpenExposure{
		{Symbol: "EURUSD", Direction: "BUY", RiskPercent: 1.5},
	}

	verdict := ValidateTrade(input)
	if verdict.CanExecute {
		t.Fatal("Expected correlation violation to block the trade")
	}
	if !hasViolation(verdict, ViolationCorrelation) {
		t.Errorf("Expected %s violation, got %+v", ViolationCorrelation, verdict.Violations)
	}
}

func TestValidateTradeCorrelationSkipsUnsharedCurrency(t *testing.T) {
	input := baseTradeInput()
	input.Symbol = "EURJPY"
	input.RiskPercent = 1.0
	input.MaxCurrencyExposure = 2.0
	input.OpenExposures = []database.OpenExposure{
		{Symbol: "GBPUSD", Direction: "BUY", RiskPercent: 1.5},
	}

	verdict := ValidateTrade(input)
	if hasViolation(verdict, ViolationCorrelation) {
		t.Errorf("EURJPY shares no currency with GBPUSD, got %+v", verdict.Violations)
	}
}

func TestValidateTradeCorrelationIgnoresNonPairs(t *testing.T) {
	input := baseTradeInput()
	input.Symbol = "US30"
	input.OpenExposures = []database.OpenExposure{
		{Symbol: "EURUSD", Direction: "BUY", RiskPercent: 1.9},
	}

	verdict := ValidateTrade(input)
	if hasViolation(verdict, ViolationCorrelation) {
		t.Errorf("Index symbols are outside the correlation check, got %+v", verdict.Violations)
	}
}

func TestValidateTradeDailyLossLimit(t *testing.T) {
	input := baseTradeInput()
	input.RiskPercent = 2 // $200 candidate risk
	input.PropRules = &PropFirmRules{
		MaxDailyLossPercent: 5, // $500 budget
		CurrentDailyLoss:    350,
	}

	verdict := ValidateTrade(input)
	if verdict.CanExecute {
		t.Fatal("Expected daily loss breach to block the trade")
	}
	if !hasViolation(verdict, ViolationDailyLoss) {
		t.Errorf("Expected %s violation, got %+v", ViolationDailyLoss, verdict.Violations)
	}
	if verdict.RiskMetrics.RemainingDailyBudget == nil ||
		*verdict.RiskMetrics.RemainingDailyBudget != 150.00 {
		t.Errorf("Expected remaining daily budget 150.00, got %v", verdict.RiskMetrics.RemainingDailyBudget)
	}
}

func TestValidateTradeDrawdownLimit(t *testing.T) {
	input := baseTradeInput()
	input.RiskPercent = 2
	input.PropRules = &PropFirmRules{
		MaxTotalLossPercent:  10, // $1000 budget
		CurrentTotalDrawdown: 900,
	}

	verdict := ValidateTrade(input)
	if !hasViolation(verdict, ViolationTotalDrawdown) {
		t.Errorf("Expected %s violation, got %+v", ViolationTotalDrawdown, verdict.Violations)
	}
}

func TestValidateTradeLotAndOpenCountLimits(t *testing.T) {
	input := baseTradeInput()
	input.LotSize = 2.5
	input.OpenExposures = []database.OpenExposure{
		{Symbol: "GBPJPY", RiskPercent: 0.5},
		{Symbol: "AUDCAD", RiskPercent: 0.5},
	}
	input.PropRules = &PropFirmRules{
		MaxLotSize:    2.0,
		MaxOpenTrades: 2,
	}

	verdict := ValidateTrade(input)
	if !hasViolation(verdict, ViolationLotSize) {
		t.Errorf("Expected %s violation, got %+v", ViolationLotSize, verdict.Violations)
	}
	if !hasViolation(verdict, ViolationOpenTrades) {
		t.Errorf("Expected %s violation, got %+v", ViolationOpenTrades, verdict.Violations)
	}
}

func TestValidateTradeMinTradingDaysInformational(t *testing.T) {
	input := baseTradeInput()
	input.PropRules = &PropFirmRules{
		MinTradingDays:       10,
		TradingDaysCompleted: 3,
	}

	verdict := ValidateTrade(input)
	if !verdict.CanExecute {
		t.Errorf("Trading-days progress must not block trades, got %+v", verdict.Violations)
	}
	if len(verdict.Warnings) == 0 {
		t.Error("Expected an informational trading-days warning")
	}
}

func TestValidateTradeSetupLimits(t *testing.T) {
	input := baseTradeInput()
	input.RiskPercent = 2 // $200
	input.SetupLimits = &SetupLimits{
		MaxTradeRiskDollars:   100,
		MaxOrdersPerAsset:     2,
		OpenOrdersOnSymbol:    2,
		SecondsSinceLastOrder: 10,
	}
	input.SetupLimits.MinTimeBetweenOrdersSec = 60

	verdict := ValidateTrade(input)
	if !hasViolation(verdict, ViolationTradeBudget) {
		t.Errorf("Expected %s violation, got %+v", ViolationTradeBudget, verdict.Violations)
	}
	if !hasViolation(verdict, ViolationAssetOrderCap) {
		t.Errorf("Expected %s violation, got %+v", ViolationAssetOrderCap, verdict.Violations)
	}
	if !hasViolation(verdict, ViolationOrderSpacing) {
		t.Errorf("Expected %s violation, got %+v", ViolationOrderSpacing, verdict.Violations)
	}
}

func TestValidateTradeRewardRiskRatio(t *testing.T) {
	input := baseTradeInput()
	input.TakeProfits = []float64{1.1100} // 100 pips reward vs 50 pips risk

	verdict := ValidateTrade(input)
	if verdict.RiskMetrics.RewardRiskRatio == nil {
		t.Fatal("Expected reward:risk ratio with a take profit set")
	}
	if *verdict.RiskMetrics.RewardRiskRatio != 2.0 {
		t.Errorf("Expected ratio 2.0, got %v", *verdict.RiskMetrics.RewardRiskRatio)
	}
}

func TestSplitCurrencyPair(t *testing.T) {
	base, quote, ok := SplitCurrencyPair("EURUSD.m")
	if !ok || base != "EUR" || quote != "USD" {
		t.Errorf("Expected EUR/USD, got %s/%s ok=%v", base, quote, ok)
	}

	if _, _, ok := SplitCurrencyPair("US30"); ok {
		t.Error("Expected US30 to be rejected as a currency pair")
	}

	base, quote, ok = SplitCurrencyPair("XAUUSD")
	if !ok || base != "XAU" || quote != "USD" {
		t.Errorf("Expected XAU/USD, got %s/%s ok=%v", base, quote, ok)
	}
}

func TestApplyLockModeSoftDemotes(t *testing.T) {
	input := baseTradeInput()
	input.RiskPercent = 6

	verdict := ValidateTrade(input)
	if verdict.CanExecute {
		t.Fatal("Precondition failed: expected a blocking violation")
	}

	applied := ApplyLockMode(LockModeSoft, "acct", verdict, zerolog.Nop())
	if !applied.CanExecute {
		t.Error("SOFT mode must always allow execution")
	}
	if len(applied.Violations) != 0 {
		t.Errorf("Expected violations demoted to warnings, got %+v", applied.Violations)
	}
	if len(applied.Warnings) == 0 {
		t.Error("Expected demoted violations to appear as warnings")
	}
}

func TestApplyLockModeHardAndMedium(t *testing.T) {
	input := baseTradeInput()
	input.RiskPercent = 6
	verdict := ValidateTrade(input)

	for _, mode := range []string{LockModeHard, LockModeMedium} {
		applied := ApplyLockMode(mode, "acct", verdict, zerolog.Nop())
		if applied.CanExecute {
			t.Errorf("%s mode must leave the blocking verdict intact", mode)
		}
		if len(applied.Violations) != len(verdict.Violations) {
			t.Errorf("%s mode must not alter violations", mode)
		}
	}
}

func TestParseLockMode(t *testing.T) {
	if mode, err := ParseLockMode("soft"); err != nil || mode != LockModeSoft {
		t.Errorf("Expected soft to parse, got %v %v", mode, err)
	}
	if _, err := ParseLockMode("LENIENT"); err == nil {
		t.Error("Expected unknown mode to be rejected")
	}
}
