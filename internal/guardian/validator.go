package guardian

import (
	"fmt"
	"math"
	"strings"

	"mt-trading-dashboard/internal/database"
)

// DefaultMaxCurrencyExposure caps the summed risk percent across open
// positions sharing a currency when no account override is set
const DefaultMaxCurrencyExposure = 2.0

// Violation codes. Violations are always enumerated individually so the
// caller can explain exactly which rule blocked the trade.
const (
	ViolationRiskCeiling   = "RISK_CEILING"
	ViolationTradeBudget   = "TRADE_RISK_BUDGET"
	ViolationCorrelation   = "CORRELATION_EXPOSURE"
	ViolationDailyLoss     = "DAILY_LOSS_LIMIT"
	ViolationTotalDrawdown = "TOTAL_DRAWDOWN_LIMIT"
	ViolationLotSize       = "MAX_LOT_SIZE"
	ViolationOpenTrades    = "MAX_OPEN_TRADES"
	ViolationAssetOrderCap = "MAX_ORDERS_PER_ASSET"
	ViolationOrderSpacing  = "MIN_TIME_BETWEEN_ORDERS"
	ViolationCooldown      = "COOLDOWN_ACTIVE"
)

// Violation is a single broken rule
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PropFirmRules are the prop-firm limits sourced from the locked
// ChallengeSetup, together with the account's running counters
type PropFirmRules struct {
	MaxDailyLossPercent  float64 `json:"max_daily_loss_percent"`
	MaxTotalLossPercent  float64 `json:"max_total_loss_percent"`
	MaxLotSize           float64 `json:"max_lot_size"`
	MaxOpenTrades        int     `json:"max_open_trades"`
	MinTradingDays       int     `json:"min_trading_days"`
	CurrentDailyLoss     float64 `json:"current_daily_loss"`
	CurrentTotalDrawdown float64 `json:"current_total_drawdown"`
	TradingDaysCompleted int     `json:"trading_days_completed"`
}

// SetupLimits are the dollar budgets and order constraints from the
// locked ChallengeSetup
type SetupLimits struct {
	MaxTradeRiskDollars     float64 `json:"max_trade_risk_dollars"`
	DailyBudgetDollars      float64 `json:"daily_budget_dollars"`
	OverRollBudgetDollars   float64 `json:"over_roll_budget_dollars"`
	MaxOrdersPerAsset       int     `json:"max_orders_per_asset"`
	MinTimeBetweenOrdersSec int     `json:"min_time_between_orders_sec"`
	// OpenOrdersOnSymbol and SecondsSinceLastOrder are gathered by the
	// caller at validation time; SecondsSinceLastOrder < 0 means no
	// previous order exists.
	OpenOrdersOnSymbol    int `json:"open_orders_on_symbol"`
	SecondsSinceLastOrder int `json:"seconds_since_last_order"`
}

// TradeInput bundles the proposed trade and the account state it is
// validated against
type TradeInput struct {
	Symbol      string    `json:"symbol"`
	Direction   string    `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfits []float64 `json:"take_profits,omitempty"`
	RiskPercent float64   `json:"risk_percent"`
	LotSize     float64   `json:"lot_size"`

	AccountBalance  float64 `json:"account_balance"`
	AccountCurrency string  `json:"account_currency"`

	OpenExposures       []database.OpenExposure `json:"open_exposures"`
	MaxCurrencyExposure float64                 `json:"max_currency_exposure"`

	PropRules   *PropFirmRules `json:"prop_rules,omitempty"`
	SetupLimits *SetupLimits   `json:"setup_limits,omitempty"`
}

// RiskMetrics are the numbers the verdict was computed from
type RiskMetrics struct {
	RiskDollars            float64  `json:"risk_dollars"`
	RiskPercent            float64  `json:"risk_percent"`
	RemainingDailyBudget   *float64 `json:"remaining_daily_budget,omitempty"`
	RemainingOverallBudget *float64 `json:"remaining_overall_budget,omitempty"`
	RewardRiskRatio        *float64 `json:"reward_risk_ratio,omitempty"`
}

// Verdict is the validation outcome before lock-mode policy is applied
type Verdict struct {
	CanExecute  bool        `json:"can_execute"`
	Violations  []Violation `json:"violations"`
	Warnings    []string    `json:"warnings"`
	RiskMetrics RiskMetrics `json:"risk_metrics"`
}

// ValidateTrade combines per-trade risk, cross-position currency
// correlation and prop-firm limits into a single verdict. Pure function
// over its input; the caller fetches account state.
func ValidateTrade(input TradeInput) Verdict {
	verdict := Verdict{
		Violations: []Violation{},
		Warnings:   []string{},
	}

	riskDollars := roundCents(input.RiskPercent * input.AccountBalance / 100)
	verdict.RiskMetrics.RiskDollars = riskDollars
	verdict.RiskMetrics.RiskPercent = input.RiskPercent

	// Absolute per-trade ceiling, independent of any challenge rules
	if input.RiskPercent > MaxRiskPerTradeCeiling {
		verdict.Violations = append(verdict.Violations, Violation{
			Code: ViolationRiskCeiling,
			Message: fmt.Sprintf("trade risks %.2f%% of the account; the ceiling is %.0f%%",
				input.RiskPercent, MaxRiskPerTradeCeiling),
		})
	}

	if input.SetupLimits != nil {
		checkSetupLimits(&verdict, input, riskDollars)
	}

	checkCorrelation(&verdict, input)

	if input.PropRules != nil {
		checkPropFirmRules(&verdict, input, riskDollars)
	}

	if ratio := rewardRiskRatio(input); ratio != nil {
		verdict.RiskMetrics.RewardRiskRatio = ratio
		if *ratio < 1.0 {
			verdict.Warnings = append(verdict.Warnings, fmt.Sprintf(
				"reward:risk ratio %.2f is below 1.0", *ratio))
		}
	}

	verdict.CanExecute = len(verdict.Violations) == 0
	return verdict
}

func checkSetupLimits(verdict *Verdict, input TradeInput, riskDollars float64) {
	limits := input.SetupLimits

	if limits.MaxTradeRiskDollars > 0 && riskDollars > limits.MaxTradeRiskDollars {
		verdict.Violations = append(verdict.Violations, Violation{
			Code: ViolationTradeBudget,
			Message: fmt.Sprintf("trade risks $%.2f; the per-trade budget is $%.2f",
				riskDollars, limits.MaxTradeRiskDollars),
		})
	}

	if limits.MaxOrdersPerAsset > 0 && limits.OpenOrdersOnSymbol >= limits.MaxOrdersPerAsset {
		verdict.Violations = append(verdict.Violations, Violation{
			Code: ViolationAssetOrderCap,
			Message: fmt.Sprintf("%s already has %d of %d allowed orders",
				input.Symbol, limits.OpenOrdersOnSymbol, limits.MaxOrdersPerAsset),
		})
	}

	if limits.MinTimeBetweenOrdersSec > 0 && limits.SecondsSinceLastOrder >= 0 &&
		limits.SecondsSinceLastOrder < limits.MinTimeBetweenOrdersSec {
		verdict.Violations = append(verdict.Violations, Violation{
			Code: ViolationOrderSpacing,
			Message: fmt.Sprintf("last order was %ds ago; minimum spacing is %ds",
				limits.SecondsSinceLastOrder, limits.MinTimeBetweenOrdersSec),
		})
	}
}

// checkCorrelation caps aggregate directional exposure to a single
// currency across multiple instruments, not just per symbol
func checkCorrelation(verdict *Verdict, input TradeInput) {
	maxExposure := input.MaxCurrencyExposure
	if maxExposure <= 0 {
		maxExposure = DefaultMaxCurrencyExposure
	}

	base, quote, ok := SplitCurrencyPair(input.Symbol)
	if !ok {
		return // not a currency pair; correlation does not apply
	}

	for _, currency := range []string{base, quote} {
		total := input.RiskPercent
		for _, exposure := range input.OpenExposures {
			eBase, eQuote, ok := SplitCurrencyPair(exposure.Symbol)
			if !ok {
				continue
			}
			if eBase == currency || eQuote == currency {
				total += exposure.RiskPercent
			}
		}

		if total > maxExposure {
			verdict.Violations = append(verdict.Violations, Violation{
				Code: ViolationCorrelation,
				Message: fmt.Sprintf("combined %s exposure would reach %.2f%%, above the %.2f%% cap",
					currency, total, maxExposure),
			})
		}
	}
}

func checkPropFirmRules(verdict *Verdict, input TradeInput, riskDollars float64) {
	rules := input.PropRules

	if rules.MaxDailyLossPercent > 0 {
		dailyBudget := rules.MaxDailyLossPercent * input.AccountBalance / 100
		remaining := roundCents(dailyBudget - rules.CurrentDailyLoss)
		verdict.RiskMetrics.RemainingDailyBudget = &remaining

		if rules.CurrentDailyLoss+riskDollars > dailyBudget {
			verdict.Violations = append(verdict.Violations, Violation{
				Code: ViolationDailyLoss,
				Message: fmt.Sprintf("losing this trade would put daily loss at $%.2f, above the $%.2f limit",
					rules.CurrentDailyLoss+riskDollars, dailyBudget),
			})
		}
	}

	if rules.MaxTotalLossPercent > 0 {
		overallBudget := rules.MaxTotalLossPercent * input.AccountBalance / 100
		remaining := roundCents(overallBudget - rules.CurrentTotalDrawdown)
		verdict.RiskMetrics.RemainingOverallBudget = &remaining

		if rules.CurrentTotalDrawdown+riskDollars > overallBudget {
			verdict.Violations = append(verdict.Violations, Violation{
				Code: ViolationTotalDrawdown,
				Message: fmt.Sprintf("losing this trade would put total drawdown at $%.2f, above the $%.2f limit",
					rules.CurrentTotalDrawdown+riskDollars, overallBudget),
			})
		}
	}

	if rules.MaxLotSize > 0 && input.LotSize > rules.MaxLotSize {
		verdict.Violations = append(verdict.Violations, Violation{
			Code: ViolationLotSize,
			Message: fmt.Sprintf("lot size %.4f exceeds the challenge maximum %.4f",
				input.LotSize, rules.MaxLotSize),
		})
	}

	if rules.MaxOpenTrades > 0 && len(input.OpenExposures) >= rules.MaxOpenTrades {
		verdict.Violations = append(verdict.Violations, Violation{
			Code: ViolationOpenTrades,
			Message: fmt.Sprintf("%d positions already open; the challenge allows %d",
				len(input.OpenExposures), rules.MaxOpenTrades),
		})
	}

	// Informational only: trading-days progress gates payout, not trades
	if rules.MinTradingDays > 0 && rules.TradingDaysCompleted < rules.MinTradingDays {
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf(
			"%d of %d minimum trading days completed; not yet eligible for payout",
			rules.TradingDaysCompleted, rules.MinTradingDays))
	}
}

// rewardRiskRatio computes reward:risk from the nearest take profit
func rewardRiskRatio(input TradeInput) *float64 {
	if len(input.TakeProfits) == 0 || input.EntryPrice <= 0 || input.StopLoss <= 0 {
		return nil
	}

	risk := math.Abs(input.EntryPrice - input.StopLoss)
	if risk == 0 {
		return nil
	}

	reward := math.Abs(input.TakeProfits[0] - input.EntryPrice)
	ratio := math.Round(reward/risk*100) / 100
	return &ratio
}

// knownCurrencies are the currency codes recognized when splitting a
// symbol into its legs. Metals trade as currency pairs on MT platforms.
var knownCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true,
	"CAD": true, "AUD": true, "NZD": true, "SGD": true, "NOK": true,
	"SEK": true, "DKK": true, "PLN": true, "MXN": true, "ZAR": true,
	"XAU": true, "XAG": true,
}

// SplitCurrencyPair derives the base and quote currency of a symbol.
// Returns ok=false for instruments that are not currency pairs
// (indices, single stocks), which the correlation check skips.
func SplitCurrencyPair(symbol string) (base, quote string, ok bool) {
	canonical := canonicalSymbol(symbol)
	if len(canonical) != 6 {
		return "", "", false
	}

	base = strings.ToUpper(canonical[:3])
	quote = strings.ToUpper(canonical[3:])
	if !knownCurrencies[base] || !knownCurrencies[quote] {
		return "", "", false
	}
	return base, quote, true
}
