package database

import (
	"time"
)

// Trade order status lifecycle. PENDING and APPROVED orders are pollable
// by the execution agent; FAILED and CANCELED are absorbing.
const (
	OrderStatusPending  = "PENDING"
	OrderStatusApproved = "APPROVED"
	OrderStatusActive   = "ACTIVE"
	OrderStatusExecuted = "EXECUTED"
	OrderStatusClosed   = "CLOSED"
	OrderStatusFailed   = "FAILED"
	OrderStatusCanceled = "CANCELED"
)

// Symbol mapping source constants
const (
	MappingSourceManual = "manual" // Operator-curated mapping
	MappingSourceAuto   = "auto"   // Confirmed from a suggestion
)

// User represents a dashboard user
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TradingAccount represents a linked MT4/MT5 account
type TradingAccount struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Login          string     `json:"login"`
	Broker         string     `json:"broker"`
	Server         string     `json:"server"`
	Platform       string     `json:"platform"` // MT4 or MT5
	StartBalance   float64    `json:"start_balance"`
	CurrentBalance float64    `json:"current_balance"`
	Equity         float64    `json:"equity"`
	Currency       string     `json:"currency"`
	LockMode       string     `json:"lock_mode"` // HARD, MEDIUM, SOFT
	// MaxCurrencyExposure overrides the global correlation cap when > 0
	MaxCurrencyExposure float64    `json:"max_currency_exposure"`
	Timezone            string     `json:"timezone"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// ChallengeSetup holds the locked challenge configuration for an account.
// Once is_locked only the running counters change.
type ChallengeSetup struct {
	ID        int64  `json:"id"`
	AccountID string `json:"account_id"`
	Provider  string `json:"provider"`
	Phase     string `json:"phase"`

	// Percentage rules
	OverRollMaxPercent      float64 `json:"over_roll_max_percent"`
	DailyMaxPercent         float64 `json:"daily_max_percent"`
	UserRiskPerTradePercent float64 `json:"user_risk_per_trade_percent"`
	UserRiskPerAssetPercent float64 `json:"user_risk_per_asset_percent"`
	MaxOrdersPerAsset       int     `json:"max_orders_per_asset"`
	MinTimeBetweenOrdersSec int     `json:"min_time_between_orders_sec"`

	// Prop-firm limits, zero when the provider imposes none
	MaxLotSize     float64 `json:"max_lot_size"`
	MaxOpenTrades  int     `json:"max_open_trades"`
	MinTradingDays int     `json:"min_trading_days"`

	// Derived dollar budgets
	DailyBudgetDollars        float64 `json:"daily_budget_dollars"`
	OverRollBudgetDollars     float64 `json:"over_roll_budget_dollars"`
	MaxTradeRiskDollars       float64 `json:"max_trade_risk_dollars"`
	MaxAssetAllocationDollars float64 `json:"max_asset_allocation_dollars"`

	Status   string `json:"status"` // LOCKED from creation
	IsLocked bool   `json:"is_locked"`

	// Running counters maintained by the execution-feedback pipeline
	CurrentDailyLoss     float64 `json:"current_daily_loss"`
	CurrentTotalDrawdown float64 `json:"current_total_drawdown"`
	CurrentProfit        float64 `json:"current_profit"`
	TradingDaysCompleted int     `json:"trading_days_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BrokerSymbolSpec holds synced broker instrument specifications,
// keyed by (account_id, symbol). Read-only from the Guardian's side.
type BrokerSymbolSpec struct {
	ID                int64     `json:"id"`
	AccountID         string    `json:"account_id"`
	Symbol            string    `json:"symbol"`
	Digits            int       `json:"digits"`
	Point             float64   `json:"point"`
	ContractSize      float64   `json:"contract_size"`
	MinLot            float64   `json:"min_lot"`
	MaxLot            float64   `json:"max_lot"`
	LotStep           float64   `json:"lot_step"`
	StopLevel         int       `json:"stop_level"`
	FreezeLevel       int       `json:"freeze_level"`
	TradeMode         string    `json:"trade_mode"`
	Leverage          int       `json:"leverage"`
	MarginInitial     float64   `json:"margin_initial"`
	MarginMaintenance float64   `json:"margin_maintenance"`
	SyncedAt          time.Time `json:"synced_at"`
}

// SymbolMapping maps a standard symbol to the broker's symbol for an account
type SymbolMapping struct {
	ID             int64     `json:"id"`
	AccountID      string    `json:"account_id"`
	StandardSymbol string    `json:"standard_symbol"`
	BrokerSymbol   string    `json:"broker_symbol"`
	Category       string    `json:"category"` // forex, metals, indices, crypto
	Confidence     float64   `json:"confidence"`
	Source         string    `json:"source"` // manual, auto
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TradeOrder is an order authorized by the Guardian and executed by the agent
type TradeOrder struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	StandardSymbol string     `json:"standard_symbol"`
	BrokerSymbol   string     `json:"broker_symbol"`
	Direction      string     `json:"direction"` // BUY or SELL
	LotSize        float64    `json:"lot_size"`
	EntryPrice     float64    `json:"entry_price"`
	StopLoss       float64    `json:"stop_loss"`
	TakeProfit     *float64   `json:"take_profit,omitempty"`
	RiskDollars    float64    `json:"risk_dollars"`
	RiskPercent    float64    `json:"risk_percent"`
	Status         string     `json:"status"`
	Ticket         *int64     `json:"ticket,omitempty"`
	FillPrice      *float64   `json:"fill_price,omitempty"`
	FailReason     *string    `json:"fail_reason,omitempty"`
	ClosePrice     *float64   `json:"close_price,omitempty"`
	CloseReason    *string    `json:"close_reason,omitempty"`
	RealizedPnL    *float64   `json:"realized_pnl,omitempty"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// OpenExposure is a read projection of an open position used by the
// correlation check
type OpenExposure struct {
	Symbol      string  `json:"symbol"`
	Direction   string  `json:"direction"`
	RiskPercent float64 `json:"risk_percent"`
}

// AgentViolation is a rule breach the agent detected terminal-side
// (e.g. manual SL/TP tampering), persisted independently of validation
type AgentViolation struct {
	ID         int64     `json:"id"`
	AccountID  string    `json:"account_id"`
	OrderID    *string   `json:"order_id,omitempty"`
	Rule       string    `json:"rule"`
	Details    string    `json:"details"`
	ReportedAt time.Time `json:"reported_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// AgentCredential is a per-account API key for the polling agent.
// Only the SHA-256 hash of the key is stored.
type AgentCredential struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"account_id"`
	Label      string     `json:"label"`
	KeyHash    string     `json:"-"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
