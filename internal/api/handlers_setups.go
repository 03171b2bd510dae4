package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/events"
	"mt-trading-dashboard/internal/guardian"
)

type setupRequest struct {
	Provider                string  `json:"provider" binding:"required"`
	Phase                   string  `json:"phase" binding:"required"`
	OverRollMaxPercent      float64 `json:"over_roll_max_percent" binding:"required,gt=0"`
	DailyMaxPercent         float64 `json:"daily_max_percent" binding:"required,gt=0"`
	UserRiskPerTradePercent float64 `json:"user_risk_per_trade_percent" binding:"required,gt=0"`
	UserRiskPerAssetPercent float64 `json:"user_risk_per_asset_percent" binding:"required,gt=0"`
	MaxOrdersPerAsset       int     `json:"max_orders_per_asset"`
	MinTimeBetweenOrdersSec int     `json:"min_time_between_orders_sec"`
	MaxLotSize              float64 `json:"max_lot_size"`
	MaxOpenTrades           int     `json:"max_open_trades"`
	MinTradingDays          int     `json:"min_trading_days"`
}

func (r setupRequest) toInput(accountSize float64) guardian.SetupInput {
	return guardian.SetupInput{
		Provider:                r.Provider,
		Phase:                   r.Phase,
		AccountSize:             accountSize,
		OverRollMaxPercent:      r.OverRollMaxPercent,
		DailyMaxPercent:         r.DailyMaxPercent,
		UserRiskPerTradePercent: r.UserRiskPerTradePercent,
		UserRiskPerAssetPercent: r.UserRiskPerAssetPercent,
		MaxOrdersPerAsset:       r.MaxOrdersPerAsset,
		MinTimeBetweenOrdersSec: r.MinTimeBetweenOrdersSec,
	}
}

// handlePreviewSetup validates the wizard input and returns derived
// budgets without persisting anything
func (s *Server) handlePreviewSetup(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	input := req.toInput(account.StartBalance)
	validation := guardian.ValidateSetup(input)
	derived := guardian.CalculateDerivedValues(input)

	successResponse(c, gin.H{
		"validation": validation,
		"derived":    derived,
	})
}

// newLockedSetup builds the persistent record for a validated setup.
// Setups lock at creation; enforcement starts with the first trade and
// there is no separate lock step or unlock transition.
func newLockedSetup(accountID string, req setupRequest, derived guardian.DerivedValues) *database.ChallengeSetup {
	return &database.ChallengeSetup{
		AccountID:                 accountID,
		Provider:                  req.Provider,
		Phase:                     req.Phase,
		OverRollMaxPercent:        req.OverRollMaxPercent,
		DailyMaxPercent:           req.DailyMaxPercent,
		UserRiskPerTradePercent:   req.UserRiskPerTradePercent,
		UserRiskPerAssetPercent:   req.UserRiskPerAssetPercent,
		MaxOrdersPerAsset:         req.MaxOrdersPerAsset,
		MinTimeBetweenOrdersSec:   req.MinTimeBetweenOrdersSec,
		MaxLotSize:                req.MaxLotSize,
		MaxOpenTrades:             req.MaxOpenTrades,
		MinTradingDays:            req.MinTradingDays,
		DailyBudgetDollars:        derived.DailyBudgetDollars,
		OverRollBudgetDollars:     derived.OverRollBudgetDollars,
		MaxTradeRiskDollars:       derived.MaxTradeRiskDollars,
		MaxAssetAllocationDollars: derived.MaxAssetAllocationDollars,
		Status:                    guardian.SetupStatusLocked,
		IsLocked:                  true,
	}
}

// handleCreateSetup persists a validated setup, locked immediately.
// Creation is all-or-nothing: any validation error rejects the whole
// input, and a created setup is already enforced on the next trade.
func (s *Server) handleCreateSetup(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	input := req.toInput(account.StartBalance)
	validation := guardian.ValidateSetup(input)
	if !validation.IsValid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      true,
			"message":    "setup validation failed",
			"validation": validation,
		})
		return
	}

	setup := newLockedSetup(account.ID, req, guardian.CalculateDerivedValues(input))

	if err := s.db.CreateChallengeSetup(c.Request.Context(), setup); err != nil {
		if errors.Is(err, database.ErrSetupExists) {
			errorResponse(c, http.StatusConflict, "account already has a challenge setup; end it before creating a new one")
			return
		}
		s.logger.Error().Err(err).Msg("failed to create challenge setup")
		errorResponse(c, http.StatusInternalServerError, "failed to create challenge setup")
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventSetupLocked,
		AccountID: account.ID,
		Data: map[string]interface{}{
			"provider": setup.Provider,
			"phase":    setup.Phase,
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"setup":    setup,
			"warnings": validation.Warnings,
		},
	})
}

func (s *Server) handleGetSetup(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	setup, err := s.db.GetChallengeSetupByAccount(c.Request.Context(), account.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "no challenge setup for this account")
			return
		}
		s.logger.Error().Err(err).Msg("failed to get challenge setup")
		errorResponse(c, http.StatusInternalServerError, "failed to get challenge setup")
		return
	}

	successResponse(c, setup)
}

// handleEndChallenge deletes the setup so a new one can be created
func (s *Server) handleEndChallenge(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	if err := s.db.EndChallenge(c.Request.Context(), account.ID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "no challenge setup for this account")
			return
		}
		s.logger.Error().Err(err).Msg("failed to end challenge")
		errorResponse(c, http.StatusInternalServerError, "failed to end challenge")
		return
	}

	successResponse(c, gin.H{"ended": true})
}
