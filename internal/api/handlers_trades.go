package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/events"
	"mt-trading-dashboard/internal/guardian"
)

type tradeRequest struct {
	StandardSymbol string   `json:"standard_symbol" binding:"required"`
	Direction      string   `json:"direction" binding:"required,oneof=BUY SELL"`
	LotSize        float64  `json:"lot_size" binding:"required,gt=0"`
	EntryPrice     float64  `json:"entry_price"`
	CurrentPrice   float64  `json:"current_price"`
	StopLoss       float64  `json:"stop_loss" binding:"required,gt=0"`
	TakeProfit     *float64 `json:"take_profit,omitempty"`
	RiskPercent    float64  `json:"risk_percent" binding:"required,gt=0"`
}

// tradeEvaluation is the combined outcome of broker-level order checks
// and the risk verdict, after lock-mode policy
type tradeEvaluation struct {
	OrderValidation guardian.OrderValidation `json:"order_validation"`
	Verdict         guardian.Verdict         `json:"verdict"`
	LockMode        string                   `json:"lock_mode"`
}

// evaluateTrade runs the full validation pipeline against current
// account state. Callers that authorize an order must hold the account
// guard across this call and the order insert.
func (s *Server) evaluateTrade(ctx context.Context, account *database.TradingAccount, req tradeRequest) (*tradeEvaluation, error) {
	eval := &tradeEvaluation{LockMode: account.LockMode}

	eval.OrderValidation = s.resolver.ValidateOrderForExecution(ctx, guardian.OrderValidationInput{
		AccountID:      account.ID,
		StandardSymbol: req.StandardSymbol,
		LotSize:        req.LotSize,
		EntryPrice:     req.EntryPrice,
		CurrentPrice:   req.CurrentPrice,
		StopLoss:       req.StopLoss,
		Direction:      req.Direction,
	})

	exposures, err := s.db.ListOpenExposures(ctx, account.ID)
	if err != nil {
		return nil, err
	}

	input := guardian.TradeInput{
		Symbol:              req.StandardSymbol,
		Direction:           req.Direction,
		EntryPrice:          req.EntryPrice,
		StopLoss:            req.StopLoss,
		RiskPercent:         req.RiskPercent,
		LotSize:             req.LotSize,
		AccountBalance:      account.CurrentBalance,
		AccountCurrency:     account.Currency,
		OpenExposures:       exposures,
		MaxCurrencyExposure: account.MaxCurrencyExposure,
	}
	if input.MaxCurrencyExposure <= 0 {
		input.MaxCurrencyExposure = s.config.GuardianConfig.DefaultMaxCurrencyExposure
	}
	if req.TakeProfit != nil {
		input.TakeProfits = []float64{*req.TakeProfit}
	}

	setup, err := s.db.GetChallengeSetupByAccount(ctx, account.ID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}
	if setup != nil && setup.IsLocked {
		input.PropRules = &guardian.PropFirmRules{
			MaxDailyLossPercent:  setup.DailyMaxPercent,
			MaxTotalLossPercent:  setup.OverRollMaxPercent,
			MaxLotSize:           setup.MaxLotSize,
			MaxOpenTrades:        setup.MaxOpenTrades,
			MinTradingDays:       setup.MinTradingDays,
			CurrentDailyLoss:     setup.CurrentDailyLoss,
			CurrentTotalDrawdown: setup.CurrentTotalDrawdown,
			TradingDaysCompleted: setup.TradingDaysCompleted,
		}

		openOnSymbol, err := s.db.CountOpenOrdersForSymbol(ctx, account.ID, req.StandardSymbol)
		if err != nil {
			return nil, err
		}

		limits := &guardian.SetupLimits{
			MaxTradeRiskDollars:     setup.MaxTradeRiskDollars,
			DailyBudgetDollars:      setup.DailyBudgetDollars,
			OverRollBudgetDollars:   setup.OverRollBudgetDollars,
			MaxOrdersPerAsset:       setup.MaxOrdersPerAsset,
			MinTimeBetweenOrdersSec: setup.MinTimeBetweenOrdersSec,
			OpenOrdersOnSymbol:      openOnSymbol,
			SecondsSinceLastOrder:   -1,
		}
		if lastOrder, err := s.db.GetLastOrderTime(ctx, account.ID); err != nil {
			return nil, err
		} else if lastOrder != nil {
			limits.SecondsSinceLastOrder = int(time.Since(*lastOrder).Seconds())
		}
		input.SetupLimits = limits
	}

	verdict := guardian.ValidateTrade(input)

	// An active behavioral cooldown blocks new entries
	cooldown, err := s.cooldowns.GetCooldown(ctx, account.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ID).Msg("failed to read cooldown state")
	} else if cooldown != nil {
		remaining := int(time.Until(cooldown.Until).Minutes()) + 1
		verdict.Violations = append(verdict.Violations, guardian.Violation{
			Code: guardian.ViolationCooldown,
			Message: fmt.Sprintf("trading cooldown active for %d more minutes (%s)",
				remaining, cooldown.Reason),
		})
		verdict.CanExecute = false
	}

	eval.Verdict = guardian.ApplyLockMode(account.LockMode, account.ID, verdict, s.logger)
	if eval.Verdict.CanExecute != verdict.CanExecute {
		s.eventBus.Publish(events.Event{
			Type:      events.EventPolicyOverride,
			AccountID: account.ID,
			Data: map[string]interface{}{
				"lock_mode": account.LockMode,
				"symbol":    req.StandardSymbol,
			},
		})
	}

	return eval, nil
}

// handleValidateTrade runs the validation pipeline without creating an
// order
func (s *Server) handleValidateTrade(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	eval, err := s.evaluateTrade(c.Request.Context(), account, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("trade validation failed")
		errorResponse(c, http.StatusInternalServerError, "trade validation failed")
		return
	}

	successResponse(c, eval)
}

// handleCreateOrder validates and, if the verdict allows, creates a
// PENDING order for the agent to poll. The per-account guard is held
// across validation and insert so two concurrent requests cannot both
// pass limits only one of them fits within.
func (s *Server) handleCreateOrder(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	s.guard.Lock(account.ID)
	defer s.guard.Unlock(account.ID)

	eval, err := s.evaluateTrade(c.Request.Context(), account, req)
	if err != nil {
		s.logger.Error().Err(err).Msg("trade validation failed")
		errorResponse(c, http.StatusInternalServerError, "trade validation failed")
		return
	}

	if !eval.OrderValidation.Valid || !eval.Verdict.CanExecute {
		s.eventBus.Publish(events.Event{
			Type:      events.EventOrderRejected,
			AccountID: account.ID,
			Data: map[string]interface{}{
				"symbol":     req.StandardSymbol,
				"violations": eval.Verdict.Violations,
				"errors":     eval.OrderValidation.Errors,
			},
		})
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      true,
			"message":    "trade rejected",
			"evaluation": eval,
		})
		return
	}

	order := &database.TradeOrder{
		ID:             uuid.New().String(),
		AccountID:      account.ID,
		StandardSymbol: req.StandardSymbol,
		BrokerSymbol:   eval.OrderValidation.BrokerSymbol,
		Direction:      req.Direction,
		LotSize:        eval.OrderValidation.NormalizedLotSize,
		EntryPrice:     req.EntryPrice,
		StopLoss:       req.StopLoss,
		TakeProfit:     req.TakeProfit,
		RiskDollars:    eval.Verdict.RiskMetrics.RiskDollars,
		RiskPercent:    req.RiskPercent,
		Status:         database.OrderStatusPending,
	}

	if err := s.db.CreateTradeOrder(c.Request.Context(), order); err != nil {
		s.logger.Error().Err(err).Msg("failed to create trade order")
		errorResponse(c, http.StatusInternalServerError, "failed to create trade order")
		return
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventOrderAuthorized,
		AccountID: account.ID,
		Data: map[string]interface{}{
			"order_id":      order.ID,
			"broker_symbol": order.BrokerSymbol,
			"lot_size":      order.LotSize,
		},
	})

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"order":      order,
			"evaluation": eval,
		},
	})
}

func (s *Server) handleListOrders(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	orders, err := s.db.ListOrdersByAccount(c.Request.Context(), account.ID, 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list orders")
		errorResponse(c, http.StatusInternalServerError, "failed to list orders")
		return
	}
	successResponse(c, orders)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	orderID := c.Param("orderId")
	order, err := s.db.GetTradeOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "order not found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to load order")
		errorResponse(c, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order.AccountID != account.ID {
		errorResponse(c, http.StatusForbidden, "order belongs to another account")
		return
	}

	if err := s.db.CancelTradeOrder(c.Request.Context(), orderID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusConflict, "order can no longer be canceled")
			return
		}
		s.logger.Error().Err(err).Msg("failed to cancel order")
		errorResponse(c, http.StatusInternalServerError, "failed to cancel order")
		return
	}

	successResponse(c, gin.H{"canceled": true})
}

func (s *Server) handleListViolations(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	violations, err := s.db.ListAgentViolations(c.Request.Context(), account.ID, 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list violations")
		errorResponse(c, http.StatusInternalServerError, "failed to list violations")
		return
	}
	successResponse(c, violations)
}
