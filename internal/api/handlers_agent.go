package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"mt-trading-dashboard/internal/auth"
	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/events"
)

// requireAgentOrder loads the order in the path and verifies it belongs
// to the agent's account
func (s *Server) requireAgentOrder(c *gin.Context) (*database.TradeOrder, bool) {
	order, err := s.db.GetTradeOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "order not found")
		} else {
			s.logger.Error().Err(err).Msg("failed to load order")
			errorResponse(c, http.StatusInternalServerError, "failed to load order")
		}
		return nil, false
	}

	if order.AccountID != auth.GetAgentAccountID(c) {
		errorResponse(c, http.StatusForbidden, "order belongs to another account")
		return nil, false
	}

	return order, true
}

// handleAgentPollOrders returns the authorized orders waiting for
// execution on the agent's account
func (s *Server) handleAgentPollOrders(c *gin.Context) {
	accountID := auth.GetAgentAccountID(c)

	orders, err := s.db.ListPollableOrders(c.Request.Context(), accountID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to poll orders")
		errorResponse(c, http.StatusInternalServerError, "failed to poll orders")
		return
	}

	successResponse(c, orders)
}

type reportExecutionRequest struct {
	Ticket     *int64   `json:"ticket,omitempty"`
	FillPrice  *float64 `json:"fill_price,omitempty"`
	FailReason *string  `json:"fail_reason,omitempty"`
}

// handleAgentReportExecution records the broker-side execution result.
// A fail reason moves the order to FAILED, otherwise it becomes ACTIVE.
func (s *Server) handleAgentReportExecution(c *gin.Context) {
	order, ok := s.requireAgentOrder(c)
	if !ok {
		return
	}

	var req reportExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if req.FailReason == nil && (req.Ticket == nil || req.FillPrice == nil) {
		errorResponse(c, http.StatusBadRequest, "ticket and fill_price are required for a successful execution")
		return
	}

	err := s.db.RecordOrderExecution(c.Request.Context(), order.ID, req.Ticket, req.FillPrice, req.FailReason)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusConflict, "order is not awaiting execution")
			return
		}
		s.logger.Error().Err(err).Msg("failed to record execution")
		errorResponse(c, http.StatusInternalServerError, "failed to record execution")
		return
	}

	eventType := events.EventOrderExecuted
	data := map[string]interface{}{"order_id": order.ID}
	if req.FailReason != nil {
		eventType = events.EventOrderFailed
		data["fail_reason"] = *req.FailReason
	} else {
		data["ticket"] = *req.Ticket
		data["fill_price"] = *req.FillPrice
	}
	s.eventBus.Publish(events.Event{
		Type:      eventType,
		AccountID: order.AccountID,
		Data:      data,
	})

	successResponse(c, gin.H{"recorded": true})
}

type reportCloseRequest struct {
	ClosePrice  float64 `json:"close_price" binding:"required"`
	CloseReason string  `json:"close_reason" binding:"required"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// handleAgentReportClose records a position closure and feeds the
// realized P&L into the challenge counters
func (s *Server) handleAgentReportClose(c *gin.Context) {
	order, ok := s.requireAgentOrder(c)
	if !ok {
		return
	}

	var req reportCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	closed, err := s.db.RecordOrderClose(c.Request.Context(), order.ID, req.ClosePrice, req.CloseReason, req.RealizedPnL)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusConflict, "order is not open")
			return
		}
		s.logger.Error().Err(err).Msg("failed to record close")
		errorResponse(c, http.StatusInternalServerError, "failed to record close")
		return
	}

	if err := s.db.ApplyCloseFeedback(c.Request.Context(), order.AccountID, req.RealizedPnL); err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			s.logger.Error().Err(err).Str("account_id", order.AccountID).Msg("failed to apply close feedback")
		}
	}

	s.eventBus.Publish(events.Event{
		Type:      events.EventPositionClosed,
		AccountID: order.AccountID,
		Data: map[string]interface{}{
			"order_id":     closed.ID,
			"close_reason": req.CloseReason,
			"realized_pnl": req.RealizedPnL,
		},
	})

	successResponse(c, closed)
}

type reportViolationRequest struct {
	OrderID *string `json:"order_id,omitempty"`
	Rule    string  `json:"rule" binding:"required"`
	Details string  `json:"details"`
}

// handleAgentReportViolation persists a rule breach the agent detected
// terminal-side, independent of server validation
func (s *Server) handleAgentReportViolation(c *gin.Context) {
	accountID := auth.GetAgentAccountID(c)

	var req reportViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	violation := &database.AgentViolation{
		AccountID:  accountID,
		OrderID:    req.OrderID,
		Rule:       req.Rule,
		Details:    req.Details,
		ReportedAt: time.Now(),
	}

	if err := s.db.CreateAgentViolation(c.Request.Context(), violation); err != nil {
		s.logger.Error().Err(err).Msg("failed to record violation")
		errorResponse(c, http.StatusInternalServerError, "failed to record violation")
		return
	}

	s.logger.Warn().Str("account_id", accountID).Str("rule", req.Rule).Msg("agent reported violation")
	s.eventBus.Publish(events.Event{
		Type:      events.EventViolationReported,
		AccountID: accountID,
		Data: map[string]interface{}{
			"rule":    req.Rule,
			"details": req.Details,
		},
	})

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": violation})
}

type symbolSpecPayload struct {
	Symbol            string  `json:"symbol" binding:"required"`
	Digits            int     `json:"digits"`
	Point             float64 `json:"point"`
	ContractSize      float64 `json:"contract_size"`
	MinLot            float64 `json:"min_lot" binding:"required,gt=0"`
	MaxLot            float64 `json:"max_lot" binding:"required,gt=0"`
	LotStep           float64 `json:"lot_step" binding:"required,gt=0"`
	StopLevel         int     `json:"stop_level"`
	FreezeLevel       int     `json:"freeze_level"`
	TradeMode         string  `json:"trade_mode"`
	Leverage          int     `json:"leverage"`
	MarginInitial     float64 `json:"margin_initial"`
	MarginMaintenance float64 `json:"margin_maintenance"`
}

type symbolSyncRequest struct {
	Symbols []symbolSpecPayload `json:"symbols" binding:"required,min=1,dive"`
}

// handleAgentSymbolSync replaces the account's broker instrument list.
// The sync is full-replace so delisted instruments disappear.
func (s *Server) handleAgentSymbolSync(c *gin.Context) {
	accountID := auth.GetAgentAccountID(c)

	var req symbolSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now()
	specs := make([]*database.BrokerSymbolSpec, 0, len(req.Symbols))
	for _, payload := range req.Symbols {
		tradeMode := strings.ToUpper(payload.TradeMode)
		if tradeMode == "" {
			tradeMode = "FULL"
		}
		specs = append(specs, &database.BrokerSymbolSpec{
			AccountID:         accountID,
			Symbol:            payload.Symbol,
			Digits:            payload.Digits,
			Point:             payload.Point,
			ContractSize:      payload.ContractSize,
			MinLot:            payload.MinLot,
			MaxLot:            payload.MaxLot,
			LotStep:           payload.LotStep,
			StopLevel:         payload.StopLevel,
			FreezeLevel:       payload.FreezeLevel,
			TradeMode:         tradeMode,
			Leverage:          payload.Leverage,
			MarginInitial:     payload.MarginInitial,
			MarginMaintenance: payload.MarginMaintenance,
			SyncedAt:          now,
		})
	}

	if err := s.db.ReplaceSymbolSpecs(c.Request.Context(), accountID, specs); err != nil {
		s.logger.Error().Err(err).Msg("failed to sync symbols")
		errorResponse(c, http.StatusInternalServerError, "failed to sync symbols")
		return
	}

	s.logger.Info().Str("account_id", accountID).Int("count", len(specs)).Msg("symbols synced")
	s.eventBus.Publish(events.Event{
		Type:      events.EventSymbolsSynced,
		AccountID: accountID,
		Data:      map[string]interface{}{"count": len(specs)},
	})

	successResponse(c, gin.H{"synced": len(specs)})
}

type dayRolloverRequest struct {
	TradedToday bool `json:"traded_today"`
}

// handleAgentDayRollover resets the daily loss counter at the broker's
// day boundary. The agent observes the server midnight and reports
// whether any trade happened during the finished day, which credits a
// completed trading day on the challenge.
func (s *Server) handleAgentDayRollover(c *gin.Context) {
	accountID := auth.GetAgentAccountID(c)

	var req dayRolloverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.ResetDailyLoss(c.Request.Context(), accountID, req.TradedToday); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// No challenge setup on this account; nothing to roll over
			successResponse(c, gin.H{"reset": false})
			return
		}
		s.logger.Error().Err(err).Msg("failed to reset daily loss")
		errorResponse(c, http.StatusInternalServerError, "failed to reset daily loss")
		return
	}

	s.logger.Info().Str("account_id", accountID).
		Bool("traded_today", req.TradedToday).Msg("daily loss counter reset")
	successResponse(c, gin.H{"reset": true})
}

type reportBalancesRequest struct {
	Balance float64 `json:"balance" binding:"required"`
	Equity  float64 `json:"equity" binding:"required"`
}

// handleAgentReportBalances updates the account's balance snapshot
func (s *Server) handleAgentReportBalances(c *gin.Context) {
	accountID := auth.GetAgentAccountID(c)

	var req reportBalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.UpdateAccountBalances(c.Request.Context(), accountID, req.Balance, req.Equity); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "trading account not found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to update balances")
		errorResponse(c, http.StatusInternalServerError, "failed to update balances")
		return
	}

	successResponse(c, gin.H{"updated": true})
}
