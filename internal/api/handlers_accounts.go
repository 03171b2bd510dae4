package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mt-trading-dashboard/internal/auth"
	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/guardian"
	"mt-trading-dashboard/internal/vault"
)

func (s *Server) handleRegister(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.authService.Register(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			errorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, auth.ErrEmailExists) {
			errorResponse(c, http.StatusConflict, auth.ErrEmailExists.Message)
			return
		}
		s.logger.Error().Err(err).Msg("registration failed")
		errorResponse(c, http.StatusInternalServerError, "failed to register user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": user})
}

func (s *Server) handleLogin(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.authService.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			errorResponse(c, http.StatusUnauthorized, auth.ErrInvalidCredentials.Message)
			return
		}
		s.logger.Error().Err(err).Msg("login failed")
		errorResponse(c, http.StatusInternalServerError, "failed to log in")
		return
	}

	successResponse(c, resp)
}

// requireAccount loads the account in the path and verifies the caller
// owns it. Writes the error response itself on failure.
func (s *Server) requireAccount(c *gin.Context) (*database.TradingAccount, bool) {
	account, err := s.db.GetTradingAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "trading account not found")
		} else {
			s.logger.Error().Err(err).Msg("failed to load trading account")
			errorResponse(c, http.StatusInternalServerError, "failed to load trading account")
		}
		return nil, false
	}

	if account.UserID != auth.GetUserID(c) {
		errorResponse(c, http.StatusForbidden, "account belongs to another user")
		return nil, false
	}

	return account, true
}

type createAccountRequest struct {
	Login            string  `json:"login" binding:"required"`
	Broker           string  `json:"broker" binding:"required"`
	Server           string  `json:"server" binding:"required"`
	Platform         string  `json:"platform" binding:"required,oneof=MT4 MT5"`
	StartBalance     float64 `json:"start_balance" binding:"required,gt=0"`
	Currency         string  `json:"currency"`
	Timezone         string  `json:"timezone"`
	LockMode         string  `json:"lock_mode"`
	InvestorPassword string  `json:"investor_password"`
}

func (s *Server) handleCreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	lockMode := req.LockMode
	if lockMode == "" {
		lockMode = guardian.LockModeHard
	}
	parsed, err := guardian.ParseLockMode(lockMode)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	account := &database.TradingAccount{
		ID:             uuid.New().String(),
		UserID:         auth.GetUserID(c),
		Login:          req.Login,
		Broker:         req.Broker,
		Server:         req.Server,
		Platform:       req.Platform,
		StartBalance:   req.StartBalance,
		CurrentBalance: req.StartBalance,
		Equity:         req.StartBalance,
		Currency:       currency,
		LockMode:       parsed,
		Timezone:       req.Timezone,
	}

	if err := s.db.CreateTradingAccount(c.Request.Context(), account); err != nil {
		s.logger.Error().Err(err).Msg("failed to create trading account")
		errorResponse(c, http.StatusInternalServerError, "failed to create trading account")
		return
	}

	if req.InvestorPassword != "" && s.vaultClient != nil {
		cred := vault.BrokerCredential{
			Login:            req.Login,
			InvestorPassword: req.InvestorPassword,
			Server:           req.Server,
		}
		if err := s.vaultClient.StoreCredential(c.Request.Context(), account.ID, cred); err != nil {
			s.logger.Error().Err(err).Str("account_id", account.ID).Msg("failed to store broker credential")
		}
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "data": account})
}

func (s *Server) handleListAccounts(c *gin.Context) {
	accounts, err := s.db.ListTradingAccounts(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list trading accounts")
		errorResponse(c, http.StatusInternalServerError, "failed to list trading accounts")
		return
	}
	successResponse(c, accounts)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}
	successResponse(c, account)
}

func (s *Server) handleDeleteAccount(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	if err := s.db.SoftDeleteTradingAccount(c.Request.Context(), account.ID); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete trading account")
		errorResponse(c, http.StatusInternalServerError, "failed to delete trading account")
		return
	}

	if s.vaultClient != nil {
		if err := s.vaultClient.DeleteCredential(c.Request.Context(), account.ID); err != nil {
			s.logger.Error().Err(err).Str("account_id", account.ID).Msg("failed to delete broker credential")
		}
	}

	successResponse(c, gin.H{"deleted": true})
}

type setLockModeRequest struct {
	LockMode string `json:"lock_mode" binding:"required"`
}

func (s *Server) handleSetLockMode(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req setLockModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := guardian.ParseLockMode(req.LockMode)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.db.UpdateAccountLockMode(c.Request.Context(), account.ID, mode); err != nil {
		s.logger.Error().Err(err).Msg("failed to update lock mode")
		errorResponse(c, http.StatusInternalServerError, "failed to update lock mode")
		return
	}

	s.logger.Info().Str("account_id", account.ID).
		Str("from", account.LockMode).Str("to", mode).Msg("lock mode changed")

	successResponse(c, gin.H{"lock_mode": mode})
}

type createAgentKeyRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleCreateAgentKey(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req createAgentKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Label == "" {
		req.Label = "agent"
	}

	plaintext, cred, err := auth.GenerateAgentKey(c.Request.Context(), s.db, account.ID, req.Label)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to create agent key")
		errorResponse(c, http.StatusInternalServerError, "failed to create agent key")
		return
	}

	// The plaintext key is shown exactly once
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"credential": cred,
			"api_key":    plaintext,
		},
	})
}

func (s *Server) handleRevokeAgentKey(c *gin.Context) {
	if _, ok := s.requireAccount(c); !ok {
		return
	}

	if err := s.db.RevokeAgentCredential(c.Request.Context(), c.Param("keyId")); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "agent key not found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to revoke agent key")
		errorResponse(c, http.StatusInternalServerError, "failed to revoke agent key")
		return
	}

	successResponse(c, gin.H{"revoked": true})
}
