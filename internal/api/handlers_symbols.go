package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/guardian"
)

func (s *Server) handleListSymbolSpecs(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	specs, err := s.db.ListSymbolSpecs(c.Request.Context(), account.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list symbol specs")
		errorResponse(c, http.StatusInternalServerError, "failed to list symbol specs")
		return
	}
	successResponse(c, specs)
}

func (s *Server) handleListMappings(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	mappings, err := s.db.ListSymbolMappings(c.Request.Context(), account.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list symbol mappings")
		errorResponse(c, http.StatusInternalServerError, "failed to list symbol mappings")
		return
	}
	successResponse(c, mappings)
}

type upsertMappingRequest struct {
	StandardSymbol string  `json:"standard_symbol" binding:"required"`
	BrokerSymbol   string  `json:"broker_symbol" binding:"required"`
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
	Source         string  `json:"source"`
}

func (s *Server) handleUpsertMapping(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	var req upsertMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	source := req.Source
	if source == "" {
		source = database.MappingSourceManual
	}
	if source != database.MappingSourceManual && source != database.MappingSourceAuto {
		errorResponse(c, http.StatusBadRequest, "source must be manual or auto")
		return
	}

	mapping := &database.SymbolMapping{
		AccountID:      account.ID,
		StandardSymbol: strings.ToUpper(req.StandardSymbol),
		BrokerSymbol:   req.BrokerSymbol,
		Category:       req.Category,
		Confidence:     req.Confidence,
		Source:         source,
	}

	if err := s.db.UpsertSymbolMapping(c.Request.Context(), mapping); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusUnprocessableEntity,
				"broker symbol has no synced specification; run a symbol sync first")
			return
		}
		s.logger.Error().Err(err).Msg("failed to upsert symbol mapping")
		errorResponse(c, http.StatusInternalServerError, "failed to save symbol mapping")
		return
	}

	successResponse(c, mapping)
}

func (s *Server) handleDeleteMapping(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	if err := s.db.DeleteSymbolMapping(c.Request.Context(), account.ID, symbol); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "mapping not found")
			return
		}
		s.logger.Error().Err(err).Msg("failed to delete symbol mapping")
		errorResponse(c, http.StatusInternalServerError, "failed to delete symbol mapping")
		return
	}

	successResponse(c, gin.H{"deleted": true})
}

// handleSuggestMappings proposes broker symbols for an unmapped standard
// symbol. Suggestions are advisory; nothing is persisted here.
func (s *Server) handleSuggestMappings(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		errorResponse(c, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	specs, err := s.db.ListSymbolSpecs(c.Request.Context(), account.ID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list symbol specs")
		errorResponse(c, http.StatusInternalServerError, "failed to list symbol specs")
		return
	}

	suggestions := guardian.SuggestMappings(symbol, specs)
	successResponse(c, gin.H{
		"standard_symbol": symbol,
		"suggestions":     suggestions,
	})
}
