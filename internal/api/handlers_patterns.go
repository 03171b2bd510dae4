package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mt-trading-dashboard/internal/events"
)

// handleDetectPatterns scans recent history for behavioral patterns and
// persists any newly recommended cooldown
func (s *Server) handleDetectPatterns(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	now := time.Now()

	history, err := s.db.ListTradeHistory(ctx, account.ID, now.Add(-24*time.Hour), 100)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load trade history")
		errorResponse(c, http.StatusInternalServerError, "failed to load trade history")
		return
	}

	loc := time.UTC
	if account.Timezone != "" {
		if parsed, err := time.LoadLocation(account.Timezone); err == nil {
			loc = parsed
		} else {
			s.logger.Warn().Str("account_id", account.ID).
				Str("timezone", account.Timezone).Msg("invalid account timezone, using UTC")
		}
	}

	result := s.detector.Detect(history, now, loc)

	if result.Cooldown.Active {
		until := now.Add(time.Duration(result.Cooldown.RemainingMinutes) * time.Minute)
		started, err := s.cooldowns.StartCooldown(ctx, account.ID, result.Cooldown.Reason, until)
		if err != nil {
			s.logger.Error().Err(err).Str("account_id", account.ID).Msg("failed to persist cooldown")
		} else if started {
			// Only a new or lengthened cooldown is announced; re-polling
			// an already active one stays quiet
			s.eventBus.Publish(events.Event{
				Type:      events.EventCooldownStarted,
				AccountID: account.ID,
				Data: map[string]interface{}{
					"reason":            result.Cooldown.Reason,
					"remaining_minutes": result.Cooldown.RemainingMinutes,
				},
			})
		}
	}

	// Merge any cooldown already persisted (possibly from an earlier,
	// longer recommendation)
	if stored, err := s.cooldowns.GetCooldown(ctx, account.ID); err != nil {
		s.logger.Error().Err(err).Msg("failed to read cooldown state")
	} else if stored != nil {
		remaining := int(time.Until(stored.Until).Minutes()) + 1
		if remaining > result.Cooldown.RemainingMinutes {
			result.Cooldown.Active = true
			result.Cooldown.RemainingMinutes = remaining
			result.Cooldown.Reason = stored.Reason
		}
	}

	successResponse(c, result)
}

// handleClearCooldown is an explicit operator override
func (s *Server) handleClearCooldown(c *gin.Context) {
	account, ok := s.requireAccount(c)
	if !ok {
		return
	}

	if err := s.cooldowns.ClearCooldown(c.Request.Context(), account.ID); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear cooldown")
		errorResponse(c, http.StatusInternalServerError, "failed to clear cooldown")
		return
	}

	s.logger.Info().Str("account_id", account.ID).Msg("cooldown cleared by user")
	successResponse(c, gin.H{"cleared": true})
}
