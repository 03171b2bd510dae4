// Package patterns detects emotionally-driven trading behavior in
// recent trade history and recommends cooldowns before the next entry.
package patterns

import (
	"fmt"
	"math"
	"sort"
	"time"

	"mt-trading-dashboard/internal/database"
)

// PatternType identifies a behavioral trading pattern
type PatternType string

const (
	RevengeTrading    PatternType = "revenge_trading"
	Overtrading       PatternType = "overtrading"
	ConsecutiveLosses PatternType = "consecutive_losses"
	HighFrequency     PatternType = "high_frequency"
	OffHoursTrading   PatternType = "off_hours_trading"
)

// Severity levels, in escalating order
const (
	SeverityOK       = "OK"
	SeverityWarning  = "WARNING"
	SeverityDanger   = "DANGER"
	SeverityCritical = "CRITICAL"
)

var severityRank = map[string]int{
	SeverityOK:       0,
	SeverityWarning:  1,
	SeverityDanger:   2,
	SeverityCritical: 3,
}

// DetectedPattern is one matched behavioral pattern
type DetectedPattern struct {
	Type            PatternType `json:"type"`
	Severity        string      `json:"severity"`
	Message         string      `json:"message"`
	CooldownMinutes int         `json:"cooldown_minutes"`
}

// CooldownStatus describes the recommended and currently active cooldown
type CooldownStatus struct {
	RecommendedMinutes int    `json:"recommended_minutes"`
	Active             bool   `json:"active"`
	RemainingMinutes   int    `json:"remaining_minutes"`
	Reason             string `json:"reason,omitempty"`
}

// DetectionResult is the full output of a pattern scan
type DetectionResult struct {
	Detected bool              `json:"detected"`
	Patterns []DetectedPattern `json:"patterns"`
	Warnings []string          `json:"warnings"`
	Severity string            `json:"severity"`
	Cooldown CooldownStatus    `json:"cooldown"`
}

// Detector scans trade history for behavioral patterns
type Detector struct {
	tradingHourStart int
	tradingHourEnd   int
}

// NewDetector creates a new behavioral pattern detector. Hours bound the
// normal trading window in the account's local time.
func NewDetector(tradingHourStart, tradingHourEnd int) *Detector {
	if tradingHourStart < 0 || tradingHourEnd <= tradingHourStart || tradingHourEnd > 24 {
		tradingHourStart, tradingHourEnd = 8, 18
	}
	return &Detector{
		tradingHourStart: tradingHourStart,
		tradingHourEnd:   tradingHourEnd,
	}
}

// Detect scans the account's trade history against all behavioral
// heuristics. loc is the account's local timezone for the day boundary
// and off-hours window.
func (d *Detector) Detect(history []database.TradeHistoryEntry, now time.Time, loc *time.Location) DetectionResult {
	if loc == nil {
		loc = time.UTC
	}
	localNow := now.In(loc)

	result := DetectionResult{
		Patterns: []DetectedPattern{},
		Warnings: []string{},
		Severity: SeverityOK,
	}

	closed := closedTrades(history)

	if p := d.checkRevengeTrading(history, closed); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}
	if p := d.checkOvertrading(history, now); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}
	if p := d.checkConsecutiveLosses(closed); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}
	if p := d.checkHighFrequency(history, localNow, loc); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}
	if p := d.checkOffHours(localNow); p != nil {
		result.Patterns = append(result.Patterns, *p)
	}

	for _, pattern := range result.Patterns {
		result.Warnings = append(result.Warnings, pattern.Message)
		if severityRank[pattern.Severity] > severityRank[result.Severity] {
			result.Severity = pattern.Severity
		}
		if pattern.CooldownMinutes > result.Cooldown.RecommendedMinutes {
			result.Cooldown.RecommendedMinutes = pattern.CooldownMinutes
			result.Cooldown.Reason = string(pattern.Type)
		}
	}

	result.Detected = len(result.Patterns) > 0

	// A cooldown is active while now is inside the window that started
	// at the last closed trade
	if result.Cooldown.RecommendedMinutes > 0 {
		if last := lastClosedTime(closed); last != nil {
			until := last.Add(time.Duration(result.Cooldown.RecommendedMinutes) * time.Minute)
			if now.Before(until) {
				result.Cooldown.Active = true
				result.Cooldown.RemainingMinutes = int(math.Ceil(until.Sub(now).Minutes()))
			}
		}
	}

	return result
}

// checkRevengeTrading flags a position opened within 15 minutes of a
// losing close. The revenge position counts whether it is still open or
// was itself closed since; closed is sorted newest-close first, so the
// most recent qualifying loss reports.
func (d *Detector) checkRevengeTrading(history, closed []database.TradeHistoryEntry) *DetectedPattern {
	for _, loss := range closed {
		if loss.RealizedPnL == nil || *loss.RealizedPnL >= 0 {
			continue
		}
		for _, trade := range history {
			gap := trade.OpenedAt.Sub(*loss.ClosedAt)
			if gap >= 0 && gap <= 15*time.Minute {
				return &DetectedPattern{
					Type:     RevengeTrading,
					Severity: SeverityDanger,
					Message: fmt.Sprintf("position opened %d minutes after a $%.2f loss",
						int(gap.Minutes()), -*loss.RealizedPnL),
					CooldownMinutes: 30,
				}
			}
		}
	}
	return nil
}

// checkOvertrading flags 3 or more positions opened in the last 30
// minutes
func (d *Detector) checkOvertrading(history []database.TradeHistoryEntry, now time.Time) *DetectedPattern {
	cutoff := now.Add(-30 * time.Minute)
	count := 0
	for _, trade := range history {
		if !trade.OpenedAt.Before(cutoff) {
			count++
		}
	}
	if count < 3 {
		return nil
	}
	return &DetectedPattern{
		Type:            Overtrading,
		Severity:        SeverityDanger,
		Message:         fmt.Sprintf("%d positions opened in the last 30 minutes", count),
		CooldownMinutes: 45,
	}
}

// checkConsecutiveLosses flags 2 or more losses among the last 3 closed
// trades
func (d *Detector) checkConsecutiveLosses(closed []database.TradeHistoryEntry) *DetectedPattern {
	recent := closed
	if len(recent) > 3 {
		recent = recent[:3]
	}

	losses := 0
	for _, trade := range recent {
		if trade.RealizedPnL != nil && *trade.RealizedPnL < 0 {
			losses++
		}
	}
	if losses < 2 {
		return nil
	}
	return &DetectedPattern{
		Type:            ConsecutiveLosses,
		Severity:        SeverityCritical,
		Message:         fmt.Sprintf("%d of the last %d closed trades were losses", losses, len(recent)),
		CooldownMinutes: 60,
	}
}

// checkHighFrequency flags 5 or more trades opened since the start of
// the current calendar day. Escalates severity only; no cooldown.
func (d *Detector) checkHighFrequency(history []database.TradeHistoryEntry, localNow time.Time, loc *time.Location) *DetectedPattern {
	dayStart := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, loc)
	count := 0
	for _, trade := range history {
		if !trade.OpenedAt.In(loc).Before(dayStart) {
			count++
		}
	}
	if count < 5 {
		return nil
	}
	return &DetectedPattern{
		Type:     HighFrequency,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%d trades opened today", count),
	}
}

// checkOffHours flags activity outside the local trading window.
// Escalates severity only; no cooldown.
func (d *Detector) checkOffHours(localNow time.Time) *DetectedPattern {
	hour := localNow.Hour()
	if hour >= d.tradingHourStart && hour < d.tradingHourEnd {
		return nil
	}
	return &DetectedPattern{
		Type:     OffHoursTrading,
		Severity: SeverityWarning,
		Message: fmt.Sprintf("trading at %02d:00 local, outside the %02d:00-%02d:00 window",
			hour, d.tradingHourStart, d.tradingHourEnd),
	}
}

// closedTrades filters and sorts closed trades newest-close first
func closedTrades(history []database.TradeHistoryEntry) []database.TradeHistoryEntry {
	var closed []database.TradeHistoryEntry
	for _, trade := range history {
		if trade.ClosedAt != nil {
			closed = append(closed, trade)
		}
	}
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].ClosedAt.After(*closed[j].ClosedAt)
	})
	return closed
}

func lastClosedTime(closed []database.TradeHistoryEntry) *time.Time {
	if len(closed) == 0 {
		return nil
	}
	return closed[0].ClosedAt
}
