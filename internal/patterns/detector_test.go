package patterns

import (
	"testing"
	"time"

	"mt-trading-dashboard/internal/database"
)

func fl(v float64) *float64 { return &v }

func tp(t time.Time) *time.Time { return &t }

// insideHours returns a reference time that falls inside the default
// 08:00-18:00 window so the off-hours check stays quiet
func insideHours() time.Time {
	return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func hasPattern(result DetectionResult, pt PatternType) bool {
	for _, p := range result.Patterns {
		if p.Type == pt {
			return true
		}
	}
	return false
}

func TestDetectNoHistory(t *testing.T) {
	d := NewDetector(8, 18)

	result := d.Detect(nil, insideHours(), time.UTC)
	if result.Detected {
		t.Errorf("Expected no patterns on empty history, got %+v", result.Patterns)
	}
	if result.Severity != SeverityOK {
		t.Errorf("Expected severity OK, got %s", result.Severity)
	}
}

func TestDetectRevengeTrading(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-10 * time.Minute)}, // still open
		{Symbol: "EURUSD", OpenedAt: now.Add(-60 * time.Minute),
			ClosedAt: tp(now.Add(-12 * time.Minute)), RealizedPnL: fl(-150)},
	}

	result := d.Detect(history, now, time.UTC)
	if !hasPattern(result, RevengeTrading) {
		t.Fatalf("Expected revenge trading, got %+v", result.Patterns)
	}
	if result.Cooldown.RecommendedMinutes < 30 {
		t.Errorf("Expected at least 30 minute cooldown, got %d", result.Cooldown.RecommendedMinutes)
	}
	if result.Severity != SeverityDanger {
		t.Errorf("Expected DANGER severity, got %s", result.Severity)
	}
}

func TestDetectRevengeTradingAlreadyClosed(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	// The position opened 5 minutes after the losing close was itself
	// closed again; it still counts as a revenge entry.
	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-40 * time.Minute),
			ClosedAt: tp(now.Add(-20 * time.Minute)), RealizedPnL: fl(30)},
		{Symbol: "EURUSD", OpenedAt: now.Add(-90 * time.Minute),
			ClosedAt: tp(now.Add(-45 * time.Minute)), RealizedPnL: fl(-150)},
	}

	result := d.Detect(history, now, time.UTC)
	if !hasPattern(result, RevengeTrading) {
		t.Fatalf("Expected revenge trading for a closed revenge position, got %+v", result.Patterns)
	}
}

func TestDetectNoRevengeAfterWin(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-10 * time.Minute)},
		{Symbol: "EURUSD", OpenedAt: now.Add(-60 * time.Minute),
			ClosedAt: tp(now.Add(-12 * time.Minute)), RealizedPnL: fl(80)},
	}

	result := d.Detect(history, now, time.UTC)
	if hasPattern(result, RevengeTrading) {
		t.Error("A winning close must not trigger revenge trading")
	}
}

func TestDetectOvertrading(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-5 * time.Minute)},
		{Symbol: "GBPUSD", OpenedAt: now.Add(-15 * time.Minute)},
		{Symbol: "XAUUSD", OpenedAt: now.Add(-25 * time.Minute)},
	}

	result := d.Detect(history, now, time.UTC)
	if !hasPattern(result, Overtrading) {
		t.Fatalf("Expected overtrading with 3 opens in 30 minutes, got %+v", result.Patterns)
	}
	if result.Cooldown.RecommendedMinutes < 45 {
		t.Errorf("Expected at least 45 minute cooldown, got %d", result.Cooldown.RecommendedMinutes)
	}
}

func TestDetectConsecutiveLosses(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-5 * time.Hour),
			ClosedAt: tp(now.Add(-4 * time.Hour)), RealizedPnL: fl(-100)},
		{Symbol: "GBPUSD", OpenedAt: now.Add(-4 * time.Hour),
			ClosedAt: tp(now.Add(-3 * time.Hour)), RealizedPnL: fl(50)},
		{Symbol: "XAUUSD", OpenedAt: now.Add(-3 * time.Hour),
			ClosedAt: tp(now.Add(-2 * time.Hour)), RealizedPnL: fl(-75)},
	}

	result := d.Detect(history, now, time.UTC)
	if !hasPattern(result, ConsecutiveLosses) {
		t.Fatalf("Expected consecutive losses with 2 of last 3, got %+v", result.Patterns)
	}
	if result.Severity != SeverityCritical {
		t.Errorf("Expected CRITICAL severity, got %s", result.Severity)
	}
	if result.Cooldown.RecommendedMinutes != 60 {
		t.Errorf("Expected 60 minute cooldown, got %d", result.Cooldown.RecommendedMinutes)
	}
}

func TestDetectHighFrequencySeverityOnly(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	var history []database.TradeHistoryEntry
	for i := 0; i < 5; i++ {
		history = append(history, database.TradeHistoryEntry{
			Symbol:   "EURUSD",
			OpenedAt: now.Add(-time.Duration(i+1) * time.Hour),
		})
	}

	result := d.Detect(history, now, time.UTC)
	if !hasPattern(result, HighFrequency) {
		t.Fatalf("Expected high frequency with 5 opens today, got %+v", result.Patterns)
	}
	if result.Cooldown.RecommendedMinutes != 0 {
		t.Errorf("High frequency must not recommend a cooldown, got %d", result.Cooldown.RecommendedMinutes)
	}
	if result.Severity != SeverityWarning {
		t.Errorf("Expected WARNING severity, got %s", result.Severity)
	}
}

func TestDetectOffHours(t *testing.T) {
	d := NewDetector(8, 18)
	night := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	result := d.Detect(nil, night, time.UTC)
	if !hasPattern(result, OffHoursTrading) {
		t.Fatalf("Expected off-hours at 03:00, got %+v", result.Patterns)
	}
	if result.Cooldown.RecommendedMinutes != 0 {
		t.Errorf("Off-hours must not recommend a cooldown, got %d", result.Cooldown.RecommendedMinutes)
	}
}

func TestDetectOffHoursRespectsTimezone(t *testing.T) {
	d := NewDetector(8, 18)
	loc := time.FixedZone("UTC+9", 9*3600)
	// 03:00 UTC is 12:00 in UTC+9
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)

	result := d.Detect(nil, now, loc)
	if hasPattern(result, OffHoursTrading) {
		t.Error("12:00 local must be inside the trading window")
	}
}

func TestActiveCooldownWindow(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	// Loss closed 10 minutes ago plus a fresh open triggers revenge
	// trading; its 30 minute window is still running.
	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-5 * time.Minute)},
		{Symbol: "EURUSD", OpenedAt: now.Add(-50 * time.Minute),
			ClosedAt: tp(now.Add(-10 * time.Minute)), RealizedPnL: fl(-100)},
	}

	result := d.Detect(history, now, time.UTC)
	if !result.Cooldown.Active {
		t.Fatal("Expected an active cooldown")
	}
	if result.Cooldown.RemainingMinutes <= 0 || result.Cooldown.RemainingMinutes > 20 {
		t.Errorf("Expected roughly 20 minutes remaining, got %d", result.Cooldown.RemainingMinutes)
	}
}

func TestMaxCooldownWins(t *testing.T) {
	d := NewDetector(8, 18)
	now := insideHours()

	// Revenge (30) and consecutive losses (60) together: max wins
	history := []database.TradeHistoryEntry{
		{Symbol: "EURUSD", OpenedAt: now.Add(-5 * time.Minute)},
		{Symbol: "EURUSD", OpenedAt: now.Add(-3 * time.Hour),
			ClosedAt: tp(now.Add(-10 * time.Minute)), RealizedPnL: fl(-100)},
		{Symbol: "GBPUSD", OpenedAt: now.Add(-4 * time.Hour),
			ClosedAt: tp(now.Add(-2 * time.Hour)), RealizedPnL: fl(-50)},
	}

	result := d.Detect(history, now, time.UTC)
	if result.Cooldown.RecommendedMinutes != 60 {
		t.Errorf("Expected the longest cooldown (60), got %d", result.Cooldown.RecommendedMinutes)
	}
	if result.Severity != SeverityCritical {
		t.Errorf("Expected CRITICAL severity, got %s", result.Severity)
	}
}
