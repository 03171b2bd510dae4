package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mt-trading-dashboard/config"
	"mt-trading-dashboard/internal/auth"
	"mt-trading-dashboard/internal/database"
	"mt-trading-dashboard/internal/events"
	"mt-trading-dashboard/internal/guardian"
)

func newTestServer() *Server {
	cfg := &config.Config{
		ServerConfig: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			ProductionMode: true,
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		GuardianConfig: config.GuardianConfig{
			DefaultMaxCurrencyExposure: 2.0,
			TradingHourStart:           8,
			TradingHourEnd:             18,
			MaterialRoundingPercent:    5.0,
		},
	}

	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	return NewServer(cfg, nil, database.NewRedisCooldownStore(nil),
		events.NewEventBus(), nil, jwtManager, nil, zerolog.Nop())
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("Expected status 'ok', got '%v'", response["status"])
	}
}

func TestDashboardRoutesRequireJWT(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without a token, got %d", w.Code)
	}
}

func TestAgentRoutesRequireAPIKey(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/agent/orders", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without an API key, got %d", w.Code)
	}
}

func TestAgentDayRolloverRequiresAPIKey(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/agent/day-rollover", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without an API key, got %d", w.Code)
	}
}

func TestSetupLockedAtCreation(t *testing.T) {
	req := setupRequest{
		Provider:                "FTMO",
		Phase:                   "PHASE_1",
		OverRollMaxPercent:      10,
		DailyMaxPercent:         5,
		UserRiskPerTradePercent: 1,
		UserRiskPerAssetPercent: 2,
	}
	derived := guardian.CalculateDerivedValues(req.toInput(10000))

	setup := newLockedSetup("acct-1", req, derived)
	if !setup.IsLocked {
		t.Error("A created setup must be locked immediately")
	}
	if setup.Status != guardian.SetupStatusLocked {
		t.Errorf("Expected status %s, got %s", guardian.SetupStatusLocked, setup.Status)
	}
	if setup.DailyBudgetDollars != derived.DailyBudgetDollars {
		t.Errorf("Expected daily budget %.2f, got %.2f", derived.DailyBudgetDollars, setup.DailyBudgetDollars)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("/api/test") {
			t.Fatalf("Request %d should be allowed", i+1)
		}
	}
	if limiter.Allow("/api/test") {
		t.Error("Fourth request within the window should be rejected")
	}
	if !limiter.Allow("/api/other") {
		t.Error("A different endpoint must have its own window")
	}
}

func TestRateLimiterWindowExpiry(t *testing.T) {
	limiter := NewRateLimiter(1, 10*time.Millisecond)

	if !limiter.Allow("/api/test") {
		t.Fatal("First request should be allowed")
	}
	if limiter.Allow("/api/test") {
		t.Fatal("Second immediate request should be rejected")
	}

	time.Sleep(20 * time.Millisecond)
	if !limiter.Allow("/api/test") {
		t.Error("Request after the window expired should be allowed")
	}
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/ws?token=bogus", nil)
	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for a bogus token, got %d", w.Code)
	}
}
