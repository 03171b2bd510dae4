package guardian

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"mt-trading-dashboard/internal/database"
)

// fakeSymbolStore backs the resolver with in-memory mappings and specs
type fakeSymbolStore struct {
	mappings map[string]string
	specs    map[string]*database.BrokerSymbolSpec
}

func (f *fakeSymbolStore) GetSymbolMapping(_ context.Context, accountID, standardSymbol string) (*database.SymbolMapping, error) {
	broker, ok := f.mappings[standardSymbol]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &database.SymbolMapping{
		AccountID:      accountID,
		StandardSymbol: standardSymbol,
		BrokerSymbol:   broker,
	}, nil
}

func (f *fakeSymbolStore) GetSymbolSpec(_ context.Context, _, symbol string) (*database.BrokerSymbolSpec, error) {
	spec, ok := f.specs[symbol]
	if !ok {
		return nil, database.ErrNotFound
	}
	return spec, nil
}

func standardSpec(symbol string) *database.BrokerSymbolSpec {
	return &database.BrokerSymbolSpec{
		Symbol:    symbol,
		MinLot:    0.01,
		MaxLot:    100,
		LotStep:   0.01,
		TradeMode: "FULL",
	}
}

func newTestResolver() *Resolver {
	store := &fakeSymbolStore{
		mappings: map[string]string{"EURUSD": "EURUSD.m", "XAUUSD": "GOLD"},
		specs: map[string]*database.BrokerSymbolSpec{
			"EURUSD.m": standardSpec("EURUSD.m"),
			"GOLD":     standardSpec("GOLD"),
		},
	}
	return NewResolver(store, 5.0)
}

func TestResolveExactMatch(t *testing.T) {
	r := newTestResolver()

	broker, err := r.Resolve(context.Background(), "acct", "EURUSD")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if broker != "EURUSD.m" {
		t.Errorf("Expected EURUSD.m, got %s", broker)
	}
}

func TestResolveUnmapped(t *testing.T) {
	r := newTestResolver()

	_, err := r.Resolve(context.Background(), "acct", "GBPUSD")
	if !errors.Is(err, ErrSymbolNotMapped) {
		t.Errorf("Expected ErrSymbolNotMapped, got %v", err)
	}
}

func TestNormalizeLotRoundsDown(t *testing.T) {
	spec := standardSpec("EURUSD.m")

	lot, err := NormalizeLot(spec, 0.137)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if lot != 0.13 {
		t.Errorf("Expected 0.13, got %v", lot)
	}
}

func TestNormalizeLotClampsToMax(t *testing.T) {
	spec := standardSpec("EURUSD.m")
	spec.MaxLot = 5

	lot, err := NormalizeLot(spec, 7.5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if lot != 5 {
		t.Errorf("Expected clamp to 5, got %v", lot)
	}
}

func TestNormalizeLotBelowMinimum(t *testing.T) {
	spec := standardSpec("EURUSD.m")
	spec.MinLot = 0.1

	_, err := NormalizeLot(spec, 0.05)
	if !errors.Is(err, ErrBelowMinimum) {
		t.Errorf("Expected ErrBelowMinimum, got %v", err)
	}
}

func TestNormalizeLotNeverRoundsUp(t *testing.T) {
	spec := standardSpec("EURUSD.m")
	requested := []float64{0.01, 0.019, 0.1, 0.137, 0.99, 1.005, 2.5, 99.999}

	for _, lot := range requested {
		normalized, err := NormalizeLot(spec, lot)
		if err != nil {
			t.Fatalf("Unexpected error for %v: %v", lot, err)
		}
		if normalized > lot {
			t.Errorf("Normalized %v above requested %v", normalized, lot)
		}
		steps := normalized / spec.LotStep
		if math.Abs(steps-math.Round(steps)) > 1e-6 {
			t.Errorf("Normalized %v is not a multiple of lot step %v", normalized, spec.LotStep)
		}
	}
}

func TestValidateOrderForExecution(t *testing.T) {
	r := newTestResolver()

	result := r.ValidateOrderForExecution(context.Background(), OrderValidationInput{
		AccountID:      "acct",
		StandardSymbol: "EURUSD",
		LotSize:        0.137,
		EntryPrice:     1.1000,
		StopLoss:       1.0950,
		Direction:      "BUY",
	})

	if !result.Valid {
		t.Fatalf("Expected valid order, got errors: %v", result.Errors)
	}
	if result.BrokerSymbol != "EURUSD.m" {
		t.Errorf("Expected broker symbol EURUSD.m, got %s", result.BrokerSymbol)
	}
	if result.NormalizedLotSize != 0.13 {
		t.Errorf("Expected normalized lot 0.13, got %v", result.NormalizedLotSize)
	}
	if len(result.Warnings) == 0 {
		t.Error("Expected a material rounding warning for 0.137 -> 0.13")
	}
}

func TestValidateOrderStopOnWrongSide(t *testing.T) {
	r := newTestResolver()

	result := r.ValidateOrderForExecution(context.Background(), OrderValidationInput{
		AccountID:      "acct",
		StandardSymbol: "EURUSD",
		LotSize:        0.1,
		EntryPrice:     1.1000,
		StopLoss:       1.1050,
		Direction:      "BUY",
	})

	if result.Valid {
		t.Error("Expected BUY with stop above entry to be invalid")
	}
}

func TestValidateOrderSellStop(t *testing.T) {
	r := newTestResolver()

	result := r.ValidateOrderForExecution(context.Background(), OrderValidationInput{
		AccountID:      "acct",
		StandardSymbol: "EURUSD",
		LotSize:        0.1,
		EntryPrice:     1.1000,
		StopLoss:       1.1050,
		Direction:      "SELL",
	})

	if !result.Valid {
		t.Errorf("Expected SELL with stop above entry to be valid, got %v", result.Errors)
	}
}

func TestValidateOrderUnmappedSymbol(t *testing.T) {
	r := newTestResolver()

	result := r.ValidateOrderForExecution(context.Background(), OrderValidationInput{
		AccountID:      "acct",
		StandardSymbol: "GBPUSD",
		LotSize:        0.1,
		EntryPrice:     1.2500,
		StopLoss:       1.2450,
		Direction:      "BUY",
	})

	if result.Valid {
		t.Fatal("Expected unmapped symbol to be invalid")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "mapping") {
		t.Errorf("Expected a mapping hint, got %v", result.Errors)
	}
}

func TestValidateOrderTradingDisabled(t *testing.T) {
	r := newTestResolver()
	r.store.(*fakeSymbolStore).specs["GOLD"].TradeMode = "CLOSE_ONLY"

	result := r.ValidateOrderForExecution(context.Background(), OrderValidationInput{
		AccountID:      "acct",
		StandardSymbol: "XAUUSD",
		LotSize:        0.1,
		EntryPrice:     2400,
		StopLoss:       2390,
		Direction:      "BUY",
	})

	if result.Valid {
		t.Error("Expected CLOSE_ONLY instrument to be rejected")
	}
}

func TestSuggestMappings(t *testing.T) {
	specs := []*database.BrokerSymbolSpec{
		standardSpec("EURUSD.m"),
		standardSpec("EURUSDmicro"),
		standardSpec("GBPUSD.m"),
		standardSpec("XAUUSD"),
	}

	suggestions := SuggestMappings("EURUSD", specs)
	if len(suggestions) != 2 {
		t.Fatalf("Expected 2 suggestions, got %d: %+v", len(suggestions), suggestions)
	}
	if suggestions[0].BrokerSymbol != "EURUSD.m" || suggestions[0].Confidence != 1.0 {
		t.Errorf("Expected exact-match EURUSD.m first, got %+v", suggestions[0])
	}
	if suggestions[1].Confidence >= suggestions[0].Confidence {
		t.Errorf("Expected descending confidence, got %+v", suggestions)
	}
}
