package guardian

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"mt-trading-dashboard/internal/database"
)

// Resolution errors. ErrSymbolNotMapped and ErrSpecMissing are distinct
// from generic failure so callers can direct the operator to curate a
// mapping or re-run the symbol sync.
var (
	ErrSymbolNotMapped = errors.New("standard symbol has no broker mapping for this account")
	ErrSpecMissing     = errors.New("broker symbol has no synced specification for this account")
	ErrBelowMinimum    = errors.New("lot size below broker minimum after normalization")
)

// SymbolStore is the slice of the persistence layer the resolver reads
type SymbolStore interface {
	GetSymbolMapping(ctx context.Context, accountID, standardSymbol string) (*database.SymbolMapping, error)
	GetSymbolSpec(ctx context.Context, accountID, symbol string) (*database.BrokerSymbolSpec, error)
}

// Resolver maps standard symbols to broker symbols and normalizes lot
// sizes against synced broker specs
type Resolver struct {
	store SymbolStore
	// materialRoundingPercent is the relative lot reduction above which
	// a warning is attached
	materialRoundingPercent float64
}

// NewResolver creates a new symbol and lot resolver
func NewResolver(store SymbolStore, materialRoundingPercent float64) *Resolver {
	if materialRoundingPercent <= 0 {
		materialRoundingPercent = 5.0
	}
	return &Resolver{store: store, materialRoundingPercent: materialRoundingPercent}
}

// Resolve maps a standard symbol to the account's broker symbol.
// Resolution is exact-match only; the system never guesses silently.
func (r *Resolver) Resolve(ctx context.Context, accountID, standardSymbol string) (string, error) {
	mapping, err := r.store.GetSymbolMapping(ctx, accountID, standardSymbol)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSymbolNotMapped, standardSymbol)
		}
		return "", err
	}
	return mapping.BrokerSymbol, nil
}

// NormalizeLot clamps the requested lot into [minLot, maxLot] and rounds
// down to the nearest lot step. Rounding up could silently increase risk
// beyond what the user authorized, so it never happens.
func NormalizeLot(spec *database.BrokerSymbolSpec, requestedLot float64) (float64, error) {
	if spec.LotStep <= 0 || spec.MinLot <= 0 {
		return 0, fmt.Errorf("invalid lot constraints for %s (min %.4f, step %.4f)",
			spec.Symbol, spec.MinLot, spec.LotStep)
	}

	lot := requestedLot
	if lot > spec.MaxLot {
		lot = spec.MaxLot
	}

	// Round down to a whole number of steps; the epsilon absorbs float
	// representation error on values like 0.13/0.01.
	steps := math.Floor(lot/spec.LotStep + 1e-9)
	normalized := roundLot(steps * spec.LotStep)

	if normalized <= 0 || normalized < spec.MinLot {
		return 0, fmt.Errorf("%w: requested %.4f, minimum %.4f for %s",
			ErrBelowMinimum, requestedLot, spec.MinLot, spec.Symbol)
	}

	return normalized, nil
}

// OrderValidationInput is a proposed order before broker normalization
type OrderValidationInput struct {
	AccountID      string  `json:"account_id"`
	StandardSymbol string  `json:"standard_symbol"`
	LotSize        float64 `json:"lot_size"`
	EntryPrice     float64 `json:"entry_price"`
	CurrentPrice   float64 `json:"current_price"`
	StopLoss       float64 `json:"stop_loss"`
	Direction      string  `json:"direction"` // BUY or SELL
}

// OrderValidation is the result of resolution + normalization + price
// sanity checks. Any single error makes Valid false; warnings never do.
type OrderValidation struct {
	Valid             bool     `json:"valid"`
	BrokerSymbol      string   `json:"broker_symbol"`
	NormalizedLotSize float64  `json:"normalized_lot_size"`
	Errors            []string `json:"errors"`
	Warnings          []string `json:"warnings"`
}

// ValidateOrderForExecution composes symbol resolution, lot normalization
// and a price sanity check into a broker-safe order
func (r *Resolver) ValidateOrderForExecution(ctx context.Context, input OrderValidationInput) OrderValidation {
	result := OrderValidation{
		Errors:   []string{},
		Warnings: []string{},
	}

	brokerSymbol, err := r.Resolve(ctx, input.AccountID, input.StandardSymbol)
	if err != nil {
		if errors.Is(err, ErrSymbolNotMapped) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"%s is not mapped to a broker symbol; add a symbol mapping before trading it",
				input.StandardSymbol))
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}
	result.BrokerSymbol = brokerSymbol

	spec, err := r.store.GetSymbolSpec(ctx, input.AccountID, brokerSymbol)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"%s has no synced broker specification; run a symbol sync before trading it",
				brokerSymbol))
		} else {
			result.Errors = append(result.Errors, err.Error())
		}
		return result
	}

	if strings.EqualFold(spec.TradeMode, "DISABLED") || strings.EqualFold(spec.TradeMode, "CLOSE_ONLY") {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"broker has trading disabled for %s (trade mode %s)", brokerSymbol, spec.TradeMode))
	}

	normalized, err := NormalizeLot(spec, input.LotSize)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.NormalizedLotSize = normalized
		if input.LotSize > spec.MaxLot {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"lot size capped at broker maximum %.4f", spec.MaxLot))
		}
		if reduction := relativeReduction(input.LotSize, normalized); reduction >= r.materialRoundingPercent {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"lot size rounded down from %.4f to %.4f (%.1f%% less risk than requested)",
				input.LotSize, normalized, reduction))
		}
	}

	if err := checkStopPlacement(input); err != nil {
		result.Errors = append(result.Errors, err.Error())
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// checkStopPlacement verifies the stop loss sits on the losing side of
// the reference price (entry, else current)
func checkStopPlacement(input OrderValidationInput) error {
	if input.StopLoss <= 0 {
		return fmt.Errorf("stop loss is required")
	}

	reference := input.EntryPrice
	if reference <= 0 {
		reference = input.CurrentPrice
	}
	if reference <= 0 {
		return fmt.Errorf("entry or current price is required")
	}

	switch strings.ToUpper(input.Direction) {
	case "BUY":
		if input.StopLoss >= reference {
			return fmt.Errorf("BUY stop loss %.5f must be below the entry price %.5f", input.StopLoss, reference)
		}
	case "SELL":
		if input.StopLoss <= reference {
			return fmt.Errorf("SELL stop loss %.5f must be above the entry price %.5f", input.StopLoss, reference)
		}
	default:
		return fmt.Errorf("direction must be BUY or SELL, got %q", input.Direction)
	}

	return nil
}

// MappingSuggestion is a ranked broker-symbol candidate for an unmapped
// standard symbol. Suggestions are advisory only; the Guardian never
// executes against an unconfirmed suggestion.
type MappingSuggestion struct {
	BrokerSymbol string  `json:"broker_symbol"`
	Confidence   float64 `json:"confidence"`
}

// SuggestMappings ranks the account's synced broker symbols by
// similarity to a standard symbol
func SuggestMappings(standardSymbol string, specs []*database.BrokerSymbolSpec) []MappingSuggestion {
	target := canonicalSymbol(standardSymbol)
	if target == "" {
		return nil
	}

	var suggestions []MappingSuggestion
	for _, spec := range specs {
		candidate := canonicalSymbol(spec.Symbol)
		var confidence float64
		switch {
		case candidate == target:
			confidence = 1.0
		case strings.HasPrefix(candidate, target):
			confidence = 0.9
		case strings.Contains(candidate, target):
			confidence = 0.75
		default:
			continue
		}
		suggestions = append(suggestions, MappingSuggestion{
			BrokerSymbol: spec.Symbol,
			Confidence:   confidence,
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].BrokerSymbol < suggestions[j].BrokerSymbol
	})

	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

// canonicalSymbol uppercases and strips broker suffixes/separators
// ("eurusd.m" -> "EURUSDM" would be wrong, so drop everything after a
// separator instead)
func canonicalSymbol(symbol string) string {
	upper := strings.ToUpper(strings.TrimSpace(symbol))
	for _, sep := range []string{".", "-", "_", "#"} {
		if idx := strings.Index(upper, sep); idx > 0 {
			upper = upper[:idx]
		}
	}
	return upper
}

func relativeReduction(requested, normalized float64) float64 {
	if requested <= 0 {
		return 0
	}
	return (requested - normalized) / requested * 100
}

func roundLot(lot float64) float64 {
	return math.Round(lot*1e8) / 1e8
}
