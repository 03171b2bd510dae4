package guardian

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Lock modes control how strictly a verdict is enforced per account
const (
	LockModeHard   = "HARD"
	LockModeMedium = "MEDIUM"
	LockModeSoft   = "SOFT"
)

// ParseLockMode validates and canonicalizes a lock mode string
func ParseLockMode(mode string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case LockModeHard:
		return LockModeHard, nil
	case LockModeMedium:
		return LockModeMedium, nil
	case LockModeSoft:
		return LockModeSoft, nil
	default:
		return "", fmt.Errorf("lock mode must be HARD, MEDIUM or SOFT, got %q", mode)
	}
}

// ApplyLockMode applies the account's enforcement policy to a verdict.
// HARD and MEDIUM leave the verdict as computed. SOFT demotes every
// violation to an advisory warning and allows execution; the override
// is logged so it is never invisible.
func ApplyLockMode(mode, accountID string, verdict Verdict, logger zerolog.Logger) Verdict {
	if mode != LockModeSoft || len(verdict.Violations) == 0 {
		return verdict
	}

	for _, v := range verdict.Violations {
		verdict.Warnings = append(verdict.Warnings,
			fmt.Sprintf("[%s] %s (overridden by SOFT lock mode)", v.Code, v.Message))
		logger.Warn().
			Str("account_id", accountID).
			Str("violation_code", v.Code).
			Str("violation", v.Message).
			Msg("SOFT lock mode overriding violation")
	}

	verdict.Violations = []Violation{}
	verdict.CanExecute = true
	return verdict
}
