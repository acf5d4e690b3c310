// Package sanitize validates and normalizes untrusted identifiers before
// they reach a query or a log line: wallet addresses, market slugs, and the
// numeric lookback parameters accepted from scan requests.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

// Identifier strips control characters and excess whitespace and enforces a
// max length. Parameterized queries make SQL escaping unnecessary, but
// upstream data (wallet display names, market titles) can still carry
// control bytes that have no business reaching a log line or a webhook
// payload. Grounded on security.py::sanitize_identifier.
func Identifier(value string, maxLength int) string {
	if value == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range value {
		if r == '\x00' || r == '\n' || r == '\r' {
			continue
		}
		if !unicode.IsPrint(r) {
			continue
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	if len(out) > maxLength {
		out = out[:maxLength]
	}
	return out
}

var nonSlugChars = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// MarketSlug restricts a market slug to URL-safe characters after general
// identifier cleanup. Grounded on security.py::sanitize_market_slug.
func MarketSlug(value string) string {
	if value == "" {
		return ""
	}
	cleaned := Identifier(value, 200)
	return nonSlugChars.ReplaceAllString(cleaned, "")
}

// WalletID applies general identifier cleanup with the shorter length bound
// appropriate to an address or username. Grounded on
// security.py::sanitize_username.
func WalletID(value string) string {
	if value == "" {
		return ""
	}
	return Identifier(value, 50)
}

// PositiveInt clamps value to [0, maxValue]. Grounded on
// security.py::validate_positive_int.
func PositiveInt(value, maxValue int) int {
	if value < 0 {
		return 0
	}
	if value > maxValue {
		return maxValue
	}
	return value
}

// DaysParam clamps a lookback-days parameter to [1, 365]. Grounded on
// security.py::validate_days_param.
func DaysParam(days int) int {
	if days < 1 {
		return 1
	}
	if days > 365 {
		return 365
	}
	return days
}

// validStrategyTypes whitelists the strategy-type strings accepted from
// external input, a superset of the domain package's own StrategyType enum
// (the original also permits a few strategy labels this engine's scorer
// never produces itself, kept here for compatibility with pre-existing
// stored data). Grounded on security.py::VALID_STRATEGY_TYPES.
var validStrategyTypes = map[string]bool{
	"UNKNOWN":                 true,
	"ARBITRAGEUR":             true,
	"MARKET_MAKER":            true,
	"DIRECTIONAL_FUNDAMENTAL": true,
	"DIRECTIONAL_MOMENTUM":    true,
	"EVENT_DRIVEN":            true,
	"SCALPER":                 true,
	"HYBRID":                  true,
	"SWING_TRADER":            true,
}

// StrategyType validates value against the known strategy-type whitelist,
// returning "UNKNOWN" for anything else. Grounded on
// security.py::validate_strategy_type.
func StrategyType(value string) string {
	upper := strings.ToUpper(strings.TrimSpace(value))
	if validStrategyTypes[upper] {
		return upper
	}
	return "UNKNOWN"
}
