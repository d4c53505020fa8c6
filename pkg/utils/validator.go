package utils

import (
	"fmt"
	"regexp"
	"strings"
)

var symbolCharset = regexp.MustCompile(`^[A-Za-z0-9_/-]+$`)

// supportedExchanges mirrors exchange.SupportedExchanges without importing
// it, to avoid a dependency cycle (exchange imports utils for logging and
// validation helpers).
var supportedExchanges = map[string]bool{
	"binance": true,
	"bybit":   true,
	"okx":     true,
	"kucoin":  true,
	"gate":    true,
	"mexc":    true,
	"bitget":  true,
	"bingx":   true,
}

// ValidateSymbol checks that a venue-supplied symbol is well-formed before
// it reaches CanonicalSymbol: 2-20 characters, letters/digits plus one of
// the recognized separators (-, _, /), no other punctuation or whitespace.
func ValidateSymbol(symbol string) error {
	if len(symbol) < 2 || len(symbol) > 20 {
		return fmt.Errorf("symbol %q: length must be 2-20 characters", symbol)
	}
	if !symbolCharset.MatchString(symbol) {
		return fmt.Errorf("symbol %q: contains characters outside [A-Za-z0-9_/-]", symbol)
	}
	return nil
}

// knownQuoteAssets lists quote assets CanonicalSymbol recognizes when a
// venue concatenates base and quote with no separator (e.g. Binance's
// "BTCUSDT"). Checked longest-match-wins is unnecessary here since no
// entry is a suffix of another, so list order does not change the result.
var knownQuoteAssets = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

// CanonicalSymbol normalizes a venue symbol to the BASE_QUOTE form:
// uppercase, `/`/`-`/space collapsed to `_`, duplicate underscores
// collapsed, and a separator inserted against a known quote-asset
// suffix when the venue supplied none at all (e.g. "BTCUSDT" ->
// "BTC_USDT"). Idempotent: CanonicalSymbol(CanonicalSymbol(x)) == CanonicalSymbol(x).
func CanonicalSymbol(raw string) string {
	s := strings.ToUpper(raw)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '-', ' ':
			return '_'
		default:
			return r
		}
	}, s)
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	s = strings.Trim(s, "_")
	if !strings.Contains(s, "_") {
		s = insertQuoteSeparator(s)
	}
	return s
}

func insertQuoteSeparator(s string) string {
	for _, q := range knownQuoteAssets {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)] + "_" + q
		}
	}
	return s
}

// FilesystemSymbol escapes a canonical symbol for use as a parquet
// partition path component: the only character that needs escaping is
// `/`, which normalization should already have removed; this is defensive.
func FilesystemSymbol(canonical string) string {
	return strings.ReplaceAll(canonical, "/", "#")
}

// ExtractBaseCurrency returns the base asset of a symbol, accepting both
// canonical (underscore) and raw venue separators.
func ExtractBaseCurrency(symbol string) string {
	base, _ := splitSymbol(symbol)
	return base
}

// ExtractQuoteCurrency returns the quote asset of a symbol.
func ExtractQuoteCurrency(symbol string) string {
	_, quote := splitSymbol(symbol)
	return quote
}

func splitSymbol(symbol string) (base, quote string) {
	canon := CanonicalSymbol(symbol)
	if idx := strings.LastIndex(canon, "_"); idx >= 0 {
		return canon[:idx], canon[idx+1:]
	}
	return canon, ""
}

// ValidateSpread checks a spread percentage is within (0, 100].
func ValidateSpread(spreadPct float64) error {
	if spreadPct <= 0 {
		return fmt.Errorf("spread %.4f must be positive", spreadPct)
	}
	if spreadPct > 100 {
		return fmt.Errorf("spread %.4f exceeds 100%%", spreadPct)
	}
	return nil
}

// ValidateVolume checks a volume is a positive, finite, realistic quantity.
func ValidateVolume(volume float64) error {
	if volume <= 0 {
		return fmt.Errorf("volume %.8f must be positive", volume)
	}
	if volume > 1e9 {
		return fmt.Errorf("volume %.8f exceeds sane upper bound", volume)
	}
	return nil
}

// ValidateQuote enforces the admission invariant from the data model:
// best_bid > 0, best_ask > 0, best_ask >= best_bid.
func ValidateQuote(bestBid, bestAsk float64) error {
	if bestBid <= 0 {
		return fmt.Errorf("best_bid %.10f must be positive", bestBid)
	}
	if bestAsk <= 0 {
		return fmt.Errorf("best_ask %.10f must be positive", bestAsk)
	}
	if bestAsk < bestBid {
		return fmt.Errorf("best_ask %.10f is below best_bid %.10f", bestAsk, bestBid)
	}
	return nil
}

// ValidateExchange checks name against the set of wired venues.
func ValidateExchange(name string) error {
	if name == "" {
		return fmt.Errorf("exchange name is empty")
	}
	if !supportedExchanges[strings.ToLower(name)] {
		return fmt.Errorf("exchange %q is not a supported venue", name)
	}
	return nil
}

// NormalizeExchange lowercases and trims an exchange name for lookup.
func NormalizeExchange(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateAPIKey checks an API key has the shape venues generally expect:
// at least 16 characters, alphanumeric plus `-`/`_`.
func ValidateAPIKey(key string) error {
	return validateCredentialShape(key, "API key", 16)
}

// ValidateAPISecret checks an API secret's minimum length; secrets are
// often opaque/high-entropy strings so no charset restriction applies.
func ValidateAPISecret(secret string) error {
	if len(secret) < 16 {
		return fmt.Errorf("API secret must be at least 16 characters")
	}
	return nil
}

// ValidateAPIPassphrase allows an empty passphrase (not every venue
// requires one) but bounds its length when present.
func ValidateAPIPassphrase(passphrase string) error {
	if len(passphrase) > 64 {
		return fmt.Errorf("API passphrase must be at most 64 characters")
	}
	return nil
}

var apiKeyCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateCredentialShape(value, label string, minLen int) error {
	if len(value) < minLen {
		return fmt.Errorf("%s must be at least %d characters", label, minLen)
	}
	if !apiKeyCharset.MatchString(value) {
		return fmt.Errorf("%s contains unsupported characters", label)
	}
	return nil
}
