package models

import "github.com/shopspring/decimal"

// SymbolInfo describes one tradable symbol on one venue: the exchange
// metadata the orchestrator needs for volume filtering and downstream
// consumers need for order sizing. The orchestrator keeps this set
// deduplicated by (Exchange, Name); repeated publication is a no-op.
type SymbolInfo struct {
	Exchange     string
	Name         string
	PriceStep    decimal.Decimal
	QuantityStep decimal.Decimal
	MinNotional  decimal.Decimal
}

// Key returns the deduplication key (Exchange, Name).
func (s SymbolInfo) Key() SymbolKey {
	return SymbolKey{Exchange: s.Exchange, Symbol: s.Name}
}

// SymbolKey is the (exchange, symbol) identity used by the window store,
// the health registry, and the symbol-info dedup set.
type SymbolKey struct {
	Exchange string
	Symbol   string
}

// TickerVolume is the list_tickers() result used for the startup volume
// filter: a symbol plus its 24h quote-asset volume.
type TickerVolume struct {
	Symbol      string
	QuoteVolume float64
}
