package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is published only by venues whose WS feed includes a trade
// stream. It is retained in a short fixed ring buffer per (exchange,
// symbol), not the W-bounded rolling window quotes use.
type Trade struct {
	Exchange  string
	Symbol    string
	Price     decimal.Decimal
	Quantity  decimal.Decimal
	Side      string // "buy" or "sell"
	Timestamp time.Time
}
