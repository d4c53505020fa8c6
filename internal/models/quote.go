package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the canonical top-of-book tick produced by every venue
// adapter. BestBid/BestAsk use decimal.Decimal rather than float64 so
// that parquet's Decimal(28,10) columns round-trip exactly.
type Quote struct {
	Exchange        string
	Symbol          string
	BestBid         decimal.Decimal
	BestAsk         decimal.Decimal
	ServerTimestamp *time.Time
	LocalTimestamp  time.Time
}

// Valid enforces the admission invariant: best_bid > 0, best_ask > 0,
// best_ask >= best_bid.
func (q Quote) Valid() bool {
	if q.BestBid.Sign() <= 0 || q.BestAsk.Sign() <= 0 {
		return false
	}
	return q.BestAsk.GreaterThanOrEqual(q.BestBid)
}

// EffectiveTimestamp returns ServerTimestamp when the venue supplied one,
// otherwise LocalTimestamp, the staleness-check precedence.
func (q Quote) EffectiveTimestamp() time.Time {
	if q.ServerTimestamp != nil {
		return *q.ServerTimestamp
	}
	return q.LocalTimestamp
}

// SpreadPercent computes (ask-bid)/bid*100, or nil when bid is zero,
// matching SpreadEvent.spread_pct's NULL-on-zero-bid rule.
func (q Quote) SpreadPercent() *float64 {
	if q.BestBid.IsZero() {
		return nil
	}
	pct, _ := q.BestAsk.Sub(q.BestBid).Div(q.BestBid).Mul(decimal.NewFromInt(100)).Float64()
	return &pct
}
