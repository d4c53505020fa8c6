package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// VenueQuotas holds the published REST request-per-second ceiling for
// every venue's public market-data endpoints (exchangeInfo/tickers/
// contracts/bullet calls), used to throttle ListSymbols/ListTickers
// polling independently of the hand-rolled MultiLimiter above.
var VenueQuotas = map[string]float64{
	"binance": 20,
	"bybit":   10,
	"okx":     20,
	"kucoin":  15,
	"gate":    10,
	"mexc":    20,
	"bitget":  10,
	"bingx":   10,
}

// VenueLimiter wraps golang.org/x/time/rate.Limiter per venue so REST
// polling never exceeds the published quota, independent of whatever
// WebSocket shards that venue's client also has open.
type VenueLimiter struct {
	limiters map[string]*rate.Limiter
}

// NewVenueLimiter builds one rate.Limiter per entry in VenueQuotas, each
// allowing a burst of one second's worth of requests.
func NewVenueLimiter() *VenueLimiter {
	vl := &VenueLimiter{limiters: make(map[string]*rate.Limiter, len(VenueQuotas))}
	for venue, qps := range VenueQuotas {
		vl.limiters[venue] = rate.NewLimiter(rate.Limit(qps), int(qps))
	}
	return vl
}

// Wait blocks until venue's quota allows one more request, or ctx is
// cancelled. Unknown venues are never throttled.
func (vl *VenueLimiter) Wait(ctx context.Context, venue string) error {
	limiter, ok := vl.limiters[venue]
	if !ok {
		return nil
	}
	return limiter.Wait(ctx)
}
