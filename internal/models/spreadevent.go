package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpreadEvent is published on the broadcast sink for every admitted
// Quote. SpreadPct is nil (JSON null) when BestBid is zero; Infinity/NaN
// never reach this struct because Quote.Valid rejects non-positive bids.
type SpreadEvent struct {
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	SpreadPct  *float64        `json:"spread_pct"`
	MinVolume  float64         `json:"min_volume"`
	MaxVolume  float64         `json:"max_volume"`
	Timestamp  time.Time       `json:"timestamp"`
}

// BroadcastMessage wraps a payload with the MessageType envelope spec.md
// §6 requires for broadcast sends.
type BroadcastMessage struct {
	MessageType string      `json:"MessageType"`
	Payload     interface{} `json:"Payload"`
}

// NewSpreadEvent builds a SpreadEvent from an admitted Quote plus the
// venue's volume filter bounds, applying the decimal -> float64 spread
// computation and the nil-on-zero-bid rule.
func NewSpreadEvent(q Quote, minVolume, maxVolume float64) SpreadEvent {
	return SpreadEvent{
		Exchange:  q.Exchange,
		Symbol:    q.Symbol,
		BestBid:   q.BestBid,
		BestAsk:   q.BestAsk,
		SpreadPct: q.SpreadPercent(),
		MinVolume: minVolume,
		MaxVolume: maxVolume,
		Timestamp: q.EffectiveTimestamp(),
	}
}
