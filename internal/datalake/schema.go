// Package datalake persists admitted quotes into a partitioned, columnar
// parquet tree and serves historical reads back over the same layout.
package datalake

import (
	"time"

	"github.com/shopspring/decimal"

	"crossfeed/internal/models"
)

// row is the on-disk parquet schema from spec.md §4.5. BestBid/BestAsk/
// MinVolume/MaxVolume are stored as their exact decimal.Decimal string
// form rather than a fixed-point parquet logical type: this pack carries
// no reference use of parquet-go's decimal tag syntax, and a string
// column round-trips exactly with no precision loss, which is what the
// round-trip invariant actually requires.
type row struct {
	Timestamp        int64   `parquet:"timestamp,timestamp(millisecond)"`
	BestBid          string  `parquet:"best_bid"`
	BestAsk          string  `parquet:"best_ask"`
	SpreadPercentage *float64 `parquet:"spread_percentage,optional"`
	MinVolume        string  `parquet:"min_volume"`
	MaxVolume        string  `parquet:"max_volume"`
	Exchange         string  `parquet:"exchange"`
	Symbol           string  `parquet:"symbol"`
}

func toRow(q models.Quote, minVolume, maxVolume float64) row {
	return row{
		Timestamp:        q.EffectiveTimestamp().UnixMilli(),
		BestBid:          q.BestBid.String(),
		BestAsk:          q.BestAsk.String(),
		SpreadPercentage: q.SpreadPercent(),
		MinVolume:        decimal.NewFromFloat(minVolume).String(),
		MaxVolume:        decimal.NewFromFloat(maxVolume).String(),
		Exchange:         q.Exchange,
		Symbol:           q.Symbol,
	}
}

func (r row) toQuote() (models.Quote, error) {
	bid, err := decimal.NewFromString(r.BestBid)
	if err != nil {
		return models.Quote{}, err
	}
	ask, err := decimal.NewFromString(r.BestAsk)
	if err != nil {
		return models.Quote{}, err
	}
	ts := time.UnixMilli(r.Timestamp).UTC()
	return models.Quote{
		Exchange:        r.Exchange,
		Symbol:          r.Symbol,
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: &ts,
		LocalTimestamp:  ts,
	}, nil
}
