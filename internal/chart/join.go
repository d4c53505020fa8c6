package chart

import (
	"time"

	"crossfeed/internal/models"
)

// joinedRow is one backward as-of joined sample: windowA's tick paired
// with the latest windowB tick at or before it, within tolerance.
type joinedRow struct {
	ts   time.Time
	bidA float64
	bidB float64
}

// asofJoin performs the backward as-of join spec.md §4.4 describes: for
// each row in a, find the latest row in b with timestamp <= a's,
// dropping rows with no match or where the gap exceeds tolerance.
// Both a and b must already be sorted by timestamp, since the b cursor
// only moves forward (true for a RollingWindow, since entries append in
// arrival order and arrival order is non-decreasing on the hot path per
// exchange/symbol).
func asofJoin(a, b []models.Quote, tolerance time.Duration) []joinedRow {
	rows := make([]joinedRow, 0, len(a))

	bi := 0
	for _, qa := range a {
		ta := qa.EffectiveTimestamp()

		for bi < len(b) && !b[bi].EffectiveTimestamp().After(ta) {
			bi++
		}
		if bi == 0 {
			continue
		}
		qb := b[bi-1]
		tb := qb.EffectiveTimestamp()

		if ta.Sub(tb) > tolerance {
			continue
		}

		bidA, _ := qa.BestBid.Float64()
		bidB, _ := qb.BestBid.Float64()
		rows = append(rows, joinedRow{ts: ta, bidA: bidA, bidB: bidB})
	}

	return rows
}
