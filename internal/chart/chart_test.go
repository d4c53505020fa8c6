package chart

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crossfeed/internal/models"
)

func quote(bid, ask float64, at time.Time) models.Quote {
	return models.Quote{
		BestBid:        decimal.NewFromFloat(bid),
		BestAsk:        decimal.NewFromFloat(ask),
		LocalTimestamp: at,
	}
}

func TestAsofJoinMatchesLatestPriorSample(t *testing.T) {
	base := time.Now()
	a := []models.Quote{
		quote(100, 101, base),
		quote(102, 103, base.Add(2*time.Second)),
	}
	b := []models.Quote{
		quote(50, 51, base.Add(-time.Second)),
		quote(52, 53, base.Add(time.Second)),
	}

	rows := asofJoin(a, b, 5*time.Second)

	if len(rows) != 2 {
		t.Fatalf("asofJoin() returned %d rows, want 2", len(rows))
	}
	if rows[0].bidB != 50 {
		t.Errorf("rows[0].bidB = %v, want 50 (latest b at or before a[0])", rows[0].bidB)
	}
	if rows[1].bidB != 52 {
		t.Errorf("rows[1].bidB = %v, want 52", rows[1].bidB)
	}
}

func TestAsofJoinDropsRowsBeyondTolerance(t *testing.T) {
	base := time.Now()
	a := []models.Quote{quote(100, 101, base)}
	b := []models.Quote{quote(50, 51, base.Add(-10 * time.Second))}

	rows := asofJoin(a, b, time.Second)

	if len(rows) != 0 {
		t.Errorf("asofJoin() returned %d rows, want 0 (gap exceeds tolerance)", len(rows))
	}
}

func TestAsofJoinDropsRowsWithNoPriorMatch(t *testing.T) {
	base := time.Now()
	a := []models.Quote{quote(100, 101, base)}
	b := []models.Quote{quote(50, 51, base.Add(time.Second))}

	rows := asofJoin(a, b, time.Minute)

	if len(rows) != 0 {
		t.Errorf("asofJoin() returned %d rows, want 0 (no b sample at or before a[0])", len(rows))
	}
}

func TestSpreadSeriesComputesPercentSpread(t *testing.T) {
	rows := []joinedRow{{bidA: 110, bidB: 100}}
	got := spreadSeries(rows)
	if len(got) != 1 || got[0] == nil {
		t.Fatalf("spreadSeries() = %v, want one non-nil value", got)
	}
	if math.Abs(*got[0]-10) > 1e-9 {
		t.Errorf("spread = %v, want 10", *got[0])
	}
}

func TestSpreadSeriesNilWhenDenominatorZero(t *testing.T) {
	rows := []joinedRow{{bidA: 110, bidB: 0}}
	got := spreadSeries(rows)
	if got[0] != nil {
		t.Errorf("spread with zero bidB = %v, want nil", *got[0])
	}
}

func TestRollingBandsSkipsAllNilWindow(t *testing.T) {
	spreads := []*float64{nil, nil}
	upper, lower := rollingBands(spreads, 5, 0.97, 0.03)
	if upper[0] != nil || lower[1] != nil {
		t.Errorf("bands over an all-nil window should stay nil")
	}
}

func TestRollingBandsProducesBoundsWithinSampleRange(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	spreads := make([]*float64, len(vals))
	for i := range vals {
		v := vals[i]
		spreads[i] = &v
	}

	upper, lower := rollingBands(spreads, 5, 0.97, 0.03)
	last := len(spreads) - 1
	if upper[last] == nil || lower[last] == nil {
		t.Fatalf("expected non-nil bands at the last index with a full window")
	}
	if *upper[last] < *lower[last] {
		t.Errorf("upper band %v should not be below lower band %v", *upper[last], *lower[last])
	}
}

func TestAssembleProducesEmptyFrameWithNoOverlap(t *testing.T) {
	frame := Assemble("BTC_USDT", "binance", "bybit", nil, nil, DefaultConfig())
	if !frame.Empty() {
		t.Errorf("Assemble() with no input samples should produce an empty frame")
	}
}

func TestAssembleJoinsAndComputesSpreadsEndToEnd(t *testing.T) {
	base := time.Now()
	windowA := []models.Quote{quote(101, 102, base)}
	windowB := []models.Quote{quote(100, 101, base)}

	frame := Assemble("BTC_USDT", "binance", "bybit", windowA, windowB, DefaultConfig())

	if frame.Empty() {
		t.Fatalf("Assemble() should produce a non-empty frame for overlapping samples")
	}
	if len(frame.Spreads) != 1 || frame.Spreads[0] == nil {
		t.Fatalf("frame.Spreads = %v, want one non-nil value", frame.Spreads)
	}
}
