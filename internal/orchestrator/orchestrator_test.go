package orchestrator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crossfeed/internal/config"
	"crossfeed/internal/models"
)

func TestSelectSymbolsAppliesVolumeAndQuoteFilter(t *testing.T) {
	o := &Orchestrator{cfg: &config.Config{VolumeFilter: config.VolumeFilterConfig{Min: 1_000_000, Max: 1_000_000_000}}}

	tickers := []models.TickerVolume{
		{Symbol: "BTCUSDT", QuoteVolume: 5_000_000},
		{Symbol: "ETHBTC", QuoteVolume: 5_000_000},
		{Symbol: "DOGEUSDT", QuoteVolume: 500},
		{Symbol: "SOLUSDT", QuoteVolume: 2_000_000_000},
	}

	got := o.selectSymbols(tickers)
	if len(got) != 1 || got[0] != "BTCUSDT" {
		t.Errorf("selectSymbols() = %v, want [BTCUSDT]", got)
	}
}

func TestIndexSymbolsKeepsOnlySelectedAndIsIdempotent(t *testing.T) {
	o := &Orchestrator{symbols: make(map[models.SymbolKey]models.SymbolInfo)}

	infos := []models.SymbolInfo{
		{Exchange: "binance", Name: "BTCUSDT", PriceStep: decimal.NewFromFloat(0.1)},
		{Exchange: "binance", Name: "ETHUSDT", PriceStep: decimal.NewFromFloat(0.01)},
	}
	selected := []string{"BTCUSDT"}

	o.indexSymbols("binance", infos, selected)

	if len(o.symbols) != 1 {
		t.Fatalf("symbols = %v, want exactly one entry for BTCUSDT", o.symbols)
	}
	key := models.SymbolKey{Exchange: "binance", Symbol: "BTC_USDT"}
	got, ok := o.symbols[key]
	if !ok {
		t.Fatalf("symbols missing key %+v", key)
	}
	if !got.PriceStep.Equal(decimal.NewFromFloat(0.1)) {
		t.Errorf("PriceStep = %s, want 0.1", got.PriceStep)
	}

	// A second call with a different PriceStep must not overwrite the
	// already-indexed entry: republication is a no-op.
	infos[0].PriceStep = decimal.NewFromFloat(99)
	o.indexSymbols("binance", infos, selected)
	if !o.symbols[key].PriceStep.Equal(decimal.NewFromFloat(0.1)) {
		t.Errorf("indexSymbols overwrote an existing entry, want idempotent insert")
	}
}

func TestPublishDropOldestDropsOldestOnFull(t *testing.T) {
	ch := make(chan models.Quote, 2)
	q1 := models.Quote{Symbol: "A"}
	q2 := models.Quote{Symbol: "B"}
	q3 := models.Quote{Symbol: "C"}

	publishDropOldest(ch, q1, "test")
	publishDropOldest(ch, q2, "test")
	publishDropOldest(ch, q3, "test")

	if len(ch) != 2 {
		t.Fatalf("channel length = %d, want 2", len(ch))
	}
	first := <-ch
	second := <-ch
	if first.Symbol != "B" || second.Symbol != "C" {
		t.Errorf("got %s, %s; want B, C (A dropped)", first.Symbol, second.Symbol)
	}
}

func TestHealthRegistrySweepMarksStale(t *testing.T) {
	r := NewHealthRegistry()
	r.RecordQuote("binance", time.Now().Add(-2*time.Minute))

	stale := r.Sweep(time.Now())
	if len(stale) != 1 || stale[0] != "binance" {
		t.Errorf("Sweep() = %v, want [binance]", stale)
	}

	snap := r.Snapshot()
	if len(snap) != 1 || !snap[0].Stale {
		t.Errorf("Snapshot() = %+v, want binance marked stale", snap)
	}
}

func TestHealthRegistryRecordQuoteClearsStale(t *testing.T) {
	r := NewHealthRegistry()
	r.RecordQuote("okx", time.Now().Add(-2*time.Minute))
	r.Sweep(time.Now())
	r.RecordQuote("okx", time.Now())

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].Stale {
		t.Errorf("Snapshot() = %+v, want okx fresh after new quote", snap)
	}
}
