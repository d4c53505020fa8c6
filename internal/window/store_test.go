package window

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crossfeed/internal/models"
)

func quoteAt(exchange, symbol string, at time.Time, bid float64) models.Quote {
	return models.Quote{
		Exchange:       exchange,
		Symbol:         symbol,
		BestBid:        decimal.NewFromFloat(bid),
		BestAsk:        decimal.NewFromFloat(bid + 1),
		LocalTimestamp: at,
	}
}

func TestStoreAppendAndSnapshot(t *testing.T) {
	s := NewStore(time.Hour, 0)
	now := time.Now()

	s.Append(quoteAt("binance", "BTC_USDT", now, 100))
	s.Append(quoteAt("binance", "BTC_USDT", now.Add(time.Second), 101))

	got := s.Snapshot("binance", "BTC_USDT")
	if len(got) != 2 {
		t.Fatalf("Snapshot() returned %d quotes, want 2", len(got))
	}
	if s.Snapshot("binance", "ETH_USDT") != nil {
		t.Errorf("Snapshot() for untouched symbol should be nil")
	}
}

func TestStoreCleanupEvictsEntriesOlderThanHorizon(t *testing.T) {
	s := NewStore(time.Minute, 0)
	now := time.Now()

	s.Append(quoteAt("binance", "BTC_USDT", now.Add(-2*time.Minute), 100))
	s.Append(quoteAt("binance", "BTC_USDT", now, 101))

	s.Cleanup()

	got := s.Snapshot("binance", "BTC_USDT")
	if len(got) != 1 {
		t.Fatalf("Snapshot() after Cleanup() returned %d quotes, want 1", len(got))
	}
	if got[0].BestBid.String() != "101" {
		t.Errorf("surviving quote BestBid = %s, want 101", got[0].BestBid)
	}
}

func TestStoreEvictsLeastRecentlyUsedOverCapacity(t *testing.T) {
	s := NewStore(time.Hour, 5)
	now := time.Now()

	for i := 0; i < 20; i++ {
		sym := models.SymbolKey{Exchange: "binance", Symbol: string(rune('A' + i))}
		s.Append(quoteAt(sym.Exchange, sym.Symbol, now.Add(time.Duration(i)*time.Millisecond), float64(i)))
	}

	if s.Size() > 5 {
		t.Errorf("Size() = %d, eviction should keep it bounded near capacity", s.Size())
	}
}

func TestBusPublishNotifiesSubscribers(t *testing.T) {
	b := NewBus()
	var got models.SymbolKey
	calls := 0
	unsubscribe := b.Subscribe(func(k models.SymbolKey) {
		got = k
		calls++
	})
	defer unsubscribe()

	key := models.SymbolKey{Exchange: "binance", Symbol: "BTC_USDT"}
	b.Publish(key)

	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	if got != key {
		t.Errorf("handler received %+v, want %+v", got, key)
	}
}

func TestBusUnsubscribeStopsNotifications(t *testing.T) {
	b := NewBus()
	calls := 0
	unsubscribe := b.Subscribe(func(models.SymbolKey) { calls++ })
	unsubscribe()

	b.Publish(models.SymbolKey{Exchange: "binance", Symbol: "BTC_USDT"})

	if calls != 0 {
		t.Errorf("handler called %d times after unsubscribe, want 0", calls)
	}
}

func TestStoreAppendTradeAndSnapshot(t *testing.T) {
	s := NewStore(time.Hour, 0)
	s.AppendTrade(models.Trade{Exchange: "binance", Symbol: "BTC_USDT", Price: decimal.NewFromFloat(100), Side: "buy"})
	s.AppendTrade(models.Trade{Exchange: "binance", Symbol: "BTC_USDT", Price: decimal.NewFromFloat(101), Side: "sell"})

	got := s.SnapshotTrades("binance", "BTC_USDT")
	if len(got) != 2 {
		t.Fatalf("SnapshotTrades() returned %d trades, want 2", len(got))
	}
	if got[0].Side != "buy" || got[1].Side != "sell" {
		t.Errorf("SnapshotTrades() = %+v, want buy then sell in append order", got)
	}
	if s.SnapshotTrades("binance", "ETH_USDT") != nil {
		t.Errorf("SnapshotTrades() for untouched symbol should be nil")
	}
}

func TestStoreAppendTradeEvictsOldestBeyondRingCapacity(t *testing.T) {
	s := NewStore(time.Hour, 0)
	for i := 0; i < tradeRingCapacity+10; i++ {
		s.AppendTrade(models.Trade{Exchange: "binance", Symbol: "BTC_USDT", Price: decimal.NewFromFloat(float64(i))})
	}

	got := s.SnapshotTrades("binance", "BTC_USDT")
	if len(got) != tradeRingCapacity {
		t.Fatalf("SnapshotTrades() returned %d trades, want ring capacity %d", len(got), tradeRingCapacity)
	}
	if got[0].Price.String() != "10" {
		t.Errorf("oldest surviving trade price = %s, want 10 (the first 10 should have been evicted)", got[0].Price)
	}
}

func TestRollingWindowEvictTruncatesPrefix(t *testing.T) {
	now := time.Now()
	w := NewRollingWindow[models.Quote](time.Minute, func(q models.Quote) time.Time { return q.LocalTimestamp })

	w.Append(quoteAt("binance", "BTC_USDT", now.Add(-2*time.Minute), 1))
	w.Append(quoteAt("binance", "BTC_USDT", now, 2))

	w.Evict(now)

	if w.Len() != 1 {
		t.Fatalf("Len() after Evict() = %d, want 1", w.Len())
	}
}
