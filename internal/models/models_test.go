package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestQuoteValid(t *testing.T) {
	tests := []struct {
		name string
		bid  float64
		ask  float64
		want bool
	}{
		{"normal", 100, 100.5, true},
		{"equal", 100, 100, true},
		{"zero bid", 0, 100, false},
		{"zero ask", 100, 0, false},
		{"ask below bid", 101, 100, false},
		{"negative bid", -1, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quote{
				BestBid: decimal.NewFromFloat(tt.bid),
				BestAsk: decimal.NewFromFloat(tt.ask),
			}
			if got := q.Valid(); got != tt.want {
				t.Errorf("Quote{%v,%v}.Valid() = %v, want %v", tt.bid, tt.ask, got, tt.want)
			}
		})
	}
}

func TestQuoteSpreadPercentZeroBid(t *testing.T) {
	q := Quote{BestBid: decimal.Zero, BestAsk: decimal.NewFromInt(100)}
	if got := q.SpreadPercent(); got != nil {
		t.Errorf("SpreadPercent() on zero bid = %v, want nil", got)
	}
}

func TestQuoteSpreadPercent(t *testing.T) {
	q := Quote{BestBid: decimal.NewFromInt(100), BestAsk: decimal.NewFromInt(101)}
	got := q.SpreadPercent()
	if got == nil {
		t.Fatal("SpreadPercent() = nil, want 1.0")
	}
	if *got < 0.999 || *got > 1.001 {
		t.Errorf("SpreadPercent() = %v, want ~1.0", *got)
	}
}

func TestQuoteEffectiveTimestampPrefersServer(t *testing.T) {
	local := time.Now()
	server := local.Add(-5 * time.Second)
	q := Quote{LocalTimestamp: local, ServerTimestamp: &server}
	if got := q.EffectiveTimestamp(); !got.Equal(server) {
		t.Errorf("EffectiveTimestamp() = %v, want server timestamp %v", got, server)
	}

	q2 := Quote{LocalTimestamp: local}
	if got := q2.EffectiveTimestamp(); !got.Equal(local) {
		t.Errorf("EffectiveTimestamp() without server ts = %v, want local %v", got, local)
	}
}

func TestSymbolInfoKey(t *testing.T) {
	s := SymbolInfo{Exchange: "bybit", Name: "BTC_USDT"}
	want := SymbolKey{Exchange: "bybit", Symbol: "BTC_USDT"}
	if got := s.Key(); got != want {
		t.Errorf("SymbolInfo.Key() = %+v, want %+v", got, want)
	}
}

func TestChartFrameEmpty(t *testing.T) {
	if !(ChartFrame{}).Empty() {
		t.Error("zero-value ChartFrame should be Empty")
	}
	f := ChartFrame{Timestamps: []int64{1}}
	if f.Empty() {
		t.Error("ChartFrame with a timestamp should not be Empty")
	}
}
