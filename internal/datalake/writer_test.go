package datalake

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"crossfeed/internal/models"
)

func TestParquetWriterRoundTripsThroughHistoricalReader(t *testing.T) {
	root := t.TempDir()
	writer := NewParquetWriter(root, 10, time.Hour)
	writer.Start()

	now := time.Now().UTC()
	quote := models.Quote{
		Exchange:       "binance",
		Symbol:         "BTC_USDT",
		BestBid:        decimal.NewFromFloat(50000.12),
		BestAsk:        decimal.NewFromFloat(50000.50),
		LocalTimestamp: now,
	}
	writer.Enqueue(quote, 1_000_000, 1_000_000_000)

	// Force a flush without waiting for the hourly timer.
	writer.Stop()

	reader := NewHistoricalReader(root)
	quotes, err := reader.ReadSeries("binance", "BTC_USDT")
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("ReadSeries() returned %d quotes, want 1", len(quotes))
	}
	got := quotes[0]
	if !got.BestBid.Equal(quote.BestBid) {
		t.Errorf("BestBid = %s, want %s", got.BestBid, quote.BestBid)
	}
	if !got.BestAsk.Equal(quote.BestAsk) {
		t.Errorf("BestAsk = %s, want %s", got.BestAsk, quote.BestAsk)
	}
}

func TestHistoricalReaderReturnsEmptyForMissingPartition(t *testing.T) {
	reader := NewHistoricalReader(t.TempDir())
	quotes, err := reader.ReadSeries("binance", "NOSUCH_SYMBOL")
	if err != nil {
		t.Fatalf("ReadSeries() error = %v", err)
	}
	if len(quotes) != 0 {
		t.Errorf("ReadSeries() = %d quotes, want 0 for an unwritten partition", len(quotes))
	}
}

func TestParquetWriterQueueDepthIsZeroBeforeStart(t *testing.T) {
	writer := NewParquetWriter(t.TempDir(), 10, time.Hour)
	if depth := writer.QueueDepth(); depth != 0 {
		t.Errorf("QueueDepth() before Start() = %d, want 0", depth)
	}
}
