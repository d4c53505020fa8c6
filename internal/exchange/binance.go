package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"crossfeed/internal/models"
	"crossfeed/pkg/utils"
)

const (
	binanceRESTURL = "https://fapi.binance.com"
	binanceWSBase  = "wss://fstream.binance.com/stream"
	binanceChunk   = 20
)

// Binance streams USDT-M futures best bid/ask over Binance's combined
// bookTicker stream. Unlike the other venues, Binance carries the
// symbol list in the connection URL itself rather than a post-connect
// subscribe frame, so each shard is given a nil SubscribeBuilder.
type Binance struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewBinance() *Binance {
	return &Binance{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("binance"),
	}
}

func (b *Binance) Name() string   { return "binance" }
func (b *Binance) ChunkSize() int { return binanceChunk }

func (b *Binance) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := WaitVenue(ctx, "binance"); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, binanceRESTURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (b *Binance) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := b.doRequest(ctx, "/fapi/v1/exchangeInfo")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Symbols []struct {
			Symbol       string `json:"symbol"`
			QuoteAsset   string `json:"quoteAsset"`
			Status       string `json:"status"`
			ContractType string `json:"contractType"`
			Filters      []struct {
				FilterType  string `json:"filterType"`
				TickSize    string `json:"tickSize"`
				StepSize    string `json:"stepSize"`
				MinNotional string `json:"notional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]models.SymbolInfo, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.QuoteAsset != "USDT" || s.Status != "TRADING" || s.ContractType != "PERPETUAL" {
			continue
		}
		info := models.SymbolInfo{Exchange: "binance", Name: s.Symbol}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "PRICE_FILTER":
				info.PriceStep, _ = decimal.NewFromString(f.TickSize)
			case "LOT_SIZE":
				info.QuantityStep, _ = decimal.NewFromString(f.StepSize)
			case "MIN_NOTIONAL":
				info.MinNotional, _ = decimal.NewFromString(f.MinNotional)
			}
		}
		out = append(out, info)
	}
	return out, nil
}

func (b *Binance) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := b.doRequest(ctx, "/fapi/v1/ticker/24hr")
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Symbol      string `json:"symbol"`
		QuoteVolume string `json:"quoteVolume"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]models.TickerVolume, 0, len(resp))
	for _, t := range resp {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		vol, _ := decimal.NewFromString(t.QuoteVolume)
		out = append(out, models.TickerVolume{Symbol: t.Symbol, QuoteVolume: vol.InexactFloat64()})
	}
	return out, nil
}

// Subscribe streams bookTicker for every symbol, combined into the same
// shard connections as each symbol's aggTrade stream: Binance's combined
// stream URL accepts any mix of stream names, so trades cost no extra
// connection.
func (b *Binance) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, binanceChunk) {
		streams := make([]string, 0, len(chunk)*2)
		for _, s := range chunk {
			lower := strings.ToLower(s)
			streams = append(streams, lower+"@bookTicker", lower+"@aggTrade")
		}
		wsURL := fmt.Sprintf("%s?streams=%s", binanceWSBase, strings.Join(streams, "/"))

		shard := NewShard("binance", i, wsURL, chunk, false, nil, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { b.handleMessage(message, onQuote, onTrade) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				b.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("binance shard %d: %w", i, err)
		}
		b.shards = append(b.shards, shard)
	}
	return nil
}

func (b *Binance) handleMessage(message []byte, onQuote func(models.Quote), onTrade func(models.Trade)) {
	var env struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	if strings.HasSuffix(env.Stream, "@aggTrade") {
		b.handleTrade(env.Data, onTrade)
		return
	}
	b.handleBookTicker(env.Data, onQuote)
}

func (b *Binance) handleBookTicker(data json.RawMessage, onQuote func(models.Quote)) {
	var d struct {
		Symbol    string `json:"s"`
		BidPrice  string `json:"b"`
		AskPrice  string `json:"a"`
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return
	}
	if d.BidPrice == "" || d.AskPrice == "" {
		return
	}

	bid, err1 := decimal.NewFromString(d.BidPrice)
	ask, err2 := decimal.NewFromString(d.AskPrice)
	if err1 != nil || err2 != nil {
		return
	}

	var serverTs *time.Time
	if d.EventTime > 0 {
		t := time.UnixMilli(d.EventTime)
		serverTs = &t
	}

	onQuote(models.Quote{
		Exchange:        "binance",
		Symbol:          utils.CanonicalSymbol(d.Symbol),
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: serverTs,
		LocalTimestamp:  time.Now(),
	})
}

func (b *Binance) handleTrade(data json.RawMessage, onTrade func(models.Trade)) {
	if onTrade == nil {
		return
	}
	var d struct {
		Symbol    string `json:"s"`
		Price     string `json:"p"`
		Quantity  string `json:"q"`
		IsBuyer   bool   `json:"m"` // true if the buyer is the market maker, i.e. an aggressive sell
		EventTime int64  `json:"E"`
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return
	}

	price, err1 := decimal.NewFromString(d.Price)
	qty, err2 := decimal.NewFromString(d.Quantity)
	if err1 != nil || err2 != nil {
		return
	}

	side := "buy"
	if d.IsBuyer {
		side = "sell"
	}

	ts := time.Now()
	if d.EventTime > 0 {
		ts = time.UnixMilli(d.EventTime)
	}

	onTrade(models.Trade{
		Exchange:  "binance",
		Symbol:    utils.CanonicalSymbol(d.Symbol),
		Price:     price,
		Quantity:  qty,
		Side:      side,
		Timestamp: ts,
	})
}

func (b *Binance) Stop() error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		s.Close()
	}
	b.shards = nil
	return nil
}

func (b *Binance) Health() bool {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
