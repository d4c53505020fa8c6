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
	bybitBaseURL  = "https://api.bybit.com"
	bybitWSPublic = "wss://stream.bybit.com/v5/public/linear"
	bybitChunk    = 10
)

// Bybit streams linear-perpetual best bid/ask over Bybit's v5 public
// WebSocket. It never signs a request: market data here is public.
type Bybit struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewBybit() *Bybit {
	return &Bybit{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("bybit"),
	}
}

func (b *Bybit) Name() string  { return "bybit" }
func (b *Bybit) ChunkSize() int { return bybitChunk }

func (b *Bybit) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := WaitVenue(ctx, "bybit"); err != nil {
		return nil, err
	}

	reqURL := bybitBaseURL + endpoint
	if len(params) > 0 {
		var parts []string
		for k, v := range params {
			parts = append(parts, k+"="+v)
		}
		reqURL += "?" + strings.Join(parts, "&")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
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

func (b *Bybit) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := b.doRequest(ctx, "/v5/market/instruments-info", map[string]string{"category": "linear"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				Symbol      string `json:"symbol"`
				QuoteCoin   string `json:"quoteCoin"`
				Status      string `json:"status"`
				PriceFilter struct {
					TickSize string `json:"tickSize"`
				} `json:"priceFilter"`
				LotSizeFilter struct {
					QtyStep     string `json:"qtyStep"`
					MinOrderQty string `json:"minOrderQty"`
				} `json:"lotSizeFilter"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &ClientError{Exchange: "bybit", Message: resp.RetMsg}
	}

	out := make([]models.SymbolInfo, 0, len(resp.Result.List))
	for _, s := range resp.Result.List {
		if s.QuoteCoin != "USDT" || s.Status != "Trading" {
			continue
		}
		info := models.SymbolInfo{Exchange: "bybit", Name: s.Symbol}
		info.PriceStep, _ = decimal.NewFromString(s.PriceFilter.TickSize)
		info.QuantityStep, _ = decimal.NewFromString(s.LotSizeFilter.QtyStep)
		// instruments-info doesn't expose a min-notional field for linear
		// contracts; MinOrderQty is the closest proxy the endpoint gives.
		minQty, _ := decimal.NewFromString(s.LotSizeFilter.MinOrderQty)
		info.MinNotional = minQty
		out = append(out, info)
	}
	return out, nil
}

func (b *Bybit) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := b.doRequest(ctx, "/v5/market/tickers", map[string]string{"category": "linear"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
		Result  struct {
			List []struct {
				Symbol    string `json:"symbol"`
				Turnover24h string `json:"turnover24h"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, &ClientError{Exchange: "bybit", Message: resp.RetMsg}
	}

	out := make([]models.TickerVolume, 0, len(resp.Result.List))
	for _, t := range resp.Result.List {
		vol, _ := decimal.NewFromString(t.Turnover24h)
		out = append(out, models.TickerVolume{Symbol: t.Symbol, QuoteVolume: vol.InexactFloat64()})
	}
	return out, nil
}

// Subscribe streams top-of-book only: Bybit's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (b *Bybit) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, bybitChunk) {
		build := func(syms []string) interface{} {
			args := make([]string, len(syms))
			for j, s := range syms {
				args[j] = "tickers." + s
			}
			return map[string]interface{}{"op": "subscribe", "args": args}
		}

		shard := NewShard("bybit", i, bybitWSPublic, chunk, false, build, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { b.handleMessage(message, onQuote) })
		shard.SetOnConnect(func() { b.log.Debug("shard connected") })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				b.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("bybit shard %d: %w", i, err)
		}
		b.shards = append(b.shards, shard)
	}

	select {
	case <-ctx.Done():
		return b.Stop()
	default:
	}
	return nil
}

func (b *Bybit) handleMessage(message []byte, onQuote func(models.Quote)) {
	var msg struct {
		Topic string `json:"topic"`
		Ts    int64  `json:"ts"`
		Data  struct {
			Symbol    string `json:"symbol"`
			Bid1Price string `json:"bid1Price"`
			Ask1Price string `json:"ask1Price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if !strings.HasPrefix(msg.Topic, "tickers.") {
		return
	}
	if msg.Data.Bid1Price == "" || msg.Data.Ask1Price == "" {
		return
	}

	bid, err1 := decimal.NewFromString(msg.Data.Bid1Price)
	ask, err2 := decimal.NewFromString(msg.Data.Ask1Price)
	if err1 != nil || err2 != nil {
		return
	}

	serverTs := time.UnixMilli(msg.Ts)
	onQuote(models.Quote{
		Exchange:       "bybit",
		Symbol:         utils.CanonicalSymbol(msg.Data.Symbol),
		BestBid:        bid,
		BestAsk:        ask,
		ServerTimestamp: &serverTs,
		LocalTimestamp: time.Now(),
	})
}

func (b *Bybit) Stop() error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		s.Close()
	}
	b.shards = nil
	return nil
}

func (b *Bybit) Health() bool {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
