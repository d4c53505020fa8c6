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
	bingxBaseURL = "https://open-api.bingx.com"
	bingxWSURL   = "wss://open-api-swap.bingx.com/swap-market"
	bingxChunk   = 100
)

// BingX streams perpetual-swap best bid/ask over BingX's public
// WebSocket. BingX rejects multi-symbol subscribe frames, so each
// shard is told oneAtATime=true and sends one "sub" frame per symbol.
type BingX struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewBingX() *BingX {
	return &BingX{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("bingx"),
	}
}

func (b *BingX) Name() string   { return "bingx" }
func (b *BingX) ChunkSize() int { return bingxChunk }

func (b *BingX) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := WaitVenue(ctx, "bingx"); err != nil {
		return nil, err
	}

	reqURL := bingxBaseURL + endpoint
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

func (b *BingX) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := b.doRequest(ctx, "/openApi/swap/v2/quote/contracts", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Symbol            string `json:"symbol"`
			PricePrecision    int32  `json:"pricePrecision"`
			QuantityPrecision int32  `json:"quantityPrecision"`
			TradeMinUSDT      string `json:"tradeMinUSDT"`
			Status            int    `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &ClientError{Exchange: "bingx", Message: resp.Msg}
	}

	out := make([]models.SymbolInfo, 0, len(resp.Data))
	for _, c := range resp.Data {
		if c.Status != 1 || !strings.HasSuffix(c.Symbol, "-USDT") {
			continue
		}
		info := models.SymbolInfo{
			Exchange:     "bingx",
			Name:         c.Symbol,
			PriceStep:    decimal.New(1, -c.PricePrecision),
			QuantityStep: decimal.New(1, -c.QuantityPrecision),
		}
		info.MinNotional, _ = decimal.NewFromString(c.TradeMinUSDT)
		out = append(out, info)
	}
	return out, nil
}

func (b *BingX) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := b.doRequest(ctx, "/openApi/swap/v2/quote/ticker", nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Symbol      string `json:"symbol"`
			QuoteVolume string `json:"quoteVolume"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, &ClientError{Exchange: "bingx", Message: resp.Msg}
	}

	out := make([]models.TickerVolume, 0, len(resp.Data))
	for _, t := range resp.Data {
		if !strings.HasSuffix(t.Symbol, "-USDT") {
			continue
		}
		vol, _ := decimal.NewFromString(t.QuoteVolume)
		out = append(out, models.TickerVolume{Symbol: t.Symbol, QuoteVolume: vol.InexactFloat64()})
	}
	return out, nil
}

// Subscribe streams top-of-book only: BingX's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (b *BingX) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, bingxChunk) {
		build := func(syms []string) interface{} {
			sym := syms[0]
			return map[string]interface{}{
				"id":       "ticker_" + sym,
				"reqType":  "sub",
				"dataType": sym + "@ticker",
			}
		}

		shard := NewShard("bingx", i, bingxWSURL, chunk, true, build, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { b.handleMessage(message, onQuote) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				b.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("bingx shard %d: %w", i, err)
		}
		b.shards = append(b.shards, shard)
	}
	return nil
}

func (b *BingX) handleMessage(message []byte, onQuote func(models.Quote)) {
	var msg struct {
		DataType string `json:"dataType"`
		Data     struct {
			Symbol    string `json:"s"`
			BidPrice  string `json:"b"`
			AskPrice  string `json:"a"`
			EventTime int64  `json:"E"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if !strings.Contains(msg.DataType, "@ticker") {
		return
	}
	if msg.Data.BidPrice == "" || msg.Data.AskPrice == "" {
		return
	}

	bid, err1 := decimal.NewFromString(msg.Data.BidPrice)
	ask, err2 := decimal.NewFromString(msg.Data.AskPrice)
	if err1 != nil || err2 != nil {
		return
	}

	var serverTs *time.Time
	if msg.Data.EventTime > 0 {
		t := time.UnixMilli(msg.Data.EventTime)
		serverTs = &t
	}

	onQuote(models.Quote{
		Exchange:        "bingx",
		Symbol:          utils.CanonicalSymbol(msg.Data.Symbol),
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: serverTs,
		LocalTimestamp:  time.Now(),
	})
}

func (b *BingX) Stop() error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		s.Close()
	}
	b.shards = nil
	return nil
}

func (b *BingX) Health() bool {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
