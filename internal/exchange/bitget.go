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
	bitgetBaseURL  = "https://api.bitget.com"
	bitgetWSPublic = "wss://ws.bitget.com/v2/ws/public"
	bitgetChunk    = 100
)

// Bitget streams USDT-FUTURES best bid/ask over Bitget's v2 public
// WebSocket.
type Bitget struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewBitget() *Bitget {
	return &Bitget{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("bitget"),
	}
}

func (b *Bitget) Name() string   { return "bitget" }
func (b *Bitget) ChunkSize() int { return bitgetChunk }

func (b *Bitget) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := WaitVenue(ctx, "bitget"); err != nil {
		return nil, err
	}

	reqURL := bitgetBaseURL + endpoint
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

func (b *Bitget) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := b.doRequest(ctx, "/api/v2/mix/market/contracts", map[string]string{"productType": "USDT-FUTURES"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Symbol        string `json:"symbol"`
			PricePlace    string `json:"pricePlace"`
			PriceEndStep  string `json:"priceEndStep"`
			SizeMultiplier string `json:"sizeMultiplier"`
			MinTradeUSDT  string `json:"minTradeUSDT"`
			SymbolStatus  string `json:"symbolStatus"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "00000" {
		return nil, &ClientError{Exchange: "bitget", Message: resp.Msg}
	}

	out := make([]models.SymbolInfo, 0, len(resp.Data))
	for _, c := range resp.Data {
		if c.SymbolStatus != "normal" {
			continue
		}
		info := models.SymbolInfo{Exchange: "bitget", Name: c.Symbol}
		places, _ := decimal.NewFromString(c.PricePlace)
		endStep, _ := decimal.NewFromString(c.PriceEndStep)
		info.PriceStep = endStep.Mul(decimal.NewFromInt(10).Pow(places.Neg()))
		info.QuantityStep, _ = decimal.NewFromString(c.SizeMultiplier)
		info.MinNotional, _ = decimal.NewFromString(c.MinTradeUSDT)
		out = append(out, info)
	}
	return out, nil
}

func (b *Bitget) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := b.doRequest(ctx, "/api/v2/mix/market/tickers", map[string]string{"productType": "USDT-FUTURES"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			Symbol        string `json:"symbol"`
			UsdtVolume string `json:"usdtVolume"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "00000" {
		return nil, &ClientError{Exchange: "bitget", Message: resp.Msg}
	}

	out := make([]models.TickerVolume, 0, len(resp.Data))
	for _, t := range resp.Data {
		vol, _ := decimal.NewFromString(t.UsdtVolume)
		out = append(out, models.TickerVolume{Symbol: t.Symbol, QuoteVolume: vol.InexactFloat64()})
	}
	return out, nil
}

// Subscribe streams top-of-book only: Bitget's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (b *Bitget) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, bitgetChunk) {
		build := func(syms []string) interface{} {
			args := make([]map[string]string, len(syms))
			for j, s := range syms {
				args[j] = map[string]string{"instType": "USDT-FUTURES", "channel": "ticker", "instId": s}
			}
			return map[string]interface{}{"op": "subscribe", "args": args}
		}

		shard := NewShard("bitget", i, bitgetWSPublic, chunk, false, build, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { b.handleMessage(message, onQuote) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				b.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("bitget shard %d: %w", i, err)
		}
		b.shards = append(b.shards, shard)
	}
	return nil
}

func (b *Bitget) handleMessage(message []byte, onQuote func(models.Quote)) {
	var msg struct {
		Action string `json:"action"`
		Arg    struct {
			Channel string `json:"channel"`
		} `json:"arg"`
		Data []struct {
			InstId string `json:"instId"`
			BidPr  string `json:"bidPr"`
			AskPr  string `json:"askPr"`
			Ts     string `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Arg.Channel != "ticker" || len(msg.Data) == 0 {
		return
	}

	d := msg.Data[0]
	if d.BidPr == "" || d.AskPr == "" {
		return
	}
	bid, err1 := decimal.NewFromString(d.BidPr)
	ask, err2 := decimal.NewFromString(d.AskPr)
	if err1 != nil || err2 != nil {
		return
	}

	var serverTs *time.Time
	if ms, err := decimal.NewFromString(d.Ts); err == nil {
		t := time.UnixMilli(ms.IntPart())
		serverTs = &t
	}

	onQuote(models.Quote{
		Exchange:        "bitget",
		Symbol:          utils.CanonicalSymbol(d.InstId),
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: serverTs,
		LocalTimestamp:  time.Now(),
	})
}

func (b *Bitget) Stop() error {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		s.Close()
	}
	b.shards = nil
	return nil
}

func (b *Bitget) Health() bool {
	b.shardMu.Lock()
	defer b.shardMu.Unlock()
	for _, s := range b.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
