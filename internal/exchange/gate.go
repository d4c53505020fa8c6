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
	gateBaseURL = "https://api.gateio.ws/api/v4"
	gateWSURL   = "wss://fx-ws.gateio.ws/v4/ws/usdt"
	gateChunk   = 30
)

// Gate streams USDT-margined futures best bid/ask over Gate.io's
// futures WebSocket.
type Gate struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewGate() *Gate {
	return &Gate{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("gate"),
	}
}

func (g *Gate) Name() string   { return "gate" }
func (g *Gate) ChunkSize() int { return gateChunk }

func (g *Gate) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := WaitVenue(ctx, "gate"); err != nil {
		return nil, err
	}

	reqURL := gateBaseURL + endpoint
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

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (g *Gate) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := g.doRequest(ctx, "/futures/usdt/contracts", nil)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Name             string `json:"name"`
		InDelisting      bool   `json:"in_delisting"`
		OrderPriceRound  string `json:"order_price_round"`
		OrderSizeMin     int64  `json:"order_size_min"`
		QuantoMultiplier string `json:"quanto_multiplier"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]models.SymbolInfo, 0, len(resp))
	for _, c := range resp {
		if !strings.HasSuffix(c.Name, "_USDT") || c.InDelisting {
			continue
		}
		info := models.SymbolInfo{Exchange: "gate", Name: c.Name}
		info.PriceStep, _ = decimal.NewFromString(c.OrderPriceRound)
		// Gate futures order sizes are always whole contracts.
		info.QuantityStep = decimal.NewFromInt(1)
		multiplier, _ := decimal.NewFromString(c.QuantoMultiplier)
		info.MinNotional = decimal.NewFromInt(c.OrderSizeMin).Mul(multiplier)
		out = append(out, info)
	}
	return out, nil
}

func (g *Gate) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := g.doRequest(ctx, "/futures/usdt/tickers", nil)
	if err != nil {
		return nil, err
	}

	var resp []struct {
		Contract     string `json:"contract"`
		VolumeUsd24h string `json:"volume_24h_usd"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}

	out := make([]models.TickerVolume, 0, len(resp))
	for _, t := range resp {
		if !strings.HasSuffix(t.Contract, "_USDT") {
			continue
		}
		vol, _ := decimal.NewFromString(t.VolumeUsd24h)
		out = append(out, models.TickerVolume{Symbol: t.Contract, QuoteVolume: vol.InexactFloat64()})
	}
	return out, nil
}

// Subscribe streams top-of-book only: Gate's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (g *Gate) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	g.shardMu.Lock()
	defer g.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, gateChunk) {
		build := func(syms []string) interface{} {
			return map[string]interface{}{
				"time":    time.Now().Unix(),
				"channel": "futures.tickers",
				"event":   "subscribe",
				"payload": syms,
			}
		}

		shard := NewShard("gate", i, gateWSURL, chunk, false, build, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { g.handleMessage(message, onQuote) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				g.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("gate shard %d: %w", i, err)
		}
		g.shards = append(g.shards, shard)
	}
	return nil
}

func (g *Gate) handleMessage(message []byte, onQuote func(models.Quote)) {
	var base struct {
		Channel string          `json:"channel"`
		Event   string          `json:"event"`
		Time    int64           `json:"time"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(message, &base); err != nil {
		return
	}
	if base.Channel != "futures.tickers" || base.Event != "update" {
		return
	}

	var rows []struct {
		Contract   string `json:"contract"`
		HighestBid string `json:"highest_bid"`
		LowestAsk  string `json:"lowest_ask"`
	}
	if err := json.Unmarshal(base.Result, &rows); err != nil {
		return
	}

	serverTs := time.Unix(base.Time, 0)
	for _, r := range rows {
		if r.HighestBid == "" || r.LowestAsk == "" {
			continue
		}
		bid, err1 := decimal.NewFromString(r.HighestBid)
		ask, err2 := decimal.NewFromString(r.LowestAsk)
		if err1 != nil || err2 != nil {
			continue
		}

		onQuote(models.Quote{
			Exchange:        "gate",
			Symbol:          utils.CanonicalSymbol(r.Contract),
			BestBid:         bid,
			BestAsk:         ask,
			ServerTimestamp: &serverTs,
			LocalTimestamp:  time.Now(),
		})
	}
}

func (g *Gate) Stop() error {
	g.shardMu.Lock()
	defer g.shardMu.Unlock()
	for _, s := range g.shards {
		s.Close()
	}
	g.shards = nil
	return nil
}

func (g *Gate) Health() bool {
	g.shardMu.Lock()
	defer g.shardMu.Unlock()
	for _, s := range g.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
