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
	kucoinRESTURL = "https://api-futures.kucoin.com"
	kucoinChunk   = 100
)

// Kucoin streams futures best bid/ask over KuCoin's public WebSocket.
// Unlike every other venue here, KuCoin requires a REST "bullet" call
// per connection to obtain a short-lived token and endpoint before the
// socket can be dialed, so Subscribe fetches one bullet per shard.
type Kucoin struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewKucoin() *Kucoin {
	return &Kucoin{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("kucoin"),
	}
}

func (k *Kucoin) Name() string   { return "kucoin" }
func (k *Kucoin) ChunkSize() int { return kucoinChunk }

func (k *Kucoin) doRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	if err := WaitVenue(ctx, "kucoin"); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, kucoinRESTURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (k *Kucoin) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := k.doRequest(ctx, http.MethodGet, "/api/v1/contracts/active")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string `json:"code"`
		Data []struct {
			Symbol        string  `json:"symbol"`
			QuoteCurrency string  `json:"quoteCurrency"`
			TickSize      float64 `json:"tickSize"`
			LotSize       float64 `json:"lotSize"`
			Multiplier    float64 `json:"multiplier"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "200000" {
		return nil, &ClientError{Exchange: "kucoin", Message: "unexpected response code " + resp.Code}
	}

	out := make([]models.SymbolInfo, 0, len(resp.Data))
	for _, t := range resp.Data {
		if t.QuoteCurrency != "USDT" {
			continue
		}
		info := models.SymbolInfo{
			Exchange:     "kucoin",
			Name:         t.Symbol,
			PriceStep:    decimal.NewFromFloat(t.TickSize),
			QuantityStep: decimal.NewFromFloat(t.LotSize),
			// contracts/active doesn't expose a min-notional field; one
			// lot at the contract multiplier is the closest proxy it gives.
			MinNotional: decimal.NewFromFloat(t.LotSize * t.Multiplier),
		}
		out = append(out, info)
	}
	return out, nil
}

func (k *Kucoin) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := k.doRequest(ctx, http.MethodGet, "/api/v1/contracts/active")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string `json:"code"`
		Data []struct {
			Symbol        string  `json:"symbol"`
			QuoteCurrency string  `json:"quoteCurrency"`
			TurnoverOf24h float64 `json:"turnoverOf24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "200000" {
		return nil, &ClientError{Exchange: "kucoin", Message: "unexpected response code " + resp.Code}
	}

	out := make([]models.TickerVolume, 0, len(resp.Data))
	for _, t := range resp.Data {
		if t.QuoteCurrency != "USDT" {
			continue
		}
		out = append(out, models.TickerVolume{Symbol: t.Symbol, QuoteVolume: t.TurnoverOf24h})
	}
	return out, nil
}

// bullet requests a one-time WebSocket token and endpoint, required by
// KuCoin before every connection attempt.
func (k *Kucoin) bullet(ctx context.Context) (endpoint, token string, pingInterval time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kucoinRESTURL+"/api/v1/bullet-public", nil)
	if err != nil {
		return "", "", 0, err
	}

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", 0, err
	}

	var parsed struct {
		Code string `json:"code"`
		Data struct {
			Token           string `json:"token"`
			InstanceServers []struct {
				Endpoint      string `json:"endpoint"`
				PingInterval int64  `json:"pingInterval"`
			} `json:"instanceServers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", "", 0, err
	}
	if parsed.Code != "200000" || len(parsed.Data.InstanceServers) == 0 {
		return "", "", 0, fmt.Errorf("kucoin bullet-public failed: code %s", parsed.Code)
	}

	srv := parsed.Data.InstanceServers[0]
	return srv.Endpoint, parsed.Data.Token, time.Duration(srv.PingInterval) * time.Millisecond, nil
}

// Subscribe streams top-of-book only: Kucoin's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (k *Kucoin) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	k.shardMu.Lock()
	defer k.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, kucoinChunk) {
		endpoint, token, pingInterval, err := k.bullet(ctx)
		if err != nil {
			return fmt.Errorf("kucoin bullet for shard %d: %w", i, err)
		}

		connID := fmt.Sprintf("crossfeed-%d-%d", i, time.Now().UnixNano())
		wsURL := fmt.Sprintf("%s?token=%s&connectId=%s", endpoint, token, connID)

		config := DefaultShardConfig()
		if pingInterval > 0 {
			config.PingInterval = pingInterval
		}

		topic := "/contractMarket/tickerV2:" + strings.Join(chunk, ",")
		build := func(syms []string) interface{} {
			return map[string]interface{}{
				"id":             connID,
				"type":           "subscribe",
				"topic":          topic,
				"privateChannel": false,
				"response":       true,
			}
		}

		shard := NewShard("kucoin", i, wsURL, chunk, false, build, config)
		shard.SetOnMessage(func(message []byte) { k.handleMessage(message, onQuote) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				k.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("kucoin shard %d: %w", i, err)
		}
		k.shards = append(k.shards, shard)
	}
	return nil
}

func (k *Kucoin) handleMessage(message []byte, onQuote func(models.Quote)) {
	var msg struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
		Data  struct {
			Symbol       string `json:"symbol"`
			BestBidPrice string `json:"bestBidPrice"`
			BestAskPrice string `json:"bestAskPrice"`
			Ts           int64  `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type != "message" || !strings.HasPrefix(msg.Topic, "/contractMarket/tickerV2:") {
		return
	}
	if msg.Data.BestBidPrice == "" || msg.Data.BestAskPrice == "" {
		return
	}

	bid, err1 := decimal.NewFromString(msg.Data.BestBidPrice)
	ask, err2 := decimal.NewFromString(msg.Data.BestAskPrice)
	if err1 != nil || err2 != nil {
		return
	}

	var serverTs *time.Time
	if msg.Data.Ts > 0 {
		t := time.Unix(0, msg.Data.Ts)
		serverTs = &t
	}

	onQuote(models.Quote{
		Exchange:        "kucoin",
		Symbol:          utils.CanonicalSymbol(msg.Data.Symbol),
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: serverTs,
		LocalTimestamp:  time.Now(),
	})
}

func (k *Kucoin) Stop() error {
	k.shardMu.Lock()
	defer k.shardMu.Unlock()
	for _, s := range k.shards {
		s.Close()
	}
	k.shards = nil
	return nil
}

func (k *Kucoin) Health() bool {
	k.shardMu.Lock()
	defer k.shardMu.Unlock()
	for _, s := range k.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
