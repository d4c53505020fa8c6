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
	mexcRESTURL = "https://contract.mexc.com"
	mexcWSURL   = "wss://contract.mexc.com/edge"
	mexcChunk   = 6
)

// MEXC streams contract best bid/ask over MEXC's futures WebSocket.
// MEXC's sub.ticker channel takes one symbol per frame, so shards send
// one subscribe frame per symbol like BingX.
type MEXC struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewMEXC() *MEXC {
	return &MEXC{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("mexc"),
	}
}

func (m *MEXC) Name() string   { return "mexc" }
func (m *MEXC) ChunkSize() int { return mexcChunk }

func (m *MEXC) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	if err := WaitVenue(ctx, "mexc"); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mexcRESTURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (m *MEXC) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := m.doRequest(ctx, "/api/v1/contract/detail")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			Symbol       string  `json:"symbol"`
			PriceUnit    float64 `json:"priceUnit"`
			VolUnit      float64 `json:"volUnit"`
			MinVol       float64 `json:"minVol"`
			ContractSize float64 `json:"contractSize"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &ClientError{Exchange: "mexc", Message: "contract/detail returned success=false"}
	}

	out := make([]models.SymbolInfo, 0, len(resp.Data))
	for _, c := range resp.Data {
		if !strings.HasSuffix(c.Symbol, "_USDT") {
			continue
		}
		out = append(out, models.SymbolInfo{
			Exchange:     "mexc",
			Name:         c.Symbol,
			PriceStep:    decimal.NewFromFloat(c.PriceUnit),
			QuantityStep: decimal.NewFromFloat(c.VolUnit),
			MinNotional:  decimal.NewFromFloat(c.MinVol * c.ContractSize),
		})
	}
	return out, nil
}

func (m *MEXC) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := m.doRequest(ctx, "/api/v1/contract/ticker")
	if err != nil {
		return nil, err
	}

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			Symbol string  `json:"symbol"`
			Amount24 float64 `json:"amount24"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &ClientError{Exchange: "mexc", Message: "contract/ticker returned success=false"}
	}

	out := make([]models.TickerVolume, 0, len(resp.Data))
	for _, t := range resp.Data {
		if !strings.HasSuffix(t.Symbol, "_USDT") {
			continue
		}
		out = append(out, models.TickerVolume{Symbol: t.Symbol, QuoteVolume: t.Amount24})
	}
	return out, nil
}

// Subscribe streams top-of-book only: MEXC's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (m *MEXC) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	m.shardMu.Lock()
	defer m.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, mexcChunk) {
		build := func(syms []string) interface{} {
			return map[string]interface{}{
				"method": "sub.ticker",
				"param":  map[string]string{"symbol": syms[0]},
			}
		}

		shard := NewShard("mexc", i, mexcWSURL, chunk, true, build, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { m.handleMessage(message, onQuote) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				m.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("mexc shard %d: %w", i, err)
		}
		m.shards = append(m.shards, shard)
	}
	return nil
}

func (m *MEXC) handleMessage(message []byte, onQuote func(models.Quote)) {
	var msg struct {
		Channel string `json:"channel"`
		Data    struct {
			Symbol    string  `json:"symbol"`
			Bid1      float64 `json:"bid1"`
			Ask1      float64 `json:"ask1"`
			Timestamp int64   `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Channel != "push.ticker" || msg.Data.Symbol == "" {
		return
	}
	if msg.Data.Bid1 <= 0 || msg.Data.Ask1 <= 0 {
		return
	}

	bid := decimal.NewFromFloat(msg.Data.Bid1)
	ask := decimal.NewFromFloat(msg.Data.Ask1)

	var serverTs *time.Time
	if msg.Data.Timestamp > 0 {
		t := time.UnixMilli(msg.Data.Timestamp)
		serverTs = &t
	}

	onQuote(models.Quote{
		Exchange:        "mexc",
		Symbol:          utils.CanonicalSymbol(msg.Data.Symbol),
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: serverTs,
		LocalTimestamp:  time.Now(),
	})
}

func (m *MEXC) Stop() error {
	m.shardMu.Lock()
	defer m.shardMu.Unlock()
	for _, s := range m.shards {
		s.Close()
	}
	m.shards = nil
	return nil
}

func (m *MEXC) Health() bool {
	m.shardMu.Lock()
	defer m.shardMu.Unlock()
	for _, s := range m.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
