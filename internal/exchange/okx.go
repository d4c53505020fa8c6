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
	okxBaseURL  = "https://www.okx.com"
	okxWSPublic = "wss://ws.okx.com:8443/ws/v5/public"
	okxChunk    = 20
)

// OKX streams SWAP best bid/ask over OKX's v5 public WebSocket.
type OKX struct {
	httpClient *http.Client
	log        *utils.Logger

	shardMu sync.Mutex
	shards  []*Shard
}

func NewOKX() *OKX {
	return &OKX{
		httpClient: GetGlobalHTTPClient().GetClient(),
		log:        utils.L().WithExchange("okx"),
	}
}

func (o *OKX) Name() string   { return "okx" }
func (o *OKX) ChunkSize() int { return okxChunk }

func (o *OKX) doRequest(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := WaitVenue(ctx, "okx"); err != nil {
		return nil, err
	}

	reqURL := okxBaseURL + endpoint
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

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func (o *OKX) ListSymbols(ctx context.Context) ([]models.SymbolInfo, error) {
	body, err := o.doRequest(ctx, "/api/v5/public/instruments", map[string]string{"instType": "SWAP"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			InstId   string `json:"instId"`
			SettleCcy string `json:"settleCcy"`
			State    string `json:"state"`
			TickSz   string `json:"tickSz"`
			LotSz    string `json:"lotSz"`
			MinSz    string `json:"minSz"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, &ClientError{Exchange: "okx", Message: resp.Msg}
	}

	out := make([]models.SymbolInfo, 0, len(resp.Data))
	for _, s := range resp.Data {
		if s.SettleCcy != "USDT" || s.State != "live" || !strings.HasSuffix(s.InstId, "-USDT-SWAP") {
			continue
		}
		// Name keeps OKX's full "-SWAP" spelling to match the venue-native
		// symbol selectSymbols/indexSymbols key on; handleMessage trims it
		// only when emitting the canonical cross-venue quote symbol.
		info := models.SymbolInfo{Exchange: "okx", Name: s.InstId}
		info.PriceStep, _ = decimal.NewFromString(s.TickSz)
		info.QuantityStep, _ = decimal.NewFromString(s.LotSz)
		// OKX reports a minimum order size in contracts, not quote-asset
		// notional; MinSz is the closest proxy the instruments endpoint gives.
		minSz, _ := decimal.NewFromString(s.MinSz)
		info.MinNotional = minSz
		out = append(out, info)
	}
	return out, nil
}

func (o *OKX) ListTickers(ctx context.Context) ([]models.TickerVolume, error) {
	body, err := o.doRequest(ctx, "/api/v5/market/tickers", map[string]string{"instType": "SWAP"})
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code string `json:"code"`
		Msg  string `json:"msg"`
		Data []struct {
			InstId    string `json:"instId"`
			VolCcy24h string `json:"volCcy24h"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "0" {
		return nil, &ClientError{Exchange: "okx", Message: resp.Msg}
	}

	out := make([]models.TickerVolume, 0, len(resp.Data))
	for _, t := range resp.Data {
		if !strings.HasSuffix(t.InstId, "-USDT-SWAP") {
			continue
		}
		vol, _ := decimal.NewFromString(t.VolCcy24h)
		out = append(out, models.TickerVolume{Symbol: t.InstId, QuoteVolume: vol.InexactFloat64()})
	}
	return out, nil
}

// Subscribe streams top-of-book only: OKX's public feed here
// doesn't multiplex a trade stream into the same connection, so
// onTrade is accepted for interface conformance but never called.
func (o *OKX) Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error {
	o.shardMu.Lock()
	defer o.shardMu.Unlock()

	for i, chunk := range chunkSymbols(symbols, okxChunk) {
		build := func(syms []string) interface{} {
			args := make([]map[string]string, len(syms))
			for j, s := range syms {
				args[j] = map[string]string{"channel": "tickers", "instId": s}
			}
			return map[string]interface{}{"op": "subscribe", "args": args}
		}

		shard := NewShard("okx", i, okxWSPublic, chunk, false, build, DefaultShardConfig())
		shard.SetOnMessage(func(message []byte) { o.handleMessage(message, onQuote) })
		shard.SetOnDisconnect(func(err error) {
			if err != nil {
				o.log.Warn("shard disconnected", utils.Err(err))
			}
		})

		if err := shard.Connect(); err != nil {
			return fmt.Errorf("okx shard %d: %w", i, err)
		}
		o.shards = append(o.shards, shard)
	}
	return nil
}

func (o *OKX) handleMessage(message []byte, onQuote func(models.Quote)) {
	var msg struct {
		Arg struct {
			Channel string `json:"channel"`
		} `json:"arg"`
		Data []struct {
			InstId string `json:"instId"`
			BidPx  string `json:"bidPx"`
			AskPx  string `json:"askPx"`
			Ts     string `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Arg.Channel != "tickers" || len(msg.Data) == 0 {
		return
	}

	d := msg.Data[0]
	if d.BidPx == "" || d.AskPx == "" {
		return
	}
	bid, err1 := decimal.NewFromString(d.BidPx)
	ask, err2 := decimal.NewFromString(d.AskPx)
	if err1 != nil || err2 != nil {
		return
	}

	var serverTs *time.Time
	if ms, err := decimal.NewFromString(d.Ts); err == nil {
		t := time.UnixMilli(ms.IntPart())
		serverTs = &t
	}

	onQuote(models.Quote{
		Exchange:        "okx",
		Symbol:          utils.CanonicalSymbol(strings.TrimSuffix(d.InstId, "-SWAP")),
		BestBid:         bid,
		BestAsk:         ask,
		ServerTimestamp: serverTs,
		LocalTimestamp:  time.Now(),
	})
}

func (o *OKX) Stop() error {
	o.shardMu.Lock()
	defer o.shardMu.Unlock()
	for _, s := range o.shards {
		s.Close()
	}
	o.shards = nil
	return nil
}

func (o *OKX) Health() bool {
	o.shardMu.Lock()
	defer o.shardMu.Unlock()
	for _, s := range o.shards {
		if s.IsConnected() {
			return true
		}
	}
	return false
}
