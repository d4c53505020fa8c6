// Package orchestrator owns the fleet of exchange.Client adapters,
// applies the startup volume filter, normalizes and validates every
// quote on its hot path, and fans it out to persistence, the rolling
// window store, and the broadcast sink.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"crossfeed/internal/broadcast"
	"crossfeed/internal/config"
	"crossfeed/internal/datalake"
	"crossfeed/internal/exchange"
	"crossfeed/internal/models"
	"crossfeed/internal/window"
	"crossfeed/pkg/utils"
)

const (
	persistenceChannelCapacity = 100_000
	realtimeChannelCapacity    = 100_000
	watchdogInterval           = 15 * time.Second
)

// Orchestrator wires exchange clients to the window store, the data
// lake writer, and the broadcast hub. One instance runs for the
// process lifetime.
type Orchestrator struct {
	cfg *config.Config

	clients map[string]exchange.Client
	clientsMu sync.RWMutex

	symbols   map[models.SymbolKey]models.SymbolInfo
	symbolsMu sync.RWMutex

	health *HealthRegistry
	store  *window.Store
	writer *datalake.ParquetWriter
	hub    *broadcast.Hub

	persistenceCh chan models.Quote
	realtimeCh    chan models.Quote

	log *utils.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds an Orchestrator. Callers must call Run to start venue
// subscriptions and the fan-out workers.
func New(cfg *config.Config, store *window.Store, writer *datalake.ParquetWriter, hub *broadcast.Hub) *Orchestrator {
	return &Orchestrator{
		cfg:           cfg,
		clients:       make(map[string]exchange.Client),
		symbols:       make(map[models.SymbolKey]models.SymbolInfo),
		health:        NewHealthRegistry(),
		store:         store,
		writer:        writer,
		hub:           hub,
		persistenceCh: make(chan models.Quote, persistenceChannelCapacity),
		realtimeCh:    make(chan models.Quote, realtimeChannelCapacity),
		log:           utils.L().With(utils.String("component", "orchestrator")),
		stopCh:        make(chan struct{}),
	}
}

// Health returns the venue health registry, read by the health-check
// handler.
func (o *Orchestrator) Health() *HealthRegistry { return o.health }

// Run performs the startup sequence (ticker fetch, volume filter,
// symbol-info fetch, subscribe) for every configured venue, then starts
// the fan-out consumers and watchdog. It returns once every venue has
// either started subscribing or failed to, logging and recording
// failures in the health registry rather than returning an error:
// spec.md §4.2 requires that a single venue's startup failure never
// crashes the process.
func (o *Orchestrator) Run(ctx context.Context) {
	o.wg.Add(2)
	go o.consumePersistence(ctx)
	go o.consumeRealtime(ctx)

	o.wg.Add(1)
	go o.watchdog(ctx)

	var startWG sync.WaitGroup
	for _, name := range o.cfg.Exchanges.Enabled {
		startWG.Add(1)
		go func(venue string) {
			defer startWG.Done()
			o.startVenue(ctx, venue)
		}(name)
	}
	startWG.Wait()
}

func (o *Orchestrator) startVenue(ctx context.Context, venue string) {
	log := o.log.WithExchange(venue)

	client, err := exchange.New(venue)
	if err != nil {
		log.Error("failed to build exchange client", utils.Err(err))
		o.health.MarkDisconnected(venue)
		return
	}

	o.clientsMu.Lock()
	o.clients[venue] = client
	o.clientsMu.Unlock()

	tickers, err := client.ListTickers(ctx)
	if err != nil {
		log.Error("failed to fetch tickers", utils.Err(err))
		o.health.MarkDisconnected(venue)
		return
	}

	selected := o.selectSymbols(tickers)
	if len(selected) == 0 {
		log.Warn("no symbols passed the volume filter, skipping subscription")
		o.health.MarkDisconnected(venue)
		return
	}

	infos, err := client.ListSymbols(ctx)
	if err != nil {
		log.Error("failed to fetch symbol info", utils.Err(err))
		o.health.MarkDisconnected(venue)
		return
	}
	o.indexSymbols(venue, infos, selected)

	onQuote := func(q models.Quote) { o.onQuote(venue, q) }
	onTrade := func(tr models.Trade) { o.onTrade(venue, tr) }
	if err := client.Subscribe(ctx, selected, onQuote, onTrade); err != nil {
		log.Error("subscribe failed", utils.Err(err))
		o.health.MarkDisconnected(venue)
		return
	}

	o.health.MarkConnected(venue)
	recordConnected(venue, true)
	log.Info("venue subscribed", utils.Int("symbols", len(selected)))
}

// selectSymbols applies the startup volume filter: quote-volume within
// [min_volume, max_volume] and a USDT-quoted symbol.
func (o *Orchestrator) selectSymbols(tickers []models.TickerVolume) []string {
	min, max := o.cfg.VolumeFilter.Min, o.cfg.VolumeFilter.Max
	var out []string
	for _, t := range tickers {
		if t.QuoteVolume < min || t.QuoteVolume > max {
			continue
		}
		canon := strings.TrimSuffix(utils.CanonicalSymbol(t.Symbol), "_SWAP")
		if !strings.HasSuffix(canon, "USDT") {
			continue
		}
		out = append(out, t.Symbol)
	}
	return out
}

// indexSymbols records SymbolInfo for every selected symbol, keyed by
// (exchange, name), using an idempotent insert: republication is a
// no-op if the entry is already present.
func (o *Orchestrator) indexSymbols(venue string, infos []models.SymbolInfo, selected []string) {
	wanted := make(map[string]struct{}, len(selected))
	for _, s := range selected {
		wanted[utils.CanonicalSymbol(s)] = struct{}{}
	}

	o.symbolsMu.Lock()
	defer o.symbolsMu.Unlock()
	for _, info := range infos {
		if _, ok := wanted[utils.CanonicalSymbol(info.Name)]; !ok {
			continue
		}
		key := models.SymbolKey{Exchange: venue, Symbol: utils.CanonicalSymbol(info.Name)}
		if _, exists := o.symbols[key]; exists {
			continue
		}
		o.symbols[key] = info
	}
}

// SymbolInfo returns the deduplicated symbol set, for callers that need
// price/quantity steps (e.g. a future order-sizing consumer).
func (o *Orchestrator) SymbolInfo() []models.SymbolInfo {
	o.symbolsMu.RLock()
	defer o.symbolsMu.RUnlock()
	out := make([]models.SymbolInfo, 0, len(o.symbols))
	for _, v := range o.symbols {
		out = append(out, v)
	}
	return out
}

// onQuote is the per-quote hot path, called on the venue adapter's I/O
// callback goroutine per spec.md §4.2: validate, normalize, stamp,
// publish, broadcast. It must never block.
func (o *Orchestrator) onQuote(venue string, q models.Quote) {
	if !q.Valid() {
		QuotesRejected.WithLabelValues(venue, "invalid_bid_ask").Inc()
		return
	}

	q.Exchange = venue
	q.Symbol = utils.CanonicalSymbol(q.Symbol)
	if q.LocalTimestamp.IsZero() {
		q.LocalTimestamp = time.Now()
	}

	QuotesIngested.WithLabelValues(venue).Inc()
	o.health.RecordQuote(venue, q.EffectiveTimestamp())

	publishDropOldest(o.persistenceCh, q, "persistence")
	publishDropOldest(o.realtimeCh, q, "realtime")

	minVol, maxVol := o.cfg.VolumeFilter.Min, o.cfg.VolumeFilter.Max
	o.hub.BroadcastSpread(models.NewSpreadEvent(q, minVol, maxVol))
}

// onTrade records a trade for whichever venues choose to supply one.
// Unlike quotes, trades never feed the persistence or broadcast paths:
// spec.md leaves trade retention for a future execution-bot consumer,
// so the window store's fixed ring buffer is the only sink.
func (o *Orchestrator) onTrade(venue string, tr models.Trade) {
	tr.Exchange = venue
	tr.Symbol = utils.CanonicalSymbol(tr.Symbol)
	o.store.AppendTrade(tr)
}

// publishDropOldest is a non-blocking bounded publish: if ch is full,
// the oldest queued item is dropped to make room so the newest quote
// always gets through.
func publishDropOldest(ch chan models.Quote, q models.Quote, label string) {
	select {
	case ch <- q:
		return
	default:
	}

	select {
	case <-ch:
		ChannelOverflows.WithLabelValues(label).Inc()
	default:
	}

	select {
	case ch <- q:
	default:
	}
}

func (o *Orchestrator) consumePersistence(ctx context.Context) {
	defer o.wg.Done()
	minVol, maxVol := o.cfg.VolumeFilter.Min, o.cfg.VolumeFilter.Max
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case q := <-o.persistenceCh:
			ChannelDepth.WithLabelValues("persistence").Set(float64(len(o.persistenceCh)))
			o.writer.Enqueue(q, minVol, maxVol)
		}
	}
}

func (o *Orchestrator) consumeRealtime(ctx context.Context) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case q := <-o.realtimeCh:
			ChannelDepth.WithLabelValues("realtime").Set(float64(len(o.realtimeCh)))
			o.store.Append(q)
		}
	}
}

// watchdog sweeps the health registry for stale venues every
// watchdogInterval, per spec.md §4.2.
func (o *Orchestrator) watchdog(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.stopCh:
			return
		case now := <-ticker.C:
			for _, venue := range o.health.Sweep(now) {
				o.log.Warn("venue marked stale", utils.String("exchange", venue))
				recordStale(venue, true)
			}
			for _, v := range o.health.Snapshot() {
				recordConnected(v.Exchange, v.Connected)
				recordStale(v.Exchange, v.Stale)
			}
		}
	}
}

// Stop tears down every venue client and the fan-out workers.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		close(o.stopCh)

		o.clientsMu.RLock()
		clients := make([]exchange.Client, 0, len(o.clients))
		for _, c := range o.clients {
			clients = append(clients, c)
		}
		o.clientsMu.RUnlock()

		for _, c := range clients {
			if err := c.Stop(); err != nil {
				o.log.Warn("error stopping exchange client", utils.Err(err))
			}
		}
	})
	o.wg.Wait()
}
