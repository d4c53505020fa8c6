package chart

import (
	"sync"
	"time"

	"crossfeed/internal/models"
	"crossfeed/internal/window"
	"crossfeed/pkg/utils"
)

// Config controls the assembler's join tolerance, percentile window, and
// coalescing behavior.
type Config struct {
	AsofTolerance    time.Duration
	PercentileWindow int
	UpperQuantile    float64
	LowerQuantile    float64
	CoalesceWindow   time.Duration
}

func DefaultConfig() Config {
	return Config{
		AsofTolerance:    2 * time.Second,
		PercentileWindow: 200,
		UpperQuantile:    0.97,
		LowerQuantile:    0.03,
		CoalesceWindow:   250 * time.Millisecond,
	}
}

// Assembler turns WindowUpdated events into ChartFrames for a fixed set
// of tracked opportunities. Heavy join/percentile work runs on a worker
// pool, never on the event-raising goroutine.
type Assembler struct {
	store  *window.Store
	config Config
	onFrame func(models.ChartFrame)
	log    *utils.Logger

	mu            sync.Mutex
	opportunities map[models.OpportunityKey]struct{}
	byVenueSymbol map[models.SymbolKey][]models.OpportunityKey

	coalesceMu sync.Mutex
	pending    map[models.OpportunityKey]*time.Timer

	workQueue chan models.OpportunityKey
	workerWG  sync.WaitGroup
	stopOnce  sync.Once
	stopCh    chan struct{}

	unsubscribe func()
}

// NewAssembler builds an assembler over store with workerCount
// background workers draining the join/percentile work queue.
func NewAssembler(store *window.Store, config Config, workerCount int, onFrame func(models.ChartFrame)) *Assembler {
	if workerCount <= 0 {
		workerCount = 4
	}

	a := &Assembler{
		store:         store,
		config:        config,
		onFrame:       onFrame,
		log:           utils.L().With(utils.String("component", "chart_assembler")),
		opportunities: make(map[models.OpportunityKey]struct{}),
		byVenueSymbol: make(map[models.SymbolKey][]models.OpportunityKey),
		pending:       make(map[models.OpportunityKey]*time.Timer),
		workQueue:     make(chan models.OpportunityKey, 4096),
		stopCh:        make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		a.workerWG.Add(1)
		go a.worker()
	}

	a.unsubscribe = store.Bus().Subscribe(a.onWindowUpdated)
	return a
}

// SetOpportunities replaces the tracked opportunity set. Called whenever
// the OpportunityFilter reloads its cache.
func (a *Assembler) SetOpportunities(opps []models.Opportunity) {
	byVenueSymbol := make(map[models.SymbolKey][]models.OpportunityKey)
	tracked := make(map[models.OpportunityKey]struct{}, len(opps))

	for _, o := range opps {
		key := o.Key()
		tracked[key] = struct{}{}
		byVenueSymbol[models.SymbolKey{Exchange: o.Exchange1, Symbol: o.Symbol}] = append(
			byVenueSymbol[models.SymbolKey{Exchange: o.Exchange1, Symbol: o.Symbol}], key)
		byVenueSymbol[models.SymbolKey{Exchange: o.Exchange2, Symbol: o.Symbol}] = append(
			byVenueSymbol[models.SymbolKey{Exchange: o.Exchange2, Symbol: o.Symbol}], key)
	}

	a.mu.Lock()
	a.opportunities = tracked
	a.byVenueSymbol = byVenueSymbol
	a.mu.Unlock()
}

// onWindowUpdated is the filter closure every WindowUpdated event passes
// through: it matches the updated (exchange, symbol) against the tracked
// opportunity set and schedules (coalesced) recomputation.
func (a *Assembler) onWindowUpdated(key models.SymbolKey) {
	a.mu.Lock()
	matches := a.byVenueSymbol[key]
	a.mu.Unlock()

	for _, oppKey := range matches {
		a.schedule(oppKey)
	}
}

// schedule coalesces recomputation requests for oppKey within
// CoalesceWindow: a new event arriving while one is already pending
// supersedes it rather than queuing a second recomputation.
func (a *Assembler) schedule(oppKey models.OpportunityKey) {
	a.coalesceMu.Lock()
	defer a.coalesceMu.Unlock()

	if _, pending := a.pending[oppKey]; pending {
		return
	}

	a.pending[oppKey] = time.AfterFunc(a.config.CoalesceWindow, func() {
		a.coalesceMu.Lock()
		delete(a.pending, oppKey)
		a.coalesceMu.Unlock()

		select {
		case a.workQueue <- oppKey:
		case <-a.stopCh:
		default:
			// Queue saturated; this recomputation is skipped rather than
			// blocking the timer goroutine. The next WindowUpdated for
			// this opportunity will reschedule it.
		}
	})
}

func (a *Assembler) worker() {
	defer a.workerWG.Done()
	for {
		select {
		case <-a.stopCh:
			return
		case oppKey := <-a.workQueue:
			a.mu.Lock()
			_, tracked := a.opportunities[oppKey]
			a.mu.Unlock()
			if !tracked {
				continue
			}
			frame := a.assemble(oppKey)
			if a.onFrame != nil {
				a.onFrame(frame)
			}
		}
	}
}

// assemble performs the backward as-of join, spread, and rolling
// percentile pipeline for one opportunity.
func (a *Assembler) assemble(oppKey models.OpportunityKey) models.ChartFrame {
	windowA := a.store.Snapshot(oppKey.ExchangeA, oppKey.Symbol)
	windowB := a.store.Snapshot(oppKey.ExchangeB, oppKey.Symbol)

	return Assemble(oppKey.Symbol, oppKey.ExchangeA, oppKey.ExchangeB, windowA, windowB, a.config)
}

// Assemble runs the backward as-of join, spread, and rolling percentile
// pipeline shared by the live assembler (§4.4) and the historical NDJSON
// reader (§4.8), which replays the same pipeline over parquet-sourced
// series instead of a live RollingWindow snapshot.
func Assemble(symbol, exchangeA, exchangeB string, windowA, windowB []models.Quote, config Config) models.ChartFrame {
	rows := asofJoin(windowA, windowB, config.AsofTolerance)
	spreads := spreadSeries(rows)
	upperBand, lowerBand := rollingBands(spreads, config.PercentileWindow, config.UpperQuantile, config.LowerQuantile)

	timestamps := make([]int64, len(rows))
	for i, r := range rows {
		timestamps[i] = r.ts.UnixMilli()
	}

	return models.ChartFrame{
		Symbol:     symbol,
		Exchange1:  exchangeA,
		Exchange2:  exchangeB,
		Timestamps: timestamps,
		Spreads:    spreads,
		UpperBand:  upperBand,
		LowerBand:  lowerBand,
	}
}

// Stop unsubscribes from the window bus and drains the worker pool.
func (a *Assembler) Stop() {
	a.stopOnce.Do(func() {
		if a.unsubscribe != nil {
			a.unsubscribe()
		}
		close(a.stopCh)
	})
	a.workerWG.Wait()
}
