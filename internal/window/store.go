package window

import (
	"sync"
	"time"

	"crossfeed/internal/models"
	"crossfeed/pkg/utils"
)

// lruEntry pairs a window with its last-access time for LRU eviction.
// Updates use immutable replacement: touch builds a new lruEntry rather
// than mutating a shared one in place, so a goroutine holding a prior
// reference never observes a torn update.
type lruEntry struct {
	window     *RollingWindow[models.Quote]
	lastAccess time.Time
}

// tradeRingCapacity bounds the per-(exchange,symbol) trade ring buffer.
// Trades exist for a future execution-bot consumer, not for
// ChartAssembler, so unlike quotes they need no W-bounded horizon, just
// a small fixed cap to bound memory on venues with heavy trade flow.
const tradeRingCapacity = 256

// Store is the bounded LRU map of RollingWindow[Quote], one per
// (exchange, symbol). When capacity is exceeded, the 10% least-recently
// used windows are evicted in a single pass under a dedicated eviction
// lock separate from the per-window locks.
type Store struct {
	mu       sync.RWMutex
	entries  map[models.SymbolKey]*lruEntry
	capacity int
	horizon  time.Duration

	evictMu sync.Mutex

	tradesMu sync.Mutex
	trades   map[models.SymbolKey][]models.Trade

	bus *Bus
	log *utils.Logger
}

// NewStore builds a store with the given window horizon and hard LRU
// capacity C.
func NewStore(horizon time.Duration, capacity int) *Store {
	return &Store{
		entries:  make(map[models.SymbolKey]*lruEntry),
		capacity: capacity,
		horizon:  horizon,
		trades:   make(map[models.SymbolKey][]models.Trade),
		bus:      NewBus(),
		log:      utils.L().With(utils.String("component", "window_store")),
	}
}

// Bus returns the WindowUpdated event bus consumers subscribe to.
func (s *Store) Bus() *Bus { return s.bus }

// Append looks up or inserts the window for quote's (exchange, symbol),
// appends under the window's own lock, then raises WindowUpdated. The
// event fires exactly once per successful append, after the window lock
// has already been released.
func (s *Store) Append(quote models.Quote) {
	key := models.SymbolKey{Exchange: quote.Exchange, Symbol: quote.Symbol}
	w := s.getOrCreate(key)

	w.Append(quote)

	if s.overCapacity() {
		s.evictLeastRecentlyUsed()
	}

	s.bus.Publish(key)
}

func (s *Store) getOrCreate(key models.SymbolKey) *RollingWindow[models.Quote] {
	now := time.Now()

	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if ok {
		s.touch(key, entry.window, now)
		return entry.window
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok {
		s.entries[key] = &lruEntry{window: entry.window, lastAccess: now}
		return entry.window
	}

	w := NewRollingWindow[models.Quote](s.horizon, func(q models.Quote) time.Time { return q.EffectiveTimestamp() })
	s.entries[key] = &lruEntry{window: w, lastAccess: now}
	return w
}

func (s *Store) touch(key models.SymbolKey, w *RollingWindow[models.Quote], now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && entry.window == w {
		s.entries[key] = &lruEntry{window: w, lastAccess: now}
	}
}

func (s *Store) overCapacity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capacity > 0 && len(s.entries) > s.capacity
}

// evictLeastRecentlyUsed drops the 10% oldest-accessed windows in a
// single pass. It uses TryLock semantics via evictMu so the hot append
// path never blocks waiting for an eviction already in progress.
func (s *Store) evictLeastRecentlyUsed() {
	if !s.evictMu.TryLock() {
		return
	}
	defer s.evictMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) <= s.capacity {
		return
	}

	type kv struct {
		key  models.SymbolKey
		last time.Time
	}
	all := make([]kv, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, kv{k, e.lastAccess})
	}

	target := len(all) / 10
	if target == 0 {
		target = 1
	}

	for i := 0; i < target && len(all) > 0; i++ {
		oldestIdx := 0
		for j := 1; j < len(all); j++ {
			if all[j].last.Before(all[oldestIdx].last) {
				oldestIdx = j
			}
		}
		delete(s.entries, all[oldestIdx].key)
		all[oldestIdx] = all[len(all)-1]
		all = all[:len(all)-1]
	}

	s.log.Info("evicted least-recently-used windows", utils.Int("evicted", target), utils.Int("remaining", len(s.entries)))
}

// Snapshot returns a copy of the window for (exchange, symbol), or nil if
// no window exists yet.
func (s *Store) Snapshot(exchange, symbol string) []models.Quote {
	key := models.SymbolKey{Exchange: exchange, Symbol: symbol}
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return entry.window.Snapshot()
}

// Cleanup evicts entries older than now-horizon from every window. Run
// periodically (every 60s per spec.md §4.3).
func (s *Store) Cleanup() {
	now := time.Now()
	s.mu.RLock()
	windows := make([]*RollingWindow[models.Quote], 0, len(s.entries))
	for _, e := range s.entries {
		windows = append(windows, e.window)
	}
	s.mu.RUnlock()

	for _, w := range windows {
		w.Evict(now)
	}
}

// AppendTrade records trade in a fixed-size ring buffer keyed by
// (exchange, symbol), independent of the W-bounded quote windows: the
// oldest trade is dropped once the buffer reaches tradeRingCapacity.
func (s *Store) AppendTrade(trade models.Trade) {
	key := models.SymbolKey{Exchange: trade.Exchange, Symbol: trade.Symbol}

	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()

	buf := append(s.trades[key], trade)
	if len(buf) > tradeRingCapacity {
		buf = buf[len(buf)-tradeRingCapacity:]
	}
	s.trades[key] = buf
}

// SnapshotTrades returns a copy of the most recent trades recorded for
// (exchange, symbol), oldest first.
func (s *Store) SnapshotTrades(exchange, symbol string) []models.Trade {
	key := models.SymbolKey{Exchange: exchange, Symbol: symbol}

	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()

	buf := s.trades[key]
	if len(buf) == 0 {
		return nil
	}
	out := make([]models.Trade, len(buf))
	copy(out, buf)
	return out
}

// Size returns the current number of tracked (exchange, symbol) windows.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
