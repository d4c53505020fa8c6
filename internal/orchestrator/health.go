package orchestrator

import (
	"sync"
	"time"
)

// staleAfter is the watchdog threshold from spec.md §4.2: a venue with no
// admitted quote in the last minute is marked stale.
const staleAfter = time.Minute

// VenueHealth is one row of the orchestrator's health registry.
type VenueHealth struct {
	Exchange      string
	Connected     bool
	LastQuoteTime time.Time
	Stale         bool
}

// HealthRegistry tracks per-venue connectivity and freshness using a
// map behind an RWMutex, a small set of named mutators, and a periodic
// watchdog sweep.
type HealthRegistry struct {
	mu     sync.RWMutex
	venues map[string]*VenueHealth
}

func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{venues: make(map[string]*VenueHealth)}
}

// MarkConnected registers venue as up, clearing any prior stale flag.
func (r *HealthRegistry) MarkConnected(exchange string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.venues[exchange]
	if !ok {
		v = &VenueHealth{Exchange: exchange}
		r.venues[exchange] = v
	}
	v.Connected = true
	v.Stale = false
}

// MarkDisconnected registers venue as down without touching LastQuoteTime.
func (r *HealthRegistry) MarkDisconnected(exchange string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.venues[exchange]
	if !ok {
		v = &VenueHealth{Exchange: exchange}
		r.venues[exchange] = v
	}
	v.Connected = false
}

// RecordQuote stamps the last-quote time for exchange and clears stale.
func (r *HealthRegistry) RecordQuote(exchange string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.venues[exchange]
	if !ok {
		v = &VenueHealth{Exchange: exchange}
		r.venues[exchange] = v
	}
	v.LastQuoteTime = at
	v.Stale = false
}

// Sweep marks every venue whose last quote is older than staleAfter as
// stale and returns the venues that just transitioned, for the caller to
// log. Run periodically by the orchestrator's watchdog.
func (r *HealthRegistry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newlyStale []string
	for name, v := range r.venues {
		if v.LastQuoteTime.IsZero() {
			continue
		}
		wasStale := v.Stale
		v.Stale = now.Sub(v.LastQuoteTime) > staleAfter
		if v.Stale && !wasStale {
			newlyStale = append(newlyStale, name)
		}
	}
	return newlyStale
}

// Snapshot returns a copy of every tracked venue's health, for the
// health-check HTTP handler.
func (r *HealthRegistry) Snapshot() []VenueHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]VenueHealth, 0, len(r.venues))
	for _, v := range r.venues {
		out = append(out, *v)
	}
	return out
}
