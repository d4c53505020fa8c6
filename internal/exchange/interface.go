package exchange

import (
	"context"

	"crossfeed/internal/models"
)

// Client is the market-data-only contract every venue adapter satisfies.
// It never places orders or reads balances: it only discovers symbols
// and streams quotes.
type Client interface {
	// Name returns the lowercase venue identifier used throughout
	// configuration, logging, and partition paths (e.g. "binance").
	Name() string

	// ListSymbols returns every tradable perpetual/spot symbol the venue
	// currently offers, in the venue's native spelling, along with the
	// price/quantity precision and minimum notional the venue enforces.
	ListSymbols(ctx context.Context) ([]models.SymbolInfo, error)

	// ListTickers returns 24h quote volume per symbol, used by the
	// volume filter to decide which symbols are worth subscribing to.
	ListTickers(ctx context.Context) ([]models.TickerVolume, error)

	// Subscribe opens however many shards are needed to cover symbols
	// and delivers parsed quotes to onQuote until Stop is called. ctx
	// bounds only the setup work Subscribe does; cancelling it afterwards
	// does not close the shards. Subscribe returns once all shards have
	// started connecting; it does not block for the lifetime of the stream.
	// onTrade is called for venues whose public stream multiplexes a
	// trade feed alongside top-of-book; it may go uncalled for the
	// lifetime of the subscription on venues that don't supply one.
	Subscribe(ctx context.Context, symbols []string, onQuote func(models.Quote), onTrade func(models.Trade)) error

	// Stop tears down every shard opened by Subscribe.
	Stop() error

	// ChunkSize is the maximum number of symbols one shard connection
	// may carry for this venue.
	ChunkSize() int

	// Health reports whether at least one shard is currently subscribed.
	Health() bool
}

// ClientError wraps a venue-specific failure with the venue name attached,
// so callers can log and alert per-venue without parsing error strings.
type ClientError struct {
	Exchange string
	Message  string
	Original error
}

func (e *ClientError) Error() string {
	return e.Exchange + ": " + e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Original
}
