package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// QuotesIngested counts admitted quotes per venue.
var QuotesIngested = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "crossfeed",
		Subsystem: "orchestrator",
		Name:      "quotes_ingested_total",
		Help:      "Total number of quotes admitted past validation, per exchange",
	},
	[]string{"exchange"},
)

// QuotesRejected counts quotes dropped at validation, per reason.
var QuotesRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "crossfeed",
		Subsystem: "orchestrator",
		Name:      "quotes_rejected_total",
		Help:      "Total number of quotes dropped at validation, per exchange and reason",
	},
	[]string{"exchange", "reason"},
)

// ChannelOverflows counts drop-oldest evictions on the bounded
// persistence/realtime channels.
var ChannelOverflows = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "crossfeed",
		Subsystem: "orchestrator",
		Name:      "channel_overflows_total",
		Help:      "Number of drop-oldest evictions on a bounded fan-out channel",
	},
	[]string{"channel"},
)

// ChannelDepth reports current occupancy of the bounded channels.
var ChannelDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "crossfeed",
		Subsystem: "orchestrator",
		Name:      "channel_depth",
		Help:      "Current number of items queued on a bounded fan-out channel",
	},
	[]string{"channel"},
)

// VenueConnected mirrors the health registry's connected flag as a gauge.
var VenueConnected = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "crossfeed",
		Subsystem: "orchestrator",
		Name:      "venue_connected",
		Help:      "Venue connection status (1=connected, 0=disconnected)",
	},
	[]string{"exchange"},
)

// VenueStale mirrors the health registry's staleness flag.
var VenueStale = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "crossfeed",
		Subsystem: "orchestrator",
		Name:      "venue_stale",
		Help:      "Venue staleness status (1=stale, 0=fresh)",
	},
	[]string{"exchange"},
)

func recordConnected(exchange string, connected bool) {
	if connected {
		VenueConnected.WithLabelValues(exchange).Set(1)
	} else {
		VenueConnected.WithLabelValues(exchange).Set(0)
	}
}

func recordStale(exchange string, stale bool) {
	if stale {
		VenueStale.WithLabelValues(exchange).Set(1)
	} else {
		VenueStale.WithLabelValues(exchange).Set(0)
	}
}
