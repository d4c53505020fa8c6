package handlers

import (
	"encoding/json"
	"net/http"

	"crossfeed/internal/chart"
	"crossfeed/internal/datalake"
	"crossfeed/internal/opportunity"
	"crossfeed/pkg/utils"
)

// DashboardHandler serves GET /api/dashboard_data: one ChartFrame per
// tracked opportunity, computed from the full historical parquet
// series and streamed as newline-delimited JSON so server memory stays
// bounded to one frame at a time regardless of opportunity count.
type DashboardHandler struct {
	filter *opportunity.Filter
	reader *datalake.HistoricalReader
	config chart.Config
	log    *utils.Logger
}

func NewDashboardHandler(filter *opportunity.Filter, reader *datalake.HistoricalReader, config chart.Config) *DashboardHandler {
	return &DashboardHandler{
		filter: filter,
		reader: reader,
		config: config,
		log:    utils.L().With(utils.String("component", "dashboard_handler")),
	}
}

func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	encoder := json.NewEncoder(w)

	for _, opp := range h.filter.Opportunities() {
		seriesA, err := h.reader.ReadSeries(opp.Exchange1, opp.Symbol)
		if err != nil {
			h.log.Warn("failed to read historical series", utils.String("exchange", opp.Exchange1), utils.String("symbol", opp.Symbol), utils.Err(err))
			continue
		}
		seriesB, err := h.reader.ReadSeries(opp.Exchange2, opp.Symbol)
		if err != nil {
			h.log.Warn("failed to read historical series", utils.String("exchange", opp.Exchange2), utils.String("symbol", opp.Symbol), utils.Err(err))
			continue
		}

		frame := chart.Assemble(opp.Symbol, opp.Exchange1, opp.Exchange2, seriesA, seriesB, h.config)
		if frame.Empty() {
			continue
		}

		if err := encoder.Encode(frame); err != nil {
			h.log.Warn("dashboard stream write failed, client likely disconnected", utils.Err(err))
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
