package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crossfeed/internal/api/handlers"
	"crossfeed/internal/api/middleware"
	"crossfeed/internal/broadcast"
	"crossfeed/internal/chart"
	"crossfeed/internal/config"
	"crossfeed/internal/datalake"
	"crossfeed/internal/opportunity"
	"crossfeed/internal/orchestrator"
)

// Dependencies carries every wired subsystem the HTTP surface needs.
type Dependencies struct {
	Config            *config.Config
	Hub               *broadcast.Hub
	HealthRegistry    *orchestrator.HealthRegistry
	OpportunityFilter *opportunity.Filter
	HistoricalReader  *datalake.HistoricalReader
	ChartConfig       chart.Config
}

// SetupRoutes builds the top-level router:
//
//	GET  /api/dashboard_data  - NDJSON historical chart frames (§4.8)
//	GET  /api/health          - liveness + per-venue health (§4.8)
//	WS   /ws/realtime_charts  - live ChartFrame/SpreadEvent fan-out (§4.7)
//	GET  /metrics             - Prometheus exposition
//	/debug/pprof/*            - profiling, behind basic auth
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	if deps != nil && deps.OpportunityFilter != nil && deps.HistoricalReader != nil {
		dashboardHandler := handlers.NewDashboardHandler(deps.OpportunityFilter, deps.HistoricalReader, deps.ChartConfig)
		router.Handle("/api/dashboard_data", dashboardHandler).Methods("GET")
	}

	healthPath := "/api/health"
	if deps != nil && deps.Config != nil && deps.Config.HealthCheck.Path != "" {
		healthPath = deps.Config.HealthCheck.Path
	}
	if deps != nil && deps.HealthRegistry != nil {
		healthHandler := handlers.NewHealthHandler(deps.HealthRegistry)
		router.Handle(healthPath, healthHandler).Methods("GET")
	} else {
		router.HandleFunc(healthPath, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}).Methods("GET")
	}

	if deps != nil && deps.Hub != nil {
		realtimePath := "/ws/realtime_charts"
		if deps.Config != nil && deps.Config.WebSocket.RealtimePath != "" {
			realtimePath = deps.Config.WebSocket.RealtimePath
		}
		router.HandleFunc(realtimePath, func(w http.ResponseWriter, r *http.Request) {
			broadcast.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("heap").ServeHTTP(w, r) })
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("goroutine").ServeHTTP(w, r) })
	debug.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("block").ServeHTTP(w, r) })
	debug.HandleFunc("/threadcreate", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("threadcreate").ServeHTTP(w, r) })
	debug.HandleFunc("/mutex", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("mutex").ServeHTTP(w, r) })
	debug.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("allocs").ServeHTTP(w, r) })

	return router
}
