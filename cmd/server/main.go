package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"crossfeed/internal/api"
	"crossfeed/internal/broadcast"
	"crossfeed/internal/chart"
	"crossfeed/internal/config"
	"crossfeed/internal/datalake"
	"crossfeed/internal/opportunity"
	"crossfeed/internal/orchestrator"
	"crossfeed/internal/window"
	"crossfeed/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.Info("starting crossfeed")

	store := window.NewStore(cfg.Window.Duration, cfg.Window.LRUCapacity)

	writer := datalake.NewParquetWriter(cfg.DataLake.Path, cfg.Recording.BatchSize, cfg.Recording.FlushInterval)
	if cfg.Recording.Enabled {
		writer.Start()
	}

	hub := broadcast.NewHub()
	go hub.Run()

	chartConfig := chart.Config{
		AsofTolerance:    cfg.Chart.AsofTolerance,
		PercentileWindow: cfg.Chart.PercentileWindow,
		UpperQuantile:    cfg.Chart.UpperQuantile,
		LowerQuantile:    cfg.Chart.LowerQuantile,
		CoalesceWindow:   cfg.Chart.CoalesceWindow,
	}

	assembler := chart.NewAssembler(store, chartConfig, runtime.NumCPU(), hub.BroadcastChartFrame)

	filter := opportunity.NewFilter(cfg.Analyzer.StatsPath, cfg.Analyzer.Threshold)
	reader := datalake.NewHistoricalReader(cfg.DataLake.Path)

	var snapshots *opportunity.SnapshotRepository
	if cfg.Snapshot.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Snapshot.DatabaseURL)
		if err != nil {
			log.Error("failed to open snapshot database, continuing without it", utils.Err(err))
		} else {
			snapshots = opportunity.NewSnapshotRepository(db)
		}
	}

	orch := orchestrator.New(cfg, store, writer, hub)

	ctx, cancel := context.WithCancel(context.Background())

	go orch.Run(ctx)
	go runOpportunityRefresh(ctx, filter, assembler, snapshots)
	go runWindowCleanup(ctx, store, cfg.Window.CleanupInterval)

	deps := &api.Dependencies{
		Config:            cfg,
		Hub:               hub,
		HealthRegistry:    orch.Health(),
		OpportunityFilter: filter,
		HistoricalReader:  reader,
		ChartConfig:       chartConfig,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         cfg.WebSocket.ListenAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // NDJSON and WS responses stream indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", utils.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", utils.Err(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	orch.Stop()
	assembler.Stop()
	writer.Stop()
	hub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}

	log.Sync()
}

// runOpportunityRefresh keeps the chart assembler's tracked opportunity
// set in step with the filter's own 10s TTL cache, and, when a snapshot
// repository is configured, persists each refreshed batch for audit.
func runOpportunityRefresh(ctx context.Context, filter *opportunity.Filter, assembler *chart.Assembler, snapshots *opportunity.SnapshotRepository) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	refresh := func() {
		opps := filter.Opportunities()
		assembler.SetOpportunities(opps)
		if snapshots != nil {
			if err := snapshots.Save(opps); err != nil {
				utils.L().Warn("failed to save opportunity snapshot", utils.Err(err))
			}
		}
	}

	refresh()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// runWindowCleanup evicts entries older than the window horizon on the
// interval spec.md §4.3 prescribes (default 60s).
func runWindowCleanup(ctx context.Context, store *window.Store, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Cleanup()
		}
	}
}
