package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"crossfeed/internal/exchange"
)

// Config holds the full application configuration.
type Config struct {
	DataLake     DataLakeConfig
	Analyzer     AnalyzerConfig
	Exchanges    ExchangeSettings
	Recording    RecordingConfig
	Window       WindowConfig
	Chart        ChartConfig
	VolumeFilter VolumeFilterConfig
	WebSocket    WebSocketConfig
	HealthCheck  HealthCheckConfig
	Logging      LoggingConfig
	Staleness    StalenessConfig
	Snapshot     SnapshotConfig
}

// DataLakeConfig controls where partitioned parquet output lives.
type DataLakeConfig struct {
	Path string
}

// AnalyzerConfig controls the opportunity filter's CSV source.
type AnalyzerConfig struct {
	StatsPath string
	Threshold float64
}

// ExchangeAccount carries per-venue credentials. Market-data paths work
// anonymously; these are only required for venues that publish private
// streams, which this hub does not currently subscribe to.
type ExchangeAccount struct {
	ExchangeName string
	ApiKey       string
	ApiSecret    string
}

// ExchangeSettings enumerates which venues are active and their accounts.
type ExchangeSettings struct {
	Enabled []string
	PerVenue map[string]ExchangeAccount
}

// RecordingConfig controls the parquet persistence path.
type RecordingConfig struct {
	Enabled       bool
	BatchSize     int
	FlushInterval time.Duration
}

// WindowConfig controls the rolling-window LRU store.
type WindowConfig struct {
	Duration        time.Duration
	CleanupInterval time.Duration
	LRUCapacity     int
}

// ChartConfig controls the chart assembler's join, percentile, and
// coalescing behavior.
type ChartConfig struct {
	PercentileWindow int
	UpperQuantile    float64
	LowerQuantile    float64
	AsofTolerance    time.Duration
	CoalesceWindow   time.Duration
}

// VolumeFilterConfig bounds the per-venue 24h quote volume a symbol must
// clear to be considered.
type VolumeFilterConfig struct {
	Min float64
	Max float64
}

// WebSocketConfig controls the HTTP/WS listener and realtime fan-out.
type WebSocketConfig struct {
	ListenAddress        string
	RealtimePath         string
	BroadcastBindAddress string
}

// HealthCheckConfig controls the health endpoint path.
type HealthCheckConfig struct {
	Path string
}

// LoggingConfig controls structured log level/format.
type LoggingConfig struct {
	Level  string
	Format string
}

// StalenessConfig holds the maximum age (STALENESS_MAX_AGE, default 7s)
// between the two sides of a cross-venue spread. Load reads it, but no
// component reads MaxAge: no quote or spread is filtered by age.
type StalenessConfig struct {
	MaxAge time.Duration
}

// SnapshotConfig controls the optional Postgres-backed audit trail of
// loaded opportunity snapshots. Empty DSN disables it; the CSV source
// in AnalyzerConfig remains authoritative either way.
type SnapshotConfig struct {
	DatabaseURL string
}

// Load reads configuration from the environment, fails fast on invalid
// values, and never panics.
func Load() (*Config, error) {
	cfg := &Config{
		DataLake: DataLakeConfig{
			Path: getEnv("DATALAKE_PATH", "./data"),
		},
		Analyzer: AnalyzerConfig{
			StatsPath: getEnv("ANALYZER_STATS_PATH", "./data/opportunities"),
			Threshold: getEnvAsFloat("ANALYZER_THRESHOLD", 0.1),
		},
		Exchanges: ExchangeSettings{
			Enabled:  getEnvAsStringSlice("EXCHANGES_ENABLED", exchange.SupportedExchanges),
			PerVenue: loadExchangeAccounts(),
		},
		Recording: RecordingConfig{
			Enabled:       getEnvAsBool("RECORDING_ENABLED", true),
			BatchSize:     getEnvAsInt("RECORDING_BATCH_SIZE", 10000),
			FlushInterval: getEnvAsDuration("RECORDING_FLUSH_INTERVAL", 5*time.Second),
		},
		Window: WindowConfig{
			Duration:        getEnvAsDuration("WINDOW_DURATION", 15*time.Minute),
			CleanupInterval: getEnvAsDuration("WINDOW_CLEANUP_INTERVAL", 1*time.Minute),
			LRUCapacity:     getEnvAsInt("WINDOW_LRU_CAPACITY", 4096),
		},
		Chart: ChartConfig{
			PercentileWindow: getEnvAsInt("CHART_PERCENTILE_WINDOW", 200),
			UpperQuantile:    getEnvAsFloat("CHART_UPPER_QUANTILE", 0.97),
			LowerQuantile:    getEnvAsFloat("CHART_LOWER_QUANTILE", 0.03),
			AsofTolerance:    getEnvAsDuration("CHART_ASOF_TOLERANCE", 2*time.Second),
			CoalesceWindow:   getEnvAsDuration("CHART_COALESCE_WINDOW", 250*time.Millisecond),
		},
		VolumeFilter: VolumeFilterConfig{
			Min: getEnvAsFloat("VOLUME_FILTER_MIN", 2_000_000),
			Max: getEnvAsFloat("VOLUME_FILTER_MAX", 100_000_000_000),
		},
		WebSocket: WebSocketConfig{
			ListenAddress:        getEnv("WS_LISTEN_ADDRESS", "0.0.0.0:8080"),
			RealtimePath:         getEnv("WS_REALTIME_PATH", "/ws/realtime_charts"),
			BroadcastBindAddress: getEnv("WS_BROADCAST_BIND_ADDRESS", "0.0.0.0:8081"),
		},
		HealthCheck: HealthCheckConfig{
			Path: getEnv("HEALTH_CHECK_PATH", "/api/health"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Staleness: StalenessConfig{
			MaxAge: getEnvAsDuration("STALENESS_MAX_AGE", 7*time.Second),
		},
		Snapshot: SnapshotConfig{
			DatabaseURL: getEnv("SNAPSHOT_DATABASE_URL", ""),
		},
	}

	for _, venue := range cfg.Exchanges.Enabled {
		if !exchange.IsSupported(venue) {
			return nil, fmt.Errorf("unsupported exchange in EXCHANGES_ENABLED: %s", venue)
		}
	}

	if cfg.Recording.BatchSize <= 0 {
		return nil, fmt.Errorf("RECORDING_BATCH_SIZE must be positive")
	}

	if cfg.VolumeFilter.Min < 0 || cfg.VolumeFilter.Max <= cfg.VolumeFilter.Min {
		return nil, fmt.Errorf("VOLUME_FILTER_MAX must exceed VOLUME_FILTER_MIN")
	}

	return cfg, nil
}

// loadExchangeAccounts reads per-venue API credentials, when present, as
// EXCHANGE_<VENUE>_API_KEY / EXCHANGE_<VENUE>_API_SECRET pairs.
func loadExchangeAccounts() map[string]ExchangeAccount {
	accounts := make(map[string]ExchangeAccount)
	for _, venue := range exchange.SupportedExchanges {
		prefix := "EXCHANGE_" + strings.ToUpper(venue)
		key := getEnv(prefix+"_API_KEY", "")
		secret := getEnv(prefix+"_API_SECRET", "")
		if key == "" && secret == "" {
			continue
		}
		accounts[venue] = ExchangeAccount{ExchangeName: venue, ApiKey: key, ApiSecret: secret}
	}
	return accounts
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
