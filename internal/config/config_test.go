package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, existed := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if existed {
				os.Setenv(k, old)
			} else {
				os.Unsetenv(k)
			}
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t, "EXCHANGES_ENABLED", "VOLUME_FILTER_MIN", "VOLUME_FILTER_MAX", "RECORDING_BATCH_SIZE")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.VolumeFilter.Min <= 0 || cfg.VolumeFilter.Max <= cfg.VolumeFilter.Min {
		t.Errorf("default VolumeFilter = %+v, want Min>0 and Max>Min", cfg.VolumeFilter)
	}
	if cfg.Recording.BatchSize <= 0 {
		t.Errorf("default RecordingConfig.BatchSize = %d, want positive", cfg.Recording.BatchSize)
	}
}

func TestLoadRejectsUnsupportedExchange(t *testing.T) {
	clearEnv(t, "EXCHANGES_ENABLED")
	os.Setenv("EXCHANGES_ENABLED", "binance,not_a_real_exchange")

	if _, err := Load(); err == nil {
		t.Error("Load() with an unsupported exchange should return an error")
	}
}

func TestLoadRejectsInvertedVolumeFilter(t *testing.T) {
	clearEnv(t, "VOLUME_FILTER_MIN", "VOLUME_FILTER_MAX")
	os.Setenv("VOLUME_FILTER_MIN", "1000")
	os.Setenv("VOLUME_FILTER_MAX", "500")

	if _, err := Load(); err == nil {
		t.Error("Load() with VOLUME_FILTER_MAX <= VOLUME_FILTER_MIN should return an error")
	}
}

func TestLoadRejectsNonPositiveBatchSize(t *testing.T) {
	clearEnv(t, "RECORDING_BATCH_SIZE")
	os.Setenv("RECORDING_BATCH_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Error("Load() with RECORDING_BATCH_SIZE=0 should return an error")
	}
}

func TestLoadParsesExchangeAccountCredentials(t *testing.T) {
	clearEnv(t, "EXCHANGE_BINANCE_API_KEY", "EXCHANGE_BINANCE_API_SECRET")
	os.Setenv("EXCHANGE_BINANCE_API_KEY", "key123")
	os.Setenv("EXCHANGE_BINANCE_API_SECRET", "secret456")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	acct, ok := cfg.Exchanges.PerVenue["binance"]
	if !ok {
		t.Fatal("expected a binance account entry when credentials are set")
	}
	if acct.ApiKey != "key123" || acct.ApiSecret != "secret456" {
		t.Errorf("account = %+v, want key123/secret456", acct)
	}
}
