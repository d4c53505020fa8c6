package broadcast

import (
	"testing"
	"time"

	"crossfeed/internal/models"
)

func TestOriginCheckerAllowsAllWhenUnconfigured(t *testing.T) {
	oc := &originChecker{allowed: make(map[string]struct{}), allowAll: true}
	if !oc.Check("https://anywhere.example") {
		t.Errorf("Check() with allowAll should accept any origin")
	}
}

func TestOriginCheckerEnforcesAllowlist(t *testing.T) {
	oc := &originChecker{allowed: map[string]struct{}{"https://dash.example": {}}}
	if !oc.Check("https://dash.example") {
		t.Errorf("Check() should accept an allowlisted origin")
	}
	if oc.Check("https://evil.example") {
		t.Errorf("Check() should reject an origin not on the allowlist")
	}
	if !oc.Check("") {
		t.Errorf("Check() should accept a request with no Origin header")
	}
}

func TestHubClientCountStartsAtZero(t *testing.T) {
	h := NewHub()
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() on a fresh hub = %d, want 0", h.ClientCount())
	}
}

func TestHubBroadcastWithNoClientsDoesNotBlock(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Stop()

	done := make(chan struct{})
	go func() {
		h.BroadcastSpread(models.SpreadEvent{Exchange: "binance", Symbol: "BTC_USDT"})
		h.BroadcastChartFrame(models.ChartFrame{Symbol: "BTC_USDT"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastSpread/BroadcastChartFrame blocked with no connected clients")
	}
}

func TestHubStopWithNoClientsIsSafe(t *testing.T) {
	h := NewHub()
	go h.Run()
	h.Stop()
}
