// Package integration contains integration tests for the realtime
// market-data hub.
//
// WebSocket Integration Tests
// These tests verify WebSocket connection, broadcast fan-out, and
// graceful disconnect handling through the full HTTP stack:
//
// Run with: go test -tags=integration ./tests/integration/...
package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"crossfeed/internal/api"
	"crossfeed/internal/broadcast"
	"crossfeed/internal/models"
)

func TestWebSocket_Connection_Integration(t *testing.T) {
	hub := broadcast.NewHub()
	go hub.Run()
	defer hub.Stop()

	deps := &api.Dependencies{Hub: hub}
	router := api.SetupRoutes(deps)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/realtime_charts"

	t.Run("establishes connection", func(t *testing.T) {
		conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
		defer conn.Close()

		if resp.StatusCode != http.StatusSwitchingProtocols {
			t.Errorf("expected status 101, got %d", resp.StatusCode)
		}

		time.Sleep(100 * time.Millisecond)
		if hub.ClientCount() < 1 {
			t.Errorf("expected at least 1 client, got %d", hub.ClientCount())
		}
	})

	t.Run("client count decreases on disconnect", func(t *testing.T) {
		conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("failed to connect: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
		afterConnect := hub.ClientCount()

		conn.Close()
		time.Sleep(200 * time.Millisecond)
		afterDisconnect := hub.ClientCount()

		if afterDisconnect >= afterConnect {
			t.Errorf("expected client count to decrease, before=%d after=%d", afterConnect, afterDisconnect)
		}
	})
}

func TestWebSocket_BroadcastSpread_Integration(t *testing.T) {
	hub := broadcast.NewHub()
	go hub.Run()
	defer hub.Stop()

	deps := &api.Dependencies{Hub: hub}
	router := api.SetupRoutes(deps)
	server := httptest.NewServer(router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/realtime_charts"

	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	time.Sleep(100 * time.Millisecond)

	event := models.SpreadEvent{Exchange: "binance", Symbol: "BTC_USDT"}
	hub.BroadcastSpread(event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast message: %v", err)
	}

	var msg models.BroadcastMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode broadcast envelope: %v", err)
	}
	if msg.MessageType != "Spread" {
		t.Errorf("MessageType = %q, want %q", msg.MessageType, "Spread")
	}
}
