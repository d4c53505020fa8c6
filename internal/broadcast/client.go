package broadcast

import (
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crossfeed/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 65536
	sendBufferSize = 512
)

// originChecker allows every origin when ALLOWED_ORIGINS is unset or "*",
// and an explicit comma-separated allowlist otherwise. Consumer sockets
// here are downstream bots and the visualization app, not browsers with
// credentials to leak, but CheckOrigin still guards against arbitrary
// cross-site WebSocket hijacking.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

var checker = newOriginChecker()

func newOriginChecker() *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{})}
	env := os.Getenv("ALLOWED_ORIGINS")
	if env == "" || env == "*" {
		oc.allowAll = true
		return oc
	}
	for _, o := range strings.Split(env, ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			oc.allowed[o] = struct{}{}
		}
	}
	return oc
}

func (oc *originChecker) Check(origin string) bool {
	if origin == "" || oc.allowAll {
		return true
	}
	_, ok := oc.allowed[origin]
	return ok
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin:       func(r *http.Request) bool { return checker.Check(r.Header.Get("Origin")) },
}

var clientPool = sync.Pool{
	New: func() interface{} {
		return &Client{send: make(chan []byte, sendBufferSize)}
	},
}

// Client is one connected consumer socket. Its send channel (buffered to
// sendBufferSize messages) is the per-socket serialization point: the
// only goroutine writing to the connection is this client's own writePump.
type Client struct {
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.returnToPool()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("consumer socket read error", utils.Err(err))
			}
			return
		}
		// Consumer sockets are write-only from the hub's perspective;
		// inbound frames are drained but never acted on.
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeNormal() {
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.conn.Close()
}

func (c *Client) returnToPool() {
	c.conn = nil
	c.hub = nil
	for len(c.send) > 0 {
		<-c.send
	}
	clientPool.Put(c)
}

// ServeWS upgrades an HTTP request to a WebSocket connection and
// registers the resulting Client with hub.
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", utils.Err(err))
		return
	}

	client := clientPool.Get().(*Client)
	client.conn = conn
	client.hub = hub
	for len(client.send) > 0 {
		<-client.send
	}

	hub.register <- client

	go client.writePump()
	go client.readPump()
}
