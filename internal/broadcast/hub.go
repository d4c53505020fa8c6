// Package broadcast fans SpreadEvents and ChartFrames out to connected
// consumer sockets: downstream execution bots and the visualization
// front-end. One slow consumer must never block delivery to the rest.
package broadcast

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"crossfeed/internal/models"
	"crossfeed/pkg/utils"
)

// json is the hot-path marshaler for every broadcast send, a drop-in
// replacement for encoding/json since a spread tick goes through this
// path on every admitted quote.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub manages every connected consumer socket and serializes fan-out so
// that no single socket's backlog gates delivery to the others.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu  sync.RWMutex
	log *utils.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        utils.L().With(utils.String("component", "broadcast")),
	}
}

// Run drives registration and fan-out. It must run in its own goroutine
// for the lifetime of the process.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("consumer connected", utils.Int("clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Info("consumer disconnected", utils.Int("clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// The client's send buffer (sendBufferSize messages) is
					// full; it is dropped rather than allowed to stall the
					// fan-out.
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				h.mu.Unlock()
				h.log.Warn("dropped slow consumers", utils.Int("count", len(toRemove)))
			}
		}
	}
}

// Stop closes every connected socket with a normal-closure status, used
// on process cancellation.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		client.closeNormal()
		delete(h.clients, client)
	}
}

// BroadcastSpread publishes a SpreadEvent wrapped in the MessageType
// envelope spec.md §6 requires for broadcast sends.
func (h *Hub) BroadcastSpread(event models.SpreadEvent) {
	h.send(models.BroadcastMessage{MessageType: "Spread", Payload: event})
}

// BroadcastChartFrame publishes a ChartFrame for realtime chart consumers.
func (h *Hub) BroadcastChartFrame(frame models.ChartFrame) {
	h.send(models.BroadcastMessage{MessageType: "ChartFrame", Payload: frame})
}

func (h *Hub) send(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Warn("marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// ClientCount returns the number of currently connected consumer sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
