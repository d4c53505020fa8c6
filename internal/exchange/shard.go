package exchange

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"crossfeed/pkg/utils"
)

// wireTrace is a low-overhead secondary sink for the one log line per
// inbound frame every shard's read loop could otherwise emit. zap's
// structured encoding is too costly to run per-message across eight
// venues' worth of shards, so raw frame traces go through zerolog
// instead; connect/disconnect/state-transition events still go through
// the zap-backed utils.Logger for everything else.
var wireTrace = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.Disabled)

// SetWireTraceEnabled toggles the per-frame trace sink. Off by default;
// enable it only while debugging a specific venue's wire format.
func SetWireTraceEnabled(enabled bool) {
	if enabled {
		wireTrace = wireTrace.Level(zerolog.TraceLevel)
	} else {
		wireTrace = wireTrace.Level(zerolog.Disabled)
	}
}

// ShardConfig controls reconnect timing for a Shard.
type ShardConfig struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	MaxRetries     int
	ConnectTimeout time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// DefaultShardConfig returns the reconnect defaults every venue adapter
// uses unless it needs venue-specific timing.
func DefaultShardConfig() ShardConfig {
	return ShardConfig{
		InitialDelay:   2 * time.Second,
		MaxDelay:       16 * time.Second,
		MaxRetries:     10,
		ConnectTimeout: 10 * time.Second,
		PingInterval:   30 * time.Second,
		PongTimeout:    10 * time.Second,
	}
}

// ShardState is the per-shard connection state machine:
// Created -> Subscribing -> Subscribed -> (Reconnecting <-> Subscribed) -> Stopped.
type ShardState int32

const (
	StateCreated ShardState = iota
	StateSubscribing
	StateSubscribed
	StateReconnecting
	StateStopped
)

func (s ShardState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateSubscribing:
		return "subscribing"
	case StateSubscribed:
		return "subscribed"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SubscribeBuilder builds one wire subscribe frame per invocation for the
// given symbol batch. A venue adapter supplies this once at shard
// creation time; the shard calls it again after every reconnect.
type SubscribeBuilder func(symbols []string) interface{}

// Shard owns one WebSocket connection carrying at most ChunkSize symbols
// for one venue. The state machine, exponential backoff, and single-slot
// reconnect discipline are shared across venues, carrying a symbol set
// and a venue-supplied subscribe builder instead of per-venue logic.
type Shard struct {
	venueName  string
	shardID    int
	wsURL      string
	config     ShardConfig
	symbols    []string
	oneAtATime bool
	build      SubscribeBuilder
	log        *utils.Logger

	conn   *websocket.Conn
	connMu sync.RWMutex // single-slot mutex guarding connect/reconnect/subscribe

	state      int32 // atomic ShardState
	retryCount int32 // atomic

	closeChan chan struct{}
	closeOnce sync.Once

	onMessage    func([]byte)
	onConnect    func()
	onDisconnect func(error)
	callbackMu   sync.RWMutex
}

// NewShard builds a shard for venueName carrying symbols over wsURL.
// oneAtATime models BingX's one-symbol-per-subscribe quirk: the shard
// sends build(symbols) once per symbol instead of once for the batch.
func NewShard(venueName string, shardID int, wsURL string, symbols []string, oneAtATime bool, build SubscribeBuilder, config ShardConfig) *Shard {
	return &Shard{
		venueName:  venueName,
		shardID:    shardID,
		wsURL:      wsURL,
		config:     config,
		symbols:    symbols,
		oneAtATime: oneAtATime,
		build:      build,
		log:        utils.L().WithExchange(venueName).With(utils.Int("shard", shardID)),
		closeChan:  make(chan struct{}),
	}
}

func (s *Shard) SetOnMessage(handler func([]byte)) {
	s.callbackMu.Lock()
	s.onMessage = handler
	s.callbackMu.Unlock()
}

func (s *Shard) SetOnConnect(handler func()) {
	s.callbackMu.Lock()
	s.onConnect = handler
	s.callbackMu.Unlock()
}

func (s *Shard) SetOnDisconnect(handler func(error)) {
	s.callbackMu.Lock()
	s.onDisconnect = handler
	s.callbackMu.Unlock()
}

func (s *Shard) State() ShardState {
	return ShardState(atomic.LoadInt32(&s.state))
}

func (s *Shard) IsConnected() bool {
	return s.State() == StateSubscribed
}

func (s *Shard) RetryCount() int {
	return int(atomic.LoadInt32(&s.retryCount))
}

// Connect dials, subscribes, and starts the read/ping pumps. On failure
// the shard is left Reconnecting and a background reconnect loop takes
// over; Connect itself never blocks the caller waiting for recovery.
func (s *Shard) Connect() error {
	select {
	case <-s.closeChan:
		return fmt.Errorf("shard closed")
	default:
	}

	atomic.StoreInt32(&s.state, int32(StateSubscribing))

	if err := s.dial(); err != nil {
		atomic.StoreInt32(&s.state, int32(StateReconnecting))
		go s.reconnectLoop()
		return err
	}

	atomic.StoreInt32(&s.state, int32(StateSubscribed))
	atomic.StoreInt32(&s.retryCount, 0)

	s.callbackMu.RLock()
	onConnect := s.onConnect
	s.callbackMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}

	go s.readPump()
	go s.pingPump()

	s.log.Info("shard connected", utils.String("url", s.wsURL))
	return nil
}

func (s *Shard) dial() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ConnectTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: s.config.ConnectTimeout}
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.wsURL, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()

	if err := s.subscribe(); err != nil {
		s.log.Warn("subscribe error after dial", utils.Err(err))
		// Subscribe failures don't tear the connection down: dial still
		// returns nil, so the caller moves this shard to Subscribed and
		// other shards continue.
	}

	return nil
}

// subscribe sends the venue subscribe frame(s) for this shard's symbol
// set, either as one multi-symbol frame or one frame per symbol when the
// venue doesn't support batch subscription.
func (s *Shard) subscribe() error {
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	if s.build == nil || len(s.symbols) == 0 {
		return nil
	}

	if s.oneAtATime {
		for _, sym := range s.symbols {
			if err := conn.WriteJSON(s.build([]string{sym})); err != nil {
				return fmt.Errorf("subscribe %s: %w", sym, err)
			}
		}
		return nil
	}

	return conn.WriteJSON(s.build(s.symbols))
}

func (s *Shard) readPump() {
	defer s.handleDisconnect(nil)

	for {
		select {
		case <-s.closeChan:
			return
		default:
		}

		s.connMu.RLock()
		conn := s.conn
		s.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(err)
			return
		}

		wireTrace.Trace().Str("venue", s.venueName).Int("shard", s.shardID).Int("bytes", len(message)).Msg("frame")

		s.callbackMu.RLock()
		onMessage := s.onMessage
		s.callbackMu.RUnlock()
		if onMessage != nil {
			onMessage(message)
		}
	}
}

func (s *Shard) pingPump() {
	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeChan:
			return
		case <-ticker.C:
			s.connMu.RLock()
			conn := s.conn
			s.connMu.RUnlock()
			if conn == nil || s.State() != StateSubscribed {
				return
			}

			conn.SetWriteDeadline(time.Now().Add(s.config.PongTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.log.Warn("ping failed", utils.Err(err))
				s.handleDisconnect(err)
				return
			}
		}
	}
}

func (s *Shard) handleDisconnect(err error) {
	select {
	case <-s.closeChan:
		return
	default:
	}

	state := s.State()
	if state == StateReconnecting || state == StateStopped {
		return
	}

	atomic.StoreInt32(&s.state, int32(StateReconnecting))

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.callbackMu.RLock()
	onDisconnect := s.onDisconnect
	s.callbackMu.RUnlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}
	if err != nil {
		s.log.Warn("shard disconnected", utils.Err(err))
	}

	go s.reconnectLoop()
}

func (s *Shard) reconnectLoop() {
	delay := s.config.InitialDelay

	for {
		select {
		case <-s.closeChan:
			return
		default:
		}

		retryCount := atomic.AddInt32(&s.retryCount, 1)
		if s.config.MaxRetries > 0 && int(retryCount) > s.config.MaxRetries {
			s.log.Warn("max reconnect attempts reached", utils.Int("max_retries", s.config.MaxRetries))
			atomic.StoreInt32(&s.state, int32(StateStopped))
			return
		}

		s.log.Info("reconnecting", utils.String("delay", delay.String()), utils.Int("attempt", int(retryCount)))

		select {
		case <-s.closeChan:
			return
		case <-time.After(delay):
		}

		if err := s.dial(); err != nil {
			s.log.Warn("reconnect failed", utils.Err(err))
			delay *= 2
			if delay > s.config.MaxDelay {
				delay = s.config.MaxDelay
			}
			continue
		}

		atomic.StoreInt32(&s.state, int32(StateSubscribed))
		atomic.StoreInt32(&s.retryCount, 0)

		s.callbackMu.RLock()
		onConnect := s.onConnect
		s.callbackMu.RUnlock()
		if onConnect != nil {
			onConnect()
		}

		s.log.Info("reconnected")

		go s.readPump()
		go s.pingPump()
		return
	}
}

// Send writes msg as a JSON frame if currently subscribed.
func (s *Shard) Send(msg interface{}) error {
	if s.State() != StateSubscribed {
		return fmt.Errorf("shard not subscribed (state: %s)", s.State())
	}
	s.connMu.RLock()
	conn := s.conn
	s.connMu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection")
	}
	return conn.WriteJSON(msg)
}

// Close stops reconnection and closes the live connection, if any.
func (s *Shard) Close() error {
	select {
	case <-s.closeChan:
		return nil
	default:
	}
	s.closeOnce.Do(func() { close(s.closeChan) })
	atomic.StoreInt32(&s.state, int32(StateStopped))

	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}
