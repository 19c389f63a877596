package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// CommandHandler processes one inbound message from a subscriber
type CommandHandler interface {
	HandleCommand(ctx context.Context, sub *Subscriber, data []byte)
}

// DefaultSendQueue is the per-subscriber outbound queue length
const DefaultSendQueue = 32

type Config struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
	ReadLimit    int64
	SendQueue    int
}

// Stats is a snapshot of hub counters
type Stats struct {
	Subscribers  int    `json:"subscribers"`
	Connected    uint64 `json:"connected_total"`
	MessagesSent uint64 `json:"messages_sent"`
	SendFailures uint64 `json:"send_failures"`
	Dropped      uint64 `json:"dropped"`
}

// Hub is the registry of subscriber connections and the broadcast fan-out
type Hub struct {
	cfg      Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	// membership serializes registration against the empty transition
	// so OnEmpty never runs while a newer subscriber is connected
	membership sync.Mutex

	mu      sync.RWMutex
	subs    map[string]*Subscriber
	handler CommandHandler
	onEmpty func()

	connected    atomic.Uint64
	messagesSent atomic.Uint64
	sendFailures atomic.Uint64
	dropped      atomic.Uint64
}

func NewHub(cfg Config, logger zerolog.Logger) *Hub {
	return &Hub{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			// Viewers are served from arbitrary origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[string]*Subscriber),
	}
}

// SetHandler sets the inbound command handler
func (h *Hub) SetHandler(handler CommandHandler) {
	h.mu.Lock()
	h.handler = handler
	h.mu.Unlock()
}

// OnEmpty sets the callback fired when the last subscriber leaves. It runs
// before any new subscriber can register and must not call back into the
// hub's membership (Serve, Remove).
func (h *Hub) OnEmpty(fn func()) {
	h.mu.Lock()
	h.onEmpty = fn
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and serves the connection until it closes
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	h.Serve(r.Context(), conn)
}

// Serve registers conn and runs its read loop. It returns when the
// connection fails or is closed; the subscriber is unregistered by then.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn) {
	sub := newSubscriber(uuid.NewString(), conn, h.cfg.SendQueue)

	count := h.register(sub)
	h.logger.Info().Str("subscriber_id", sub.ID).Str("remote", sub.RemoteAddr).Int("total", count).Msg("Subscriber connected")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer h.Remove(sub)

	go h.writePump(ctx, sub)
	h.readLoop(ctx, sub)
}

func (h *Hub) readLoop(ctx context.Context, sub *Subscriber) {
	if h.cfg.ReadLimit > 0 {
		sub.conn.SetReadLimit(h.cfg.ReadLimit)
	}
	if h.cfg.PongTimeout > 0 {
		_ = sub.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		sub.conn.SetPongHandler(func(string) error {
			return sub.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		})
	}

	for {
		msgType, data, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("subscriber_id", sub.ID).Msg("Subscriber read error")
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if h.cfg.PongTimeout > 0 {
			_ = sub.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
		}

		h.mu.RLock()
		handler := h.handler
		h.mu.RUnlock()
		if handler != nil {
			handler.HandleCommand(ctx, sub, data)
		}
	}
}

// writePump drains the subscriber queue and sends keep-alive pings. A write
// that fails or exceeds WriteTimeout drops the subscriber.
func (h *Hub) writePump(ctx context.Context, sub *Subscriber) {
	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case data := <-sub.send:
			if err := sub.write(data, h.cfg.WriteTimeout); err != nil {
				h.sendFailures.Add(1)
				h.logger.Debug().Err(err).Str("subscriber_id", sub.ID).Msg("Send failed, dropping subscriber")
				h.Remove(sub)
				return
			}
			h.messagesSent.Add(1)
		case <-ping:
			if err := sub.ping(h.cfg.WriteTimeout); err != nil {
				h.logger.Debug().Err(err).Str("subscriber_id", sub.ID).Msg("Ping failed")
				h.Remove(sub)
				return
			}
		}
	}
}

func (h *Hub) register(sub *Subscriber) int {
	h.membership.Lock()
	defer h.membership.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub.ID] = sub
	h.connected.Add(1)
	return len(h.subs)
}

// Remove unregisters and closes sub. Removing the last subscriber fires the
// OnEmpty callback exactly once per transition to empty.
func (h *Hub) Remove(sub *Subscriber) {
	h.membership.Lock()
	defer h.membership.Unlock()

	h.mu.Lock()
	_, ok := h.subs[sub.ID]
	if ok {
		delete(h.subs, sub.ID)
	}
	remaining := len(h.subs)
	onEmpty := h.onEmpty
	h.mu.Unlock()

	sub.close()
	if !ok {
		return
	}

	h.logger.Info().Str("subscriber_id", sub.ID).Int("total", remaining).Msg("Subscriber disconnected")
	if remaining == 0 && onEmpty != nil {
		onEmpty()
	}
}

// Broadcast marshals msg once and queues it for every subscriber. It never
// blocks: a subscriber whose queue is full misses this message.
func (h *Hub) Broadcast(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal broadcast message")
		return
	}
	h.BroadcastRaw(data)
}

// BroadcastRaw queues pre-encoded data for every subscriber
func (h *Hub) BroadcastRaw(data []byte) {
	for _, sub := range h.snapshot() {
		if err := sub.Send(data); errors.Is(err, ErrSendQueueFull) {
			h.dropped.Add(1)
		}
	}
}

func (h *Hub) snapshot() []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s)
	}
	return out
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers:  h.Count(),
		Connected:    h.connected.Load(),
		MessagesSent: h.messagesSent.Load(),
		SendFailures: h.sendFailures.Load(),
		Dropped:      h.dropped.Load(),
	}
}

// Shutdown closes every subscriber connection
func (h *Hub) Shutdown(ctx context.Context) error {
	for _, sub := range h.snapshot() {
		h.mu.Lock()
		delete(h.subs, sub.ID)
		h.mu.Unlock()
		sub.close()
	}
	return nil
}
