// Package transport implements the Transport Gateway (spec §4.1): WebSocket
// upgrade, JSON framing, heartbeats, and broadcast fan-out, grounded on the
// teacher's internal/v1/transport.Hub/Client (hub.go, client.go), generalized
// from a protobuf video-signaling hub to a JSON trivia-room gateway.
//
// Per spec §9's design note, connections are tracked in an explicit
// registry keyed by connection id, separate from the Room Actor's
// participant ids — the actor only ever sees participant ids; this package
// is the one place that dereferences them to live connections.
package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/metrics"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/ratelimit"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/registry"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomactor"
)

// Hub is the connection registry and fan-out point for every room. It
// implements roomactor.Sender.
type Hub struct {
	registry *registry.Registry
	limiter  *ratelimit.RateLimiter

	mu            sync.RWMutex
	connections   map[string]*Client            // connection id -> client
	byParticipant map[string]*Client            // participant id -> client (global; spec: one binding per connection)
	byRoom        map[string]map[string]*Client // room code -> connection id -> client

	upgrader       websocket.Upgrader
	pingInterval   time.Duration
	pongTimeout    time.Duration
	allowedOrigins []string
}

// Config bundles the Hub's tunables (spec §6.4).
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	AllowedOrigins []string
}

// NewHub constructs a Hub without its Room Registry attached yet. The Hub
// itself implements roomactor.Sender, which the registry needs to build the
// rooms it creates — so callers build the Hub first, build the Registry with
// the Hub as its Sender, then call AttachRegistry to complete the wiring
// (see cmd/v1/server/main.go).
func NewHub(limiter *ratelimit.RateLimiter, cfg Config) *Hub {
	h := &Hub{
		limiter:        limiter,
		connections:    make(map[string]*Client),
		byParticipant:  make(map[string]*Client),
		byRoom:         make(map[string]map[string]*Client),
		pingInterval:   cfg.PingInterval,
		pongTimeout:    cfg.PongTimeout,
		allowedOrigins: cfg.AllowedOrigins,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins)
		},
	}
	return h
}

// AttachRegistry completes the Hub's wiring to its Room Registry.
func (h *Hub) AttachRegistry(reg *registry.Registry) {
	h.registry = reg
}

// ServeWs upgrades the HTTP request to a WebSocket connection and starts the
// client's pumps (spec §4.1), mirroring the teacher's Hub.ServeWs.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:           uuid.NewString(),
		conn:         conn,
		hub:          h,
		send:         make(chan []byte, 64),
		prioritySend: make(chan []byte, 64),
		pongTimeout:  h.pongTimeout,
	}

	h.mu.Lock()
	h.connections[client.id] = client
	h.mu.Unlock()

	metrics.ActiveWebSocketConnections.Inc()
	slog.Info("websocket connection accepted", "connectionId", client.id)

	go client.writePump(h.pingInterval)
	go client.readPump()
}

// validateOrigin allows any origin when allowedOrigins is empty (dev mode),
// mirroring the teacher's validateOrigin helper.
func validateOrigin(r *http.Request, allowedOrigins []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(allowedOrigins) == 0 {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == origin || allowed == "*" {
			return true
		}
	}
	return false
}

// bindParticipant registers client under roomCode/participantID, replacing
// any prior connection bound to the same participant id (reconnect from a
// new socket displaces the old one, spec §4.1).
func (h *Hub) bindParticipant(roomCode, participantID string, client *Client) {
	h.mu.Lock()
	if old, ok := h.byParticipant[participantID]; ok && old != client {
		old.markSuperseded()
	}
	h.byParticipant[participantID] = client
	if h.byRoom[roomCode] == nil {
		h.byRoom[roomCode] = make(map[string]*Client)
	}
	h.byRoom[roomCode][client.id] = client
	h.mu.Unlock()

	client.setBinding(roomCode, participantID)
	h.registry.CancelReap(roomCode)
}

// unbind removes client from every index it may be registered under. Called
// once the connection's pumps exit (spec §4.1: transport failures never
// propagate into room state — this only touches the connection registry).
func (h *Hub) unbind(client *Client) {
	h.mu.Lock()
	delete(h.connections, client.id)
	roomCode, participantID := client.binding()
	if roomCode != "" {
		if clients, ok := h.byRoom[roomCode]; ok {
			delete(clients, client.id)
			if len(clients) == 0 {
				delete(h.byRoom, roomCode)
			}
		}
	}
	if participantID != "" {
		if current, ok := h.byParticipant[participantID]; ok && current == client {
			delete(h.byParticipant, participantID)
		}
	}
	h.mu.Unlock()

	metrics.ActiveWebSocketConnections.Dec()
	if roomCode != "" {
		h.registry.ScheduleReap(roomCode)
	}
}

// SendTo implements roomactor.Sender: delivers msg to the single connection
// currently bound to participantID, if any (spec §4.3 per-op acks).
func (h *Hub) SendTo(participantID string, msg any) {
	h.mu.RLock()
	client, ok := h.byParticipant[participantID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	client.enqueue(msg)
}

// Broadcast implements roomactor.Sender: fans msg out to every connection
// bound to roomCode (spec §4.1 broadcast semantics — best effort, bounded
// per-connection buffer, never blocks other connections).
func (h *Hub) Broadcast(roomCode string, msg any) {
	h.mu.RLock()
	clients := h.byRoom[roomCode]
	list := make([]*Client, 0, len(clients))
	for _, c := range clients {
		list = append(list, c)
	}
	h.mu.RUnlock()

	for _, c := range list {
		c.enqueue(msg)
	}
}

// NotifyRoomFinished implements roomactor.Sender: forwards the room's
// terminal-status transition to the registry, which arms the finished-room
// retention window (spec §3/§4.2). The Hub is the one component that holds
// both the Room Actor's Sender dependency and the registry, so it is the
// natural relay rather than a callback the actor holds directly.
func (h *Hub) NotifyRoomFinished(roomCode string) {
	h.registry.ReapFinished(roomCode)
}

// Lookup finds the room for code via the registry.
func (h *Hub) Lookup(code string) (*roomactor.Room, bool) {
	return h.registry.Lookup(code)
}

// CreateOrJoinHost delegates to the registry (spec §4.2) — the host's first
// joinRoom frame is what actually creates the room.
func (h *Hub) CreateOrJoinHost(hostID, code string) (*roomactor.Room, error) {
	return h.registry.CreateOrJoinHost(hostID, code)
}

// CheckBuzz enforces the per-participant buzz rate limit at the gateway,
// before the frame ever reaches the Room Actor (spec §B.5 — a
// transport-layer concern, kept out of the actor's dependency-ordered
// leaves).
func (h *Hub) CheckBuzz(ctx context.Context, participantID string) error {
	if h.limiter == nil {
		return nil
	}
	return h.limiter.CheckBuzz(ctx, participantID)
}

// Shutdown stops accepting new work and closes every live connection
// (mirrors the teacher's Hub.Shutdown, minus the SFU teardown this domain
// has no use for).
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.connections))
	for _, c := range h.connections {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close("server shutting down")
	}

	h.registry.Shutdown()
	return nil
}

var _ roomactor.Sender = (*Hub)(nil)
