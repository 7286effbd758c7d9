package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/game"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomactor"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomerr"
)

// wsConnection is the subset of *websocket.Conn this package depends on,
// mirroring the teacher's client.go wsConnection interface so the pumps are
// testable against a fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// envelope is the outermost shape of every JSON frame (spec §6.1).
type envelope struct {
	Type string `json:"type"`
}

// joinRoomFrame is the subset of the joinRoom payload the transport needs to
// peek at before a participant id exists to bind the connection under.
type joinRoomFrame struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName,omitempty"`
	Role       string `json:"role"`
	PlayerID   string `json:"playerId,omitempty"`
}

// Client represents one WebSocket connection, bound to at most one
// (room_code, participant_id) pair after its first joinRoom frame (spec
// §4.1). Grounded on the teacher's transport.Client.
type Client struct {
	id   string
	conn wsConnection
	hub  *Hub

	mu            sync.RWMutex
	roomCode      string
	participantID string
	room          *roomactor.Room
	closed        bool

	send         chan []byte
	prioritySend chan []byte
	closeOnce    sync.Once
	pongTimeout  time.Duration
}

func (c *Client) binding() (roomCode, participantID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomCode, c.participantID
}

func (c *Client) setBinding(roomCode, participantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = roomCode
	c.participantID = participantID
}

func (c *Client) resetReadDeadline() {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
}

// markSuperseded closes a connection that has been displaced by a newer one
// claiming the same participant id (spec §4.1 reconnect binding).
func (c *Client) markSuperseded() {
	c.close("superseded by reconnect")
}

func (c *Client) close(reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		slog.Info("websocket connection closing", "connectionId", c.id, "reason", reason)
		close(c.send)
		close(c.prioritySend)
		_ = c.conn.Close()
	})
}

// enqueue marshals msg and queues it for delivery, dropping a full buffer
// rather than blocking other connections (spec §4.1: a slow consumer must
// not block others). Snapshot-shaped messages (gameStateUpdate) are safe to
// drop since they're idempotent; narrow events go on a separate priority
// channel, and if that channel is full the narrow event is dropped and a
// warning is logged.
func (c *Client) enqueue(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal outbound message", "error", err)
		return
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	isPriority := isNarrowEvent(msg)
	ch := c.send
	if isPriority {
		ch = c.prioritySend
	}

	defer func() { _ = recover() }() // channel may close concurrently with enqueue
	select {
	case ch <- data:
	default:
		if isPriority {
			slog.Warn("priority channel full, dropping narrow event", "connectionId", c.id)
			return
		}
		// Non-priority (snapshot) channel is full: drop the oldest queued
		// snapshot, not this newest one (spec §4.1 "drop oldest snapshot" —
		// snapshots are idempotent, so the consumer should catch up to the
		// freshest state once it drains rather than keep falling further
		// behind).
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- data:
		default:
			// Raced with another enqueue refilling the slot just freed;
			// give up silently rather than block.
		}
	}
}

// isNarrowEvent reports whether msg must never be dropped in favor of a
// fresher snapshot (spec §4.1).
func isNarrowEvent(msg any) bool {
	switch msg.(type) {
	case roomactor.BuzzReceivedMsg, roomactor.ErrorMsg, roomactor.GameSavedMsg, roomactor.GameCreatedMsg, roomactor.RoomJoinedMsg, roomactor.PongMsg, roomactor.BuzzerLockedMsg:
		return true
	default:
		return false
	}
}

// readPump processes inbound frames until the connection closes (spec
// §4.1: unknown types become an error frame, never a disconnect).
func (c *Client) readPump() {
	defer func() {
		c.hub.unbind(c)
		c.close("read loop exited")
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.sendError("malformed frame: not a JSON object with a type field")
			continue
		}

		c.dispatch(env.Type, data)
	}
}

func (c *Client) dispatch(msgType string, raw json.RawMessage) {
	ctx := context.Background()

	roomCode, participantID := c.binding()

	if msgType == "pong" {
		c.resetReadDeadline()
		return
	}

	if msgType == "joinRoom" {
		c.handleJoinRoom(ctx, raw)
		return
	}

	if roomCode == "" || c.room == nil {
		c.sendError("must joinRoom before sending other messages")
		return
	}

	if msgType == "buzz" {
		if err := c.hub.CheckBuzz(ctx, participantID); err != nil {
			c.sendError(roomerr.WireMessage(roomerr.Validation("buzz rate limit exceeded, slow down")))
			return
		}
	}

	c.room.Dispatch(ctx, participantID, msgType, raw)
}

// handleJoinRoom resolves which room and participant id this connection
// binds to, creating the room on the first host join (spec §3/§4.2), then
// registers the binding BEFORE dispatching so the room actor's reply
// (roomJoined) has somewhere to land.
func (c *Client) handleJoinRoom(ctx context.Context, raw json.RawMessage) {
	var f joinRoomFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		c.sendError(roomerr.WireMessage(roomerr.Protocol("malformed joinRoom frame")))
		return
	}

	var room *roomactor.Room
	var err error
	if f.Role == string(game.RoleHost) {
		if f.PlayerID == "" {
			f.PlayerID = uuid.NewString()
		}
		room, err = c.hub.CreateOrJoinHost(f.PlayerID, f.RoomID)
		if room != nil {
			f.RoomID = room.Code
		}
	} else {
		r, ok := c.hub.Lookup(f.RoomID)
		if !ok {
			c.sendError(roomerr.WireMessage(roomerr.NotFound("room %s not found", f.RoomID)))
			return
		}
		room = r
		if f.PlayerID == "" {
			f.PlayerID = uuid.NewString()
		}
	}
	if err != nil {
		c.sendError(roomerr.WireMessage(err))
		return
	}

	c.room = room
	c.hub.bindParticipant(f.RoomID, f.PlayerID, c)

	resolved, err := json.Marshal(f)
	if err != nil {
		c.sendError(roomerr.WireMessage(roomerr.Protocol("failed to resolve joinRoom frame")))
		return
	}
	room.Dispatch(ctx, f.PlayerID, "joinRoom", resolved)
}

func (c *Client) sendError(message string) {
	c.enqueue(roomactor.ErrorMsg{Type: "error", Message: message})
}

// writePump drains the priority and normal send channels and pings on an
// interval (spec §4.1 heartbeat), mirroring the teacher's Client.writePump.
func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	const writeWait = 5 * time.Second

	for {
		select {
		case msg, ok := <-c.prioritySend:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			ping, _ := json.Marshal(roomactor.PongMsg{Type: "ping", Timestamp: time.Now().UnixMilli()})
			if err := c.conn.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}
