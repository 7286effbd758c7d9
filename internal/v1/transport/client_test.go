package transport

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeopardy-coordinator/roomserver/internal/v1/registry"
	"github.com/jeopardy-coordinator/roomserver/internal/v1/roomactor"
)

func newTestHub(t *testing.T) *Hub {
	h := NewHub(nil, Config{PingInterval: time.Hour, PongTimeout: time.Hour})
	reg := registry.New(registry.Deps{
		Sender: h,
		Timings: roomactor.Timings{
			TieWindow:          250 * time.Millisecond,
			TieBuffer:          50 * time.Millisecond,
			FinalAnswerTimeout: 30 * time.Second,
		},
		GraceWindow:    time.Hour,
		FinishedRetain: time.Hour,
	})
	h.AttachRegistry(reg)
	return h
}

func newTestClient(h *Hub, conn *mockConn) *Client {
	return &Client{
		id:           "conn-1",
		conn:         conn,
		hub:          h,
		send:         make(chan []byte, 16),
		prioritySend: make(chan []byte, 16),
		pongTimeout:  time.Hour,
	}
}

// drainSent collects every buffered outbound frame from a client whose
// readPump has already returned (channels are closed but still drainable).
func drainSent(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.prioritySend:
			if !ok {
				goto drainNormal
			}
			out = append(out, msg)
		default:
			goto drainNormal
		}
	}
drainNormal:
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func decodeLast(t *testing.T, c *Client) map[string]any {
	msgs := drainSent(c)
	require.NotEmpty(t, msgs)
	var out map[string]any
	require.NoError(t, json.Unmarshal(msgs[len(msgs)-1], &out))
	return out
}

func oneShotReader(frames ...[]byte) func() (int, []byte, error) {
	i := 0
	return func() (int, []byte, error) {
		if i < len(frames) {
			f := frames[i]
			i++
			return 1, f, nil
		}
		return 0, nil, assert.AnError
	}
}

func TestReadPump_UnknownTypeSendsErrorNeverDisconnects(t *testing.T) {
	h := newTestHub(t)
	conn := &mockConn{}
	conn.ReadMessageFunc = oneShotReader([]byte(`{"type":"notAThing"}`))
	c := newTestClient(h, conn)
	c.hub.connections[c.id] = c

	c.readPump()

	out := decodeLast(t, c)
	assert.Equal(t, "error", out["type"])
}

func TestReadPump_MalformedFrameSendsError(t *testing.T) {
	h := newTestHub(t)
	conn := &mockConn{}
	conn.ReadMessageFunc = oneShotReader([]byte(`not json`))
	c := newTestClient(h, conn)
	c.hub.connections[c.id] = c

	c.readPump()

	out := decodeLast(t, c)
	assert.Equal(t, "error", out["type"])
}

func TestReadPump_JoinRoomAsHostCreatesRoomAndBinds(t *testing.T) {
	h := newTestHub(t)
	conn := &mockConn{}
	conn.ReadMessageFunc = oneShotReader([]byte(`{"type":"joinRoom","role":"host","playerName":"Alex"}`))
	c := newTestClient(h, conn)
	c.hub.connections[c.id] = c

	c.readPump()

	roomCode, participantID := c.binding()
	assert.NotEmpty(t, roomCode)
	assert.NotEmpty(t, participantID)

	// roomJoined travels on the priority channel, which drainSent empties
	// first; the snapshot broadcast that follows it comes after.
	msgs := drainSent(c)
	require.NotEmpty(t, msgs)
	var out map[string]any
	require.NoError(t, json.Unmarshal(msgs[0], &out))
	assert.Equal(t, "roomJoined", out["type"])
}

func TestReadPump_MessageBeforeJoinIsRejected(t *testing.T) {
	h := newTestHub(t)
	conn := &mockConn{}
	conn.ReadMessageFunc = oneShotReader([]byte(`{"type":"selectClue","categoryId":"c1","clueId":"q1"}`))
	c := newTestClient(h, conn)
	c.hub.connections[c.id] = c

	c.readPump()

	out := decodeLast(t, c)
	assert.Equal(t, "error", out["type"])
}

func TestReadPump_PlayerJoinUnknownRoomIsNotFoundError(t *testing.T) {
	h := newTestHub(t)
	conn := &mockConn{}
	conn.ReadMessageFunc = oneShotReader([]byte(`{"type":"joinRoom","role":"player","roomId":"ZZZZ"}`))
	c := newTestClient(h, conn)
	c.hub.connections[c.id] = c

	c.readPump()

	out := decodeLast(t, c)
	assert.Equal(t, "error", out["type"])
}

// TestEnqueue_FullBufferDropsOldestSnapshot verifies spec §4.1's bounded
// per-connection buffer policy: once a slow consumer's snapshot channel is
// full, the oldest queued snapshot is dropped to make room for the newest
// one, not the other way around — a draining consumer should catch up to
// current state rather than fall further behind it.
func TestEnqueue_FullBufferDropsOldestSnapshot(t *testing.T) {
	h := newTestHub(t)
	c := newTestClient(h, &mockConn{})
	c.send = make(chan []byte, 2)

	c.enqueue(roomactor.GameStateUpdateMsg{Type: "gameStateUpdate", GameState: roomactor.GameState{RoomID: "first"}})
	c.enqueue(roomactor.GameStateUpdateMsg{Type: "gameStateUpdate", GameState: roomactor.GameState{RoomID: "second"}})
	c.enqueue(roomactor.GameStateUpdateMsg{Type: "gameStateUpdate", GameState: roomactor.GameState{RoomID: "third"}})

	var remaining []map[string]any
	for {
		select {
		case data := <-c.send:
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(data, &decoded))
			remaining = append(remaining, decoded)
		default:
			goto done
		}
	}
done:
	require.Len(t, remaining, 2, "buffer holds only its capacity's worth")
	var roomIDs []string
	for _, m := range remaining {
		roomIDs = append(roomIDs, m["gameState"].(map[string]any)["roomId"].(string))
	}
	assert.Equal(t, []string{"second", "third"}, roomIDs, "oldest (first) snapshot was dropped, newest two survive")
}
