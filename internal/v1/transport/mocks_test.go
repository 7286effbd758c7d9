package transport

import (
	"sync"
	"time"
)

// mockConn fakes a websocket connection via function fields, mirroring the
// teacher's MockConnection (internal/v1/transport/mocks_test.go).
type mockConn struct {
	mu               sync.Mutex
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	written          [][]byte
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	m.written = append(m.written, data)
	m.mu.Unlock()
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *mockConn) writtenMessages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

func (m *mockConn) Close() error                                { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error           { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error          { return nil }
func (m *mockConn) SetPongHandler(h func(appData string) error) {}
