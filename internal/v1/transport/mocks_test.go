package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// mockConn is an in-memory wsConnection. Inbound frames are pushed through
// a channel; written frames are recorded for assertions.
type mockConn struct {
	inbound chan wsFrame

	mu      sync.Mutex
	written []wsFrame

	closeCh   chan struct{}
	closeOnce sync.Once
}

type wsFrame struct {
	messageType int
	data        []byte
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan wsFrame, 16),
		closeCh: make(chan struct{}),
	}
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case f := <-m.inbound:
		return f.messageType, f.data, nil
	case <-m.closeCh:
		return 0, nil, errors.New("connection closed")
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.closeCh:
		return errors.New("connection closed")
	default:
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, wsFrame{messageType, data})
	return nil
}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closeCh) })
	return nil
}

func (m *mockConn) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConn) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConn) SetReadLimit(int64)                {}
func (m *mockConn) SetPongHandler(func(string) error) {}

// push feeds an inbound text frame to the read pump.
func (m *mockConn) push(data []byte) {
	m.inbound <- wsFrame{websocket.TextMessage, data}
}

func (m *mockConn) pushBinary(data []byte) {
	m.inbound <- wsFrame{websocket.BinaryMessage, data}
}

// textFrames returns every text frame written so far.
func (m *mockConn) textFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	for _, f := range m.written {
		if f.messageType == websocket.TextMessage {
			out = append(out, f.data)
		}
	}
	return out
}
