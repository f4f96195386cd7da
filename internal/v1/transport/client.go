package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/collabboard/backend/go/internal/v1/logging"
	"github.com/collabboard/backend/go/internal/v1/metrics"
	"github.com/collabboard/backend/go/internal/v1/protocol"
	"github.com/collabboard/backend/go/internal/v1/room"
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
}

const (
	writeWait = 10 * time.Second

	// sendQueueDepth bounds the per-client write queue. A client that cannot
	// drain its queue loses frames rather than stalling the broadcaster.
	sendQueueDepth = 256

	// readLimit sits above the protocol frame cap so an oversize frame
	// reaches the dispatcher and earns an error reply; only grossly
	// oversized frames kill the connection outright.
	readLimit = 2 * protocol.MaxFrameBytes
)

// Client represents a single whiteboard connection. It implements
// types.Conn; the room core hands it frames and never touches the socket.
type Client struct {
	conn wsConnection
	hub  *Hub

	// sess is the join state. Only the read pump mutates it.
	sess room.ClientSession

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	send chan []byte
}

func newClient(conn wsConnection, hub *Hub) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		send: make(chan []byte, sendQueueDepth),
	}
}

// Send queues a frame for delivery. Returns false when the client is
// closed or its queue is full; the frame is dropped in both cases.
func (c *Client) Send(data []byte) (ok bool) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return false
	}
	c.mu.RUnlock()

	// A concurrent Close can close the channel between the flag check and
	// the send; recover turns that race into a dropped frame.
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		logging.Warn(context.Background(), "client send queue full, dropping frame")
		return false
	}
}

// Close marks the client closed and releases the write pump. Safe to call
// from any goroutine, any number of times.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		// Closing the channel lets writePump drain, send the close frame,
		// and tear down the connection.
		close(c.send)
	})
}

// readPump processes inbound frames until the connection drops, then runs
// the full disconnect sequence exactly once.
func (c *Client) readPump() {
	defer func() {
		c.hub.dispatcher.Disconnect(&c.sess)
		c.hub.unregister(c)
		c.Close()
		c.conn.Close()
		metrics.DecConnection()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(protocol.HeartbeatTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(protocol.HeartbeatTimeout))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		// Any inbound frame counts as liveness, not just pongs.
		_ = c.conn.SetReadDeadline(time.Now().Add(protocol.HeartbeatTimeout))

		c.hub.dispatcher.Dispatch(c, &c.sess, data)
	}
}

// writePump serializes all socket writes: queued frames plus the periodic
// protocol-level ping.
func (c *Client) writePump() {
	ticker := time.NewTicker(protocol.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Error(context.Background(), "error writing frame", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
