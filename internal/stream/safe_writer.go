package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SafeWriter serialises writes to a websocket connection. gorilla allows
// one concurrent writer; reads stay on the owning goroutine.
type SafeWriter struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

// NewSafeWriter wraps conn. A positive timeout sets a write deadline on
// every write.
func NewSafeWriter(conn *websocket.Conn, timeout time.Duration) *SafeWriter {
	return &SafeWriter{conn: conn, timeout: timeout}
}

// WriteJSON encodes v as one text message.
func (w *SafeWriter) WriteJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline()
	return w.conn.WriteJSON(v)
}

// WriteMessage writes one pre-encoded message.
func (w *SafeWriter) WriteMessage(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.deadline()
	return w.conn.WriteMessage(messageType, data)
}

// WritePing sends a ping control frame.
func (w *SafeWriter) WritePing() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.controlTimeout()))
}

// CloseWith sends a close frame with the given code, then closes the
// connection.
func (w *SafeWriter) CloseWith(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(w.controlTimeout()))
	return w.Close()
}

// Close closes the underlying connection.
func (w *SafeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}

// Conn returns the underlying connection for reading.
func (w *SafeWriter) Conn() *websocket.Conn {
	return w.conn
}

func (w *SafeWriter) deadline() {
	if w.timeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.timeout))
	}
}

func (w *SafeWriter) controlTimeout() time.Duration {
	if w.timeout > 0 {
		return w.timeout
	}
	return time.Second
}
