// Package stream fans rendered frames out to websocket viewers.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render"
)

const (
	DefaultQueueSize    = 8
	DefaultPingInterval = 20 * time.Second
	DefaultWriteTimeout = 5 * time.Second

	maxClientMessage = 4096
)

// ErrHubClosed is returned to upgrades that arrive after Close.
var ErrHubClosed = errors.New("stream hub closed")

// Controller is the part of the animator the hub needs.
type Controller interface {
	Description() *render.Description
	Frame() (*render.Frame, error)
	Camera() *render.Camera
	SetPaused(paused bool)
}

// ViewerMetrics receives per-viewer counters.
// *observability.SceneCollector satisfies it.
type ViewerMetrics interface {
	ViewerConnected()
	ViewerDisconnected()
	FrameSent()
	FrameDropped()
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) HubOption {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics attaches viewer metrics.
func WithMetrics(m ViewerMetrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithQueueSize bounds the frames buffered per viewer.
func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithPingInterval sets the keepalive interval. Viewers that miss two
// pongs are dropped.
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithCheckOrigin overrides the upgrade origin check. All origins are
// accepted by default.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

type viewer struct {
	id     string
	w      *SafeWriter
	send   chan []byte
	camera *render.Camera
	log    logging.Logger

	done      chan struct{}
	closeOnce sync.Once
	dropped   atomic.Uint64
}

func (v *viewer) close() {
	v.closeOnce.Do(func() {
		close(v.done)
		if v.w != nil {
			_ = v.w.Close()
		}
	})
}

// Hub is an http.Handler that upgrades viewers to websockets and a
// render.Sink that broadcasts each frame to them. A viewer whose queue is
// full misses frames; the tick loop is never blocked by a slow viewer.
type Hub struct {
	upgrader     websocket.Upgrader
	ctrl         Controller
	log          logging.Logger
	metrics      ViewerMetrics
	queueSize    int
	pingInterval time.Duration
	writeTimeout time.Duration

	mu      sync.RWMutex
	viewers map[string]*viewer
	closed  bool
	wg      sync.WaitGroup
}

// NewHub returns a hub serving ctrl's scene.
func NewHub(ctrl Controller, opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctrl:         ctrl,
		log:          logging.Noop(),
		queueSize:    DefaultQueueSize,
		pingInterval: DefaultPingInterval,
		writeTimeout: DefaultWriteTimeout,
		viewers:      make(map[string]*viewer),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// ServeHTTP upgrades the request and serves the viewer until it
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, ErrHubClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	id := logging.NewID()
	ctx := logging.ContextWithViewerID(r.Context(), id)
	v := &viewer{
		id:     id,
		w:      NewSafeWriter(conn, h.writeTimeout),
		send:   make(chan []byte, h.queueSize),
		camera: h.ctrl.Camera(),
		log:    h.log.With(logging.String("remote", conn.RemoteAddr().String())),
		done:   make(chan struct{}),
	}
	if err := h.register(v); err != nil {
		_ = v.w.CloseWith(websocket.CloseGoingAway, err.Error())
		return
	}
	defer h.unregister(ctx, v)

	v.log.Info(ctx, "viewer connected")
	if err := v.w.WriteJSON(SceneMessage{Type: MessageTypeScene, Description: h.ctrl.Description()}); err != nil {
		v.log.Warn(ctx, "send scene failed", logging.Err(err))
		return
	}
	if f, err := h.ctrl.Frame(); err == nil {
		if data, err := encodeFrame(f); err == nil {
			h.offer(v, data)
		}
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.writeLoop(ctx, v)
	}()
	h.readLoop(ctx, v)
}

func (h *Hub) register(v *viewer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	h.viewers[v.id] = v
	h.wg.Add(1)
	if h.metrics != nil {
		h.metrics.ViewerConnected()
	}
	return nil
}

func (h *Hub) unregister(ctx context.Context, v *viewer) {
	v.close()
	h.mu.Lock()
	_, ok := h.viewers[v.id]
	delete(h.viewers, v.id)
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.ViewerDisconnected()
	}
	v.log.Info(ctx, "viewer disconnected", logging.Uint64("frames_dropped", v.dropped.Load()))
	h.wg.Done()
}

func (h *Hub) readLoop(ctx context.Context, v *viewer) {
	conn := v.w.Conn()
	conn.SetReadLimit(maxClientMessage)
	wait := 2 * h.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				v.log.Debug(ctx, "viewer read failed", logging.Err(err))
			}
			return
		}
		if err := h.dispatch(ctx, v, data); err != nil {
			if werr := v.w.WriteJSON(ErrorMessage{Type: MessageTypeError, Error: err.Error()}); werr != nil {
				return
			}
		}
	}
}

// dispatch decodes one client message and handles it. The returned error
// is reported back to the viewer.
func (h *Hub) dispatch(ctx context.Context, v *viewer, data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}
	return h.handle(ctx, v, msg)
}

func (h *Hub) handle(ctx context.Context, v *viewer, msg ClientMessage) error {
	switch msg.Type {
	case MessageTypeResize:
		if err := v.camera.Resize(msg.Width, msg.Height); err != nil {
			return err
		}
		v.log.Debug(ctx, "viewer resized", logging.Int("width", msg.Width), logging.Int("height", msg.Height))
		return v.w.WriteJSON(CameraMessage{Type: MessageTypeCamera, CameraState: v.camera.State()})
	case MessageTypePause:
		h.ctrl.SetPaused(true)
	case MessageTypeResume:
		h.ctrl.SetPaused(false)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
	return nil
}

func (h *Hub) writeLoop(ctx context.Context, v *viewer) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-v.done:
			return
		case data := <-v.send:
			if err := v.w.WriteMessage(websocket.TextMessage, data); err != nil {
				v.log.Debug(ctx, "frame write failed", logging.Err(err))
				v.close()
				return
			}
			if h.metrics != nil {
				h.metrics.FrameSent()
			}
		case <-ticker.C:
			if err := v.w.WritePing(); err != nil {
				v.close()
				return
			}
		}
	}
}

// DeliverFrame encodes f once and queues it for every viewer.
func (h *Hub) DeliverFrame(f *render.Frame) {
	data, err := encodeFrame(f)
	if err != nil {
		h.log.Error(context.Background(), "encode frame failed", logging.Uint64("seq", f.Seq), logging.Err(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, v := range h.viewers {
		h.offer(v, data)
	}
}

func (h *Hub) offer(v *viewer, data []byte) bool {
	select {
	case v.send <- data:
		return true
	default:
		v.dropped.Add(1)
		if h.metrics != nil {
			h.metrics.FrameDropped()
		}
		return false
	}
}

func encodeFrame(f *render.Frame) ([]byte, error) {
	return json.Marshal(FrameMessage{Type: MessageTypeFrame, Frame: f})
}

// Viewers reports the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Close disconnects every viewer, rejects new ones and waits for their
// goroutines to exit.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	viewers := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.mu.Unlock()

	for _, v := range viewers {
		_ = v.w.CloseWith(websocket.CloseGoingAway, "server shutting down")
		v.close()
	}
	h.wg.Wait()
}
