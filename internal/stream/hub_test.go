package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type envelope struct {
	Type string `json:"type"`
}

type fixture struct {
	anim    *scene.Animator
	hub     *Hub
	srv     *httptest.Server
	metrics *observability.SceneCollector
}

func newFixture(t *testing.T, opts ...HubOption) *fixture {
	t.Helper()
	def := model.SolarSystem()
	def.Starfield.Count = 50
	def.Seed = 7
	anim, err := scene.New(context.Background(), def)
	if err != nil {
		t.Fatalf("scene.New: %v", err)
	}
	metrics, err := observability.NewSceneCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewSceneCollector: %v", err)
	}
	hub := NewHub(anim, append([]HubOption{WithMetrics(metrics)}, opts...)...)
	remove := anim.AddSink(hub)
	srv := httptest.NewServer(hub)

	t.Cleanup(func() {
		remove()
		hub.Close()
		srv.Close()
	})
	return &fixture{anim: anim, hub: hub, srv: srv, metrics: metrics}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages until one has the wanted type, decoding it into
// out.
func readUntil(t *testing.T, conn *websocket.Conn, want string, out any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("bad message %s: %v", data, err)
		}
		if env.Type != want {
			continue
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				t.Fatalf("decode %q: %v", want, err)
			}
		}
		return
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestViewerReceivesSceneThenFrames(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)

	var sceneMsg struct {
		Type string `json:"type"`
		render.Description
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&sceneMsg); err != nil {
		t.Fatalf("read scene: %v", err)
	}
	if sceneMsg.Type != MessageTypeScene || len(sceneMsg.Bodies) != 10 || sceneMsg.Shuttle == nil {
		t.Fatalf("first message = %+v", sceneMsg)
	}

	for i := 0; i < 3; i++ {
		if _, err := f.anim.Step(timectrl.Tick{}); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	var frame struct {
		Type string `json:"type"`
		render.Frame
	}
	for i := 1; i <= 3; i++ {
		readUntil(t, conn, MessageTypeFrame, &frame)
		if frame.Seq != uint64(i) {
			t.Fatalf("frame seq = %d, want %d", frame.Seq, i)
		}
	}
	if _, ok := frame.Node("moon"); !ok || len(frame.Stars) != 150 {
		t.Fatalf("frame missing moon or stars: %d stars", len(frame.Stars))
	}

	waitFor(t, "frames sent metric", func() bool { return testutil.ToFloat64(f.metrics.FramesSent) == 3 })
	if got := testutil.ToFloat64(f.metrics.ViewersConnected); got != 1 {
		t.Fatalf("viewers gauge = %v, want 1", got)
	}
}

func TestLateViewerGetsLatestFrame(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 4; i++ {
		_, _ = f.anim.Step(timectrl.Tick{})
	}
	conn := f.dial(t)
	readUntil(t, conn, MessageTypeScene, nil)

	var frame FrameMessage
	readUntil(t, conn, MessageTypeFrame, &frame)
	if frame.Frame == nil || frame.Seq != 4 {
		t.Fatalf("first frame = %+v, want seq 4", frame.Frame)
	}
}

func TestResizeRepliesWithCamera(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, MessageTypeScene, nil)

	if err := conn.WriteJSON(ClientMessage{Type: MessageTypeResize, Width: 800, Height: 800}); err != nil {
		t.Fatalf("write resize: %v", err)
	}
	var cam CameraMessage
	readUntil(t, conn, MessageTypeCamera, &cam)
	if cam.Aspect != 1 || cam.Width != 800 || cam.Height != 800 {
		t.Fatalf("camera = %+v", cam.CameraState)
	}
	// The scene camera belongs to the animator and is not touched.
	if w, _ := f.anim.Camera().Viewport(); w != 1280 {
		t.Fatalf("animator camera width = %d, want 1280", w)
	}
}

func TestBadClientMessagesReportErrors(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, MessageTypeScene, nil)

	cases := []string{
		`{"type":"resize","width":0,"height":600}`,
		`{"type":"warp"}`,
		`{"type":`,
	}
	for _, raw := range cases {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write %s: %v", raw, err)
		}
		var msg ErrorMessage
		readUntil(t, conn, MessageTypeError, &msg)
		if msg.Error == "" {
			t.Fatalf("%s: empty error", raw)
		}
	}

	// still usable afterwards
	if err := conn.WriteJSON(ClientMessage{Type: MessageTypeResize, Width: 640, Height: 480}); err != nil {
		t.Fatalf("write resize: %v", err)
	}
	readUntil(t, conn, MessageTypeCamera, nil)
}

func TestDispatchReturnsHandlerErrors(t *testing.T) {
	f := newFixture(t)
	v := &viewer{camera: f.anim.Camera(), log: logging.Noop()}
	ctx := context.Background()

	for _, raw := range []string{
		`{"type":"resize","width":0,"height":600}`,
		`{"type":"warp"}`,
		`{"type":`,
	} {
		if err := f.hub.dispatch(ctx, v, []byte(raw)); err == nil {
			t.Fatalf("dispatch(%s) returned nil error", raw)
		}
	}
	if err := f.hub.dispatch(ctx, v, []byte(`{"type":"pause"}`)); err != nil {
		t.Fatalf("dispatch(pause): %v", err)
	}
	if !f.anim.Paused() {
		t.Fatalf("pause message did not pause the animator")
	}
}

func TestPauseAndResumeFromViewer(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, MessageTypeScene, nil)

	_ = conn.WriteJSON(ClientMessage{Type: MessageTypePause})
	waitFor(t, "pause", f.anim.Paused)

	_ = conn.WriteJSON(ClientMessage{Type: MessageTypeResume})
	waitFor(t, "resume", func() bool { return !f.anim.Paused() })
}

func TestFullQueueDropsFrames(t *testing.T) {
	metrics, err := observability.NewSceneCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewSceneCollector: %v", err)
	}
	h := NewHub(nil, WithMetrics(metrics), WithQueueSize(2))
	v := &viewer{id: "slow", send: make(chan []byte, h.queueSize), done: make(chan struct{})}
	h.viewers[v.id] = v

	for i := 1; i <= 5; i++ {
		h.DeliverFrame(&render.Frame{Seq: uint64(i)})
	}
	if got := v.dropped.Load(); got != 3 {
		t.Fatalf("dropped = %d, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.FramesDropped); got != 3 {
		t.Fatalf("dropped metric = %v, want 3", got)
	}

	var first FrameMessage
	if err := json.Unmarshal(<-v.send, &first); err != nil || first.Seq != 1 {
		t.Fatalf("queued frame = %+v, %v; want seq 1", first.Frame, err)
	}
}

func TestCloseDisconnectsViewers(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t)
	readUntil(t, conn, MessageTypeScene, nil)
	waitFor(t, "registration", func() bool { return f.hub.Viewers() == 1 })

	f.hub.Close()
	if n := f.hub.Viewers(); n != 0 {
		t.Fatalf("viewers after Close = %d", n)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if got := testutil.ToFloat64(f.metrics.ViewersConnected); got != 0 {
		t.Fatalf("viewers gauge = %v, want 0", got)
	}

	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatalf("dial after Close succeeded")
	} else if resp != nil && resp.StatusCode != 503 {
		t.Fatalf("dial after Close status = %d, want 503", resp.StatusCode)
	}
}
