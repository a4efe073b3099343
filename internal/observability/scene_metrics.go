package observability

import (
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/orrery/kb"
)

// SceneCollector exposes animator and viewer metrics.
type SceneCollector struct {
	gatherer prometheus.Gatherer

	FramesTotal       prometheus.Counter
	FrameStepDuration prometheus.Histogram
	StarsRecycled     prometheus.Counter
	ShuttleLeg        prometheus.Gauge
	Bodies            prometheus.Gauge
	Paused            prometheus.Gauge
	CommittedFrame    prometheus.Gauge
	BodyDistance      *prometheus.GaugeVec

	ViewersConnected prometheus.Gauge
	FramesSent       prometheus.Counter
	FramesDropped    prometheus.Counter
}

// NewSceneCollector registers scene metrics against the provided registerer.
func NewSceneCollector(reg prometheus.Registerer) (*SceneCollector, error) {
	reg, gatherer := resolveRegistry(reg)
	c := &SceneCollector{gatherer: gatherer}

	var err error
	if c.FramesTotal, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_frames_total",
		Help: "Frames rendered by the animator.",
	}), "orrery_frames_total"); err != nil {
		return nil, err
	}
	if c.FrameStepDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "orrery_frame_step_duration_seconds",
		Help:    "Time spent advancing and rendering one frame.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.033, 0.1},
	}), "orrery_frame_step_duration_seconds"); err != nil {
		return nil, err
	}
	if c.StarsRecycled, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stars_recycled_total",
		Help: "Star particles pulled back inside the containment shell.",
	}), "orrery_stars_recycled_total"); err != nil {
		return nil, err
	}
	if c.ShuttleLeg, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_shuttle_leg",
		Help: "Active shuttle leg (0 outbound, 1 return).",
	}), "orrery_shuttle_leg"); err != nil {
		return nil, err
	}
	if c.Bodies, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_bodies",
		Help: "Bodies in the current scene.",
	}), "orrery_bodies"); err != nil {
		return nil, err
	}
	if c.Paused, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_paused",
		Help: "1 while motion is paused.",
	}), "orrery_paused"); err != nil {
		return nil, err
	}
	if c.CommittedFrame, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_committed_frame",
		Help: "Frame number of the last body store commit.",
	}), "orrery_committed_frame"); err != nil {
		return nil, err
	}
	if c.BodyDistance, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "orrery_body_distance",
		Help: "Committed distance of each body from the scene origin.",
	}, []string{"body"}), "orrery_body_distance"); err != nil {
		return nil, err
	}
	if c.ViewersConnected, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "orrery_viewers_connected",
		Help: "WebSocket viewers currently connected.",
	}), "orrery_viewers_connected"); err != nil {
		return nil, err
	}
	if c.FramesSent, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stream_frames_sent_total",
		Help: "Frames written to viewers.",
	}), "orrery_stream_frames_sent_total"); err != nil {
		return nil, err
	}
	if c.FramesDropped, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orrery_stream_frames_dropped_total",
		Help: "Frames skipped because a viewer's queue was full.",
	}), "orrery_stream_frames_dropped_total"); err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SceneCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveFrame records one animator step.
func (c *SceneCollector) ObserveFrame(d time.Duration, recycled int, shuttleLeg int) {
	if c == nil {
		return
	}
	c.FramesTotal.Inc()
	c.FrameStepDuration.Observe(d.Seconds())
	if recycled > 0 {
		c.StarsRecycled.Add(float64(recycled))
	}
	c.ShuttleLeg.Set(float64(shuttleLeg))
}

// SetBodies updates the body count gauge.
func (c *SceneCollector) SetBodies(n int) {
	if c == nil {
		return
	}
	c.Bodies.Set(float64(n))
}

// SetPaused updates the pause gauge.
func (c *SceneCollector) SetPaused(paused bool) {
	if c == nil {
		return
	}
	v := 0.0
	if paused {
		v = 1
	}
	c.Paused.Set(v)
}

// ObserveCommit records a body store commit. It has the signature of a
// kb.BodyStore subscriber.
func (c *SceneCollector) ObserveCommit(e kb.Event) {
	if c == nil {
		return
	}
	c.CommittedFrame.Set(float64(e.Frame))
	for _, b := range e.Bodies {
		w := b.World
		c.BodyDistance.WithLabelValues(b.ID).Set(math.Sqrt(w.X*w.X + w.Y*w.Y + w.Z*w.Z))
	}
}

// ViewerConnected increments the viewer gauge.
func (c *SceneCollector) ViewerConnected() {
	if c == nil {
		return
	}
	c.ViewersConnected.Inc()
}

// ViewerDisconnected decrements the viewer gauge.
func (c *SceneCollector) ViewerDisconnected() {
	if c == nil {
		return
	}
	c.ViewersConnected.Dec()
}

// FrameSent counts one delivered frame.
func (c *SceneCollector) FrameSent() {
	if c == nil {
		return
	}
	c.FramesSent.Inc()
}

// FrameDropped counts one frame skipped for a slow viewer.
func (c *SceneCollector) FrameDropped() {
	if c == nil {
		return
	}
	c.FramesDropped.Inc()
}
