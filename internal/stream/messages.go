package stream

import "github.com/signalsfoundry/orrery/internal/render"

// Message types on the wire.
const (
	MessageTypeScene  = "scene"
	MessageTypeFrame  = "frame"
	MessageTypeCamera = "camera"
	MessageTypeError  = "error"

	MessageTypeResize = "resize"
	MessageTypePause  = "pause"
	MessageTypeResume = "resume"
)

// SceneMessage is sent once, right after the upgrade.
type SceneMessage struct {
	Type string `json:"type"`
	*render.Description
}

// FrameMessage carries one rendered frame.
type FrameMessage struct {
	Type string `json:"type"`
	*render.Frame
}

// CameraMessage answers a resize with the viewer's recomputed camera.
type CameraMessage struct {
	Type string `json:"type"`
	render.CameraState
}

// ErrorMessage reports a rejected client message. The connection stays
// open.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// ClientMessage is anything a viewer sends.
type ClientMessage struct {
	Type   string `json:"type"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}
