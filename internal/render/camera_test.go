package render

import (
	"math"
	"testing"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/model"
)

func TestCameraResizeChangesOnlyProjection(t *testing.T) {
	cam := NewCamera(model.DefaultCamera())
	view := cam.View()
	proj := cam.Projection()

	if err := cam.Resize(800, 800); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if cam.Aspect() != 1 {
		t.Fatalf("aspect = %v, want 1", cam.Aspect())
	}
	if cam.View() != view {
		t.Fatalf("view matrix changed on resize")
	}
	if cam.Projection() == proj {
		t.Fatalf("projection unchanged after aspect change")
	}
	if w, h := cam.Viewport(); w != 800 || h != 800 {
		t.Fatalf("viewport = %dx%d", w, h)
	}
}

func TestCameraResizeRejectsEmptyViewport(t *testing.T) {
	cam := NewCamera(model.DefaultCamera())
	if err := cam.Resize(0, 600); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if w, h := cam.Viewport(); w != 1280 || h != 720 {
		t.Fatalf("viewport changed to %dx%d on failed resize", w, h)
	}
}

func TestCameraProjectsTargetToCentre(t *testing.T) {
	cam := NewCamera(model.DefaultCamera())
	x, y, depth, ok := cam.Project(core.Vec3{})
	if !ok {
		t.Fatalf("target not visible")
	}
	if math.Abs(x-640) > 1e-6 || math.Abs(y-360) > 1e-6 {
		t.Fatalf("target projected to (%v, %v), want (640, 360)", x, y)
	}
	if depth <= -1 || depth >= 1 {
		t.Fatalf("depth %v out of range", depth)
	}

	// Above the target appears higher on screen (smaller y).
	_, yUp, _, ok := cam.Project(core.Vec3{0, 5, 0})
	if !ok || yUp >= y {
		t.Fatalf("point above target at y=%v, centre at %v", yUp, y)
	}
}

func TestCameraRejectsPointsBehind(t *testing.T) {
	cam := NewCamera(model.DefaultCamera())
	if _, _, _, ok := cam.Project(core.Vec3{0, 40, 60}); ok {
		t.Fatalf("point behind the camera reported visible")
	}
}

func TestCameraPixelScaleShrinksWithDistance(t *testing.T) {
	cam := NewCamera(model.DefaultCamera())
	near := cam.PixelScale(core.Vec3{0, 10, 15})
	far := cam.PixelScale(core.Vec3{})
	if !(near > far && far > 0) {
		t.Fatalf("pixel scale near=%v far=%v", near, far)
	}
}

func TestCameraCloneIsIndependent(t *testing.T) {
	cam := NewCamera(model.DefaultCamera())
	cp := cam.Clone()
	if err := cp.Resize(100, 100); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if cam.Aspect() == cp.Aspect() {
		t.Fatalf("resizing clone changed original")
	}
	st := cam.State()
	if st.Width != 1280 || st.Position != [3]float64{0, 20, 30} || st.FOVDegrees != 75 {
		t.Fatalf("state = %+v", st)
	}
}
