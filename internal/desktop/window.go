//go:build !tinygo

// Package desktop shows an animator in a native window. The window's
// update loop is the tick source: one Update, one frame.
package desktop

import (
	"context"
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/internal/sketch"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Animator is the part of scene.Animator the window drives.
type Animator interface {
	Step(tick timectrl.Tick) (*render.Frame, error)
	Frame() (*render.Frame, error)
	Description() *render.Description
	Camera() *render.Camera
	Resize(width, height int) error
	Paused() bool
	SetPaused(paused bool)
}

// Config sizes the window.
type Config struct {
	Title  string
	Width  int
	Height int
	TPS    int
}

var background = color.RGBA{A: 0xff}

type game struct {
	ctx     context.Context
	anim    Animator
	painter *sketch.Painter
	log     logging.Logger

	width, height int
}

// Run opens the window and blocks until it is closed, Escape is pressed or
// ctx is done. Space toggles pause.
func Run(ctx context.Context, anim Animator, cfg Config, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.Title == "" {
		cfg.Title = "Orrery"
	}
	if cfg.TPS <= 0 {
		cfg.TPS = timectrl.DefaultFPS
	}
	w, h := anim.Camera().Viewport()
	if cfg.Width > 0 && cfg.Height > 0 {
		w, h = cfg.Width, cfg.Height
	}

	g := &game{
		ctx:     ctx,
		anim:    anim,
		painter: sketch.NewPainter(anim.Description()),
		log:     log,
	}
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(w, h)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TPS)

	log.Info(ctx, "opening desktop viewer", logging.Int("width", w), logging.Int("height", h), logging.Int("tps", cfg.TPS))
	return ebiten.RunGame(g)
}

func (g *game) Update() error {
	if g.ctx.Err() != nil || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.anim.SetPaused(!g.anim.Paused())
	}
	if _, err := g.anim.Step(timectrl.Tick{}); err != nil {
		g.log.Error(g.ctx, "frame step failed", logging.Err(err))
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	f, err := g.anim.Frame()
	if err != nil {
		return
	}
	s := g.painter.Build(f, g.anim.Camera())

	for _, st := range s.Stars {
		vector.DrawFilledRect(screen, st.X-st.Size/2, st.Y-st.Size/2, st.Size, st.Size, s.StarColor, false)
	}
	for _, pl := range s.Polylines {
		for i := 1; i < len(pl.Points); i++ {
			a, b := pl.Points[i-1], pl.Points[i]
			vector.StrokeLine(screen, a[0], a[1], b[0], b[1], 1, pl.Color, true)
		}
	}
	for _, c := range s.Circles {
		vector.DrawFilledCircle(screen, c.X, c.Y, c.R, c.Color, true)
	}
	for _, l := range s.Labels {
		ebitenutil.DebugPrintAt(screen, l.Text, l.X, l.Y)
	}

	status := fmt.Sprintf("frame %d  %.0f fps", f.Seq, ebiten.ActualFPS())
	if f.Paused {
		status += "  paused"
	}
	ebitenutil.DebugPrint(screen, status)
}

// Layout keeps the logical screen equal to the window and recomputes the
// camera projection when it changes.
func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth > 0 && outsideHeight > 0 && (outsideWidth != g.width || outsideHeight != g.height) {
		if err := g.anim.Resize(outsideWidth, outsideHeight); err != nil {
			g.log.Warn(g.ctx, "resize failed", logging.Err(err))
		} else {
			g.width, g.height = outsideWidth, outsideHeight
		}
	}
	return max(outsideWidth, 1), max(outsideHeight, 1)
}
