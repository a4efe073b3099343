package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

// options configures one headless run.
type options struct {
	Frames      int
	ScenePath   string
	Preset      string
	Seed        uint64
	Accelerated bool // FrameClock back to back; otherwise a ManualTicker
	Every       int  // print a progress line every N frames; 0 disables
}

// starStats summarises the particle shell after the last frame.
type starStats struct {
	Count     int
	MinRadius float64
	MaxRadius float64
	Recycled  int
}

// report is what a run prints.
type report struct {
	Scene   string
	Frames  uint64
	SimTime time.Time
	Bodies  []kb.BodyState
	Shuttle *render.ShuttleInfo
	Stars   starStats
	Elapsed time.Duration
}

// recorder counts recycled stars across the run.
type recorder struct {
	recycled int
}

func (r *recorder) ObserveFrame(_ time.Duration, recycled int, _ int) { r.recycled += recycled }
func (r *recorder) SetBodies(int)                                     {}
func (r *recorder) SetPaused(bool)                                    {}

func main() {
	var opts options
	flag.IntVar(&opts.Frames, "frames", 600, "number of frames to simulate")
	flag.StringVar(&opts.ScenePath, "scene", "", "path to a JSON or YAML scene file")
	flag.StringVar(&opts.Preset, "preset", "solar", "built-in scene when -scene is unset: solar, satellite or cube")
	flag.Uint64Var(&opts.Seed, "seed", 1, "random seed for initial angles and stars")
	flag.BoolVar(&opts.Accelerated, "accelerated", false, "drive frames from an accelerated frame clock instead of a manual ticker")
	flag.IntVar(&opts.Every, "every", 100, "print shuttle progress every N frames (0 disables)")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	rep, err := simulate(ctx, opts, log, os.Stdout)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	printReport(os.Stdout, rep)
}

// simulate builds the scene and runs it for opts.Frames frames, writing
// progress lines to progress.
func simulate(ctx context.Context, opts options, log logging.Logger, progress io.Writer) (*report, error) {
	if opts.Frames <= 0 {
		return nil, fmt.Errorf("frames must be positive, got %d", opts.Frames)
	}
	def, err := sceneFor(opts)
	if err != nil {
		return nil, err
	}

	rec := &recorder{}
	anim, err := scene.New(ctx, def, scene.WithLogger(log), scene.WithMetricsRecorder(rec))
	if err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}
	def = anim.Definition()

	step := func(t timectrl.Tick) {
		f, err := anim.Step(t)
		if err != nil {
			log.Error(ctx, "frame step failed", logging.Uint64("frame", t.Frame), logging.Err(err))
			return
		}
		if opts.Every > 0 && t.Frame%uint64(opts.Every) == 0 && f.Shuttle != nil {
			fmt.Fprintf(progress, "[%6d] %s shuttle leg=%d progress=%.3f direction=%+d\n",
				t.Frame, t.SimTime.Format(time.RFC3339), f.Shuttle.Leg, f.Shuttle.Progress, f.Shuttle.Direction)
		}
	}

	start := time.Now()
	if opts.Accelerated {
		clock := timectrl.NewFrameClock(def.Clock.Epoch, def.Clock.FrameDuration(), timectrl.DefaultFPS, timectrl.Accelerated)
		clock.AddListener(step)
		<-clock.Start(ctx, time.Duration(opts.Frames)*clock.Interval)
	} else {
		ticker := timectrl.NewManualTicker(def.Clock.Epoch, def.Clock.FrameDuration())
		remove := ticker.AddListener(step)
		ticker.Step(opts.Frames)
		remove()
	}
	elapsed := time.Since(start)

	f, err := anim.Frame()
	if err != nil {
		return nil, err
	}
	rep := &report{
		Scene:   def.Name,
		Frames:  anim.FrameCount(),
		SimTime: f.SimTime,
		Bodies:  anim.Store().List(),
		Shuttle: f.Shuttle,
		Stars:   shellStats(f.Stars),
		Elapsed: elapsed,
	}
	rep.Stars.Recycled = rec.recycled
	log.Debug(ctx, "simulation done", logging.Uint64("frames", rep.Frames), logging.Duration("elapsed", elapsed))
	return rep, nil
}

func sceneFor(opts options) (model.SceneDefinition, error) {
	var def model.SceneDefinition
	if opts.ScenePath != "" {
		loaded, err := core.LoadSceneFile(opts.ScenePath)
		if err != nil {
			return def, err
		}
		def = *loaded
	} else {
		var err error
		if def, err = model.Preset(opts.Preset); err != nil {
			return def, err
		}
	}
	if opts.Seed != 0 {
		def.Seed = opts.Seed
	}
	return def, nil
}

func shellStats(xyz []float32) starStats {
	s := starStats{Count: len(xyz) / 3}
	if s.Count == 0 {
		return s
	}
	s.MinRadius = math.Inf(1)
	for i := 0; i+2 < len(xyz); i += 3 {
		r := math.Sqrt(float64(xyz[i])*float64(xyz[i]) + float64(xyz[i+1])*float64(xyz[i+1]) + float64(xyz[i+2])*float64(xyz[i+2]))
		s.MinRadius = math.Min(s.MinRadius, r)
		s.MaxRadius = math.Max(s.MaxRadius, r)
	}
	return s
}

func printReport(w io.Writer, r *report) {
	fmt.Fprintf(w, "Scene %q after %d frames (sim time %s, wall %s)\n",
		r.Scene, r.Frames, r.SimTime.Format(time.RFC3339), r.Elapsed.Round(time.Millisecond))
	for _, b := range r.Bodies {
		parent := b.Parent
		if parent == "" {
			parent = "-"
		}
		fmt.Fprintf(w, "  %-10s %-6s parent=%-8s world=(%8.3f, %8.3f, %8.3f) angle=%7.3f spin=%7.3f\n",
			b.ID, b.Kind, parent, b.World.X, b.World.Y, b.World.Z, b.OrbitAngle, b.SpinAngle)
	}
	if r.Shuttle != nil {
		fmt.Fprintf(w, "  shuttle %s leg=%d progress=%.3f direction=%+d\n",
			r.Shuttle.ID, r.Shuttle.Leg, r.Shuttle.Progress, r.Shuttle.Direction)
	}
	if r.Stars.Count > 0 {
		fmt.Fprintf(w, "  stars %d radius=[%.3f, %.3f] recycled=%d\n",
			r.Stars.Count, r.Stars.MinRadius, r.Stars.MaxRadius, r.Stars.Recycled)
	}
}
