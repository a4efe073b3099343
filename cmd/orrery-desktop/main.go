//go:build !tinygo

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/desktop"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

func main() {
	scenePath := flag.String("scene", "", "Path to a JSON or YAML scene file")
	preset := flag.String("preset", "solar", "Built-in scene when -scene is unset: solar, satellite or cube")
	seed := flag.Uint64("seed", 0, "Random seed for initial angles and stars (0 picks one)")
	width := flag.Int("width", 0, "Window width (defaults to the scene camera)")
	height := flag.Int("height", 0, "Window height (defaults to the scene camera)")
	fps := flag.Int("fps", timectrl.DefaultFPS, "Frames per second")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var def model.SceneDefinition
	if *scenePath != "" {
		loaded, err := core.LoadSceneFile(*scenePath)
		if err != nil {
			log.Error(ctx, "failed to load scene", logging.String("path", *scenePath), logging.Err(err))
			os.Exit(1)
		}
		def = *loaded
	} else {
		var err error
		if def, err = model.Preset(*preset); err != nil {
			log.Error(ctx, "failed to load preset", logging.Err(err))
			os.Exit(1)
		}
	}
	if *seed != 0 {
		def.Seed = *seed
	}

	anim, err := scene.New(ctx, def, scene.WithLogger(log))
	if err != nil {
		log.Error(ctx, "failed to build scene", logging.Err(err))
		os.Exit(1)
	}

	cfg := desktop.Config{Title: "Orrery - " + def.Name, Width: *width, Height: *height, TPS: *fps}
	if err := desktop.Run(ctx, anim, cfg, log); err != nil {
		log.Error(ctx, "desktop viewer exited", logging.Err(err))
		os.Exit(1)
	}
}
