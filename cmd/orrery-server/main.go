package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/orrery/core"
	"github.com/signalsfoundry/orrery/internal/api"
	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/internal/scene"
	"github.com/signalsfoundry/orrery/internal/stream"
	"github.com/signalsfoundry/orrery/kb"
	"github.com/signalsfoundry/orrery/model"
	"github.com/signalsfoundry/orrery/timectrl"
)

// Config holds everything run needs. Zero values fall back to defaults.
type Config struct {
	ListenAddress   string
	HTTPAddress     string // serves /ws, /metrics and /healthz; empty disables
	ScenePath       string
	Preset          string // solar, satellite or cube; ignored when ScenePath is set
	Seed            uint64
	FPS             float64
	Accelerated     bool
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

func main() {
	cfg := Config{}
	flag.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the SceneService gRPC server listens on")
	flag.StringVar(&cfg.HTTPAddress, "http-addr", ":8080", "HTTP address for /ws, /metrics and /healthz (empty disables)")
	flag.StringVar(&cfg.ScenePath, "scene", "", "Path to a JSON or YAML scene file")
	flag.StringVar(&cfg.Preset, "preset", "solar", "Built-in scene when -scene is unset: solar, satellite or cube")
	flag.Uint64Var(&cfg.Seed, "seed", 0, "Random seed for initial angles and stars (0 picks one)")
	flag.Float64Var(&cfg.FPS, "fps", timectrl.DefaultFPS, "Frames per second")
	flag.BoolVar(&cfg.Accelerated, "accelerated", false, "Run frames back to back instead of at -fps")
	flag.StringVar(&cfg.LogLevel, "log-level", "", "Log level override (defaults to LOG_LEVEL)")
	flag.StringVar(&cfg.LogFormat, "log-format", "", "Log format override (defaults to LOG_FORMAT)")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "Grace period for in-flight RPCs on shutdown")
	flag.Parse()

	log := logging.NewFromEnv()
	if cfg.LogLevel != "" || cfg.LogFormat != "" {
		log = logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "orrery server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the animated scene on lis until ctx is done.
func run(ctx context.Context, cfg Config, log logging.Logger, lis net.Listener) error {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	sceneMetrics, err := observability.NewSceneCollector(reg)
	if err != nil {
		return fmt.Errorf("scene metrics: %w", err)
	}
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}

	def, err := loadScene(cfg)
	if err != nil {
		return err
	}
	anim, unsubscribe, err := newAnimator(ctx, def, log, sceneMetrics)
	if err != nil {
		return fmt.Errorf("build scene: %w", err)
	}
	defer unsubscribe()

	hub := stream.NewHub(anim, stream.WithLogger(log), stream.WithMetrics(sceneMetrics))
	removeHub := anim.AddSink(hub)
	defer removeHub()

	svc := api.NewServer(anim, log)
	server := grpc.NewServer(api.ServerOptions(log, rpcMetrics)...)
	health := api.Register(server, svc)

	errCh := make(chan error, 2)

	log.Info(ctx, "starting SceneService gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		if err := server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc serve: %w", err)
		}
	}()

	var httpSrv *http.Server
	if cfg.HTTPAddress != "" {
		httpLis, err := net.Listen("tcp", cfg.HTTPAddress)
		if err != nil {
			server.Stop()
			return fmt.Errorf("listen http %q: %w", cfg.HTTPAddress, err)
		}
		httpSrv = &http.Server{
			Handler:           newHTTPHandler(hub, anim, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info(ctx, "serving viewers and metrics", logging.String("addr", httpLis.Addr().String()))
		go func() {
			if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http serve: %w", err)
			}
		}()
	}

	mode := timectrl.RealTime
	if cfg.Accelerated {
		mode = timectrl.Accelerated
	}
	clock := timectrl.NewFrameClock(def.Clock.Epoch, def.Clock.FrameDuration(), cfg.FPS, mode)

	animCtx, stopAnim := context.WithCancel(ctx)
	animDone := make(chan struct{})
	go func() {
		defer close(animDone)
		_ = anim.Run(animCtx, clock)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	log.Info(context.Background(), "shutting down orrery server", logging.Uint64("frames", anim.FrameCount()))
	stopAnim()
	<-animDone

	health.Shutdown()
	svc.Close()
	hub.Close()
	gracefulStop(server, cfg.ShutdownTimeout)

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

// loadScene resolves the scene file or preset named by cfg.
func loadScene(cfg Config) (model.SceneDefinition, error) {
	var def model.SceneDefinition
	if cfg.ScenePath != "" {
		loaded, err := core.LoadSceneFile(cfg.ScenePath)
		if err != nil {
			return def, err
		}
		def = *loaded
	} else {
		var err error
		if def, err = model.Preset(cfg.Preset); err != nil {
			return def, err
		}
	}
	if cfg.Seed != 0 {
		def.Seed = cfg.Seed
	}
	return def, nil
}

// newAnimator builds the animator over a body store whose commits feed the
// per-body metrics.
func newAnimator(ctx context.Context, def model.SceneDefinition, log logging.Logger, metrics *observability.SceneCollector) (*scene.Animator, func(), error) {
	store := kb.NewBodyStore()
	unsubscribe := store.Subscribe(metrics.ObserveCommit)
	anim, err := scene.New(ctx, def,
		scene.WithLogger(log),
		scene.WithMetricsRecorder(metrics),
		scene.WithStore(store),
	)
	if err != nil {
		unsubscribe()
		return nil, nil, err
	}
	return anim, unsubscribe, nil
}

// frameSource reports whether a frame has been rendered yet.
type frameSource interface {
	Frame() (*render.Frame, error)
}

func newHTTPHandler(hub http.Handler, frames frameSource, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", observability.HandlerFor(gatherer))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := frames.Frame(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// gracefulStop waits up to timeout for in-flight RPCs, then forces the stop.
func gracefulStop(server *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		server.Stop()
		<-done
	}
}
