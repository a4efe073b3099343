package api

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/signalsfoundry/orrery/internal/logging"
	"github.com/signalsfoundry/orrery/internal/observability"
	"github.com/signalsfoundry/orrery/internal/render"
	"github.com/signalsfoundry/orrery/kb"
)

// DefaultStreamBuffer is the number of frames buffered per stream before
// frames are skipped.
const DefaultStreamBuffer = 4

// Scene is the part of the animator the service reads.
type Scene interface {
	Description() *render.Description
	Frame() (*render.Frame, error)
	Body(id string) (kb.BodyState, error)
	SetPaused(paused bool)
	AddSink(s render.Sink) (remove func())
}

// ServerOption customises a Server.
type ServerOption func(*Server)

// WithStreamBuffer sets the per-stream frame buffer.
func WithStreamBuffer(n int) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.streamBuffer = n
		}
	}
}

// Server implements SceneServiceServer over a Scene.
type Server struct {
	scene        Scene
	log          logging.Logger
	streamBuffer int

	done      chan struct{}
	closeOnce sync.Once
}

var _ SceneServiceServer = (*Server)(nil)

// NewServer binds the service to a scene.
func NewServer(scene Scene, log logging.Logger, opts ...ServerOption) *Server {
	if log == nil {
		log = logging.Noop()
	}
	s := &Server{
		scene:        scene,
		log:          log,
		streamBuffer: DefaultStreamBuffer,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Close ends all open streams so a graceful stop can complete.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Server) GetScene(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := ToStruct(s.scene.Description())
	if err != nil {
		logging.FromContext(ctx, s.log).Error(ctx, "encode scene failed", logging.Err(err))
	}
	return out, ToStatusError(err)
}

func (s *Server) GetFrame(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	f, err := s.scene.Frame()
	if err != nil {
		return nil, ToStatusError(err)
	}
	out, err := ToStruct(f)
	return out, ToStatusError(err)
}

func (s *Server) GetBody(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, ToStatusError(ErrInvalidArgument)
	}
	ctx, span := observability.StartSpan(ctx, "scene.body.get")
	defer span.End()

	b, err := s.scene.Body(id)
	if err != nil {
		logging.FromContext(ctx, s.log).Debug(ctx, "body lookup failed", logging.String("body_id", id), logging.Err(err))
		return nil, ToStatusError(err)
	}
	out, err := ToStruct(b)
	return out, ToStatusError(err)
}

func (s *Server) SetPaused(ctx context.Context, req *wrapperspb.BoolValue) (*emptypb.Empty, error) {
	s.scene.SetPaused(req.GetValue())
	logging.FromContext(ctx, s.log).Info(ctx, "paused state set over rpc", logging.Bool("paused", req.GetValue()))
	return &emptypb.Empty{}, nil
}

// StreamFrames sends the latest frame, then every new one. A stream that
// falls behind skips frames.
func (s *Server) StreamFrames(_ *emptypb.Empty, stream SceneService_StreamFramesServer) error {
	ctx := stream.Context()
	log := logging.FromContext(ctx, s.log)

	frames := make(chan *render.Frame, s.streamBuffer)
	remove := s.scene.AddSink(render.SinkFunc(func(f *render.Frame) {
		select {
		case frames <- f:
		default:
		}
	}))
	defer remove()

	var lastSeq uint64
	send := func(f *render.Frame) error {
		if f.Seq <= lastSeq {
			return nil
		}
		lastSeq = f.Seq
		msg, err := ToStruct(f)
		if err != nil {
			return ToStatusError(err)
		}
		return stream.Send(msg)
	}

	if f, err := s.scene.Frame(); err == nil {
		if err := send(f); err != nil {
			return err
		}
	}

	log.Info(ctx, "frame stream opened")
	defer log.Info(ctx, "frame stream closed", logging.Uint64("last_seq", lastSeq))
	for {
		select {
		case <-ctx.Done():
			return ToStatusError(ctx.Err())
		case <-s.done:
			return ToStatusError(ErrShuttingDown)
		case f := <-frames:
			if err := send(f); err != nil {
				return err
			}
		}
	}
}

// ServerOptions wires the request-id, tracing and metrics interceptors and
// the otelgrpc stats handler. collector may be nil.
func ServerOptions(log logging.Logger, collector *observability.RPCCollector) []grpc.ServerOption {
	unary := []grpc.UnaryServerInterceptor{
		RequestIDUnaryServerInterceptor(log),
		TracingUnaryServerInterceptor(),
	}
	stream := []grpc.StreamServerInterceptor{
		RequestIDStreamServerInterceptor(log),
		TracingStreamServerInterceptor(),
	}
	if collector != nil {
		unary = append(unary, collector.UnaryServerInterceptor())
		stream = append(stream, collector.StreamServerInterceptor())
	}
	return []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
}

// Register installs the scene service and a health service reporting it as
// serving. The health server is returned so shutdown can flip it.
func Register(reg grpc.ServiceRegistrar, srv *Server) *health.Server {
	RegisterSceneServiceServer(reg, srv)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(reg, hs)
	return hs
}
