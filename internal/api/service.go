// Package api serves the scene over gRPC as orrery.v1.SceneService. The
// messages are protobuf well-known types, so no generated code is needed.
package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "orrery.v1.SceneService"

const (
	SceneService_GetScene_FullMethodName     = "/orrery.v1.SceneService/GetScene"
	SceneService_GetFrame_FullMethodName     = "/orrery.v1.SceneService/GetFrame"
	SceneService_GetBody_FullMethodName      = "/orrery.v1.SceneService/GetBody"
	SceneService_StreamFrames_FullMethodName = "/orrery.v1.SceneService/StreamFrames"
	SceneService_SetPaused_FullMethodName    = "/orrery.v1.SceneService/SetPaused"
)

// SceneServiceServer is the server API for SceneService.
type SceneServiceServer interface {
	// GetScene returns the static scene description.
	GetScene(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetFrame returns the latest rendered frame.
	GetFrame(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// GetBody returns the committed state of one body.
	GetBody(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// StreamFrames sends every rendered frame until the client goes away.
	StreamFrames(*emptypb.Empty, SceneService_StreamFramesServer) error
	// SetPaused pauses or resumes the animation.
	SetPaused(context.Context, *wrapperspb.BoolValue) (*emptypb.Empty, error)
}

type SceneService_StreamFramesServer = grpc.ServerStreamingServer[structpb.Struct]

type SceneService_StreamFramesClient = grpc.ServerStreamingClient[structpb.Struct]

// RegisterSceneServiceServer registers srv on s.
func RegisterSceneServiceServer(s grpc.ServiceRegistrar, srv SceneServiceServer) {
	s.RegisterService(&SceneService_ServiceDesc, srv)
}

func _SceneService_GetScene_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneServiceServer).GetScene(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SceneService_GetScene_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneServiceServer).GetScene(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _SceneService_GetFrame_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneServiceServer).GetFrame(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SceneService_GetFrame_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneServiceServer).GetFrame(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _SceneService_GetBody_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneServiceServer).GetBody(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SceneService_GetBody_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneServiceServer).GetBody(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SceneService_SetPaused_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BoolValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SceneServiceServer).SetPaused(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SceneService_SetPaused_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SceneServiceServer).SetPaused(ctx, req.(*wrapperspb.BoolValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SceneService_StreamFrames_Handler(srv any, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SceneServiceServer).StreamFrames(m, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// SceneService_ServiceDesc is the grpc.ServiceDesc for SceneService.
var SceneService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SceneServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetScene", Handler: _SceneService_GetScene_Handler},
		{MethodName: "GetFrame", Handler: _SceneService_GetFrame_Handler},
		{MethodName: "GetBody", Handler: _SceneService_GetBody_Handler},
		{MethodName: "SetPaused", Handler: _SceneService_SetPaused_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       _SceneService_StreamFrames_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "orrery/v1/scene.proto",
}

// SceneServiceClient is the client API for SceneService.
type SceneServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewSceneServiceClient wraps a connection.
func NewSceneServiceClient(cc grpc.ClientConnInterface) *SceneServiceClient {
	return &SceneServiceClient{cc: cc}
}

func (c *SceneServiceClient) GetScene(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SceneService_GetScene_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SceneServiceClient) GetFrame(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SceneService_GetFrame_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SceneServiceClient) GetBody(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SceneService_GetBody_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SceneServiceClient) SetPaused(ctx context.Context, in *wrapperspb.BoolValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, SceneService_SetPaused_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SceneServiceClient) StreamFrames(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (SceneService_StreamFramesClient, error) {
	stream, err := c.cc.NewStream(ctx, &SceneService_ServiceDesc.Streams[0], SceneService_StreamFrames_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
