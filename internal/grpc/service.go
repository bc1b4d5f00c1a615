package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "basket.v1.GameSession"

// GameSessionServer is the basket.v1.GameSession service. Every message is a
// google.protobuf.Struct carrying the same JSON shapes as the HTTP API.
type GameSessionServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetStartingFive(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StartClock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PauseClock(context.Context, *structpb.Struct) (*structpb.Struct, error)
	NextPeriod(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Substitute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Undo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Redo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Finalize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchEvents(*structpb.Struct, grpc.ServerStream) error
}

type unaryCall func(GameSessionServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GameSessionServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(GameSessionServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(GameSessionServer).WatchEvents(in, stream)
}

// ServiceDesc describes basket.v1.GameSession for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*GameSessionServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateSession", GameSessionServer.CreateSession),
		unary("SetStartingFive", GameSessionServer.SetStartingFive),
		unary("GetSession", GameSessionServer.GetSession),
		unary("StartClock", GameSessionServer.StartClock),
		unary("PauseClock", GameSessionServer.PauseClock),
		unary("NextPeriod", GameSessionServer.NextPeriod),
		unary("Substitute", GameSessionServer.Substitute),
		unary("RecordEvent", GameSessionServer.RecordEvent),
		unary("Undo", GameSessionServer.Undo),
		unary("Redo", GameSessionServer.Redo),
		unary("Finalize", GameSessionServer.Finalize),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "basket/v1/session.proto",
}

// RegisterGameSessionServer registers srv on s
func RegisterGameSessionServer(s grpc.ServiceRegistrar, srv GameSessionServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls basket.v1.GameSession over conn
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes the unary method name with req, which may be nil
func (c *Client) Call(ctx context.Context, name string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/"+name, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Watch opens the live update stream; each Recv yields {"type","payload"}
func (c *Client) Watch(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], "/"+serviceName+"/WatchEvents", opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return stream, nil
}
