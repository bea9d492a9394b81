package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service is described with well-known types only, so no generated code is needed:
//
//	service AnalyzeService {
//	  rpc Analyze(google.protobuf.BytesValue) returns (google.protobuf.Struct);
//	  rpc Labels(google.protobuf.Empty) returns (google.protobuf.ListValue);
//	  rpc Ping(google.protobuf.Empty) returns (google.protobuf.Empty);
//	}
const (
	AnalyzeService_Analyze_FullMethodName = "/regionocr.AnalyzeService/Analyze"
	AnalyzeService_Labels_FullMethodName  = "/regionocr.AnalyzeService/Labels"
	AnalyzeService_Ping_FullMethodName    = "/regionocr.AnalyzeService/Ping"
)

type AnalyzeServiceServer interface {
	Analyze(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Labels(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	Ping(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func RegisterAnalyzeServiceServer(s grpc.ServiceRegistrar, srv AnalyzeServiceServer) {
	s.RegisterService(&AnalyzeService_ServiceDesc, srv)
}

func _AnalyzeService_Analyze_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzeServiceServer).Analyze(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeService_Analyze_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzeServiceServer).Analyze(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnalyzeService_Labels_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzeServiceServer).Labels(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeService_Labels_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzeServiceServer).Labels(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _AnalyzeService_Ping_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyzeServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AnalyzeService_Ping_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyzeServiceServer).Ping(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var AnalyzeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "regionocr.AnalyzeService",
	HandlerType: (*AnalyzeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Analyze", Handler: _AnalyzeService_Analyze_Handler},
		{MethodName: "Labels", Handler: _AnalyzeService_Labels_Handler},
		{MethodName: "Ping", Handler: _AnalyzeService_Ping_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "regionocr/analyze.proto",
}

type AnalyzeServiceClient interface {
	Analyze(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Labels(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type analyzeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAnalyzeServiceClient(cc grpc.ClientConnInterface) AnalyzeServiceClient {
	return &analyzeServiceClient{cc}
}

func (c *analyzeServiceClient) Analyze(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AnalyzeService_Analyze_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *analyzeServiceClient) Labels(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, AnalyzeService_Labels_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *analyzeServiceClient) Ping(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, AnalyzeService_Ping_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
