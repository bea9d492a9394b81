package proto

import (
	"RegionOcrServer/logger"
	"RegionOcrServer/monitor"
	"RegionOcrServer/pipeline"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const maxMessageSize = 20 * 1024 * 1024

type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*pipeline.Response, error)
	Labels() []string
}

type Server struct {
	analyzer Analyzer
	timeout  time.Duration
}

func NewServer(a Analyzer, timeout time.Duration) *Server {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Server{analyzer: a, timeout: timeout}
}

func (s *Server) Analyze(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx = pipeline.WithRequestID(ctx, "")

	resp, err := s.analyzer.Analyze(ctx, req.GetValue())
	monitor.ObserveRequest("grpc", err)
	if err != nil {
		logger.Request(pipeline.RequestID(ctx)).Error("analyze failed", zap.Error(err))
		if errors.Is(err, pipeline.ErrEmptyImage) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	out, err := ResponseToStruct(resp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Labels(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	labels := s.analyzer.Labels()
	values := make([]any, len(labels))
	for i, l := range labels {
		values[i] = l
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return list, nil
}

func (s *Server) Ping(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	return &emptypb.Empty{}, nil
}

// ResponseToStruct carries the response over the wire with the same keys as the JSON body.
func ResponseToStruct(resp *pipeline.Response) (*structpb.Struct, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func StructToResponse(s *structpb.Struct) (*pipeline.Response, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	resp := &pipeline.Response{Results: []pipeline.AnalysisResult{}}
	if err := json.Unmarshal(b, resp); err != nil {
		return nil, fmt.Errorf("decode analyze response: %w", err)
	}
	return resp, nil
}

// recoverInterceptor turns handler panics into codes.Internal and logs every call.
func recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Log().Error("gRPC handler panic", zap.String("method", info.FullMethod), zap.Any("panic", r))
			err = status.Errorf(codes.Internal, "panic: %v", r)
		}
		logger.Log().Debug("gRPC call",
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
	}()
	return handler(ctx, req)
}

func NewGRPCServer(a Analyzer, timeout time.Duration) *grpc.Server {
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMessageSize),
		grpc.UnaryInterceptor(recoverInterceptor),
	)
	RegisterAnalyzeServiceServer(s, NewServer(a, timeout))
	return s
}

// StartGRPCServer listens on port and serves in the background. Stop it with GracefulStop.
func StartGRPCServer(port int, a Analyzer, timeout time.Duration) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	s := NewGRPCServer(a, timeout)
	go func() {
		logger.Log().Info("gRPC server listening", zap.Int("port", port))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}

// Client wraps AnalyzeServiceClient with pipeline types.
type Client struct {
	conn *grpc.ClientConn
	rpc  AnalyzeServiceClient
}

func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(maxMessageSize), grpc.MaxCallSendMsgSize(maxMessageSize)))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, rpc: NewAnalyzeServiceClient(conn)}, nil
}

func (c *Client) Analyze(ctx context.Context, data []byte) (*pipeline.Response, error) {
	out, err := c.rpc.Analyze(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return nil, err
	}
	return StructToResponse(out)
}

func (c *Client) Labels(ctx context.Context) ([]string, error) {
	list, err := c.rpc.Labels(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		labels = append(labels, v.GetStringValue())
	}
	return labels, nil
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc.Ping(ctx, &emptypb.Empty{})
	return err
}

func (c *Client) Close() error {
	return c.conn.Close()
}
