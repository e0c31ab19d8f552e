package matchingv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	MatchingService_Solve_FullMethodName            = "/coassign.matching.v1.MatchingService/Solve"
	MatchingService_GenerateAndSolve_FullMethodName = "/coassign.matching.v1.MatchingService/GenerateAndSolve"
	MatchingService_GetRun_FullMethodName           = "/coassign.matching.v1.MatchingService/GetRun"
	MatchingService_ListRuns_FullMethodName         = "/coassign.matching.v1.MatchingService/ListRuns"
)

// MatchingServiceClient клиентский API сервиса паросочетаний.
// Соединение должно использовать JSON-кодек (см. CallOptions).
type MatchingServiceClient interface {
	Solve(ctx context.Context, in *SolveRequest, opts ...grpc.CallOption) (*SolveResponse, error)
	GenerateAndSolve(ctx context.Context, in *GenerateRequest, opts ...grpc.CallOption) (*SolveResponse, error)
	GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*RunRecord, error)
	ListRuns(ctx context.Context, in *ListRunsRequest, opts ...grpc.CallOption) (*ListRunsResponse, error)
}

type matchingServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMatchingServiceClient(cc grpc.ClientConnInterface) MatchingServiceClient {
	return &matchingServiceClient{cc}
}

// CallOptions опции вызова, выбирающие JSON-кодек
func CallOptions() []grpc.CallOption {
	return []grpc.CallOption{grpc.CallContentSubtype(CodecName)}
}

func (c *matchingServiceClient) Solve(ctx context.Context, in *SolveRequest, opts ...grpc.CallOption) (*SolveResponse, error) {
	out := new(SolveResponse)
	err := c.cc.Invoke(ctx, MatchingService_Solve_FullMethodName, in, out, append(CallOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) GenerateAndSolve(ctx context.Context, in *GenerateRequest, opts ...grpc.CallOption) (*SolveResponse, error) {
	out := new(SolveResponse)
	err := c.cc.Invoke(ctx, MatchingService_GenerateAndSolve_FullMethodName, in, out, append(CallOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) GetRun(ctx context.Context, in *GetRunRequest, opts ...grpc.CallOption) (*RunRecord, error) {
	out := new(RunRecord)
	err := c.cc.Invoke(ctx, MatchingService_GetRun_FullMethodName, in, out, append(CallOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *matchingServiceClient) ListRuns(ctx context.Context, in *ListRunsRequest, opts ...grpc.CallOption) (*ListRunsResponse, error) {
	out := new(ListRunsResponse)
	err := c.cc.Invoke(ctx, MatchingService_ListRuns_FullMethodName, in, out, append(CallOptions(), opts...)...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MatchingServiceServer серверный API сервиса паросочетаний.
// Реализации должны встраивать UnimplementedMatchingServiceServer.
type MatchingServiceServer interface {
	Solve(context.Context, *SolveRequest) (*SolveResponse, error)
	GenerateAndSolve(context.Context, *GenerateRequest) (*SolveResponse, error)
	GetRun(context.Context, *GetRunRequest) (*RunRecord, error)
	ListRuns(context.Context, *ListRunsRequest) (*ListRunsResponse, error)
	mustEmbedUnimplementedMatchingServiceServer()
}

// UnimplementedMatchingServiceServer отвечает Unimplemented на все методы
type UnimplementedMatchingServiceServer struct{}

func (UnimplementedMatchingServiceServer) Solve(context.Context, *SolveRequest) (*SolveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Solve not implemented")
}
func (UnimplementedMatchingServiceServer) GenerateAndSolve(context.Context, *GenerateRequest) (*SolveResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GenerateAndSolve not implemented")
}
func (UnimplementedMatchingServiceServer) GetRun(context.Context, *GetRunRequest) (*RunRecord, error) {
	return nil, status.Error(codes.Unimplemented, "method GetRun not implemented")
}
func (UnimplementedMatchingServiceServer) ListRuns(context.Context, *ListRunsRequest) (*ListRunsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRuns not implemented")
}
func (UnimplementedMatchingServiceServer) mustEmbedUnimplementedMatchingServiceServer() {}

func RegisterMatchingServiceServer(s grpc.ServiceRegistrar, srv MatchingServiceServer) {
	s.RegisterService(&MatchingService_ServiceDesc, srv)
}

func _MatchingService_Solve_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SolveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchingServiceServer).Solve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MatchingService_Solve_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchingServiceServer).Solve(ctx, req.(*SolveRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MatchingService_GenerateAndSolve_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GenerateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchingServiceServer).GenerateAndSolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MatchingService_GenerateAndSolve_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchingServiceServer).GenerateAndSolve(ctx, req.(*GenerateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MatchingService_GetRun_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetRunRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchingServiceServer).GetRun(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MatchingService_GetRun_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchingServiceServer).GetRun(ctx, req.(*GetRunRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _MatchingService_ListRuns_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListRunsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(MatchingServiceServer).ListRuns(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: MatchingService_ListRuns_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(MatchingServiceServer).ListRuns(ctx, req.(*ListRunsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// MatchingService_ServiceDesc дескриптор сервиса для grpc.ServiceRegistrar
var MatchingService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "coassign.matching.v1.MatchingService",
	HandlerType: (*MatchingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Solve", Handler: _MatchingService_Solve_Handler},
		{MethodName: "GenerateAndSolve", Handler: _MatchingService_GenerateAndSolve_Handler},
		{MethodName: "GetRun", Handler: _MatchingService_GetRun_Handler},
		{MethodName: "ListRuns", Handler: _MatchingService_ListRuns_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matching_grpc.go",
}
