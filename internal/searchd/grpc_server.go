package searchd

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GoSim-25-26J-441/paramsearch/pkg/logger"
)

// ServiceName is the fully qualified name of the search service
const ServiceName = "paramsearch.v1.SearchService"

// Full method names of the search service
const (
	CreateSearchMethod = "/" + ServiceName + "/CreateSearch"
	GetSearchMethod    = "/" + ServiceName + "/GetSearch"
	ListSearchesMethod = "/" + ServiceName + "/ListSearches"
	StopSearchMethod   = "/" + ServiceName + "/StopSearch"
)

// SearchServiceServer is the gRPC surface of the search daemon. Requests and
// responses are google.protobuf.Struct values carrying the same JSON shapes
// as the HTTP API.
type SearchServiceServer interface {
	CreateSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSearches(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StopSearch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(call func(SearchServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SearchServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(SearchServiceServer), ctx, req.(*structpb.Struct))
		})
	}
}

// SearchServiceDesc describes the search service for grpc.ServiceRegistrar.
// Messages are google.protobuf.Struct and there is no compiled .proto, so
// Metadata is empty: server reflection lists the service by name but cannot
// describe its methods.
var SearchServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SearchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateSearch", Handler: unaryHandler(SearchServiceServer.CreateSearch, CreateSearchMethod)},
		{MethodName: "GetSearch", Handler: unaryHandler(SearchServiceServer.GetSearch, GetSearchMethod)},
		{MethodName: "ListSearches", Handler: unaryHandler(SearchServiceServer.ListSearches, ListSearchesMethod)},
		{MethodName: "StopSearch", Handler: unaryHandler(SearchServiceServer.StopSearch, StopSearchMethod)},
	},
	Streams: []grpc.StreamDesc{},
}

// SearchGRPCServer implements SearchServiceServer on top of the run store
type SearchGRPCServer struct {
	store    *RunStore
	executor *RunExecutor
}

func NewSearchGRPCServer(store *RunStore, executor *RunExecutor) *SearchGRPCServer {
	return &SearchGRPCServer{store: store, executor: executor}
}

func stringField(in *structpb.Struct, key string) string {
	if v, ok := in.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func intField(in *structpb.Struct, key string) int {
	if v, ok := in.GetFields()[key]; ok {
		return int(v.GetNumberValue())
	}
	return 0
}

func (s *SearchGRPCServer) CreateSearch(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	input := &RunInput{
		ConfigYAML:     stringField(in, "config_yaml"),
		CallbackURL:    stringField(in, "callback_url"),
		CallbackSecret: stringField(in, "callback_secret"),
	}
	rec, err := s.store.Create(stringField(in, "run_id"), input)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already exists"):
			return nil, status.Error(codes.AlreadyExists, err.Error())
		case strings.Contains(err.Error(), "cannot contain"):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	started, err := s.executor.Start(rec.Run.ID)
	if err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	logger.Info("search created (gRPC)", "run_id", started.Run.ID)
	return structResponse(map[string]any{"run": started.Run})
}

func (s *SearchGRPCServer) GetSearch(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	runID := stringField(in, "run_id")
	if runID == "" {
		return nil, status.Error(codes.InvalidArgument, ErrRunIDMissing.Error())
	}
	rec, ok := s.store.Get(runID)
	if !ok {
		return nil, status.Error(codes.NotFound, "run not found")
	}
	resp := map[string]any{"run": rec.Run}
	if rec.Report != nil {
		resp["report"] = rec.Report
	}
	return structResponse(resp)
}

func (s *SearchGRPCServer) ListSearches(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	limit := 50
	if l := intField(in, "limit"); l > 0 {
		limit = min(l, maxListLimit)
	}
	offset := max(intField(in, "offset"), 0)
	recs := s.store.List(limit, offset, ParseRunStatus(stringField(in, "status")))

	runs := make([]*Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}
	return structResponse(map[string]any{"runs": runs})
}

func (s *SearchGRPCServer) StopSearch(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	updated, err := s.executor.Stop(stringField(in, "run_id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			return nil, status.Error(codes.NotFound, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}
	logger.Info("search cancelled (gRPC)", "run_id", updated.Run.ID)
	return structResponse(map[string]any{"run": updated.Run})
}

func structResponse(v any) (*structpb.Struct, error) {
	st, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// GRPCServer bundles the search service with the standard health and
// reflection services.
type GRPCServer struct {
	Server *grpc.Server
	health *health.Server
}

// NewGRPCServer builds a gRPC server serving svc. Both the overall and the
// search service health report SERVING until Shutdown.
func NewGRPCServer(svc SearchServiceServer, opts ...grpc.ServerOption) *GRPCServer {
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&SearchServiceDesc, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &GRPCServer{Server: srv, health: hs}
}

// Shutdown flips health to NOT_SERVING and drains in-flight calls.
func (g *GRPCServer) Shutdown() {
	g.health.Shutdown()
	g.Server.GracefulStop()
}
