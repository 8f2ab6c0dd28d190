package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/account-service/internal/application"
	"github.com/viralforge/account-service/internal/domain"
)

const serviceName = "account.v1.AccountInternalService"

// AccountInternalService is the internal RPC surface other services use to check
// bearer tokens and resolve accounts.
type AccountInternalService interface {
	ValidateToken(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPublicKeys(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

type AccountInternalServer struct {
	service *application.Service
}

func NewAccountInternalServer(service *application.Service) *AccountInternalServer {
	return &AccountInternalServer{service: service}
}

// NewServer builds a gRPC server carrying the account service and the standard health service.
func NewServer(svc AccountInternalService) (*grpc.Server, *health.Server) {
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(loggingInterceptor))
	Register(server, svc)
	healthServer := health.NewServer()
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer
}

func Register(server grpc.ServiceRegistrar, svc AccountInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*AccountInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "ValidateToken",
				Handler:    unaryHandler("ValidateToken", func() *structpb.Struct { return &structpb.Struct{} }, svc.ValidateToken),
			},
			{
				MethodName: "GetAccount",
				Handler:    unaryHandler("GetAccount", func() *structpb.Struct { return &structpb.Struct{} }, svc.GetAccount),
			},
			{
				MethodName: "GetPublicKeys",
				Handler:    unaryHandler("GetPublicKeys", func() *emptypb.Empty { return &emptypb.Empty{} }, svc.GetPublicKeys),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "account/v1/account_internal.proto",
	}, svc)
}

func (s *AccountInternalServer) ValidateToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(req, "token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "missing token")
	}

	claims, err := s.service.ValidateToken(ctx, token)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	resp, err := structpb.NewStruct(map[string]any{
		"valid":       true,
		"user_id":     claims.UserID.String(),
		"login":       claims.Login,
		"authorities": toAnySlice(claims.Authorities),
		"expires_at":  claims.ExpiresAt.Unix(),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *AccountInternalServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	login := stringField(req, "login")
	if login == "" {
		return nil, status.Error(codes.InvalidArgument, "missing login")
	}

	user, err := s.service.GetAccount(ctx, login)
	if err != nil {
		return nil, toStatus(err)
	}
	account := application.ToAccount(user)
	resp, err := structpb.NewStruct(map[string]any{
		"user_id":     user.ID.String(),
		"login":       account.Login,
		"first_name":  account.FirstName,
		"last_name":   account.LastName,
		"email":       account.Email,
		"image_url":   account.ImageURL,
		"activated":   account.Activated,
		"lang_key":    account.LangKey,
		"authorities": toAnySlice(account.Authorities),
		"created_at":  user.CreatedDate.Format(time.RFC3339),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func (s *AccountInternalServer) GetPublicKeys(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	keys, err := s.service.PublicJWKs()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "get keys: %v", err)
	}
	// structpb only accepts []any, not []map[string]any.
	list := make([]any, 0, len(keys))
	for _, k := range keys {
		list = append(list, k)
	}
	resp, err := structpb.NewStruct(map[string]any{"keys": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func unaryHandler[Req any](method string, newReq func() Req, call func(context.Context, Req) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newReq()
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(Req)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return call(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	fields := []any{
		"service", "account-service",
		"module", "grpc",
		"layer", "adapter",
		"operation", info.FullMethod,
		"grpc_code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	switch code {
	case codes.OK:
		slog.Default().InfoContext(ctx, "grpc request completed", append(fields, "outcome", "success")...)
	case codes.Internal, codes.Unavailable, codes.Unknown:
		slog.Default().ErrorContext(ctx, "grpc request completed", append(fields, "outcome", "failure", "error", err)...)
	default:
		slog.Default().WarnContext(ctx, "grpc request completed", append(fields, "outcome", "failure", "error", err)...)
	}
	return resp, err
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "account not found")
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "credential store unavailable")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func stringField(req *structpb.Struct, name string) string {
	v := req.GetFields()[name]
	if v == nil {
		return ""
	}
	return v.GetStringValue()
}

func toAnySlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
