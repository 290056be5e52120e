package handler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/catalog-sync/internal/adapter/handler/rpc"
	"github.com/rl1809/catalog-sync/internal/core/delta"
	"github.com/rl1809/catalog-sync/internal/core/domain"
	"github.com/rl1809/catalog-sync/internal/core/service"
	"github.com/rl1809/catalog-sync/internal/logging"
)

// GRPCHandler serves the read paths to mobile clients.
type GRPCHandler struct {
	catalog *service.CatalogService
}

func NewGRPCHandler(catalog *service.CatalogService) *GRPCHandler {
	return &GRPCHandler{catalog: catalog}
}

func (h *GRPCHandler) ListCategories(ctx context.Context, req *rpc.ListCategoriesRequest) (*domain.CategoryList, error) {
	userType, err := domain.ParseUserType(req.UserType)
	if err != nil {
		return nil, err
	}
	return h.catalog.ListCategories(ctx, service.CategoriesQuery{UserType: userType})
}

func (h *GRPCHandler) ListSubcategories(ctx context.Context, req *rpc.ListSubcategoriesRequest) (*domain.Page, error) {
	userType, err := domain.ParseUserType(req.UserType)
	if err != nil {
		return nil, err
	}
	q := service.SubcategoriesQuery{
		UserType: userType,
		Page:     int(req.Page),
		Limit:    int(req.Limit),
	}
	if req.CategoryID != 0 {
		id := req.CategoryID
		q.CategoryID = &id
	}
	return h.catalog.ListSubcategories(ctx, q)
}

func (h *GRPCHandler) Delta(ctx context.Context, req *rpc.DeltaRequest) (*domain.DeltaResponse, error) {
	kinds, err := domain.ParseKindSet(req.Kind)
	if err != nil {
		return nil, err
	}
	userType, err := domain.ParseUserType(req.UserType)
	if err != nil {
		return nil, err
	}
	watermark, err := delta.ParseWatermark(req.Watermark)
	if err != nil {
		return nil, err
	}
	return h.catalog.Delta(ctx, service.DeltaQuery{Kinds: kinds, UserType: userType, Watermark: watermark})
}

// UnaryInterceptor logs every call and converts domain errors to gRPC status
// codes.
func UnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With("component", "grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		requestID := incomingRequestID(ctx)
		ctx = context.WithValue(ctx, requestIDKey, requestID)

		resp, handlerErr := handler(ctx, req)
		var err error
		if handlerErr != nil {
			err = toStatus(handlerErr)
		}

		code := status.Code(err)
		args := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", requestID,
		}
		if code == codes.Internal {
			logger.Error(ctx, "grpc request failed", append(args, "error", handlerErr)...)
		} else {
			logger.Info(ctx, "grpc request", args...)
		}
		return resp, err
	}
}

func incomingRequestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if ids := md.Get("x-request-id"); len(ids) > 0 && ids[0] != "" {
			return ids[0]
		}
	}
	return uuid.NewString()
}

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case domain.Retryable(err):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
