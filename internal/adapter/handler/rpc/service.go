// Package rpc declares the read-only catalog gRPC service: request messages,
// the service description and a client. Messages are JSON encoded.
package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/catalog-sync/internal/core/domain"
)

const ServiceName = "catalog.v1.CatalogService"

type ListCategoriesRequest struct {
	UserType string `json:"userType,omitempty"`
}

type ListSubcategoriesRequest struct {
	// CategoryID of zero lists subcategories of every category.
	CategoryID int64  `json:"categoryId,omitempty"`
	UserType   string `json:"userType,omitempty"`
	Page       int32  `json:"page,omitempty"`
	Limit      int32  `json:"limit,omitempty"`
}

type DeltaRequest struct {
	Kind      string `json:"kind,omitempty"`
	UserType  string `json:"userType,omitempty"`
	Watermark string `json:"watermark,omitempty"`
}

// CatalogServer is the server API for the catalog service.
type CatalogServer interface {
	ListCategories(context.Context, *ListCategoriesRequest) (*domain.CategoryList, error)
	ListSubcategories(context.Context, *ListSubcategoriesRequest) (*domain.Page, error)
	Delta(context.Context, *DeltaRequest) (*domain.DeltaResponse, error)
}

func RegisterCatalogServer(s grpc.ServiceRegistrar, srv CatalogServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc is the grpc.ServiceDesc for the catalog service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCategories", Handler: listCategoriesHandler},
		{MethodName: "ListSubcategories", Handler: listSubcategoriesHandler},
		{MethodName: "Delta", Handler: deltaHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catalog.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func listCategoriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListCategoriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).ListCategories(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ListCategories")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).ListCategories(ctx, req.(*ListCategoriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listSubcategoriesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListSubcategoriesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).ListSubcategories(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ListSubcategories")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).ListSubcategories(ctx, req.(*ListSubcategoriesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func deltaHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(DeltaRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CatalogServer).Delta(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("Delta")}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CatalogServer).Delta(ctx, req.(*DeltaRequest))
	}
	return interceptor(ctx, in, info, handler)
}
