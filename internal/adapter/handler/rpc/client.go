package rpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/catalog-sync/internal/core/domain"
)

type CatalogClient struct {
	cc grpc.ClientConnInterface
}

func NewCatalogClient(cc grpc.ClientConnInterface) *CatalogClient {
	return &CatalogClient{cc: cc}
}

func (c *CatalogClient) ListCategories(ctx context.Context, in *ListCategoriesRequest, opts ...grpc.CallOption) (*domain.CategoryList, error) {
	out := new(domain.CategoryList)
	if err := c.invoke(ctx, "ListCategories", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) ListSubcategories(ctx context.Context, in *ListSubcategoriesRequest, opts ...grpc.CallOption) (*domain.Page, error) {
	out := new(domain.Page)
	if err := c.invoke(ctx, "ListSubcategories", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) Delta(ctx context.Context, in *DeltaRequest, opts ...grpc.CallOption) (*domain.DeltaResponse, error) {
	out := new(domain.DeltaResponse)
	if err := c.invoke(ctx, "Delta", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CatalogClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}
