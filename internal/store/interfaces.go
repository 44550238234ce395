package store

import (
	"context"

	"storefront-catalog-service/internal/domain"
)

// ListProductsParams holds optional filters for listing products. The zero
// value returns the whole catalog; filtering/sorting of the loaded list is
// otherwise a presentation-layer concern.
type ListProductsParams struct {
	SearchQuery *string // Matches against name/brand/description
	Category    *string
	InStock     *bool
}

// Empty reports whether the params select the whole catalog.
func (p ListProductsParams) Empty() bool {
	return p.SearchQuery == nil && p.Category == nil && p.InStock == nil
}

// ProductStorer defines the database operations for catalog products.
type ProductStorer interface {
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]string, error)
	GetCatalogStats(ctx context.Context) (*domain.CatalogStats, error)
}

// UserStorer defines the database operations for storefront accounts.
type UserStorer interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
}
