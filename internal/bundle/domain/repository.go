package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bundle *Bundle) error
	Update(ctx context.Context, db *gorm.DB, bundle *Bundle) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Bundle, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Bundle, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Bundle, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Bundle, error)
	ReplaceProducts(ctx context.Context, db *gorm.DB, bundleID int64, productIDs []int64) error
	// ListProductIDs returns member ids per bundle in position order.
	ListProductIDs(ctx context.Context, db *gorm.DB, bundleIDs []int64) (map[int64][]int64, error)
	CountExistingProducts(ctx context.Context, db *gorm.DB, productIDs []int64) (int64, error)
}
