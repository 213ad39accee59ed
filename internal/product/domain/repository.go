package domain

import (
	"context"

	"gorm.io/gorm"
)

type Filter struct {
	CategorySlug string
	Search       string
	Type         string
	ActiveOnly   bool
	FeaturedOnly bool
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Product, error)
	List(ctx context.Context, db *gorm.DB, filter Filter) ([]Product, error)
	ListTypes(ctx context.Context, db *gorm.DB) ([]string, error)
	CategoryExists(ctx context.Context, db *gorm.DB, categoryID int64) (bool, error)
}
