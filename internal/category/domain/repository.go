package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, category *Category) error
	Update(ctx context.Context, db *gorm.DB, category *Category) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Category, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Category, error)
	FindRow(ctx context.Context, db *gorm.DB, id int64) (*CategoryRow, error)
	List(ctx context.Context, db *gorm.DB) ([]CategoryRow, error)
	ListByParent(ctx context.Context, db *gorm.DB, parentID *int64) ([]CategoryRow, error)
	CountChildren(ctx context.Context, db *gorm.DB, id int64) (int64, error)
	CountProducts(ctx context.Context, db *gorm.DB, id int64) (int64, error)
}
