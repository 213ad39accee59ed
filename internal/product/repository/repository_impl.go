package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/digistore/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const productColumns = `id, name, slug, description, category_id, type, price, preview_image_id,
	file_id, file_name, delivery_url, is_active, is_featured, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (`+productColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Name,
		product.Slug,
		product.Description,
		product.CategoryID,
		product.Type,
		product.Price,
		product.PreviewImageID,
		product.FileID,
		product.FileName,
		product.DeliveryURL,
		product.IsActive,
		product.IsFeatured,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET name = ?, slug = ?, description = ?, category_id = ?, type = ?, price = ?,
		     preview_image_id = ?, file_id = ?, file_name = ?, delivery_url = ?,
		     is_active = ?, is_featured = ?, updated_at = ?
		 WHERE id = ?`,
		product.Name,
		product.Slug,
		product.Description,
		product.CategoryID,
		product.Type,
		product.Price,
		product.PreviewImageID,
		product.FileID,
		product.FileName,
		product.DeliveryURL,
		product.IsActive,
		product.IsFeatured,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM products WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE slug = ?`,
		slug,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// List matches a category slug against the product's category or that
// category's parent, so top-level pages include subcategory products.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.Filter) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Select("products.*")

	if filter.CategorySlug != "" {
		stmt = stmt.
			Joins("JOIN categories c ON c.id = products.category_id").
			Joins("LEFT JOIN categories pc ON pc.id = c.parent_id").
			Where("c.slug = ? OR pc.slug = ?", filter.CategorySlug, filter.CategorySlug)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		stmt = stmt.Where("(LOWER(products.name) LIKE ? OR LOWER(COALESCE(products.description, '')) LIKE ?)", like, like)
	}
	if filter.Type != "" {
		stmt = stmt.Where("products.type = ?", filter.Type)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("products.is_active = ?", true)
	}
	if filter.FeaturedOnly {
		stmt = stmt.Where("products.is_featured = ?", true)
	}
	stmt = stmt.Order("products.created_at DESC").Order("products.id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListTypes(ctx context.Context, db *gorm.DB) ([]string, error) {
	var types []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT type FROM products WHERE is_active = ? AND type <> '' ORDER BY type ASC`,
		true,
	).Scan(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *repo) CategoryExists(ctx context.Context, db *gorm.DB, categoryID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM categories WHERE id = ?`, categoryID).Scan(&count).Error
	return count > 0, err
}
