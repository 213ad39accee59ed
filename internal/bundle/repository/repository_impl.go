package repository

import (
	"context"

	"github.com/smallbiznis/digistore/internal/bundle/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const bundleColumns = `id, name, slug, description, price, discount_percent, is_active, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, bundle *domain.Bundle) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bundles (`+bundleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		bundle.ID,
		bundle.Name,
		bundle.Slug,
		bundle.Description,
		bundle.Price,
		bundle.DiscountPercent,
		bundle.IsActive,
		bundle.CreatedAt,
		bundle.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, bundle *domain.Bundle) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bundles
		 SET name = ?, slug = ?, description = ?, price = ?, discount_percent = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		bundle.Name,
		bundle.Slug,
		bundle.Description,
		bundle.Price,
		bundle.DiscountPercent,
		bundle.IsActive,
		bundle.UpdatedAt,
		bundle.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM bundle_products WHERE bundle_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM bundles WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Bundle, error) {
	var b domain.Bundle
	err := db.WithContext(ctx).Raw(`SELECT `+bundleColumns+` FROM bundles WHERE id = ?`, id).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.ID == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Bundle, error) {
	var b domain.Bundle
	err := db.WithContext(ctx).Raw(`SELECT `+bundleColumns+` FROM bundles WHERE slug = ?`, slug).Scan(&b).Error
	if err != nil {
		return nil, err
	}
	if b.ID == 0 {
		return nil, nil
	}
	return &b, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]domain.Bundle, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Bundle
	err := db.WithContext(ctx).Raw(`SELECT `+bundleColumns+` FROM bundles WHERE id IN ?`, ids).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]domain.Bundle, error) {
	var items []domain.Bundle
	var err error
	if activeOnly {
		err = db.WithContext(ctx).Raw(
			`SELECT `+bundleColumns+` FROM bundles WHERE is_active = ? ORDER BY created_at DESC, id DESC`,
			true,
		).Scan(&items).Error
	} else {
		err = db.WithContext(ctx).Raw(
			`SELECT ` + bundleColumns + ` FROM bundles ORDER BY created_at DESC, id DESC`,
		).Scan(&items).Error
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ReplaceProducts(ctx context.Context, db *gorm.DB, bundleID int64, productIDs []int64) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM bundle_products WHERE bundle_id = ?`, bundleID).Error; err != nil {
		return err
	}
	for position, productID := range productIDs {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO bundle_products (bundle_id, product_id, position) VALUES (?, ?, ?)`,
			bundleID,
			productID,
			position,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) ListProductIDs(ctx context.Context, db *gorm.DB, bundleIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(bundleIDs))
	if len(bundleIDs) == 0 {
		return out, nil
	}
	var rows []domain.BundleProduct
	err := db.WithContext(ctx).Raw(
		`SELECT bundle_id, product_id, position FROM bundle_products
		 WHERE bundle_id IN ? ORDER BY bundle_id ASC, position ASC`,
		bundleIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.BundleID] = append(out[row.BundleID], row.ProductID)
	}
	return out, nil
}

func (r *repo) CountExistingProducts(ctx context.Context, db *gorm.DB, productIDs []int64) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM products WHERE id IN ?`, productIDs).Scan(&count).Error
	return count, err
}
