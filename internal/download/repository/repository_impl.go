package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/digistore/internal/download/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert replaces the token for an (order, product) pair in place, resetting
// its count.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, token *domain.DownloadToken) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "product_id"}},
			DoUpdates: append(
				clause.AssignmentColumns([]string{"token", "expires_at", "max_downloads", "updated_at"}),
				clause.Assignment{Column: clause.Column{Name: "download_count"}, Value: 0},
			),
		}).
		Create(token).Error
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*domain.DownloadToken, error) {
	var item domain.DownloadToken
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, token, expires_at, download_count,
			max_downloads, created_at, updated_at
		 FROM download_tokens
		 WHERE token = ?
		 LIMIT 1`,
		token,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByOrderProduct(ctx context.Context, db *gorm.DB, orderID, productID int64) (*domain.DownloadToken, error) {
	var item domain.DownloadToken
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, token, expires_at, download_count,
			max_downloads, created_at, updated_at
		 FROM download_tokens
		 WHERE order_id = ? AND product_id = ?
		 LIMIT 1`,
		orderID,
		productID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID int64) ([]domain.TokenRow, error) {
	var items []domain.TokenRow
	err := db.WithContext(ctx).Raw(
		`SELECT t.id, t.order_id, t.product_id, t.token, t.expires_at, t.download_count,
			t.max_downloads, t.created_at, t.updated_at,
			COALESCE(p.name, '') AS product_name,
			COALESCE(p.slug, '') AS product_slug,
			COALESCE(p.type, '') AS product_type
		 FROM download_tokens t
		 LEFT JOIN products p ON p.id = t.product_id
		 WHERE t.order_id = ?
		 ORDER BY t.id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Increment(ctx context.Context, db *gorm.DB, token string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE download_tokens
		 SET download_count = download_count + 1, updated_at = ?
		 WHERE token = ?
		   AND download_count < max_downloads
		   AND expires_at >= ?`,
		now,
		token,
		now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) FindOrderStatus(ctx context.Context, db *gorm.DB, orderID int64) (string, error) {
	var status string
	err := db.WithContext(ctx).Raw(
		`SELECT status FROM orders WHERE id = ? LIMIT 1`,
		orderID,
	).Scan(&status).Error
	if err != nil {
		return "", err
	}
	return status, nil
}

func (r *repo) OrderIncludesProduct(ctx context.Context, db *gorm.DB, orderID, productID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM order_items oi
		 WHERE oi.order_id = ?
		   AND (
			oi.product_id = ?
			OR EXISTS (
				SELECT 1 FROM bundle_products bp
				WHERE bp.bundle_id = oi.bundle_id AND bp.product_id = ?
			)
		   )`,
		orderID,
		productID,
		productID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
