package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// TokenRow is a token joined with the product it unlocks.
type TokenRow struct {
	DownloadToken
	ProductName string
	ProductSlug string
	ProductType string
}

type Repository interface {
	// Upsert writes one token per (order, product); an existing row gets the
	// new token value, expiry and cap with its count reset.
	Upsert(ctx context.Context, db *gorm.DB, token *DownloadToken) error
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*DownloadToken, error)
	FindByOrderProduct(ctx context.Context, db *gorm.DB, orderID, productID int64) (*DownloadToken, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID int64) ([]TokenRow, error)
	// Increment bumps download_count only while the token is unexpired and
	// under its cap. It reports whether a row was updated.
	Increment(ctx context.Context, db *gorm.DB, token string, now time.Time) (bool, error)
	FindOrderStatus(ctx context.Context, db *gorm.DB, orderID int64) (string, error)
	// OrderIncludesProduct checks direct lines and bundle members.
	OrderIncludesProduct(ctx context.Context, db *gorm.DB, orderID, productID int64) (bool, error)
}
