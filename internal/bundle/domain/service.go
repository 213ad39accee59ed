package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Response, error)
	GetBySlug(ctx context.Context, slug string) (*Response, error)
	List(ctx context.Context, includeInactive bool) ([]Response, error)
	// GetMany returns the bundles that still exist, keyed by id.
	GetMany(ctx context.Context, ids []int64) (map[int64]Bundle, error)
	// ExpandProducts returns member product ids per bundle. It reads through
	// db so callers can pass their transaction.
	ExpandProducts(ctx context.Context, db *gorm.DB, bundleIDs []int64) (map[int64][]int64, error)
}

type CreateRequest struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Description     *string  `json:"description"`
	Price           int64    `json:"price"`
	DiscountPercent int      `json:"discount_percent"`
	ProductIDs      []string `json:"product_ids"`
	IsActive        *bool    `json:"is_active"`
}

type UpdateRequest struct {
	ID              string    `json:"-"`
	Name            *string   `json:"name"`
	Slug            *string   `json:"slug"`
	Description     *string   `json:"description"`
	Price           *int64    `json:"price"`
	DiscountPercent *int      `json:"discount_percent"`
	ProductIDs      *[]string `json:"product_ids"`
	IsActive        *bool     `json:"is_active"`
}

type ProductSummary struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	Type           string  `json:"type"`
	Price          int64   `json:"price"`
	PreviewImageID *string `json:"preview_image_id,omitempty"`
}

type Response struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Description     *string          `json:"description,omitempty"`
	Price           int64            `json:"price"`
	DiscountPercent int              `json:"discount_percent"`
	IsActive        bool             `json:"is_active"`
	Products        []ProductSummary `json:"products"`
	OriginalPrice   int64            `json:"original_price"`
	Savings         int64            `json:"savings"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidSlug      = errors.New("invalid_slug")
	ErrInvalidPrice     = errors.New("invalid_price")
	ErrInvalidDiscount  = errors.New("invalid_discount_percent")
	ErrInvalidProducts  = errors.New("invalid_products")
	ErrDuplicateProduct = errors.New("duplicate_product")
	ErrProductNotFound  = errors.New("product_not_found")
	ErrSlugTaken        = errors.New("slug_taken")
	ErrNotFound         = errors.New("not_found")
)
