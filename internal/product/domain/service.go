package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Response, error)
	GetBySlug(ctx context.Context, slug string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Featured(ctx context.Context, limit int) ([]Response, error)
	Types(ctx context.Context) ([]string, error)
	// GetMany returns the products that still exist, keyed by id.
	GetMany(ctx context.Context, ids []int64) (map[int64]Product, error)
}

type ListRequest struct {
	CategorySlug string
	Search       string
	Type         string
	// IncludeInactive and IncludeAsset are admin-only.
	IncludeInactive bool
	IncludeAsset    bool
}

// CreateRequest needs a category; every product lives under one.
type CreateRequest struct {
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	Description    *string `json:"description"`
	CategoryID     *string `json:"category_id"`
	Type           string  `json:"type"`
	Price          int64   `json:"price"`
	PreviewImageID *string `json:"preview_image_id"`
	FileID         *string `json:"file_id"`
	FileName       *string `json:"file_name"`
	DeliveryURL    *string `json:"delivery_url"`
	IsActive       *bool   `json:"is_active"`
	IsFeatured     *bool   `json:"is_featured"`
}

// UpdateRequest applies only the fields that are set. Empty strings clear
// optional references; the category can be moved but never cleared.
type UpdateRequest struct {
	ID             string  `json:"-"`
	Name           *string `json:"name"`
	Slug           *string `json:"slug"`
	Description    *string `json:"description"`
	CategoryID     *string `json:"category_id"`
	Type           *string `json:"type"`
	Price          *int64  `json:"price"`
	PreviewImageID *string `json:"preview_image_id"`
	FileID         *string `json:"file_id"`
	FileName       *string `json:"file_name"`
	DeliveryURL    *string `json:"delivery_url"`
	IsActive       *bool   `json:"is_active"`
	IsFeatured     *bool   `json:"is_featured"`
}

type Response struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Slug           string     `json:"slug"`
	Description    *string    `json:"description,omitempty"`
	CategoryID     string     `json:"category_id"`
	Type           string     `json:"type"`
	Price          int64      `json:"price"`
	PreviewImageID *string    `json:"preview_image_id,omitempty"`
	Deliverable    bool       `json:"deliverable"`
	IsActive       bool       `json:"is_active"`
	IsFeatured     bool       `json:"is_featured"`
	Asset          *AssetInfo `json:"asset,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AssetInfo is never exposed on public catalog reads.
type AssetInfo struct {
	FileID      *string `json:"file_id,omitempty"`
	FileName    *string `json:"file_name,omitempty"`
	DeliveryURL *string `json:"delivery_url,omitempty"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidSlug        = errors.New("invalid_slug")
	ErrInvalidType        = errors.New("invalid_type")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidDeliveryURL = errors.New("invalid_delivery_url")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrCategoryRequired   = errors.New("category_required")
	ErrCategoryNotFound   = errors.New("category_not_found")
	ErrSlugTaken          = errors.New("slug_taken")
	ErrNotFound           = errors.New("not_found")
)
