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
	List(ctx context.Context) ([]Response, error)
	TopLevel(ctx context.Context) ([]Response, error)
	Children(ctx context.Context, parentID string) ([]Response, error)
}

type CreateRequest struct {
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	ParentID    *string `json:"parent_id"`
}

// UpdateRequest applies only the fields that are set. An empty ParentID
// string moves the category to the top level.
type UpdateRequest struct {
	ID          string  `json:"-"`
	Name        *string `json:"name"`
	Slug        *string `json:"slug"`
	Description *string `json:"description"`
	ParentID    *string `json:"parent_id"`
}

type Response struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description,omitempty"`
	ParentID     *string   `json:"parent_id,omitempty"`
	ParentName   *string   `json:"parent_name,omitempty"`
	ProductCount int64     `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidSlug      = errors.New("invalid_slug")
	ErrInvalidParent    = errors.New("invalid_parent")
	ErrParentNotFound   = errors.New("parent_not_found")
	ErrSlugTaken        = errors.New("slug_taken")
	ErrNotFound         = errors.New("not_found")
	ErrHasSubcategories = errors.New("has_subcategories")
	ErrHasProducts      = errors.New("has_products")
)
