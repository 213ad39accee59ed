package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/digistore/internal/config"
)

type Service interface {
	Get(ctx context.Context, key string) (*Response, error)
	All(ctx context.Context) ([]Response, error)
	Set(ctx context.Context, key string, value string) (*Response, error)
	// Branding overlays stored values on the configured defaults.
	Branding(ctx context.Context) (config.Branding, error)
	UpdateBranding(ctx context.Context, req BrandingUpdate) (config.Branding, error)
}

type Response struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BrandingUpdate struct {
	StoreName       *string `json:"storeName"`
	StoreTagline    *string `json:"storeTagline"`
	HeroHeadline    *string `json:"heroHeadline"`
	HeroDescription *string `json:"heroDescription"`
	CTAHeadline     *string `json:"ctaHeadline"`
	CTADescription  *string `json:"ctaDescription"`
	MetaTitle       *string `json:"metaTitle"`
	MetaDescription *string `json:"metaDescription"`
}

var (
	ErrInvalidKey   = errors.New("invalid_key")
	ErrInvalidValue = errors.New("invalid_value")
	ErrNotFound     = errors.New("setting_not_found")
)
