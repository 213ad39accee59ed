package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	brandingPrefix = "branding."
	maxValueLength = 4096
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,190}$`)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	Storefront *config.StorefrontConfigHolder
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	storefront *config.StorefrontConfigHolder
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("settings.service"),
		clock:      p.Clock,
		repo:       p.Repo,
		storefront: p.Storefront,
	}
}

func (s *Service) Get(ctx context.Context, key string) (*domain.Response, error) {
	key = strings.TrimSpace(key)
	if !keyPattern.MatchString(key) {
		return nil, domain.ErrInvalidKey
	}
	item, err := s.repo.Find(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(*item)
	return &resp, nil
}

func (s *Service) All(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(item))
	}
	return resp, nil
}

func (s *Service) Set(ctx context.Context, key string, value string) (*domain.Response, error) {
	key = strings.TrimSpace(key)
	if !keyPattern.MatchString(key) {
		return nil, domain.ErrInvalidKey
	}
	if len(value) > maxValueLength {
		return nil, domain.ErrInvalidValue
	}
	item := &domain.Setting{Key: key, Value: value, UpdatedAt: s.clock.Now()}
	if err := s.repo.Upsert(ctx, s.db, item); err != nil {
		return nil, err
	}
	s.log.Info("setting updated", zap.String("key", key))
	resp := toResponse(*item)
	return &resp, nil
}

func (s *Service) Branding(ctx context.Context) (config.Branding, error) {
	branding := s.defaults()
	items, err := s.repo.FindByPrefix(ctx, s.db, brandingPrefix)
	if err != nil {
		return branding, err
	}
	for _, item := range items {
		if field := brandingField(&branding, strings.TrimPrefix(item.Key, brandingPrefix)); field != nil && item.Value != "" {
			*field = item.Value
		}
	}
	return branding, nil
}

func (s *Service) UpdateBranding(ctx context.Context, req domain.BrandingUpdate) (config.Branding, error) {
	updates := map[string]*string{
		"storeName":       req.StoreName,
		"storeTagline":    req.StoreTagline,
		"heroHeadline":    req.HeroHeadline,
		"heroDescription": req.HeroDescription,
		"ctaHeadline":     req.CTAHeadline,
		"ctaDescription":  req.CTADescription,
		"metaTitle":       req.MetaTitle,
		"metaDescription": req.MetaDescription,
	}

	now := s.clock.Now()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for name, value := range updates {
			if value == nil {
				continue
			}
			trimmed := strings.TrimSpace(*value)
			if len(trimmed) > maxValueLength {
				return domain.ErrInvalidValue
			}
			if err := s.repo.Upsert(ctx, tx, &domain.Setting{
				Key:       brandingPrefix + name,
				Value:     trimmed,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return config.Branding{}, err
	}
	return s.Branding(ctx)
}

func (s *Service) defaults() config.Branding {
	if s.storefront == nil {
		return config.DefaultStorefrontConfig().Branding
	}
	return s.storefront.Get().Branding
}

func brandingField(b *config.Branding, name string) *string {
	switch name {
	case "storeName":
		return &b.StoreName
	case "storeTagline":
		return &b.StoreTagline
	case "heroHeadline":
		return &b.HeroHeadline
	case "heroDescription":
		return &b.HeroDescription
	case "ctaHeadline":
		return &b.CTAHeadline
	case "ctaDescription":
		return &b.CTADescription
	case "metaTitle":
		return &b.MetaTitle
	case "metaDescription":
		return &b.MetaDescription
	default:
		return nil
	}
}

func toResponse(item domain.Setting) domain.Response {
	return domain.Response{Key: item.Key, Value: item.Value, UpdatedAt: item.UpdatedAt}
}
