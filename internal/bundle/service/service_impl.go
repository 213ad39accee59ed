package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/digistore/internal/bundle/domain"
	"github.com/smallbiznis/digistore/internal/cache"
	"github.com/smallbiznis/digistore/internal/clock"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cacheTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	ProductSvc productdomain.Service
	Cache      cache.Cache `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	productSvc productdomain.Service
	cache      cache.Cache
}

func New(p Params) domain.Service {
	c := p.Cache
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("bundle.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		productSvc: p.ProductSvc,
		cache:      c,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Price < 0 {
		return nil, domain.ErrInvalidPrice
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return nil, domain.ErrInvalidDiscount
	}
	bundleSlug := slug.Make(strings.TrimSpace(req.Slug))
	if bundleSlug == "" {
		bundleSlug = slug.Make(name)
	}
	if bundleSlug == "" {
		return nil, domain.ErrInvalidSlug
	}

	productIDs, err := parseProductIDs(req.ProductIDs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	b := &domain.Bundle{
		ID:              s.genID.Generate().Int64(),
		Name:            name,
		Slug:            bundleSlug,
		Description:     normalizeOptional(req.Description),
		Price:           req.Price,
		DiscountPercent: req.DiscountPercent,
		IsActive:        req.IsActive == nil || *req.IsActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindBySlug(ctx, tx, bundleSlug)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrSlugTaken
		}
		if err := s.ensureProductsExist(ctx, tx, productIDs); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, b); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}
		return s.repo.ReplaceProducts(ctx, tx, b.ID, productIDs)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("bundle created", zap.Int64("bundle_id", b.ID), zap.Int("products", len(productIDs)))
	return s.resolveOne(ctx, b)
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Bundle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			item.Name = name
		}
		if req.Slug != nil {
			next := slug.Make(strings.TrimSpace(*req.Slug))
			if next == "" {
				return domain.ErrInvalidSlug
			}
			if next != item.Slug {
				existing, err := s.repo.FindBySlug(ctx, tx, next)
				if err != nil {
					return err
				}
				if existing != nil {
					return domain.ErrSlugTaken
				}
				item.Slug = next
			}
		}
		if req.Description != nil {
			item.Description = normalizeOptional(req.Description)
		}
		if req.Price != nil {
			if *req.Price < 0 {
				return domain.ErrInvalidPrice
			}
			item.Price = *req.Price
		}
		if req.DiscountPercent != nil {
			if *req.DiscountPercent < 0 || *req.DiscountPercent > 100 {
				return domain.ErrInvalidDiscount
			}
			item.DiscountPercent = *req.DiscountPercent
		}
		if req.IsActive != nil {
			item.IsActive = *req.IsActive
		}
		if req.ProductIDs != nil {
			productIDs, err := parseProductIDs(*req.ProductIDs)
			if err != nil {
				return err
			}
			if err := s.ensureProductsExist(ctx, tx, productIDs); err != nil {
				return err
			}
			if err := s.repo.ReplaceProducts(ctx, tx, item.ID, productIDs); err != nil {
				return err
			}
		}

		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrSlugTaken
			}
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return s.resolveOne(ctx, updated)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	bundleID, err := parseID(id)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, bundleID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		return s.repo.Delete(ctx, tx, bundleID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	bundleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, bundleID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return s.resolveOne(ctx, item)
}

func (s *Service) GetBySlug(ctx context.Context, bundleSlug string) (*domain.Response, error) {
	bundleSlug = strings.TrimSpace(bundleSlug)
	if bundleSlug == "" {
		return nil, domain.ErrNotFound
	}
	key := "bundles:slug:" + bundleSlug
	var cached domain.Response
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	item, err := s.repo.FindBySlug(ctx, s.db, bundleSlug)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsActive {
		return nil, domain.ErrNotFound
	}
	resp, err := s.resolveOne(ctx, item)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, resp)
	return resp, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]domain.Response, error) {
	const key = "bundles:list"
	if !includeInactive {
		var cached []domain.Response
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	items, err := s.repo.List(ctx, s.db, !includeInactive)
	if err != nil {
		return nil, err
	}
	resp, err := s.resolveMany(ctx, items)
	if err != nil {
		return nil, err
	}
	if !includeInactive {
		s.cacheSet(ctx, key, resp)
	}
	return resp, nil
}

func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]domain.Bundle, error) {
	out := make(map[int64]domain.Bundle, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (s *Service) ExpandProducts(ctx context.Context, db *gorm.DB, bundleIDs []int64) (map[int64][]int64, error) {
	if len(bundleIDs) == 0 {
		return map[int64][]int64{}, nil
	}
	return s.repo.ListProductIDs(ctx, db, bundleIDs)
}

func (s *Service) resolveOne(ctx context.Context, b *domain.Bundle) (*domain.Response, error) {
	resp, err := s.resolveMany(ctx, []domain.Bundle{*b})
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

func (s *Service) resolveMany(ctx context.Context, bundles []domain.Bundle) ([]domain.Response, error) {
	resp := make([]domain.Response, 0, len(bundles))
	if len(bundles) == 0 {
		return resp, nil
	}

	bundleIDs := make([]int64, 0, len(bundles))
	for _, b := range bundles {
		bundleIDs = append(bundleIDs, b.ID)
	}
	members, err := s.repo.ListProductIDs(ctx, s.db, bundleIDs)
	if err != nil {
		return nil, err
	}

	var productIDs []int64
	for _, ids := range members {
		productIDs = append(productIDs, ids...)
	}
	products, err := s.productSvc.GetMany(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	for _, b := range bundles {
		resp = append(resp, toResponse(domain.Resolve(b, members[b.ID], products)))
	}
	return resp, nil
}

func (s *Service) ensureProductsExist(ctx context.Context, tx *gorm.DB, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	count, err := s.repo.CountExistingProducts(ctx, tx, productIDs)
	if err != nil {
		return err
	}
	if count != int64(len(productIDs)) {
		return domain.ErrProductNotFound
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, "bundles:*"); err != nil {
		s.log.Warn("cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, cacheTTL); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// parseProductIDs keeps request order and rejects repeats.
func parseProductIDs(raw []string) ([]int64, error) {
	out := make([]int64, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for _, value := range raw {
		id, err := snowflake.ParseString(strings.TrimSpace(value))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidProducts
		}
		if _, dup := seen[id.Int64()]; dup {
			return nil, domain.ErrDuplicateProduct
		}
		seen[id.Int64()] = struct{}{}
		out = append(out, id.Int64())
	}
	return out, nil
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toResponse(r domain.Resolved) domain.Response {
	products := make([]domain.ProductSummary, 0, len(r.Products))
	for _, p := range r.Products {
		products = append(products, domain.ProductSummary{
			ID:             snowflake.ID(p.ID).String(),
			Name:           p.Name,
			Slug:           p.Slug,
			Type:           p.Type,
			Price:          p.Price,
			PreviewImageID: p.PreviewImageID,
		})
	}
	return domain.Response{
		ID:              snowflake.ID(r.Bundle.ID).String(),
		Name:            r.Bundle.Name,
		Slug:            r.Bundle.Slug,
		Description:     r.Bundle.Description,
		Price:           r.Bundle.Price,
		DiscountPercent: r.Bundle.DiscountPercent,
		IsActive:        r.Bundle.IsActive,
		Products:        products,
		OriginalPrice:   r.OriginalPrice,
		Savings:         r.Savings,
		CreatedAt:       r.Bundle.CreatedAt,
		UpdatedAt:       r.Bundle.UpdatedAt,
	}
}
