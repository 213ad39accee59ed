package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/digistore/internal/cache"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	cacheTTL             = 5 * time.Minute
	defaultFeaturedLimit = 6
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Cache cache.Cache `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	cache cache.Cache
}

func New(p Params) domain.Service {
	c := p.Cache
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cache: c,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	productType := strings.ToLower(strings.TrimSpace(req.Type))
	if productType == "" {
		return nil, domain.ErrInvalidType
	}
	if req.Price < 0 {
		return nil, domain.ErrInvalidPrice
	}

	productSlug := slug.Make(strings.TrimSpace(req.Slug))
	if productSlug == "" {
		productSlug = slug.Make(name)
	}
	if productSlug == "" {
		return nil, domain.ErrInvalidSlug
	}

	categoryID, err := s.resolveCategory(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	deliveryURL, err := normalizeDeliveryURL(req.DeliveryURL)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBySlug(ctx, s.db, productSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSlugTaken
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:             s.genID.Generate().Int64(),
		Name:           name,
		Slug:           productSlug,
		Description:    normalizeOptional(req.Description),
		CategoryID:     categoryID,
		Type:           productType,
		Price:          req.Price,
		PreviewImageID: normalizeOptional(req.PreviewImageID),
		FileID:         normalizeOptional(req.FileID),
		FileName:       normalizeOptional(req.FileName),
		DeliveryURL:    deliveryURL,
		IsActive:       boolOr(req.IsActive, true),
		IsFeatured:     boolOr(req.IsFeatured, false),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info("product created", zap.Int64("product_id", p.ID), zap.String("slug", p.Slug))
	resp := toResponse(p, true)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Slug != nil {
		next := slug.Make(strings.TrimSpace(*req.Slug))
		if next == "" {
			return nil, domain.ErrInvalidSlug
		}
		if next != item.Slug {
			existing, err := s.repo.FindBySlug(ctx, s.db, next)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				return nil, domain.ErrSlugTaken
			}
			item.Slug = next
		}
	}
	if req.Description != nil {
		item.Description = normalizeOptional(req.Description)
	}
	if req.CategoryID != nil {
		categoryID, err := s.resolveCategory(ctx, req.CategoryID)
		if err != nil {
			return nil, err
		}
		item.CategoryID = categoryID
	}
	if req.Type != nil {
		productType := strings.ToLower(strings.TrimSpace(*req.Type))
		if productType == "" {
			return nil, domain.ErrInvalidType
		}
		item.Type = productType
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, domain.ErrInvalidPrice
		}
		item.Price = *req.Price
	}
	if req.PreviewImageID != nil {
		item.PreviewImageID = normalizeOptional(req.PreviewImageID)
	}
	if req.FileID != nil {
		item.FileID = normalizeOptional(req.FileID)
	}
	if req.FileName != nil {
		item.FileName = normalizeOptional(req.FileName)
	}
	if req.DeliveryURL != nil {
		deliveryURL, err := normalizeDeliveryURL(req.DeliveryURL)
		if err != nil {
			return nil, err
		}
		item.DeliveryURL = deliveryURL
	}
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		item.IsFeatured = *req.IsFeatured
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	s.invalidate(ctx)

	resp := toResponse(item, true)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	productID, err := parseID(id)
	if err != nil {
		return err
	}
	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}
	if err := s.repo.Delete(ctx, s.db, productID); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("product deleted", zap.Int64("product_id", productID))
	return nil
}

// Get is the admin read: inactive products and asset references included.
func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item, true)
	return &resp, nil
}

func (s *Service) GetBySlug(ctx context.Context, productSlug string) (*domain.Response, error) {
	productSlug = strings.TrimSpace(productSlug)
	if productSlug == "" {
		return nil, domain.ErrNotFound
	}

	key := "products:slug:" + productSlug
	var cached domain.Response
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	item, err := s.repo.FindBySlug(ctx, s.db, productSlug)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.IsActive {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item, false)
	s.cacheSet(ctx, key, resp)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.Filter{
		CategorySlug: strings.TrimSpace(req.CategorySlug),
		Search:       strings.TrimSpace(req.Search),
		Type:         strings.ToLower(strings.TrimSpace(req.Type)),
		ActiveOnly:   !req.IncludeInactive,
	}
	public := filter.ActiveOnly && !req.IncludeAsset

	key := fmt.Sprintf("products:list:%s|%s|%s", filter.CategorySlug, strings.ToLower(filter.Search), filter.Type)
	if public {
		var cached []domain.Response
		if s.cacheGet(ctx, key, &cached) {
			return cached, nil
		}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := toResponses(items, req.IncludeAsset)
	if public {
		s.cacheSet(ctx, key, resp)
	}
	return resp, nil
}

func (s *Service) Featured(ctx context.Context, limit int) ([]domain.Response, error) {
	if limit <= 0 {
		limit = defaultFeaturedLimit
	}
	key := fmt.Sprintf("products:featured:%d", limit)
	var cached []domain.Response
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	items, err := s.repo.List(ctx, s.db, domain.Filter{ActiveOnly: true, FeaturedOnly: true, Limit: limit})
	if err != nil {
		return nil, err
	}
	resp := toResponses(items, false)
	s.cacheSet(ctx, key, resp)
	return resp, nil
}

func (s *Service) Types(ctx context.Context) ([]string, error) {
	const key = "products:types"
	var cached []string
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	types, err := s.repo.ListTypes(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []string{}
	}
	s.cacheSet(ctx, key, types)
	return types, nil
}

func (s *Service) GetMany(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	out := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	items, err := s.repo.FindByIDs(ctx, s.db, uniqueIDs(ids))
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

func (s *Service) resolveCategory(ctx context.Context, raw *string) (int64, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return 0, domain.ErrCategoryRequired
	}
	parsed, err := snowflake.ParseString(strings.TrimSpace(*raw))
	if err != nil || parsed <= 0 {
		return 0, domain.ErrInvalidCategory
	}
	exists, err := s.repo.CategoryExists(ctx, s.db, parsed.Int64())
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, domain.ErrCategoryNotFound
	}
	return parsed.Int64(), nil
}

// invalidate drops product and bundle reads; bundle prices derive from products.
func (s *Service) invalidate(ctx context.Context) {
	for _, pattern := range []string{"products:*", "bundles:*"} {
		if err := s.cache.DeletePattern(ctx, pattern); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, cacheTTL); err != nil {
		s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func normalizeDeliveryURL(raw *string) (*string, error) {
	value := normalizeOptional(raw)
	if value == nil {
		return nil, nil
	}
	u, err := url.Parse(*value)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, domain.ErrInvalidDeliveryURL
	}
	return value, nil
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

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toResponses(items []domain.Product, includeAsset bool) []domain.Response {
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i], includeAsset))
	}
	return resp
}

func toResponse(p *domain.Product, includeAsset bool) domain.Response {
	resp := domain.Response{
		ID:             snowflake.ID(p.ID).String(),
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		CategoryID:     snowflake.ID(p.CategoryID).String(),
		Type:           p.Type,
		Price:          p.Price,
		PreviewImageID: p.PreviewImageID,
		Deliverable:    p.Deliverable(),
		IsActive:       p.IsActive,
		IsFeatured:     p.IsFeatured,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if includeAsset {
		resp.Asset = &domain.AssetInfo{
			FileID:      p.FileID,
			FileName:    p.FileName,
			DeliveryURL: p.DeliveryURL,
		}
	}
	return resp
}
