package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/digistore/internal/category/domain"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("category.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	categorySlug := slug.Make(strings.TrimSpace(req.Slug))
	if categorySlug == "" {
		categorySlug = slug.Make(name)
	}
	if categorySlug == "" {
		return nil, domain.ErrInvalidSlug
	}

	var parentID *int64
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		id, err := s.resolveParent(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		parentID = &id
	}

	if existing, err := s.repo.FindBySlug(ctx, s.db, categorySlug); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrSlugTaken
	}

	now := s.clock.Now()
	c := &domain.Category{
		ID:          s.genID.Generate().Int64(),
		Name:        name,
		Slug:        categorySlug,
		Description: normalizeOptional(req.Description),
		ParentID:    parentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, c); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}

	s.log.Info("category created", zap.Int64("category_id", c.ID), zap.String("slug", c.Slug))
	return s.Get(ctx, snowflake.ID(c.ID).String())
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
	if req.ParentID != nil {
		if strings.TrimSpace(*req.ParentID) == "" {
			item.ParentID = nil
		} else {
			parentID, err := s.resolveParent(ctx, *req.ParentID)
			if err != nil {
				return nil, err
			}
			if parentID == item.ID {
				return nil, domain.ErrInvalidParent
			}
			item.ParentID = &parentID
		}
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSlugTaken
		}
		return nil, err
	}
	return s.Get(ctx, snowflake.ID(item.ID).String())
}

// Delete refuses to orphan subcategories or products.
func (s *Service) Delete(ctx context.Context, id string) error {
	categoryID, err := parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		children, err := s.repo.CountChildren(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		if children > 0 {
			return domain.ErrHasSubcategories
		}

		products, err := s.repo.CountProducts(ctx, tx, categoryID)
		if err != nil {
			return err
		}
		if products > 0 {
			return domain.ErrHasProducts
		}

		return s.repo.Delete(ctx, tx, categoryID)
	})
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	categoryID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	row, err := s.repo.FindRow(ctx, s.db, categoryID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(*row)
	return &resp, nil
}

func (s *Service) GetBySlug(ctx context.Context, categorySlug string) (*domain.Response, error) {
	categorySlug = strings.TrimSpace(categorySlug)
	if categorySlug == "" {
		return nil, domain.ErrNotFound
	}
	item, err := s.repo.FindBySlug(ctx, s.db, categorySlug)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return s.Get(ctx, snowflake.ID(item.ID).String())
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	rows, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	return toResponses(rows), nil
}

func (s *Service) TopLevel(ctx context.Context) ([]domain.Response, error) {
	rows, err := s.repo.ListByParent(ctx, s.db, nil)
	if err != nil {
		return nil, err
	}
	return toResponses(rows), nil
}

func (s *Service) Children(ctx context.Context, parentID string) ([]domain.Response, error) {
	id, err := parseID(parentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByParent(ctx, s.db, &id)
	if err != nil {
		return nil, err
	}
	return toResponses(rows), nil
}

func (s *Service) resolveParent(ctx context.Context, raw string) (int64, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, domain.ErrInvalidParent
	}
	parent, err := s.repo.FindByID(ctx, s.db, parsed.Int64())
	if err != nil {
		return 0, err
	}
	if parent == nil {
		return 0, domain.ErrParentNotFound
	}
	return parent.ID, nil
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

func toResponses(rows []domain.CategoryRow) []domain.Response {
	resp := make([]domain.Response, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, toResponse(row))
	}
	return resp
}

func toResponse(row domain.CategoryRow) domain.Response {
	resp := domain.Response{
		ID:           snowflake.ID(row.ID).String(),
		Name:         row.Name,
		Slug:         row.Slug,
		Description:  row.Description,
		ParentName:   row.ParentName,
		ProductCount: row.ProductCount,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.ParentID != nil {
		parentID := snowflake.ID(*row.ParentID).String()
		resp.ParentID = &parentID
	}
	return resp
}
