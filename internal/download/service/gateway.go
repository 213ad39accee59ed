package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/download/domain"
	obsmetrics "github.com/smallbiznis/digistore/internal/observability/metrics"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type GatewayParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Repo       domain.Repository
	ProductSvc productdomain.Service
	Store      storage.Store
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Gateway struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	repo       domain.Repository
	productSvc productdomain.Service
	store      storage.Store
	obsMetrics *obsmetrics.Metrics
}

func NewGateway(p GatewayParams) domain.Gateway {
	return &Gateway{
		db:         p.DB,
		log:        p.Log.Named("download.gateway"),
		clock:      p.Clock,
		repo:       p.Repo,
		productSvc: p.ProductSvc,
		store:      p.Store,
		obsMetrics: p.ObsMetrics,
	}
}

func (g *Gateway) Lookup(ctx context.Context, token string) (*domain.LookupResult, error) {
	record, product, err := g.validate(ctx, token)
	if err != nil {
		g.obsMetrics.RecordDownload(ctx, outcome(err))
		return nil, err
	}
	return &domain.LookupResult{
		Product:   toProductInfo(product),
		Remaining: record.Remaining(),
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Consume spends one download attempt and opens the asset. An asset failure
// after the increment does not give the attempt back.
func (g *Gateway) Consume(ctx context.Context, token string) (*domain.Delivery, error) {
	delivery, err := g.consume(ctx, token)
	g.obsMetrics.RecordDownload(ctx, outcome(err))
	return delivery, err
}

func (g *Gateway) consume(ctx context.Context, token string) (*domain.Delivery, error) {
	record, product, err := g.validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !product.Deliverable() {
		return nil, domain.ErrUnavailable
	}

	ok, err := g.repo.Increment(ctx, g.db, record.Token, g.clock.Now())
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race or crossed expiry since validate; report the current state.
		if _, _, err := g.validate(ctx, token); err != nil {
			return nil, err
		}
		return nil, domain.ErrLimitReached
	}
	remaining := record.Remaining() - 1
	if remaining < 0 {
		remaining = 0
	}

	if product.DeliveryURL != nil && strings.TrimSpace(*product.DeliveryURL) != "" {
		return &domain.Delivery{RedirectURL: strings.TrimSpace(*product.DeliveryURL), Remaining: remaining}, nil
	}

	obj, err := g.store.Open(ctx, strings.TrimSpace(*product.FileID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.log.Error("asset missing for consumed token",
				zap.Int64("order_id", record.OrderID),
				zap.Int64("product_id", product.ID),
			)
			return nil, domain.ErrFileNotFound
		}
		g.log.Error("asset fetch failed after increment",
			zap.Int64("order_id", record.OrderID),
			zap.Int64("product_id", product.ID),
			zap.Error(err),
		)
		return nil, domain.ErrProcessingFailed
	}

	return &domain.Delivery{
		Body:        obj,
		FileName:    FileName(product),
		ContentType: obj.Info.ContentType,
		Size:        obj.Info.Size,
		Remaining:   remaining,
	}, nil
}

// validate applies the token checks in order: existence, expiry, cap, product.
func (g *Gateway) validate(ctx context.Context, token string) (*domain.DownloadToken, *productdomain.Product, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, domain.ErrInvalidToken
	}
	record, err := g.repo.FindByToken(ctx, g.db, token)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, domain.ErrInvalidToken
	}
	if g.clock.Now().After(record.ExpiresAt) {
		return nil, nil, domain.ErrTokenExpired
	}
	if record.DownloadCount >= record.MaxDownloads {
		return nil, nil, domain.ErrLimitReached
	}

	products, err := g.productSvc.GetMany(ctx, []int64{record.ProductID})
	if err != nil {
		return nil, nil, err
	}
	product, ok := products[record.ProductID]
	if !ok {
		return nil, nil, domain.ErrProductNotFound
	}
	return record, &product, nil
}

// FileName is the attachment name: the stored name, else the slugged product
// name with an extension by type.
func FileName(p *productdomain.Product) string {
	if p.FileName != nil && strings.TrimSpace(*p.FileName) != "" {
		return strings.TrimSpace(*p.FileName)
	}
	base := slug.Make(p.Name)
	if base == "" {
		base = "download"
	}
	if p.Type == productdomain.TypeTemplate {
		return base + ".pdf"
	}
	return base + ".zip"
}

func toProductInfo(p *productdomain.Product) domain.ProductInfo {
	return domain.ProductInfo{
		ID:          snowflake.ID(p.ID).String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Type:        p.Type,
		Deliverable: p.Deliverable(),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidToken):
		return "invalid"
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrLimitReached):
		return "limit"
	case errors.Is(err, domain.ErrProductNotFound):
		return "product_missing"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrFileNotFound):
		return "file_missing"
	default:
		return "error"
	}
}
