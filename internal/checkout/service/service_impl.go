package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	"github.com/smallbiznis/digistore/internal/checkout/domain"
	"github.com/smallbiznis/digistore/internal/config"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	obsmetrics "github.com/smallbiznis/digistore/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/receipt"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Storefront *config.StorefrontConfigHolder
	ProductSvc productdomain.Service
	BundleSvc  bundledomain.Service
	OrderSvc   orderdomain.Service
	Issuer     downloaddomain.Issuer
	Receipts   *receipt.Service
	Sessions   domain.SessionCreator
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	baseURL    string
	currency   string
	storefront *config.StorefrontConfigHolder
	productSvc productdomain.Service
	bundleSvc  bundledomain.Service
	orderSvc   orderdomain.Service
	issuer     downloaddomain.Issuer
	receipts   *receipt.Service
	sessions   domain.SessionCreator
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	currency := strings.ToLower(strings.TrimSpace(p.Cfg.Stripe.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		log:        p.Log.Named("checkout.service"),
		baseURL:    strings.TrimRight(p.Cfg.PublicBaseURL, "/"),
		currency:   currency,
		storefront: p.Storefront,
		productSvc: p.ProductSvc,
		bundleSvc:  p.BundleSvc,
		orderSvc:   p.OrderSvc,
		issuer:     p.Issuer,
		receipts:   p.Receipts,
		sessions:   p.Sessions,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.Request) (*domain.Response, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	email := domain.NormalizeEmail(req.Email)
	if email == "" {
		return nil, domain.ErrEmailRequired
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}

	lines, err := s.priceLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, line := range lines {
		total += line.Total()
	}
	if total == 0 {
		return s.createFree(ctx, email, lines)
	}
	return s.createPaid(ctx, email, lines)
}

func (s *Service) createFree(ctx context.Context, email string, lines []domain.Line) (*domain.Response, error) {
	completion, err := s.orderSvc.CreateCompleted(ctx, orderdomain.CreateRequest{
		Email:    email,
		Currency: s.currency,
		Items:    orderItems(lines),
	})
	if err != nil {
		return nil, err
	}
	order := completion.Order
	if err := s.receipts.Send(ctx, order, receipt.SubjectFree); err != nil {
		s.log.Warn("free order receipt failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
	s.obsMetrics.RecordCheckoutSession(ctx, "free")

	orderID := snowflake.ID(order.ID).String()
	s.log.Info("free order completed", zap.String("order_id", orderID), zap.Int("tokens", len(completion.Tokens)))
	return &domain.Response{
		SessionID: nil,
		URL:       s.baseURL + "/checkout/success?order_id=" + url.QueryEscape(orderID),
	}, nil
}

func (s *Service) createPaid(ctx context.Context, email string, lines []domain.Line) (*domain.Response, error) {
	metadata, err := domain.EncodeItemsMetadata(domain.MetadataItemsFromLines(lines, formatID))
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.CreateSession(ctx, domain.SessionRequest{
		Email:    email,
		Currency: s.currency,
		Lines:    lines,
		// Stripe substitutes the placeholder on redirect.
		SuccessURL: s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/checkout",
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Error("checkout session creation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionCreateFailed, err)
	}
	s.obsMetrics.RecordCheckoutSession(ctx, "paid")

	id := session.ID
	return &domain.Response{SessionID: &id, URL: session.URL}, nil
}

// priceLines resolves each cart line against the catalog. Client prices and
// names are ignored.
func (s *Service) priceLines(ctx context.Context, items []domain.Item) ([]domain.Line, error) {
	type ref struct {
		kind string
		id   int64
		qty  int
	}
	refs := make([]ref, 0, len(items))
	var productIDs, bundleIDs []int64
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, domain.ErrInvalidItem
		}
		id, err := snowflake.ParseString(strings.TrimSpace(item.ID))
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidItem
		}
		switch item.Type {
		case domain.ItemTypeProduct:
			productIDs = append(productIDs, id.Int64())
		case domain.ItemTypeBundle:
			bundleIDs = append(bundleIDs, id.Int64())
		default:
			return nil, domain.ErrInvalidItem
		}
		refs = append(refs, ref{kind: item.Type, id: id.Int64(), qty: item.Quantity})
	}

	products := map[int64]productdomain.Product{}
	bundles := map[int64]bundledomain.Bundle{}
	var err error
	if len(productIDs) > 0 {
		if products, err = s.productSvc.GetMany(ctx, productIDs); err != nil {
			return nil, err
		}
	}
	if len(bundleIDs) > 0 {
		if bundles, err = s.bundleSvc.GetMany(ctx, bundleIDs); err != nil {
			return nil, err
		}
	}

	labels := s.storefront.Get().Labels
	lines := make([]domain.Line, 0, len(refs))
	for _, r := range refs {
		if r.kind == domain.ItemTypeBundle {
			b, ok := bundles[r.id]
			if !ok || !b.IsActive {
				return nil, unavailable(r.id)
			}
			lines = append(lines, domain.Line{
				Type:      domain.ItemTypeBundle,
				RefID:     b.ID,
				Name:      b.Name,
				Label:     labels.Bundle,
				UnitPrice: b.Price,
				Quantity:  r.qty,
			})
			continue
		}
		p, ok := products[r.id]
		if !ok || !p.IsActive {
			return nil, unavailable(r.id)
		}
		lines = append(lines, domain.Line{
			Type:      domain.ItemTypeProduct,
			RefID:     p.ID,
			Name:      p.Name,
			Label:     labels.Template,
			UnitPrice: p.Price,
			Quantity:  r.qty,
		})
	}
	return lines, nil
}

func (s *Service) Success(ctx context.Context, req domain.SuccessRequest) (*domain.SuccessResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	orderID := strings.TrimSpace(req.OrderID)

	switch {
	case sessionID != "":
		order, err := s.orderSvc.GetByStripeSession(ctx, sessionID)
		if errors.Is(err, orderdomain.ErrNotFound) {
			// The webhook has not landed yet.
			return &domain.SuccessResponse{Status: string(orderdomain.StatusPending), Downloads: []domain.SuccessDownload{}}, nil
		}
		if err != nil {
			return nil, err
		}
		return s.successFor(ctx, *order)
	case orderID != "":
		detail, err := s.orderSvc.Get(ctx, orderID)
		if errors.Is(err, orderdomain.ErrNotFound) || errors.Is(err, orderdomain.ErrInvalidID) {
			return nil, domain.ErrOrderNotFound
		}
		if err != nil {
			return nil, err
		}
		return s.successFor(ctx, detail.Response)
	default:
		return nil, domain.ErrMissingReference
	}
}

func (s *Service) successFor(ctx context.Context, order orderdomain.Response) (*domain.SuccessResponse, error) {
	resp := &domain.SuccessResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Email:       order.Email,
		Total:       order.Total,
		Currency:    order.Currency,
		Downloads:   []domain.SuccessDownload{},
	}
	if order.Status != string(orderdomain.StatusCompleted) {
		return resp, nil
	}

	tokens, err := s.issuer.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	for _, t := range tokens {
		resp.Downloads = append(resp.Downloads, domain.SuccessDownload{
			ProductID:   t.ProductID,
			ProductName: t.ProductName,
			DownloadURL: t.DownloadURL,
			ExpiresAt:   t.ExpiresAt,
			Remaining:   t.Remaining,
		})
	}
	return resp, nil
}

func orderItems(lines []domain.Line) []orderdomain.ItemInput {
	items := make([]orderdomain.ItemInput, 0, len(lines))
	for _, line := range lines {
		id := line.RefID
		item := orderdomain.ItemInput{
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.Total(),
		}
		if line.Type == domain.ItemTypeBundle {
			item.BundleID = &id
		} else {
			item.ProductID = &id
		}
		items = append(items, item)
	}
	return items
}

func unavailable(id int64) error {
	return fmt.Errorf("%w: %s", domain.ErrItemUnavailable, formatID(id))
}

func formatID(id int64) string {
	return snowflake.ID(id).String()
}
