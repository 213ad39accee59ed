package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	"github.com/smallbiznis/digistore/internal/clock"
	downloaddomain "github.com/smallbiznis/digistore/internal/download/domain"
	obsmetrics "github.com/smallbiznis/digistore/internal/observability/metrics"
	"github.com/smallbiznis/digistore/internal/order/domain"
	"github.com/smallbiznis/digistore/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultCurrency = "usd"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	BundleSvc  bundledomain.Service
	Issuer     downloaddomain.Issuer
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	bundleSvc  bundledomain.Service
	issuer     downloaddomain.Issuer
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		bundleSvc:  p.BundleSvc,
		issuer:     p.Issuer,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreatePendingTx(ctx context.Context, tx *gorm.DB, req domain.CreateRequest) (*domain.Order, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidSession
	}
	order, items, err := s.buildOrder(req, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	order.StripeSessionID = &sessionID

	inserted, err := s.repo.InsertIfAbsent(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	if !inserted {
		existing, err := s.repo.FindBySessionID(ctx, tx, sessionID)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, domain.ErrNotFound
		}
		return existing, nil
	}
	if err := s.repo.InsertItems(ctx, tx, items); err != nil {
		return nil, err
	}

	s.log.Info("pending order recorded",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
	)
	return order, nil
}

func (s *Service) CompleteBySessionTx(ctx context.Context, tx *gorm.DB, sessionID string) (*domain.Completion, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidSession
	}
	order, err := s.repo.FindBySessionID(ctx, tx, sessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return s.completeTx(ctx, tx, order, domain.StatusPending)
}

func (s *Service) CompleteOrder(ctx context.Context, sessionID string) (*domain.Completion, error) {
	var completion *domain.Completion
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		completion, err = s.CompleteBySessionTx(ctx, tx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if completion.Completed {
		s.obsMetrics.RecordOrderCompleted(ctx, "session")
	}
	return completion, nil
}

func (s *Service) CreateCompleted(ctx context.Context, req domain.CreateRequest) (*domain.Completion, error) {
	order, items, err := s.buildOrder(req, domain.StatusPending)
	if err != nil {
		return nil, err
	}

	var completion *domain.Completion
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.repo.InsertIfAbsent(ctx, tx, order); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, items); err != nil {
			return err
		}
		completion, err = s.completeTx(ctx, tx, order, domain.StatusPending)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordOrderCompleted(ctx, "free")
	s.log.Info("free order completed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int("tokens", len(completion.Tokens)),
	)
	return completion, nil
}

// completeTx flips the order out of one of the from statuses and issues one
// token per distinct product, expanding bundle lines into their members.
func (s *Service) completeTx(ctx context.Context, tx *gorm.DB, order *domain.Order, from ...domain.Status) (*domain.Completion, error) {
	now := s.clock.Now()
	flipped, err := s.repo.MarkCompleted(ctx, tx, order.ID, from, now)
	if err != nil {
		return nil, err
	}
	if !flipped {
		current, err := s.repo.FindByID(ctx, tx, order.ID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, domain.ErrNotFound
		}
		return &domain.Completion{Order: current}, nil
	}

	items, err := s.repo.ListItems(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	productIDs, err := s.productIDsFor(ctx, tx, items)
	if err != nil {
		return nil, err
	}
	tokens, err := s.issuer.IssueTx(ctx, tx, order.ID, productIDs)
	if err != nil {
		return nil, err
	}

	order.Status = domain.StatusCompleted
	order.CompletedAt = &now
	order.UpdatedAt = now
	return &domain.Completion{Order: order, Completed: true, Tokens: tokens}, nil
}

func (s *Service) productIDsFor(ctx context.Context, tx *gorm.DB, items []domain.OrderItem) ([]int64, error) {
	var (
		productIDs []int64
		bundleIDs  []int64
	)
	for _, item := range items {
		switch {
		case item.ProductID != nil:
			productIDs = append(productIDs, *item.ProductID)
		case item.BundleID != nil:
			bundleIDs = append(bundleIDs, *item.BundleID)
		}
	}
	if len(bundleIDs) == 0 {
		return productIDs, nil
	}
	members, err := s.bundleSvc.ExpandProducts(ctx, tx, bundleIDs)
	if err != nil {
		return nil, err
	}
	for _, bundleID := range bundleIDs {
		productIDs = append(productIDs, members[bundleID]...)
	}
	return productIDs, nil
}

func (s *Service) GetByStripeSession(ctx context.Context, sessionID string) (*domain.Response, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, domain.ErrInvalidSession
	}
	order, err := s.repo.FindBySessionID(ctx, s.db, sessionID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(order)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Detail, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListItemRows(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	detail := &domain.Detail{
		Response: toResponse(order),
		Items:    make([]domain.ItemResponse, 0, len(rows)),
	}
	for _, row := range rows {
		detail.Items = append(detail.Items, toItemResponse(row))
	}
	return detail, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (s *Service) ListByEmail(ctx context.Context, email string) ([]domain.Response, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, domain.ErrInvalidEmail
	}
	orders, err := s.repo.List(ctx, s.db, domain.ListFilter{Status: domain.StatusCompleted, Email: email})
	if err != nil {
		return nil, err
	}
	return toResponses(orders), nil
}

func (s *Service) ListAll(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter := domain.ListFilter{Email: normalizeEmail(req.Email)}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}
	cursor, err := req.Cursor()
	if err != nil {
		return nil, err
	}
	limit := req.Limit()
	filter.Cursor = cursor
	filter.Limit = limit + 1

	orders, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	page, info, err := pagination.Page(orders, limit, func(o domain.Order) pagination.Cursor {
		return pagination.Cursor{ID: o.ID, CreatedAt: o.CreatedAt}
	})
	if err != nil {
		return nil, err
	}
	return &domain.ListResponse{Orders: toResponses(page), PageInfo: info}, nil
}

// UpdateStatus is the admin override. Completed is terminal, and moving an
// order to completed runs the normal completion so its tokens exist.
func (s *Service) UpdateStatus(ctx context.Context, id string, status string) (*domain.Response, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	next := domain.Status(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	var (
		updated   *domain.Order
		completed bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.FindByID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if order.Status == domain.StatusCompleted {
			if next == domain.StatusCompleted {
				updated = order
				return nil
			}
			return domain.ErrStatusTransition
		}

		if next == domain.StatusCompleted {
			// The override may also complete an order that was marked failed.
			completion, err := s.completeTx(ctx, tx, order, domain.StatusPending, domain.StatusFailed)
			if err != nil {
				return err
			}
			updated = completion.Order
			completed = completion.Completed
			return nil
		}

		now := s.clock.Now()
		changed, err := s.repo.SetStatus(ctx, tx, orderID, next, now)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrStatusTransition
		}
		order.Status = next
		order.UpdatedAt = now
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if completed {
		s.obsMetrics.RecordOrderCompleted(ctx, "admin")
	}
	s.log.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.String("status", string(updated.Status)),
	)
	resp := toResponse(updated)
	return &resp, nil
}

func (s *Service) buildOrder(req domain.CreateRequest, status domain.Status) (*domain.Order, []domain.OrderItem, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, nil, domain.ErrInvalidEmail
	}
	if len(req.Items) == 0 {
		return nil, nil, domain.ErrInvalidItems
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	now := s.clock.Now()
	orderID := s.genID.Generate().Int64()
	var sum int64
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, in := range req.Items {
		if (in.ProductID == nil) == (in.BundleID == nil) {
			return nil, nil, domain.ErrInvalidItems
		}
		if in.Quantity < 1 || in.Price < 0 {
			return nil, nil, domain.ErrInvalidItems
		}
		sum += in.Price
		items = append(items, domain.OrderItem{
			ID:        s.genID.Generate().Int64(),
			OrderID:   orderID,
			ProductID: in.ProductID,
			BundleID:  in.BundleID,
			Name:      strings.TrimSpace(in.Name),
			Quantity:  in.Quantity,
			Price:     in.Price,
			CreatedAt: now,
		})
	}

	total := req.Total
	if total == 0 {
		total = sum
	}
	if total < 0 {
		return nil, nil, domain.ErrInvalidTotal
	}

	return &domain.Order{
		ID:          orderID,
		OrderNumber: ulid.Make().String(),
		Email:       email,
		Status:      status,
		Total:       total,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, items, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

func toResponses(orders []domain.Order) []domain.Response {
	resp := make([]domain.Response, 0, len(orders))
	for i := range orders {
		resp = append(resp, toResponse(&orders[i]))
	}
	return resp
}

func toResponse(o *domain.Order) domain.Response {
	return domain.Response{
		ID:              snowflake.ID(o.ID).String(),
		OrderNumber:     o.OrderNumber,
		Email:           o.Email,
		Status:          string(o.Status),
		Total:           o.Total,
		Currency:        o.Currency,
		StripeSessionID: o.StripeSessionID,
		CreatedAt:       o.CreatedAt,
		CompletedAt:     o.CompletedAt,
	}
}

func toItemResponse(row domain.ItemRow) domain.ItemResponse {
	resp := domain.ItemResponse{
		ID:       snowflake.ID(row.ID).String(),
		Name:     row.Name,
		Quantity: row.Quantity,
		Price:    row.Price,
	}
	if row.ProductID != nil && row.ProductName != nil {
		resp.Product = &domain.ItemProduct{
			ID:   snowflake.ID(*row.ProductID).String(),
			Name: *row.ProductName,
			Slug: deref(row.ProductSlug),
			Type: deref(row.ProductType),
		}
	}
	if row.BundleID != nil && row.BundleName != nil {
		resp.Bundle = &domain.ItemBundle{
			ID:   snowflake.ID(*row.BundleID).String(),
			Name: *row.BundleName,
			Slug: deref(row.BundleSlug),
		}
	}
	if resp.Name == "" {
		switch {
		case resp.Product != nil:
			resp.Name = resp.Product.Name
		case resp.Bundle != nil:
			resp.Name = resp.Bundle.Name
		}
	}
	return resp
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
