package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bundledomain "github.com/smallbiznis/digistore/internal/bundle/domain"
	checkoutdomain "github.com/smallbiznis/digistore/internal/checkout/domain"
	"github.com/smallbiznis/digistore/internal/clock"
	"github.com/smallbiznis/digistore/internal/config"
	"github.com/smallbiznis/digistore/internal/events"
	obsmetrics "github.com/smallbiznis/digistore/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/digistore/internal/order/domain"
	"github.com/smallbiznis/digistore/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/digistore/internal/payment/domain"
	productdomain "github.com/smallbiznis/digistore/internal/product/domain"
	"github.com/smallbiznis/digistore/internal/receipt"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	resultProcessed = "processed"
	resultDuplicate = "duplicate"
	resultIgnored   = "ignored"
	resultInvalid   = "invalid"
	resultRejected  = "rejected"
	resultFailed    = "failed"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       paymentdomain.Repository
	Registry   *adapters.Registry
	OrderSvc   orderdomain.Service
	ProductSvc productdomain.Service
	BundleSvc  bundledomain.Service
	Receipts   *receipt.Service
	Publisher  events.Publisher
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	registry   *adapters.Registry
	adapters   map[string]paymentdomain.PaymentAdapter
	orderSvc   orderdomain.Service
	productSvc productdomain.Service
	bundleSvc  bundledomain.Service
	receipts   *receipt.Service
	publisher  events.Publisher
	topic      string
	currency   string
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	svc := &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		registry:   p.Registry,
		adapters:   map[string]paymentdomain.PaymentAdapter{},
		orderSvc:   p.OrderSvc,
		productSvc: p.ProductSvc,
		bundleSvc:  p.BundleSvc,
		receipts:   p.Receipts,
		publisher:  p.Publisher,
		topic:      p.Cfg.Kafka.OrderEventsTopic,
		currency:   p.Cfg.Stripe.Currency,
		obsMetrics: p.ObsMetrics,
	}

	adapter, err := p.Registry.NewAdapter("stripe", paymentdomain.AdapterConfig{
		WebhookSecret: p.Cfg.Stripe.WebhookSecret,
		Tolerance:     time.Duration(p.Cfg.Stripe.SignatureTolerance) * time.Second,
		Clock:         p.Clock,
	})
	if err != nil {
		svc.log.Warn("stripe webhook disabled", zap.Error(err))
	} else {
		svc.adapters["stripe"] = adapter
	}
	return svc
}

func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.IngestResult, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, ok := s.adapters[provider]
	if !ok {
		if s.registry.ProviderExists(provider) {
			return nil, paymentdomain.ErrWebhookNotConfigured
		}
		return nil, paymentdomain.ErrProviderNotFound
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		s.log.Warn("webhook signature rejected", zap.String("provider", provider), zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, "unknown", resultRejected)
		return nil, err
	}

	event, err := adapter.Parse(ctx, payload)
	if errors.Is(err, paymentdomain.ErrEventIgnored) {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, "other", resultIgnored)
		return &paymentdomain.IngestResult{Ignored: true}, nil
	}
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, "unknown", resultInvalid)
		return nil, err
	}

	result := &paymentdomain.IngestResult{
		EventID:   event.ProviderEventID,
		EventType: event.EventType,
	}
	logger := s.log.With(
		zap.String("provider", provider),
		zap.String("event_id", event.ProviderEventID),
		zap.String("session_id", event.SessionID),
	)

	if !event.Paid() {
		logger.Info("checkout session not paid yet", zap.String("payment_status", event.PaymentStatus))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.EventType, resultIgnored)
		result.Ignored = true
		return result, nil
	}

	// A malformed session can never succeed, so it is acknowledged rather
	// than retried by the provider.
	req, err := s.buildOrderRequest(ctx, event)
	if err != nil {
		logger.Error("checkout session cannot be fulfilled", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.EventType, resultInvalid)
		result.Ignored = true
		return result, nil
	}

	completion, err := s.apply(ctx, event, req)
	if errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		logger.Info("webhook event already processed")
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.EventType, resultDuplicate)
		result.Duplicate = true
		return result, nil
	}
	if err != nil {
		logger.Error("webhook processing failed", zap.Error(err))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.EventType, resultFailed)
		return nil, err
	}

	result.OrderID = snowflake.ID(completion.Order.ID).String()
	result.Completed = completion.Completed
	result.Duplicate = !completion.Completed
	if !completion.Completed {
		logger.Info("order already completed", zap.String("order_id", result.OrderID))
		s.obsMetrics.RecordWebhookEvent(ctx, provider, event.EventType, resultDuplicate)
		return result, nil
	}

	s.obsMetrics.RecordWebhookEvent(ctx, provider, event.EventType, resultProcessed)
	s.afterCompletion(ctx, completion)
	return result, nil
}

// apply records the event, creates the pending order and completes it in one
// transaction. Only tx is used inside the callback.
func (s *Service) apply(ctx context.Context, event *paymentdomain.CheckoutCompleted, req orderdomain.CreateRequest) (*orderdomain.Completion, error) {
	now := s.clock.Now().UTC()
	var completion *orderdomain.Completion

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := paymentdomain.EventRecord{
			ID:              s.genID.Generate().Int64(),
			Provider:        event.Provider,
			ProviderEventID: event.ProviderEventID,
			EventType:       event.EventType,
			Payload:         datatypes.JSON(event.RawPayload),
			ReceivedAt:      now,
		}
		inserted, err := s.repo.InsertEvent(ctx, tx, &record)
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
		if !inserted {
			stored, err := s.repo.FindEvent(ctx, tx, event.Provider, event.ProviderEventID)
			if err != nil {
				return err
			}
			if stored == nil {
				return paymentdomain.ErrInvalidEvent
			}
			if stored.ProcessedAt != nil {
				return paymentdomain.ErrEventAlreadyProcessed
			}
			record = *stored
		}

		if _, err := s.orderSvc.CreatePendingTx(ctx, tx, req); err != nil {
			return fmt.Errorf("create pending order: %w", err)
		}
		completion, err = s.orderSvc.CompleteBySessionTx(ctx, tx, event.SessionID)
		if err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		return s.repo.MarkProcessed(ctx, tx, record.ID, now)
	})
	if err != nil {
		return nil, err
	}
	return completion, nil
}

// afterCompletion runs the best-effort side effects of a completed order.
func (s *Service) afterCompletion(ctx context.Context, completion *orderdomain.Completion) {
	order := completion.Order
	if err := s.receipts.Send(ctx, order, receipt.SubjectPaid); err != nil {
		s.log.Warn("receipt email failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}

	productIDs := make([]int64, 0, len(completion.Tokens))
	for _, token := range completion.Tokens {
		productIDs = append(productIDs, token.ProductID)
	}
	completedAt := s.clock.Now().UTC()
	if order.CompletedAt != nil {
		completedAt = *order.CompletedAt
	}
	evt := events.NewOrderCompleted(order.ID, order.OrderNumber, order.Email, order.Total, order.Currency, productIDs, completedAt)
	if err := s.publisher.Publish(ctx, s.topic, order.OrderNumber, evt); err != nil {
		s.log.Warn("order event publish failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// buildOrderRequest rebuilds order lines from the cart snapshot carried in
// the session metadata. Names come from the catalog at completion time.
func (s *Service) buildOrderRequest(ctx context.Context, event *paymentdomain.CheckoutCompleted) (orderdomain.CreateRequest, error) {
	if strings.TrimSpace(event.Email) == "" {
		return orderdomain.CreateRequest{}, orderdomain.ErrInvalidEmail
	}
	items, err := checkoutdomain.DecodeItemsMetadata(event.Metadata)
	if err != nil {
		return orderdomain.CreateRequest{}, err
	}

	type parsed struct {
		item checkoutdomain.MetadataItem
		id   int64
	}
	lines := make([]parsed, 0, len(items))
	var productIDs, bundleIDs []int64
	for _, item := range items {
		id, err := snowflake.ParseString(item.ID)
		if err != nil || id == 0 {
			return orderdomain.CreateRequest{}, checkoutdomain.ErrInvalidMetadata
		}
		switch item.Type {
		case checkoutdomain.ItemTypeProduct:
			productIDs = append(productIDs, id.Int64())
		case checkoutdomain.ItemTypeBundle:
			bundleIDs = append(bundleIDs, id.Int64())
		default:
			return orderdomain.CreateRequest{}, checkoutdomain.ErrInvalidMetadata
		}
		lines = append(lines, parsed{item: item, id: id.Int64()})
	}

	products := map[int64]productdomain.Product{}
	if len(productIDs) > 0 {
		if products, err = s.productSvc.GetMany(ctx, productIDs); err != nil {
			return orderdomain.CreateRequest{}, err
		}
	}
	bundles := map[int64]bundledomain.Bundle{}
	if len(bundleIDs) > 0 {
		if bundles, err = s.bundleSvc.GetMany(ctx, bundleIDs); err != nil {
			return orderdomain.CreateRequest{}, err
		}
	}

	req := orderdomain.CreateRequest{
		Email:     event.Email,
		Currency:  event.Currency,
		SessionID: event.SessionID,
		Total:     event.AmountTotal,
	}
	if req.Currency == "" {
		req.Currency = s.currency
	}
	for _, line := range lines {
		id := line.id
		input := orderdomain.ItemInput{
			Quantity: line.item.Quantity,
			Price:    line.item.Price * int64(line.item.Quantity),
		}
		if line.item.Type == checkoutdomain.ItemTypeBundle {
			input.BundleID = &id
			input.Name = "Bundle " + line.item.ID
			if b, ok := bundles[id]; ok {
				input.Name = b.Name
			}
		} else {
			input.ProductID = &id
			input.Name = "Product " + line.item.ID
			if p, ok := products[id]; ok {
				input.Name = p.Name
			}
		}
		req.Items = append(req.Items, input)
	}
	return req, nil
}
